package printers

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// ItemPrinter holds the output and test controls shared by the record printers.
type ItemPrinter struct {
	writer      io.Writer
	log         zerolog.Logger
	echo        bool
	testWaits   int
	muted       bool
	idPrintMute bool
}

// NewItemPrinter constructs an ItemPrinter using the given io.Writer.
func NewItemPrinter(writer io.Writer) *ItemPrinter {
	return &ItemPrinter{
		writer: writer,
		log:    zerolog.Nop(),
	}
}

// SetMessageLogger echoes every printed line to logger at info level.
func (p *ItemPrinter) SetMessageLogger(logger zerolog.Logger) {
	p.log = logger
	p.echo = true
}

// ItemPrintLine writes the given message to the writer and optionally logs it.
func (p *ItemPrinter) ItemPrintLine(msg string) {
	if p.writer != nil {
		fmt.Fprint(p.writer, msg)
	}
	if p.echo {
		p.log.Info().Msg(msg)
	}
}

// SetTestWaits makes the printer return a wait response for the next numWaits records.
func (p *ItemPrinter) SetTestWaits(numWaits int) { p.testWaits = numWaits }

// TestWaits gets the remaining number of test wait signals to return.
func (p *ItemPrinter) TestWaits() int { return p.testWaits }

// DecTestWaits decrements the number of test wait signals remaining.
func (p *ItemPrinter) DecTestWaits() { p.testWaits-- }

// SetMute sets the printer to mute (avoids output).
func (p *ItemPrinter) SetMute(mute bool) { p.muted = mute }

// IsMuted returns true if the printer is muted.
func (p *ItemPrinter) IsMuted() bool { return p.muted }

// MuteIDPrint mutes or unmutes printing the index and view prefix.
func (p *ItemPrinter) MuteIDPrint(mute bool) { p.idPrintMute = mute }

// IDPrintMuted returns whether the index and view prefix is muted.
func (p *ItemPrinter) IDPrintMuted() bool { return p.idPrintMute }

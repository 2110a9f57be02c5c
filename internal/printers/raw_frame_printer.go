package printers

import (
	"fmt"
	"io"
	"strings"

	"github.com/RallySmith/logic2-ext-armdebug/internal/demux"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// RawFramePrinter prints the bytes recovered from TPIU frames, one line per
// run of bytes on the same stream.
type RawFramePrinter struct {
	ItemPrinter

	runID    uint8
	runStart ocsd.TrcIndex
	run      []byte
}

// NewRawFramePrinter creates a new printer for de-framed stream data.
func NewRawFramePrinter(writer io.Writer) *RawFramePrinter {
	return &RawFramePrinter{
		ItemPrinter: *NewItemPrinter(writer),
	}
}

// StreamDataIn prints data received on stream id, starting at capture position index.
func (p *RawFramePrinter) StreamDataIn(op ocsd.DatapathOp, index ocsd.TrcIndex, id uint8, data []byte) ocsd.DatapathResp {
	if p.IsMuted() || op != ocsd.OpData {
		return ocsd.RespCont
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Frame Data; Index%7d; ", index))
	sb.WriteString(fmt.Sprintf("%10s", "ID_DATA["))
	if id == ocsd.BadCSSrcID {
		sb.WriteString("????")
	} else {
		sb.WriteString(fmt.Sprintf("0x%02x", id))
	}
	sb.WriteString("]; ")

	lineBytes := 0
	for i := range data {
		if lineBytes == 16 {
			sb.WriteString("\n")
			lineBytes = 0
		}
		sb.WriteString(fmt.Sprintf("%02x ", data[i]))
		lineBytes++
	}
	sb.WriteString("\n")
	p.ItemPrintLine(sb.String())

	return ocsd.RespCont
}

// BytesIn collects deformatter output, printing a run when the stream changes.
func (p *RawFramePrinter) BytesIn(bs []demux.Byte) {
	for _, b := range bs {
		if len(p.run) > 0 && b.ID != p.runID {
			p.Flush()
		}
		if len(p.run) == 0 {
			p.runID = b.ID
			p.runStart = b.Index
		}
		p.run = append(p.run, b.Value)
	}
}

// Flush prints the pending run.
func (p *RawFramePrinter) Flush() {
	if len(p.run) == 0 {
		return
	}
	p.StreamDataIn(ocsd.OpData, p.runStart, p.runID, p.run)
	p.run = p.run[:0]
}

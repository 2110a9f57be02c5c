package pipeline

import (
	"fmt"

	"github.com/RallySmith/logic2-ext-armdebug/internal/console"
	"github.com/RallySmith/logic2-ext-armdebug/internal/instr"
	"github.com/RallySmith/logic2-ext-armdebug/internal/itm"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Kind tags the payload of a Record.
type Kind int

const (
	KindPacket  Kind = iota // Packet is set
	KindConsole             // Span is set
	KindInstr               // Instr is set
)

func (k Kind) String() string {
	switch k {
	case KindPacket:
		return "packet"
	case KindConsole:
		return "console"
	case KindInstr:
		return "instr"
	default:
		return "unknown"
	}
}

// Record is one decoder output covering the input positions [Start, End].
type Record struct {
	Kind       Kind
	View       string
	Start, End ocsd.TrcIndex

	Packet *itm.Packet
	Span   *console.Span
	Instr  *instr.Record
}

// Anomaly reports whether the record flags a protocol problem.
func (r *Record) Anomaly() bool {
	switch r.Kind {
	case KindPacket:
		return r.Packet.IsBadPacket() || r.Packet.Type == itm.PktNotSync
	case KindConsole:
		return r.Span.NonText
	case KindInstr:
		return !r.Instr.Valid() || r.Instr.Gap
	}
	return false
}

func (r *Record) String() string {
	switch r.Kind {
	case KindPacket:
		return r.Packet.String()
	case KindConsole:
		if r.Span.NonText {
			return fmt.Sprintf("NONTEXT %s", r.Span.String())
		}
		return fmt.Sprintf("TEXT %q", r.Span.Text)
	case KindInstr:
		return "INSTR " + r.Instr.String()
	}
	return "UNKNOWN"
}

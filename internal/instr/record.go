package instr

import (
	"fmt"
	"strings"

	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Status classifies how an instrumentation record was closed.
type Status int

const (
	StatusValid       Status = iota // tail matched the header sequence number
	StatusSeqMismatch               // tail did not match, or a field arrived after the last one
	StatusShort                     // tail arrived before all declared fields
	StatusPartial                   // a new header arrived before the tail
	StatusOrphan                    // field or tail packet outside any record
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusSeqMismatch:
		return "SEQ_MISMATCH"
	case StatusShort:
		return "SHORT"
	case StatusPartial:
		return "PARTIAL"
	case StatusOrphan:
		return "ORPHAN"
	default:
		return "UNKNOWN"
	}
}

// Record is one eCosPro instrumentation record: a 2 byte header 0xNNSS,
// NN 4 byte fields and a 1 byte tail repeating SS.
type Record struct {
	Seq       uint8     // SS from the header
	NumFields uint8     // NN from the header
	Fields    [][4]byte // field bytes as received, least significant first
	Status    Status
	Gap       bool   // valid record whose Seq does not follow the last valid one
	TailSeq   uint8  // tail byte, when a tail was received
	HasTail   bool   // TailSeq is set
	Orphan    []byte // payload of an orphan packet
	Note      string // anomaly description

	Start, End ocsd.TrcIndex
}

// Valid reports whether the record closed with a matching tail.
func (r *Record) Valid() bool {
	return r.Status == StatusValid
}

// FieldWord returns field i as a little endian 32 bit value.
func (r *Record) FieldWord(i int) uint32 {
	f := r.Fields[i]
	return uint32(f[0]) | uint32(f[1])<<8 | uint32(f[2])<<16 | uint32(f[3])<<24
}

func (r *Record) String() string {
	var sb strings.Builder
	if r.Status == StatusOrphan {
		fmt.Fprintf(&sb, "%s; Data % X", r.Status, r.Orphan)
	} else {
		fmt.Fprintf(&sb, "%s; Seq#%02X; Fields %d/%d", r.Status, r.Seq, len(r.Fields), r.NumFields)
		for i := range r.Fields {
			fmt.Fprintf(&sb, " %08X", r.FieldWord(i))
		}
	}
	if r.Gap {
		sb.WriteString("; [Missed records]")
	}
	if r.Note != "" {
		sb.WriteString("; ")
		sb.WriteString(r.Note)
	}
	return sb.String()
}

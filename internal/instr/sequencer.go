package instr

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

type seqState int

const (
	awaitingHeader seqState = iota
	accumulatingBody
	awaitingTail
)

// Stats counts records by outcome.
type Stats struct {
	Valid     uint64
	Mismatch  uint64
	Short     uint64
	Partial   uint64
	Orphan    uint64
	Gaps      uint64 // valid records flagged with a sequence gap
	Truncated uint64 // records discarded by Flush
}

// Sequencer groups stimulus port packets on the instrumentation port into
// records. Records are independent; the last valid sequence number is kept
// only to flag gaps.
type Sequencer struct {
	log zerolog.Logger

	state     seqState
	cur       Record
	remaining int

	lastSeq  uint8
	haveLast bool

	stats Stats
}

// NewSequencer creates a sequencer waiting for a header.
func NewSequencer(logger zerolog.Logger) *Sequencer {
	return &Sequencer{
		log: common.ComponentLogger(logger, ocsd.CmpnamePrefixInstr),
	}
}

// Stats returns the record counters.
func (s *Sequencer) Stats() Stats {
	return s.stats
}

// InRecord reports whether a header has been seen without its tail.
func (s *Sequencer) InRecord() bool {
	return s.state != awaitingHeader
}

// Reset drops any open record and forgets the last sequence number.
func (s *Sequencer) Reset() {
	s.state = awaitingHeader
	s.cur = Record{}
	s.remaining = 0
	s.lastSeq = 0
	s.haveLast = false
	s.stats = Stats{}
}

// Flush discards an open record at the end of the trace.
func (s *Sequencer) Flush() {
	if s.state != awaitingHeader {
		s.stats.Truncated++
		s.log.Debug().
			Uint64("idx", uint64(s.cur.Start)).
			Uint8("seq", s.cur.Seq).
			Int("fields", len(s.cur.Fields)).
			Msg(common.NewError(ocsd.ErrSevWarn, ocsd.ErrInstrPartialRecord).Error())
	}
	s.state = awaitingHeader
	s.cur = Record{}
}

// Feed adds one stimulus packet of size 1, 2 or 4 bytes. Closed records are
// appended to out.
func (s *Sequencer) Feed(size int, value uint32, start, end ocsd.TrcIndex, out []Record) []Record {
	switch size {
	case 2:
		return s.header(value, start, end, out)
	case 4:
		return s.field(value, start, end, out)
	case 1:
		return s.tail(uint8(value), start, end, out)
	default:
		s.log.Debug().Int("size", size).Uint64("idx", uint64(start)).Msg("unexpected packet size ignored")
		return out
	}
}

func (s *Sequencer) header(value uint32, start, end ocsd.TrcIndex, out []Record) []Record {
	if s.state != awaitingHeader {
		s.cur.Note = fmt.Sprintf("partial record, header seen after %d of %d fields", len(s.cur.Fields), s.cur.NumFields)
		out = s.emit(StatusPartial, out)
	}

	s.cur = Record{
		Seq:       uint8(value),
		NumFields: uint8(value >> 8),
		Start:     start,
		End:       end,
	}
	s.remaining = int(s.cur.NumFields)
	if s.remaining == 0 {
		s.state = awaitingTail
	} else {
		s.cur.Fields = make([][4]byte, 0, s.remaining)
		s.state = accumulatingBody
	}
	return out
}

func (s *Sequencer) field(value uint32, start, end ocsd.TrcIndex, out []Record) []Record {
	f := [4]byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}

	switch s.state {
	case accumulatingBody:
		s.cur.Fields = append(s.cur.Fields, f)
		s.cur.End = end
		s.remaining--
		if s.remaining == 0 {
			s.state = awaitingTail
		}
		return out
	case awaitingTail:
		s.cur.End = end
		s.cur.Note = fmt.Sprintf("extra field %08X, expected tail", value)
		return s.emit(StatusSeqMismatch, out)
	default:
		return s.orphan(f[:], start, end, out)
	}
}

func (s *Sequencer) tail(tailSeq uint8, start, end ocsd.TrcIndex, out []Record) []Record {
	switch s.state {
	case awaitingTail:
		s.cur.End = end
		s.cur.TailSeq = tailSeq
		s.cur.HasTail = true
		if tailSeq != s.cur.Seq {
			s.cur.Note = fmt.Sprintf("Seq# mismatch: saw %02X expected %02X", tailSeq, s.cur.Seq)
			return s.emit(StatusSeqMismatch, out)
		}
		if s.haveLast && tailSeq != s.lastSeq+1 {
			s.cur.Gap = true
			s.stats.Gaps++
		}
		s.lastSeq = tailSeq
		s.haveLast = true
		return s.emit(StatusValid, out)
	case accumulatingBody:
		s.cur.End = end
		s.cur.TailSeq = tailSeq
		s.cur.HasTail = true
		s.cur.Note = fmt.Sprintf("Fields saw %d expected %d", len(s.cur.Fields), s.cur.NumFields)
		return s.emit(StatusShort, out)
	default:
		return s.orphan([]byte{tailSeq}, start, end, out)
	}
}

func (s *Sequencer) orphan(data []byte, start, end ocsd.TrcIndex, out []Record) []Record {
	s.cur = Record{
		Orphan: data,
		Note:   "data outside a record",
		Start:  start,
		End:    end,
	}
	return s.emit(StatusOrphan, out)
}

// emit closes the current record and restarts at the next header.
func (s *Sequencer) emit(status Status, out []Record) []Record {
	s.cur.Status = status

	var code ocsd.Err
	switch status {
	case StatusValid:
		s.stats.Valid++
	case StatusSeqMismatch:
		s.stats.Mismatch++
		code = ocsd.ErrInstrSeqMismatch
	case StatusShort:
		s.stats.Short++
		code = ocsd.ErrInstrPartialRecord
	case StatusPartial:
		s.stats.Partial++
		code = ocsd.ErrInstrPartialRecord
	case StatusOrphan:
		s.stats.Orphan++
		code = ocsd.ErrInstrOrphanData
	}
	if code != ocsd.OK {
		if e := s.log.Debug(); e.Enabled() {
			err := common.NewErrorWithIdxMsg(ocsd.ErrSevWarn, code, s.cur.Start, s.cur.Note)
			e.Msg(err.Error())
		}
	}

	out = append(out, s.cur)
	s.cur = Record{}
	s.remaining = 0
	s.state = awaitingHeader
	return out
}

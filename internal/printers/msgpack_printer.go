package printers

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/instr"
	"github.com/RallySmith/logic2-ext-armdebug/internal/interfaces"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
	"github.com/RallySmith/logic2-ext-armdebug/internal/pipeline"
)

// WireRecord is the msgpack map written for each record.
type WireRecord struct {
	Index   uint64 `msgpack:"idx"`
	View    string `msgpack:"view,omitempty"`
	Kind    string `msgpack:"kind"`
	Start   uint64 `msgpack:"start"`
	End     uint64 `msgpack:"end"`
	Anomaly bool   `msgpack:"anomaly,omitempty"`
	Summary string `msgpack:"str"`

	// packet
	Type      string `msgpack:"type,omitempty"`
	Port      *int   `msgpack:"port,omitempty"`
	Value     uint64 `msgpack:"value,omitempty"`
	Size      uint8  `msgpack:"size,omitempty"`
	Timestamp uint64 `msgpack:"ts,omitempty"`
	Raw       []byte `msgpack:"raw,omitempty"`

	// console
	Text string `msgpack:"text,omitempty"`

	// instrumentation
	Status string   `msgpack:"status,omitempty"`
	Seq    *uint8   `msgpack:"seq,omitempty"`
	Fields []uint32 `msgpack:"fields,omitempty"`
	Gap    bool     `msgpack:"gap,omitempty"`
	Note   string   `msgpack:"note,omitempty"`
}

// MsgpackPrinter writes a stream of msgpack maps, one per record.
type MsgpackPrinter struct {
	enc *msgpack.Encoder
	log zerolog.Logger
	n   int
}

var _ interfaces.RecordIn[pipeline.Record] = (*MsgpackPrinter)(nil)

// NewMsgpackPrinter creates a printer encoding to w.
func NewMsgpackPrinter(w io.Writer, logger zerolog.Logger) *MsgpackPrinter {
	return &MsgpackPrinter{
		enc: msgpack.NewEncoder(w),
		log: logger,
	}
}

// Count returns the number of records written.
func (p *MsgpackPrinter) Count() int {
	return p.n
}

// RecordIn encodes rec. A write failure is fatal to the datapath.
func (p *MsgpackPrinter) RecordIn(indexSOP ocsd.TrcIndex, rec *pipeline.Record) ocsd.DatapathResp {
	w := ToWire(indexSOP, rec)
	if err := p.enc.Encode(&w); err != nil {
		common.LogError(p.log, common.NewErrorWithIdxMsg(ocsd.ErrSevError, ocsd.ErrFail, indexSOP, err.Error()))
		return ocsd.RespFatalSysErr
	}
	p.n++
	return ocsd.RespCont
}

// ToWire flattens a record into its msgpack form.
func ToWire(indexSOP ocsd.TrcIndex, rec *pipeline.Record) WireRecord {
	w := WireRecord{
		Index:   uint64(indexSOP),
		View:    rec.View,
		Kind:    rec.Kind.String(),
		Start:   uint64(rec.Start),
		End:     uint64(rec.End),
		Anomaly: rec.Anomaly(),
		Summary: rec.String(),
	}

	switch rec.Kind {
	case pipeline.KindPacket:
		pkt := rec.Packet
		w.Type = pkt.TypeName()
		if port := pkt.Port(); port >= 0 {
			w.Port = &port
		}
		w.Value = pkt.Value
		w.Size = pkt.ValSz
		w.Timestamp = pkt.Timestamp
		w.Raw = pkt.Raw
	case pipeline.KindConsole:
		w.Text = rec.Span.Text
		if rec.Span.NonText {
			w.Raw = rec.Span.Raw
		}
	case pipeline.KindInstr:
		ir := rec.Instr
		w.Status = ir.Status.String()
		if ir.Status != instr.StatusOrphan {
			seq := ir.Seq
			w.Seq = &seq
		}
		for i := range ir.Fields {
			w.Fields = append(w.Fields, ir.FieldWord(i))
		}
		w.Raw = ir.Orphan
		w.Gap = ir.Gap
		w.Note = ir.Note
	}
	return w
}

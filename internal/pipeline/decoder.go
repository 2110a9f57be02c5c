package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/RallySmith/logic2-ext-armdebug/internal/console"
	"github.com/RallySmith/logic2-ext-armdebug/internal/demux"
	"github.com/RallySmith/logic2-ext-armdebug/internal/instr"
	"github.com/RallySmith/logic2-ext-armdebug/internal/interfaces"
	"github.com/RallySmith/logic2-ext-armdebug/internal/itm"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Stats aggregates the counters of every stage in a decoder.
type Stats struct {
	Deformatter  demux.Stats
	Parser       itm.Stats
	Sequencer    instr.Stats
	ConsoleSpans uint64
	NonText      uint64
	Records      uint64

	// packet state at the last byte
	Page     uint8
	LocalTS  uint64
	GlobalTS uint64
}

// Decoder runs the full chain for one view of a capture:
// deformatter (optional), packet parser, then the style specific stage.
// A Decoder owns all its state and is not safe for concurrent use.
type Decoder struct {
	cfg Config
	log zerolog.Logger

	dfmt  *demux.FrameDeformatter // nil when bypassed
	proc  *itm.PktProc
	track *itm.Tracker
	seq   *instr.Sequencer
	cons  *console.Grouper

	bytes   []demux.Byte
	spans   []console.Span
	instrs  []instr.Record
	recs    []Record
	records uint64

	recOut interfaces.RecordIn[Record]
}

var _ interfaces.TrcDataIn = (*Decoder)(nil)

// NewDecoder builds the component chain described by cfg.
func NewDecoder(cfg Config, logger zerolog.Logger) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.With().Str("view", cfg.Name).Logger()

	d := &Decoder{
		cfg:   cfg,
		log:   log,
		track: itm.NewTracker(cfg.itmConfig()),
	}

	if cfg.Deframed() {
		dfmt, err := demux.NewFrameDeformatter(cfg.demuxConfig(), log)
		if err != nil {
			return nil, err
		}
		d.dfmt = dfmt
	}

	proc, err := itm.NewPktProc(cfg.itmConfig(), log)
	if err != nil {
		return nil, err
	}
	d.proc = proc

	switch cfg.Style {
	case StyleConsole:
		d.cons = console.NewGrouper()
	case StyleInstrumentation:
		d.seq = instr.NewSequencer(log)
	}

	log.Debug().
		Stringer("style", cfg.Style).
		Int("port", cfg.Port).
		Bool("tpiu", cfg.Deframed()).
		Uint8("stream", cfg.StreamID).
		Uint8("offset", cfg.Offset).
		Msg("decoder created")
	return d, nil
}

// Config returns the decoder configuration.
func (d *Decoder) Config() Config {
	return d.cfg
}

// AttachRecordOut sets the sink receiving records from TraceDataIn.
func (d *Decoder) AttachRecordOut(out interfaces.RecordIn[Record]) {
	d.recOut = out
}

// Stats returns the counters of every stage.
func (d *Decoder) Stats() Stats {
	st := Stats{
		Parser:   d.proc.Stats(),
		Records:  d.records,
		Page:     d.track.Page(),
		LocalTS:  d.track.LocalTS(),
		GlobalTS: d.track.GlobalTS(),
	}
	if d.dfmt != nil {
		st.Deformatter = d.dfmt.Stats()
	}
	if d.seq != nil {
		st.Sequencer = d.seq.Stats()
	}
	if d.cons != nil {
		st.ConsoleSpans, st.NonText = d.cons.Counts()
	}
	return st
}

// Feed adds one captured byte at position idx and appends any records it completes to out.
func (d *Decoder) Feed(b byte, idx ocsd.TrcIndex, out []Record) []Record {
	if d.dfmt == nil {
		return d.feedStream(b, idx, out)
	}
	d.bytes = d.dfmt.Feed(b, idx, d.bytes[:0])
	for _, db := range d.bytes {
		out = d.feedStream(db.Value, db.Index, out)
	}
	return out
}

// Close ends the capture: an open console span is emitted, partial frames,
// packets and instrumentation records are discarded.
func (d *Decoder) Close(out []Record) []Record {
	if d.cons != nil {
		d.spans = d.cons.Flush(d.spans[:0])
		out = d.appendSpans(out)
	}
	d.proc.Flush()
	if d.seq != nil {
		d.seq.Flush()
	}
	if d.dfmt != nil {
		d.dfmt.Flush()
	}

	st := d.Stats()
	d.log.Debug().
		Uint64("records", st.Records).
		Uint64("packets", st.Parser.Packets).
		Uint64("bad_packets", st.Parser.BadPackets).
		Uint64("frames", st.Deformatter.Frames).
		Msg("end of trace")
	return out
}

// Reset returns every stage to its initial state.
func (d *Decoder) Reset() {
	if d.dfmt != nil {
		d.dfmt.Reset()
	}
	d.proc.Reset()
	d.track.Reset()
	if d.seq != nil {
		d.seq.Reset()
	}
	if d.cons != nil {
		d.cons.Reset()
	}
	d.records = 0
}

// TraceDataIn drives the decoder through the datapath interface, delivering
// records to the attached sink. The response is the most severe one returned
// by the sink.
func (d *Decoder) TraceDataIn(op ocsd.DatapathOp, index ocsd.TrcIndex, dataBlock []byte) (uint32, ocsd.DatapathResp) {
	switch op {
	case ocsd.OpData:
		if d.recOut == nil {
			d.log.Error().Msg("no record output attached")
			return 0, ocsd.RespFatalNotInit
		}
		resp := ocsd.RespCont
		for i, b := range dataBlock {
			d.recs = d.Feed(b, index+ocsd.TrcIndex(i), d.recs[:0])
			resp = d.deliver(resp)
			if !ocsd.DataRespIsCont(resp) {
				return uint32(i + 1), resp
			}
		}
		return uint32(len(dataBlock)), resp

	case ocsd.OpEOT:
		d.recs = d.Close(d.recs[:0])
		if d.recOut == nil {
			return 0, ocsd.RespCont
		}
		return 0, d.deliver(ocsd.RespCont)

	case ocsd.OpFlush:
		return 0, ocsd.RespCont

	case ocsd.OpReset:
		d.Reset()
		return 0, ocsd.RespCont
	}
	return 0, ocsd.RespFatalInvalidOp
}

func (d *Decoder) deliver(resp ocsd.DatapathResp) ocsd.DatapathResp {
	for i := range d.recs {
		if r := d.recOut.RecordIn(d.recs[i].Start, &d.recs[i]); r > resp {
			resp = r
		}
	}
	return resp
}

func (d *Decoder) feedStream(b byte, idx ocsd.TrcIndex, out []Record) []Record {
	pkt, ok := d.proc.Feed(b, idx)
	if !ok {
		return out
	}
	d.track.Apply(&pkt)
	return d.dispatch(&pkt, out)
}

// dispatch routes a packet according to the decode style.
func (d *Decoder) dispatch(pkt *itm.Packet, out []Record) []Record {
	if d.cfg.Style == StyleAll {
		return d.appendPacket(pkt, out)
	}
	if pkt.Type != itm.PktSWIT || pkt.Port() != d.cfg.Port {
		return out
	}

	switch d.cfg.Style {
	case StylePort:
		out = d.appendPacket(pkt, out)
	case StyleConsole:
		d.spans = d.spans[:0]
		for _, b := range pkt.Payload() {
			d.spans = d.cons.Feed(b, pkt.Start, pkt.End, d.spans)
		}
		out = d.appendSpans(out)
	case StyleInstrumentation:
		d.instrs = d.seq.Feed(int(pkt.ValSz), uint32(pkt.Value), pkt.Start, pkt.End, d.instrs[:0])
		for i := range d.instrs {
			rec := d.instrs[i]
			out = append(out, Record{Kind: KindInstr, View: d.cfg.Name, Start: rec.Start, End: rec.End, Instr: &rec})
		}
		d.records += uint64(len(d.instrs))
	}
	return out
}

func (d *Decoder) appendPacket(pkt *itm.Packet, out []Record) []Record {
	p := *pkt
	d.records++
	return append(out, Record{Kind: KindPacket, View: d.cfg.Name, Start: p.Start, End: p.End, Packet: &p})
}

func (d *Decoder) appendSpans(out []Record) []Record {
	for i := range d.spans {
		span := d.spans[i]
		out = append(out, Record{Kind: KindConsole, View: d.cfg.Name, Start: span.Start, End: span.End, Span: &span})
	}
	d.records += uint64(len(d.spans))
	return out
}

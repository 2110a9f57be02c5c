package itm

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

type procState int

const (
	stateIdle     procState = iota // next byte is a header
	stateSync                      // counting the zero run of a sync packet
	statePayload                   // fixed number of payload bytes remaining
	stateCont                      // payload ends on a byte with bit 7 clear
	stateWaitSync                  // dropping bytes until the first sync
)

const (
	minSyncZeros  = 5  // 47 zero bits then a one
	maxSyncRaw    = 16 // raw bytes kept for a sync run, the count carries on
	maxNotSyncRaw = 8  // bytes per NOTSYNC packet
)

// extBitLength maps extension payload byte count to the value bit length N (N:0).
var extBitLength = [5]uint8{2, 9, 16, 23, 31}

// HeaderInfo describes the packet a header byte starts.
type HeaderInfo struct {
	Type       PktType
	Payload    int  // fixed payload byte count
	Cont       bool // payload length follows continuation bits
	MaxPayload int  // bound on a continuation payload
}

// ClassifyHeader decodes a header byte. The payload length of every packet
// except sync is known from the header alone.
func ClassifyHeader(hdr byte) HeaderInfo {
	switch {
	case hdr == 0x00:
		return HeaderInfo{Type: PktAsync}
	case hdr == 0x70:
		return HeaderInfo{Type: PktOverflow}
	case hdr&0x03 != 0x00: // Stimulus packets
		size := int(hdr & 0x3)
		if size == 3 {
			size = 4
		}
		if hdr&0x4 != 0 {
			return HeaderInfo{Type: PktDWT, Payload: size}
		}
		return HeaderInfo{Type: PktSWIT, Payload: size}
	case hdr&0x0F == 0x00:
		if hdr&0x80 == 0 {
			return HeaderInfo{Type: PktTSLocal}
		}
		return HeaderInfo{Type: PktTSLocal, Cont: true, MaxPayload: 4}
	case hdr&0x0B == 0x08:
		if hdr&0x80 == 0 {
			return HeaderInfo{Type: PktExtension}
		}
		return HeaderInfo{Type: PktExtension, Cont: true, MaxPayload: 4}
	case hdr == 0x94:
		return HeaderInfo{Type: PktTSGlobal1, Cont: true, MaxPayload: 4}
	case hdr == 0xB4:
		return HeaderInfo{Type: PktTSGlobal2, Cont: true, MaxPayload: 6}
	default:
		return HeaderInfo{Type: PktReserved}
	}
}

// Stats counts parser activity since construction or the last Reset.
type Stats struct {
	Packets      uint64 // packets emitted, anomalies included
	Syncs        uint64 // sync packets
	BadPackets   uint64 // bad sequence and reserved packets
	NotSyncBytes uint64 // bytes dropped waiting for sync
	Truncated    uint64 // partial packets discarded by Flush
}

// PktProc converts the incoming byte stream into ITM packets, one byte at a time.
type PktProc struct {
	cfg Config
	log zerolog.Logger

	state  procState
	synced bool

	hdr       HeaderInfo
	raw       []byte
	remaining int
	zeros     int
	start     ocsd.TrcIndex
	last      ocsd.TrcIndex

	stats Stats
}

// NewPktProc creates a new ITM packet processor.
func NewPktProc(cfg Config, logger zerolog.Logger) (*PktProc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &PktProc{
		cfg: cfg,
		log: common.ComponentLogger(logger, ocsd.CmpnamePrefixPktproc),
		raw: make([]byte, 0, maxSyncRaw),
	}
	p.initProcessorState()
	return p, nil
}

func (p *PktProc) initProcessorState() {
	p.synced = false
	p.raw = p.raw[:0]
	p.zeros = 0
	p.remaining = 0
	p.idle()
}

// idle selects the state for the next header byte.
func (p *PktProc) idle() {
	if p.cfg.WaitForSync && !p.synced {
		p.state = stateWaitSync
	} else {
		p.state = stateIdle
	}
}

// Config returns the parser configuration.
func (p *PktProc) Config() Config {
	return p.cfg
}

// Stats returns the activity counters.
func (p *PktProc) Stats() Stats {
	return p.stats
}

// InPacket reports whether a packet is partially received.
func (p *PktProc) InPacket() bool {
	switch p.state {
	case stateSync, statePayload, stateCont:
		return true
	}
	return false
}

// Reset returns the parser to its initial state.
func (p *PktProc) Reset() {
	p.initProcessorState()
	p.stats = Stats{}
}

// Flush discards a partially received packet at the end of the trace.
func (p *PktProc) Flush() {
	if p.InPacket() {
		p.stats.Truncated++
		p.log.Debug().
			Uint64("idx", uint64(p.start)).
			Hex("raw", p.raw).
			Msg(common.NewError(ocsd.ErrSevWarn, ocsd.ErrIncompletePkt).Error())
	} else if p.state == stateWaitSync && len(p.raw) > 0 {
		p.stats.NotSyncBytes += uint64(len(p.raw))
		p.log.Debug().Uint64("idx", uint64(p.start)).Int("bytes", len(p.raw)).
			Msg("unsynced bytes discarded at end of trace")
	}
	p.raw = p.raw[:0]
	p.zeros = 0
	p.idle()
}

// Feed adds one byte to the parser. It returns a packet when the byte completes one.
func (p *PktProc) Feed(b byte, idx ocsd.TrcIndex) (Packet, bool) {
	switch p.state {
	case stateWaitSync:
		return p.waitForSync(b, idx)
	case stateSync:
		return p.syncByte(b, idx)
	case statePayload:
		p.raw = append(p.raw, b)
		p.remaining--
		if p.remaining == 0 {
			return p.outputPacket(idx), true
		}
		return Packet{}, false
	case stateCont:
		return p.contByte(b, idx)
	default:
		return p.processHdr(b, idx)
	}
}

func (p *PktProc) processHdr(b byte, idx ocsd.TrcIndex) (Packet, bool) {
	p.start = idx
	p.raw = append(p.raw[:0], b)
	p.hdr = ClassifyHeader(b)

	switch {
	case b == 0x00:
		p.zeros = 1
		p.state = stateSync
	case p.hdr.Cont:
		p.state = stateCont
	case p.hdr.Payload > 0:
		p.remaining = p.hdr.Payload
		p.state = statePayload
	default:
		return p.outputPacket(idx), true
	}
	return Packet{}, false
}

func (p *PktProc) contByte(b byte, idx ocsd.TrcIndex) (Packet, bool) {
	p.raw = append(p.raw, b)
	if b&0x80 == 0 {
		return p.outputPacket(idx), true
	}
	if len(p.raw)-1 >= p.hdr.MaxPayload {
		return p.badSequence(idx, p.hdr.Type, "payload continuation value too long"), true
	}
	return Packet{}, false
}

func (p *PktProc) syncByte(b byte, idx ocsd.TrcIndex) (Packet, bool) {
	if b == 0x00 {
		p.zeros++
		if len(p.raw) < maxSyncRaw-1 {
			p.raw = append(p.raw, b)
		}
		return Packet{}, false
	}

	p.raw = append(p.raw, b)
	if b == 0x80 && p.zeros >= minSyncZeros {
		pkt := Packet{
			Type:    PktAsync,
			ErrType: PktNoErrType,
			Value:   uint64(p.zeros),
			Raw:     slices.Clone(p.raw),
			Start:   p.start,
			End:     idx,
		}
		p.synced = true
		p.stats.Syncs++
		p.stats.Packets++
		p.zeros = 0
		p.state = stateIdle
		return pkt, true
	}

	p.zeros = 0
	if p.cfg.WaitForSync && !p.synced {
		return p.notSync(idx), true
	}
	return p.badSequence(idx, PktAsync, "sync packet: unexpected byte in zero run"), true
}

func (p *PktProc) waitForSync(b byte, idx ocsd.TrcIndex) (Packet, bool) {
	if b == 0x00 {
		var pkt Packet
		var ok bool
		if len(p.raw) > 0 {
			pkt, ok = p.notSync(p.last), true
		}
		p.start = idx
		p.raw = append(p.raw[:0], b)
		p.zeros = 1
		p.state = stateSync
		return pkt, ok
	}

	if len(p.raw) == 0 {
		p.start = idx
	}
	p.raw = append(p.raw, b)
	p.last = idx
	if len(p.raw) == maxNotSyncRaw {
		return p.notSync(idx), true
	}
	return Packet{}, false
}

func (p *PktProc) notSync(end ocsd.TrcIndex) Packet {
	pkt := Packet{
		Type:    PktNotSync,
		ErrType: PktNoErrType,
		Raw:     slices.Clone(p.raw),
		Start:   p.start,
		End:     end,
	}
	p.stats.NotSyncBytes += uint64(len(p.raw))
	p.stats.Packets++
	p.raw = p.raw[:0]
	p.state = stateWaitSync
	return pkt
}

func (p *PktProc) badSequence(end ocsd.TrcIndex, errType PktType, msg string) Packet {
	pkt := Packet{
		Type:    PktBadSequence,
		ErrType: errType,
		Raw:     slices.Clone(p.raw),
		Start:   p.start,
		End:     end,
	}
	p.logBadPacket(&pkt, ocsd.ErrBadPacketSeq, msg)
	p.raw = p.raw[:0]
	p.idle()
	return pkt
}

func (p *PktProc) logBadPacket(pkt *Packet, code ocsd.Err, msg string) {
	p.stats.Packets++
	p.stats.BadPackets++
	if e := p.log.Debug(); e.Enabled() {
		err := common.NewErrorWithIdxChanMsg(ocsd.ErrSevWarn, code, pkt.Start, p.cfg.TraceID, msg)
		e.Hex("raw", pkt.Raw).Msg(err.Error())
	}
}

// outputPacket decodes the completed header and payload held in raw.
func (p *PktProc) outputPacket(end ocsd.TrcIndex) Packet {
	hdr := p.raw[0]
	payload := p.raw[1:]
	pkt := Packet{
		Type:    p.hdr.Type,
		ErrType: PktNoErrType,
		Raw:     slices.Clone(p.raw),
		Start:   p.start,
		End:     end,
	}

	switch pkt.Type {
	case PktSWIT, PktDWT:
		pkt.SrcID = (hdr >> 3) & 0x1F
		var value uint64
		for i, c := range payload {
			value |= uint64(c) << (8 * i)
		}
		pkt.Value = value
		pkt.ValSz = uint8(len(payload))

	case PktTSLocal:
		if hdr&0x80 == 0 {
			pkt.Value = uint64((hdr >> 4) & 0x7)
			pkt.ValSz = 1
		} else {
			pkt.SrcID = (hdr >> 4) & 0x3
			pkt.Value = contValue(payload)
			pkt.ValSz = uint8(len(payload))
		}

	case PktExtension:
		srcID := extBitLength[len(payload)]
		if hdr&0x4 != 0 {
			srcID |= 0x80
		}
		pkt.SrcID = srcID
		pkt.Value = contValue(payload)<<3 | uint64((hdr>>4)&0x7)
		pkt.ValSz = 4

	case PktTSGlobal1:
		if len(payload) == 4 {
			// final byte carries wrap and clock change
			pkt.SrcID = (payload[3] >> 5) & 0x3
			masked := [4]byte{payload[0], payload[1], payload[2], payload[3] & 0x1F}
			pkt.Value = contValue(masked[:])
		} else {
			pkt.Value = contValue(payload)
		}
		pkt.ValSz = uint8(len(payload))

	case PktTSGlobal2:
		pkt.Value = contValue(payload)
		pkt.ValSz = uint8(len(payload))

	case PktReserved:
		p.logBadPacket(&pkt, ocsd.ErrInvalidPcktHdr, "reserved header")
		p.raw = p.raw[:0]
		p.idle()
		return pkt
	}

	p.stats.Packets++
	p.raw = p.raw[:0]
	p.idle()
	return pkt
}

// contValue assembles the 7 bit groups of a continuation payload, least significant first.
func contValue(payload []byte) uint64 {
	var value uint64
	shift := 0
	for _, c := range payload {
		value |= uint64(c&0x7F) << shift
		shift += 7
	}
	return value
}

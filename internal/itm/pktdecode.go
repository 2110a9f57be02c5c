package itm

// Tracker carries the packet level state that spans packets: the stimulus
// page, the local and global timestamps and a pending overflow.
type Tracker struct {
	cfg Config

	localTSCount   uint64
	globalTS       uint64
	stimPage       uint8
	bNeedGTS2      bool
	bPrevOverflow  bool
	bGTSFreqChange bool
}

// NewTracker creates a tracker for packets parsed with cfg.
func NewTracker(cfg Config) *Tracker {
	t := &Tracker{cfg: cfg}
	t.Reset()
	return t
}

// Reset clears all tracked state.
func (t *Tracker) Reset() {
	t.localTSCount = 0
	t.globalTS = 0
	t.stimPage = 0
	t.bNeedGTS2 = true
	t.bPrevOverflow = false
	t.bGTSFreqChange = false
}

// Page returns the current stimulus port page.
func (t *Tracker) Page() uint8 { return t.stimPage }

// LocalTS returns the accumulated local timestamp.
func (t *Tracker) LocalTS() uint64 { return t.localTSCount }

// GlobalTS returns the assembled global timestamp.
func (t *Tracker) GlobalTS() uint64 { return t.globalTS }

// Apply updates the tracked state from pkt and annotates pkt with its
// stimulus page, timestamp and overflow flag.
func (t *Tracker) Apply(pkt *Packet) {
	globalTSLowMask := []uint64{
		0x00000007F, // [ 6:0]
		0x000003FFF, // [13:0]
		0x0001FFFFF, // [20:0]
		0x003FFFFFF, // [25:0]
	}
	globalTSHiMask := ^globalTSLowMask[3]

	bData := false
	srcID := pkt.SrcID

	switch pkt.Type {
	case PktAsync:
		t.stimPage = 0

	case PktDWT:
		bData = true

	case PktSWIT:
		pkt.Page = t.stimPage
		bData = true

	case PktExtension:
		// stimulus port page, SW source with a 3 bit value
		if (srcID&0x80) == 0 && (srcID&0x1F) == 2 {
			t.stimPage = uint8(pkt.Value & 0x7)
		}

	case PktOverflow:
		t.localTSCount = 0
		t.bPrevOverflow = true

	case PktTSGlobal1:
		if !t.bNeedGTS2 {
			t.bNeedGTS2 = (srcID & 0x2) != 0
		}
		if !t.bGTSFreqChange {
			t.bGTSFreqChange = (srcID & 0x1) != 0
		}
		if pkt.ValSz >= 1 && int(pkt.ValSz) <= len(globalTSLowMask) {
			t.globalTS &= ^globalTSLowMask[pkt.ValSz-1]
			t.globalTS |= pkt.Value
		}
		if !t.bNeedGTS2 {
			t.bGTSFreqChange = false
		}
		pkt.Timestamp = t.globalTS

	case PktTSGlobal2:
		t.globalTS &= ^globalTSHiMask
		t.globalTS |= pkt.Value << 26
		t.bGTSFreqChange = false
		t.bNeedGTS2 = false
		pkt.Timestamp = t.globalTS

	case PktTSLocal:
		t.localTSCount += pkt.Value * t.cfg.TSPrescaleValue()
		bData = true
	}

	if bData {
		pkt.Timestamp = t.localTSCount
		if t.bPrevOverflow {
			pkt.Overflow = true
			t.bPrevOverflow = false
		}
	}
}

package demux

import (
	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Sync points

// checkForSync tracks the last four input bytes. The full frame sync cannot occur
// inside a frame since an even slot holding 0xFF would be the reserved ID 0x7F.
func (d *FrameDeformatter) checkForSync(b byte) bool {
	d.syncWin = (d.syncWin >> 8) | (uint32(b) << 24)
	return d.syncWin == ocsd.DfrmtrFsync
}

// checkForHalfSync reports whether b completes a half-word sync at an even slot
// pair of the current frame. Both bytes are dropped and the frame does not advance.
func (d *FrameDeformatter) checkForHalfSync(b byte, idx ocsd.TrcIndex) bool {
	prev := d.exFrmNBytes - 1
	if d.exFrmNBytes%2 == 0 || prev < d.firstValid {
		return false
	}
	if uint16(d.exFrmData[prev])|uint16(b)<<8 != ocsd.DfrmtrHsync {
		return false
	}
	d.log.Debug().Uint64("idx", uint64(idx)).Int("slot", prev).Msg("half-word sync")
	d.stats.HalfSyncs++
	d.exFrmNBytes = prev
	return true
}

// onFrameSync realigns the frame boundary to the byte after the sync pattern.
func (d *FrameDeformatter) onFrameSync(idx ocsd.TrcIndex) {
	discarded := d.exFrmNBytes - d.firstValid - 3
	if discarded > 0 {
		d.log.Debug().Uint64("idx", uint64(idx)).Int("bytes", discarded).Msg("frame sync realigned partial frame")
	}
	d.stats.FrameSyncs++
	d.exFrmNBytes = 0
	d.firstValid = 0
	d.syncWin = 0
}

// unpackFrame applies the aux byte to the even slots and attributes every payload
// byte to the stream active at its slot.
func (d *FrameDeformatter) unpackFrame(out []Byte) []Byte {
	frameFlagBit := uint8(0x1)
	aux := d.exFrmData[ocsd.DfrmtrAuxByte]

	for i := 0; i < 14; i += 2 {
		flagSet := (frameFlagBit & aux) != 0

		if i >= d.firstValid && d.exFrmData[i] == ocsd.DfrmtrReservedID {
			d.reservedID(i)
			out = d.emit(out, d.currSrcID, i+1)
		} else if i >= d.firstValid && d.exFrmData[i]&0x1 != 0 {
			newSrcID := (d.exFrmData[i] >> 1) & 0x7F
			if newSrcID != d.currSrcID && flagSet {
				// the following byte still belongs to the previous ID
				out = d.emit(out, d.currSrcID, i+1)
				d.currSrcID = newSrcID
			} else {
				d.currSrcID = newSrcID
				out = d.emit(out, d.currSrcID, i+1)
			}
		} else {
			if i >= d.firstValid {
				b := d.exFrmData[i]
				if flagSet {
					b |= 0x1
				}
				d.exFrmData[i] = b
				out = d.emit(out, d.currSrcID, i)
			}
			out = d.emit(out, d.currSrcID, i+1)
		}

		frameFlagBit <<= 1
	}

	if 14 >= d.firstValid {
		if d.exFrmData[14] == ocsd.DfrmtrReservedID {
			d.reservedID(14)
		} else if d.exFrmData[14]&0x1 != 0 {
			d.currSrcID = (d.exFrmData[14] >> 1) & 0x7F
		} else {
			if (frameFlagBit & aux) != 0 {
				d.exFrmData[14] |= 0x1
			}
			out = d.emit(out, d.currSrcID, 14)
		}
	}

	d.stats.Frames++
	d.exFrmNBytes = 0
	d.firstValid = 0
	return out
}

// reservedID logs an even slot holding ID 0x7F. The current stream is kept.
func (d *FrameDeformatter) reservedID(slot int) {
	d.stats.ReservedIDs++
	d.log.Debug().Uint64("idx", uint64(d.exFrmIdx[slot])).Int("slot", slot).
		Msg(common.NewErrorMsg(ocsd.ErrSevWarn, ocsd.ErrDfrmtrBadFhsync, "reserved ID 0x7F in frame").Error())
}

func (d *FrameDeformatter) emit(out []Byte, id uint8, slot int) []Byte {
	if slot < d.firstValid {
		return out
	}
	if id == ocsd.BadCSSrcID || id == ocsd.IdleCSSrcID || (!d.cfg.AllStreams && id != d.cfg.StreamID) {
		d.stats.BytesDropped++
		return out
	}
	d.stats.BytesOut++
	return append(out, Byte{ID: id, Value: d.exFrmData[slot], Index: d.exFrmIdx[slot]})
}

package demux

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Config selects the stream recovered from the TPIU formatted byte stream.
type Config struct {
	StreamID   uint8 // stream of interest, 0x01..0x7F
	Offset     uint8 // bytes of the first frame missing from the capture, 0..15
	AllStreams bool  // emit every stream instead of StreamID only
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Offset >= ocsd.DfrmtrFrameSize {
		return common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrInvalidParamVal,
			fmt.Sprintf("frame offset %d out of range 0..%d", c.Offset, ocsd.DfrmtrFrameSize-1))
	}
	if !c.AllStreams && (c.StreamID == ocsd.IdleCSSrcID || c.StreamID > ocsd.MaxCSSrcID) {
		return common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrInvalidID,
			fmt.Sprintf("stream ID 0x%02X out of range 0x01..0x7F", c.StreamID))
	}
	return nil
}

// Byte is a payload byte recovered from a frame, with the stream it belongs to.
type Byte struct {
	ID    uint8
	Value byte
	Index ocsd.TrcIndex
}

// Stats counts deformatter activity since construction or the last Reset.
type Stats struct {
	Frames       uint64 // complete frames unpacked
	FrameSyncs   uint64 // full frame sync patterns seen
	HalfSyncs    uint64 // half-word sync pairs stripped
	ReservedIDs  uint64 // even slots holding the reserved ID 0x7F
	BytesOut     uint64 // bytes emitted for the selected stream(s)
	BytesDropped uint64 // payload bytes of other or unknown streams
}

// FrameDeformatter translates the TPIU formatted trace byte stream into the
// byte stream of one trace source ID. Bytes are supplied one at a time.
type FrameDeformatter struct {
	cfg Config
	log zerolog.Logger

	// current frame
	exFrmData   [ocsd.DfrmtrFrameSize]byte
	exFrmIdx    [ocsd.DfrmtrFrameSize]ocsd.TrcIndex
	exFrmNBytes int
	firstValid  int // slots below this index are missing from the capture

	currSrcID uint8
	syncWin   uint32

	stats Stats
}

// NewFrameDeformatter creates a deformatter. The zero value logger discards output.
func NewFrameDeformatter(cfg Config, logger zerolog.Logger) (*FrameDeformatter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &FrameDeformatter{
		cfg: cfg,
		log: common.ComponentLogger(logger, ocsd.CmpnamePrefixFramedeformatter),
	}
	d.resetStateParams()
	return d, nil
}

// Config returns the configuration the deformatter was built with.
func (d *FrameDeformatter) Config() Config {
	return d.cfg
}

// Stats returns the activity counters.
func (d *FrameDeformatter) Stats() Stats {
	return d.stats
}

// Reset returns the deformatter to its initial state, including the start offset.
func (d *FrameDeformatter) Reset() {
	d.resetStateParams()
	d.stats = Stats{}
}

func (d *FrameDeformatter) resetStateParams() {
	d.exFrmNBytes = int(d.cfg.Offset)
	d.firstValid = int(d.cfg.Offset)
	for i := 0; i < d.firstValid; i++ {
		d.exFrmData[i] = 0
		d.exFrmIdx[i] = ocsd.BadTrcIndex
	}
	d.currSrcID = ocsd.BadCSSrcID
	d.syncWin = 0
}

// Pending reports how many bytes of the current frame are buffered.
func (d *FrameDeformatter) Pending() int {
	return d.exFrmNBytes - d.firstValid
}

// Feed adds one captured byte. Bytes recovered when a frame completes are
// appended to out and the extended slice returned.
func (d *FrameDeformatter) Feed(b byte, idx ocsd.TrcIndex, out []Byte) []Byte {
	if d.checkForSync(b) {
		d.onFrameSync(idx)
		return out
	}
	if d.checkForHalfSync(b, idx) {
		return out
	}

	d.exFrmData[d.exFrmNBytes] = b
	d.exFrmIdx[d.exFrmNBytes] = idx
	d.exFrmNBytes++

	if d.exFrmNBytes == ocsd.DfrmtrFrameSize {
		out = d.unpackFrame(out)
	}
	return out
}

// Flush drops a partially received frame. Frames are never emitted incomplete.
func (d *FrameDeformatter) Flush() {
	if n := d.Pending(); n > 0 {
		d.log.Debug().Int("bytes", n).Msg("partial frame discarded at end of trace")
	}
	d.exFrmNBytes = 0
	d.firstValid = 0
}

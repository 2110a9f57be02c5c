package pipeline

import (
	"fmt"
	"strings"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/demux"
	"github.com/RallySmith/logic2-ext-armdebug/internal/itm"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Style selects what a decoder emits.
type Style int

const (
	StyleAll             Style = iota // every packet, anomalies included
	StylePort                         // SWIT packets on one port
	StyleConsole                      // SWIT bytes on one port grouped into text spans
	StyleInstrumentation              // SWIT packets on one port grouped into instrumentation records
)

var styleNames = map[Style]string{
	StyleAll:             "all",
	StylePort:            "port",
	StyleConsole:         "console",
	StyleInstrumentation: "instrumentation",
}

func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// ParseStyle accepts the style names used on the command line and in view files.
func ParseStyle(name string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all", "raw":
		return StyleAll, nil
	case "port":
		return StylePort, nil
	case "console":
		return StyleConsole, nil
	case "instrumentation", "instr":
		return StyleInstrumentation, nil
	}
	return StyleAll, common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrInvalidParamVal,
		fmt.Sprintf("unknown decode style %q", name))
}

// Config describes one decoder over a capture. Port is the absolute stimulus
// port (page * 32 + port); a value outside 0..255 matches nothing.
type Config struct {
	Name  string
	Style Style
	Port  int

	TPIU     bool  // capture is TPIU formatted
	StreamID uint8 // TPIU stream carrying ITM, 0 bypasses the deformatter
	Offset   uint8 // bytes of the first frame missing from the capture

	WaitForSync bool
	TSPrescale  uint32
}

// Deframed reports whether bytes go through the TPIU deformatter.
func (c Config) Deframed() bool {
	return c.TPIU && c.StreamID != 0
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if _, ok := styleNames[c.Style]; !ok {
		return common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrInvalidParamVal,
			fmt.Sprintf("invalid decode style %d", int(c.Style)))
	}
	if c.StreamID > ocsd.MaxCSSrcID {
		return common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrInvalidID,
			fmt.Sprintf("stream ID 0x%02X out of range 0x00..0x7F", c.StreamID))
	}
	if c.Deframed() {
		if err := c.demuxConfig().Validate(); err != nil {
			return err
		}
	}
	return c.itmConfig().Validate()
}

func (c Config) demuxConfig() demux.Config {
	return demux.Config{StreamID: c.StreamID, Offset: c.Offset}
}

func (c Config) itmConfig() itm.Config {
	return itm.Config{WaitForSync: c.WaitForSync, TSPrescale: c.TSPrescale, TraceID: c.StreamID}
}

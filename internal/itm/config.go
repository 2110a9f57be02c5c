package itm

import (
	"fmt"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Config represents the ITM parser configuration.
type Config struct {
	// WaitForSync drops bytes until the first synchronisation packet.
	// By default parsing starts with the first byte treated as a header.
	WaitForSync bool

	// TSPrescale is the local timestamp prescaler (1, 4, 16 or 64). Zero means 1.
	TSPrescale uint32

	// TraceID is the TPIU stream the packets arrive on, used in log context only.
	TraceID uint8
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	switch c.TSPrescale {
	case 0, 1, 4, 16, 64:
	default:
		return common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrInvalidParamVal,
			fmt.Sprintf("timestamp prescale %d not one of 1, 4, 16, 64", c.TSPrescale))
	}
	if c.TraceID > ocsd.MaxCSSrcID {
		return common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrInvalidID,
			fmt.Sprintf("trace ID 0x%02X out of range", c.TraceID))
	}
	return nil
}

// TSPrescaleValue gets the prescaler for the local ts clock.
func (c Config) TSPrescaleValue() uint64 {
	if c.TSPrescale == 0 {
		return 1
	}
	return uint64(c.TSPrescale)
}

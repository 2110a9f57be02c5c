package interfaces

import (
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// TrcDataIn is the generic interface for supplying raw trace data to a component
// in the decode datapath.
type TrcDataIn interface {
	// TraceDataIn processes trace data.
	// The index is the position of the first byte in dataBlock; the return values are
	// the number of bytes processed and the response code.
	TraceDataIn(op ocsd.DatapathOp, index ocsd.TrcIndex, dataBlock []byte) (uint32, ocsd.DatapathResp)
}

// RecordIn receives decoded output records from the end of a datapath.
type RecordIn[R any] interface {
	RecordIn(indexSOP ocsd.TrcIndex, rec *R) ocsd.DatapathResp
}

// RecordInFunc adapts a plain function to RecordIn.
type RecordInFunc[R any] func(indexSOP ocsd.TrcIndex, rec *R) ocsd.DatapathResp

func (f RecordInFunc[R]) RecordIn(indexSOP ocsd.TrcIndex, rec *R) ocsd.DatapathResp {
	return f(indexSOP, rec)
}

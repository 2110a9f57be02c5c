package common

import (
	"fmt"
	"strings"

	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Error represents the library error object.
// Idx and ChanID locate the error in the trace when known.
type Error struct {
	Code    ocsd.Err
	Sev     ocsd.ErrSeverity
	Idx     ocsd.TrcIndex
	ChanID  uint8
	Message string
}

func NewError(sev ocsd.ErrSeverity, code ocsd.Err) *Error {
	return &Error{
		Code:   code,
		Sev:    sev,
		Idx:    ocsd.BadTrcIndex,
		ChanID: ocsd.BadCSSrcID,
	}
}

func NewErrorMsg(sev ocsd.ErrSeverity, code ocsd.Err, msg string) *Error {
	return &Error{
		Code:    code,
		Sev:     sev,
		Idx:     ocsd.BadTrcIndex,
		ChanID:  ocsd.BadCSSrcID,
		Message: msg,
	}
}

func NewErrorWithIdxMsg(sev ocsd.ErrSeverity, code ocsd.Err, idx ocsd.TrcIndex, msg string) *Error {
	return &Error{
		Code:    code,
		Sev:     sev,
		Idx:     idx,
		ChanID:  ocsd.BadCSSrcID,
		Message: msg,
	}
}

func NewErrorWithIdxChanMsg(sev ocsd.ErrSeverity, code ocsd.Err, idx ocsd.TrcIndex, chanID uint8, msg string) *Error {
	return &Error{
		Code:    code,
		Sev:     sev,
		Idx:     idx,
		ChanID:  chanID,
		Message: msg,
	}
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	switch e.Sev {
	case ocsd.ErrSevNone:
		return "LIBRARY INTERNAL ERROR: Invalid Error Object"
	case ocsd.ErrSevError:
		sb.WriteString("ERROR:")
	case ocsd.ErrSevWarn:
		sb.WriteString("WARN :")
	case ocsd.ErrSevInfo:
		sb.WriteString("INFO :")
	default:
		return "LIBRARY INTERNAL ERROR: Invalid Error Object"
	}

	sb.WriteString(fmt.Sprintf("0x%04x ", e.Code))

	if desc, ok := errorCodeDesc[e.Code]; ok {
		sb.WriteString(fmt.Sprintf("(%s) [%s]; ", desc.name, desc.msg))
	} else {
		sb.WriteString("(unknown); ")
	}

	if e.Idx != ocsd.BadTrcIndex {
		sb.WriteString(fmt.Sprintf("TrcIdx=%d; ", e.Idx))
	}

	if e.ChanID != ocsd.BadCSSrcID {
		sb.WriteString(fmt.Sprintf("Stream=%02x; ", e.ChanID))
	}

	sb.WriteString(e.Message)
	return sb.String()
}

// Is matches on error code so callers can use errors.Is with a template error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// DataRespStr returns a string representation for an ocsd.DatapathResp value.
func DataRespStr(resp ocsd.DatapathResp) string {
	switch resp {
	case ocsd.RespCont:
		return "RESP_CONT: Continue processing."
	case ocsd.RespWarnCont:
		return "RESP_WARN_CONT: Continue processing -> a component logged a warning."
	case ocsd.RespErrCont:
		return "RESP_ERR_CONT: Continue processing -> a component logged an error."
	case ocsd.RespWait:
		return "RESP_WAIT: Pause processing"
	case ocsd.RespWarnWait:
		return "RESP_WARN_WAIT: Pause processing -> a component logged a warning."
	case ocsd.RespErrWait:
		return "RESP_ERR_WAIT: Pause processing -> a component logged an error."
	case ocsd.RespFatalNotInit:
		return "RESP_FATAL_NOT_INIT: Processing Fatal Error :  component unintialised."
	case ocsd.RespFatalInvalidOp:
		return "RESP_FATAL_INVALID_OP: Processing Fatal Error :  invalid data path operation."
	case ocsd.RespFatalInvalidParam:
		return "RESP_FATAL_INVALID_PARAM: Processing Fatal Error :  invalid parameter in datapath call."
	case ocsd.RespFatalInvalidData:
		return "RESP_FATAL_INVALID_DATA: Processing Fatal Error :  invalid trace data."
	case ocsd.RespFatalSysErr:
		return "RESP_FATAL_SYS_ERR: Processing Fatal Error :  internal system error."
	default:
		return "Unknown RESP type."
	}
}

type errDesc struct {
	name string
	msg  string
}

var errorCodeDesc = map[ocsd.Err]errDesc{
	ocsd.OK:                    {"SWO_OK", "No Error."},
	ocsd.ErrFail:               {"SWO_ERR_FAIL", "General failure."},
	ocsd.ErrNotInit:            {"SWO_ERR_NOT_INIT", "Component not initialised."},
	ocsd.ErrInvalidID:          {"SWO_ERR_INVALID_ID", "Invalid TPIU stream ID."},
	ocsd.ErrInvalidParamVal:    {"SWO_ERR_INVALID_PARAM_VAL", "Invalid value parameter passed to component."},
	ocsd.ErrInvalidParamType:   {"SWO_ERR_INVALID_PARAM_TYPE", "Type mismatch on abstract interface."},
	ocsd.ErrFileError:          {"SWO_ERR_FILE_ERROR", "File access error"},
	ocsd.ErrDfrmtrBadFhsync:    {"SWO_ERR_DFMTR_BAD_FHSYNC", "Bad frame sync in TPIU deformatter"},
	ocsd.ErrBadPacketSeq:       {"SWO_ERR_BAD_PACKET_SEQ", "Bad packet sequence"},
	ocsd.ErrInvalidPcktHdr:     {"SWO_ERR_INVALID_PCKT_HDR", "Invalid packet header"},
	ocsd.ErrIncompletePkt:      {"SWO_ERR_INCOMPLETE_PKT", "Incomplete packet discarded at end of trace"},
	ocsd.ErrInstrSeqMismatch:   {"SWO_ERR_INSTR_SEQ_MISMATCH", "Instrumentation tail sequence mismatch"},
	ocsd.ErrInstrPartialRecord: {"SWO_ERR_INSTR_PARTIAL_RECORD", "Instrumentation record incomplete"},
	ocsd.ErrInstrOrphanData:    {"SWO_ERR_INSTR_ORPHAN_DATA", "Instrumentation data outside a record"},
	ocsd.ErrConfigParse:        {"SWO_ERR_CONFIG_PARSE", "Configuration parse error"},
	ocsd.ErrLast:               {"SWO_ERR_LAST", "No error - error code end marker"},
}

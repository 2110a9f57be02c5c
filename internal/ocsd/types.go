package ocsd

// Trace Indexing and Stream IDs

// TrcIndex is the position of a byte in the captured trace.
// The decoders never interpret it numerically beyond ordering.
type TrcIndex uint64

const (
	// BadTrcIndex is an invalid trace index value
	BadTrcIndex TrcIndex = ^TrcIndex(0)

	// BadCSSrcID is an invalid trace source ID value
	BadCSSrcID uint8 = 0xFF

	// IdleCSSrcID is the reserved TPIU stream ID used for padding.
	IdleCSSrcID uint8 = 0x00

	// MaxCSSrcID is the largest stream ID representable in a TPIU ID byte.
	MaxCSSrcID uint8 = 0x7F
)

// General Library Return and Error Codes

// Err represents library error return type
type Err uint32

const (
	OK                    Err = 0
	ErrFail               Err = 1
	ErrNotInit            Err = 2
	ErrInvalidID          Err = 3
	ErrInvalidParamVal    Err = 4
	ErrInvalidParamType   Err = 5
	ErrFileError          Err = 6
	ErrDfrmtrBadFhsync    Err = 7
	ErrBadPacketSeq       Err = 8
	ErrInvalidPcktHdr     Err = 9
	ErrIncompletePkt      Err = 10
	ErrInstrSeqMismatch   Err = 11
	ErrInstrPartialRecord Err = 12
	ErrInstrOrphanData    Err = 13
	ErrConfigParse        Err = 14
	ErrLast               Err = 15
)

// ErrSeverity used to indicate the severity of an error or logger verbosity
type ErrSeverity uint32

const (
	ErrSevNone  ErrSeverity = 0
	ErrSevError ErrSeverity = 1
	ErrSevWarn  ErrSeverity = 2
	ErrSevInfo  ErrSeverity = 3
)

// Trace Datapath

// DatapathOp represents trace datapath operations.
type DatapathOp uint32

const (
	OpData  DatapathOp = 0
	OpEOT   DatapathOp = 1
	OpFlush DatapathOp = 2
	OpReset DatapathOp = 3
)

// DatapathResp represents trace datapath responses.
type DatapathResp uint32

const (
	RespCont              DatapathResp = 0
	RespWarnCont          DatapathResp = 1
	RespErrCont           DatapathResp = 2
	RespWait              DatapathResp = 3
	RespWarnWait          DatapathResp = 4
	RespErrWait           DatapathResp = 5
	RespFatalNotInit      DatapathResp = 6
	RespFatalInvalidOp    DatapathResp = 7
	RespFatalInvalidParam DatapathResp = 8
	RespFatalInvalidData  DatapathResp = 9
	RespFatalSysErr       DatapathResp = 10
)

func DataRespIsFatal(x DatapathResp) bool     { return x >= RespFatalNotInit }
func DataRespIsWarn(x DatapathResp) bool      { return x == RespWarnCont || x == RespWarnWait }
func DataRespIsErr(x DatapathResp) bool       { return x == RespErrCont || x == RespErrWait }
func DataRespIsWarnOrErr(x DatapathResp) bool { return DataRespIsErr(x) || DataRespIsWarn(x) }
func DataRespIsCont(x DatapathResp) bool      { return x < RespWait }
func DataRespIsWait(x DatapathResp) bool      { return x >= RespWait && x < RespFatalNotInit }

// TPIU formatted frame geometry

const (
	DfrmtrFrameSize = 0x10
	DfrmtrAuxByte   = DfrmtrFrameSize - 1

	// DfrmtrFsync is the full frame sync pattern as it appears on the wire.
	DfrmtrFsync uint32 = 0x7FFFFFFF
	// DfrmtrHsync is the half-word sync, FF 7F on the wire, only valid at an even slot.
	DfrmtrHsync uint16 = 0x7FFF
	// DfrmtrReservedID is the ID byte value that never selects a stream (ID 0x7F).
	DfrmtrReservedID byte = 0xFF
)

// Trace Decode Component Name Prefixes

const (
	CmpnamePrefixFramedeformatter = "DFMT"
	CmpnamePrefixPktproc          = "PKTP"
	CmpnamePrefixInstr            = "INST"
)

package itm

import (
	"fmt"

	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// PktType represents the ITM packet type.
type PktType int

const (
	/* markers for unknown packets / state */
	PktNotSync   PktType = iota /**< Bytes dropped while waiting for the first sync */
	PktNoErrType                /**< No error in error packet marker. */

	/* valid packet types */
	PktAsync     /**< sync packet */
	PktOverflow  /**< overflow packet */
	PktSWIT      /**< Software stimulus packet */
	PktDWT       /**< DWT hardware stimulus packet */
	PktTSLocal   /**< Timestamp packet using local timestamp source */
	PktTSGlobal1 /**< Timestamp packet bits [25:0] from the global timestamp source */
	PktTSGlobal2 /**< Timestamp packet bits [63:26] or [47:26] from the global timestamp source */
	PktExtension /**< Extension packet */

	/* packet errors */
	PktBadSequence
	PktReserved
)

// DwtEcntr represents DWT hardware event counters.
type DwtEcntr uint8

const (
	DwtEcntrCPI DwtEcntr = 0x01
	DwtEcntrEXC DwtEcntr = 0x02
	DwtEcntrSLP DwtEcntr = 0x04
	DwtEcntrLSU DwtEcntr = 0x08
	DwtEcntrFLD DwtEcntr = 0x10
	DwtEcntrCYC DwtEcntr = 0x20
)

// Packet represents a complete ITM/DWT packet.
type Packet struct {
	Type PktType /**< ITM packet type */
	/**! Source ID uses:
		 - SWIT: stimulus port within the current page [4:0],
	     - DWT: value of discriminator   [4:0],
		 - LTS: TC flags for Local TS pkt [1:0],
		 - GTS1: clk wrap [1] / freq change [0] bits,
		 - Ext: Src SW(0)/HW(1) [7], N size - N:0 value bit length [4:0],
	*/
	SrcID   uint8
	Page    uint8   /**< stimulus page active for a SWIT packet */
	Value   uint64  /**< packet data payload - interpretation depends on type */
	ValSz   uint8   /**< size of value in bytes */
	ErrType PktType /**< Initial type of packet if type indicates bad sequence. */

	// Raw holds the header and payload bytes. Sync runs are capped at maxSyncRaw.
	Raw        []byte
	Start, End ocsd.TrcIndex

	Timestamp uint64 // running timestamp, filled in by a Tracker
	Overflow  bool   // an overflow packet preceded this one
}

// IsBadPacket returns true if the packet type indicates a bad sequence or reserved protocol.
func (p *Packet) IsBadPacket() bool {
	return p.Type >= PktBadSequence
}

// Port returns the absolute stimulus port (page * 32 + port) of a SWIT packet, or -1.
func (p *Packet) Port() int {
	if p.Type != PktSWIT {
		return -1
	}
	return int(p.Page)*32 + int(p.SrcID&0x1F)
}

// Payload returns the bytes following the header.
func (p *Packet) Payload() []byte {
	if len(p.Raw) < 2 || p.Type == PktAsync || p.Type == PktNotSync {
		return nil
	}
	return p.Raw[1:]
}

// TypeName returns the short name of the packet type.
func (p *Packet) TypeName() string {
	name, _ := p.typeNameAndDesc()
	return name
}

// String provides a string representation of the packet.
func (p *Packet) String() string {
	name, desc := p.typeNameAndDesc()
	str := fmt.Sprintf("%s:%s", name, desc)

	switch p.Type {
	case PktSWIT:
		str += fmt.Sprintf("; %v; Port %d; Data 0x%08X", p.valSizeStr(), p.Port(), p.Value)
	case PktDWT:
		str += fmt.Sprintf("; %s", p.dwtPacketStr())
	case PktTSLocal:
		str += fmt.Sprintf("; %s", p.tsLocalPacketStr())
	case PktTSGlobal1:
		str += fmt.Sprintf("; TS 25:0  0x%07X", p.Value)
		if p.SrcID&0x2 != 0 {
			str += " wrap"
		}
		if p.SrcID&0x1 != 0 {
			str += " clkch"
		}
	case PktTSGlobal2:
		str += fmt.Sprintf("; TS 63:26 0x%010X", p.Value)
	case PktExtension:
		src := "SW"
		if (p.SrcID & 0x80) != 0 {
			src = "HW"
		}
		str += fmt.Sprintf("; Src %s; N %d; Val 0x%08X", src, p.SrcID&0x1F, p.Value)
	case PktAsync:
		str += fmt.Sprintf("; %d bytes", len(p.Raw))
	case PktBadSequence:
		errName, _ := (&Packet{Type: p.ErrType}).typeNameAndDesc()
		str += fmt.Sprintf("[%s]; % X", errName, p.Raw)
	case PktReserved, PktNotSync:
		str += fmt.Sprintf("; % X", p.Raw)
	}
	if p.Overflow {
		str += "; after overflow"
	}
	return str
}

func (p *Packet) typeNameAndDesc() (string, string) {
	switch p.Type {
	case PktNotSync:
		return "NOTSYNC", "ITM not synchronised"
	case PktAsync:
		return "ASYNC", "Alignment synchronisation packet"
	case PktOverflow:
		return "OVERFLOW", "Overflow packet"
	case PktSWIT:
		return "SWIT", "Software stimulus packet"
	case PktDWT:
		return "DWT", "Hardware stimulus packet"
	case PktTSLocal:
		return "TS_L", "Local timestamp packet"
	case PktTSGlobal1:
		return "TS_G1", "Global timestamp packet 1"
	case PktTSGlobal2:
		return "TS_G2", "Global timestamp packet 2"
	case PktExtension:
		return "EXTENSION", "Extension packet"
	case PktBadSequence:
		return "BAD_SEQUENCE", "Invalid sequence in packet"
	case PktReserved:
		return "RESERVED", "Reserved packet header"
	default:
		return "UNKNOWN", "Unknown Packet Type"
	}
}

func (p *Packet) valSizeStr() string {
	switch p.ValSz {
	case 1:
		return "8 bit"
	case 2:
		return "16 bit"
	case 4:
		return "32 bit"
	default:
		return "Unsized"
	}
}

func (p *Packet) dwtPacketStr() string {
	str := p.valSizeStr()
	desc := ""
	val := uint32(p.Value)

	switch {
	case p.SrcID == 0: // Event packet
		desc = "Event"
		for _, ev := range []struct {
			bit  DwtEcntr
			name string
		}{
			{DwtEcntrCPI, "CPI"}, {DwtEcntrEXC, "EXC"}, {DwtEcntrSLP, "SLP"},
			{DwtEcntrLSU, "LSU"}, {DwtEcntrFLD, "FLD"}, {DwtEcntrCYC, "CYC"},
		} {
			if val&uint32(ev.bit) != 0 {
				str += " " + ev.name + ";"
			}
		}
	case p.SrcID == 1: // Exception Trace
		desc = "Exception"
		str += fmt.Sprintf("; Exception Num %03d", val&0x1FF)
		switch (val >> 12) & 0x3 {
		case 1:
			str += " Entered"
		case 2:
			str += " Exited"
		case 3:
			str += " Returned"
		}
	case p.SrcID == 2: // PC sample
		desc = "PC Sample"
		if p.ValSz == 1 && val == 0 {
			str += "; Sleep"
		} else {
			str += fmt.Sprintf("; PC = 0x%08X", val)
		}
	case p.SrcID >= 8 && p.SrcID <= 15 && p.SrcID&0x1 == 0: // Data trace PC value
		desc = "Data Trace PC Value"
		str += fmt.Sprintf("; Comparator %d; PC = 0x%08X", (p.SrcID>>1)&0x3, val)
	case p.SrcID >= 8 && p.SrcID <= 15: // Data trace address
		desc = "Data Trace Address"
		str += fmt.Sprintf("; Comparator %d; Addr = 0x%04X", (p.SrcID>>1)&0x3, val)
	case p.SrcID >= 16 && p.SrcID <= 23: // Data trace data
		desc = "Data Trace Data"
		str += fmt.Sprintf("; Comparator %d; Data = 0x%08X", (p.SrcID>>1)&0x3, val)
		if p.SrcID&0x1 != 0 {
			str += " (Write)"
		} else {
			str += " (Read)"
		}
	default:
		desc = "Unknown"
		str += fmt.Sprintf("; ID = 0x%02X; Data = 0x%08X", p.SrcID, val)
	}

	return fmt.Sprintf("%s : %s", desc, str)
}

func (p *Packet) tsLocalPacketStr() string {
	tcDescs := []string{
		"TS Sync",
		"TS Delay",
		"TS Async",
		"TS delayed - async",
	}
	tcIdx := p.SrcID & 0x3
	return fmt.Sprintf("TC %s; TS = 0x%07X", tcDescs[tcIdx], p.Value)
}

package printers

import (
	"fmt"
	"io"
	"strings"

	"github.com/RallySmith/logic2-ext-armdebug/internal/interfaces"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
	"github.com/RallySmith/logic2-ext-armdebug/internal/pipeline"
)

// TextPrinter writes one line per decoder record.
type TextPrinter struct {
	ItemPrinter
	needWaitAck  bool
	collectStats bool
	kindCounts   map[pipeline.Kind]int
	anomalies    int
}

var _ interfaces.RecordIn[pipeline.Record] = (*TextPrinter)(nil)

// NewTextPrinter creates a text printer writing to writer.
func NewTextPrinter(writer io.Writer) *TextPrinter {
	return &TextPrinter{
		ItemPrinter: *NewItemPrinter(writer),
		kindCounts:  make(map[pipeline.Kind]int),
	}
}

// RecordIn prints "Idx:<N>; <view>; <record>".
func (p *TextPrinter) RecordIn(indexSOP ocsd.TrcIndex, rec *pipeline.Record) ocsd.DatapathResp {
	resp := ocsd.RespCont

	if p.collectStats {
		p.kindCounts[rec.Kind]++
		if rec.Anomaly() {
			p.anomalies++
		}
	}

	if p.IsMuted() {
		return resp
	}

	var sb strings.Builder
	if !p.IDPrintMuted() {
		sb.WriteString(fmt.Sprintf("Idx:%d; ", indexSOP))
		if rec.View != "" {
			sb.WriteString(rec.View)
			sb.WriteString("; ")
		}
	}
	sb.WriteString(rec.String())
	sb.WriteString("\n")

	p.ItemPrintLine(sb.String())

	if p.needWaitAck {
		p.ItemPrintLine("WARNING: Text Printer; New record without previous _WAIT acknowledged\n")
		p.needWaitAck = false
	}

	if p.TestWaits() > 0 {
		resp = ocsd.RespWait
		p.DecTestWaits()
		p.needWaitAck = true
	}

	return resp
}

// AckWait acknowledges a wait signal.
func (p *TextPrinter) AckWait() { p.needWaitAck = false }

// NeedAckWait returns whether the printer was waiting for acknowledgement.
func (p *TextPrinter) NeedAckWait() bool { return p.needWaitAck }

// SetCollectStats turns on statistics collections.
func (p *TextPrinter) SetCollectStats() { p.collectStats = true }

// PrintStats outputs the record counts per kind.
func (p *TextPrinter) PrintStats() {
	var sb strings.Builder

	sb.WriteString("Records processed:-\n")
	for k := pipeline.KindPacket; k <= pipeline.KindInstr; k++ {
		sb.WriteString(fmt.Sprintf("%s : %d\n", k, p.kindCounts[k]))
	}
	sb.WriteString(fmt.Sprintf("anomalies : %d\n", p.anomalies))
	sb.WriteString("\n")

	p.ItemPrintLine(sb.String())
}

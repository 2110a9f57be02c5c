package console

import (
	"fmt"
	"slices"

	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Span is a run of console text, or a single non-text byte.
type Span struct {
	Text    string
	Raw     []byte
	NonText bool

	Start, End ocsd.TrcIndex
}

func (s *Span) String() string {
	if s.NonText {
		return fmt.Sprintf("<%02X>", s.Raw)
	}
	return s.Text
}

// IsPrintable reports whether b is kept as console text: tab or 0x20..0x7E.
func IsPrintable(b byte) bool {
	return b == 0x09 || (b >= 0x20 && b <= 0x7E)
}

// IsTerminator reports whether b closes a span without being part of it.
func IsTerminator(b byte) bool {
	return b == 0x0A || b == 0x00
}

// Grouper coalesces console bytes into text spans closed by newline or NUL.
type Grouper struct {
	open       bool
	buf        []byte
	start, end ocsd.TrcIndex

	spans   uint64
	nonText uint64
}

// NewGrouper creates a grouper with no open span.
func NewGrouper() *Grouper {
	return &Grouper{buf: make([]byte, 0, 80)}
}

// Open reports whether text is waiting for a terminator.
func (g *Grouper) Open() bool {
	return g.open
}

// Counts returns the number of text and non-text spans emitted.
func (g *Grouper) Counts() (spans, nonText uint64) {
	return g.spans, g.nonText
}

// Feed adds one console byte received over [start, end]. Closed spans are appended to out.
func (g *Grouper) Feed(b byte, start, end ocsd.TrcIndex, out []Span) []Span {
	switch {
	case IsPrintable(b):
		if !g.open {
			g.open = true
			g.start = start
			g.buf = g.buf[:0]
		}
		g.buf = append(g.buf, b)
		g.end = end
	case IsTerminator(b):
		if g.open {
			g.end = end
			out = g.close(out)
		}
	default:
		out = g.Flush(out)
		g.nonText++
		out = append(out, Span{
			Raw:     []byte{b},
			NonText: true,
			Start:   start,
			End:     end,
		})
	}
	return out
}

// Flush force-closes an open span, at end of capture or when the port changes.
func (g *Grouper) Flush(out []Span) []Span {
	if !g.open {
		return out
	}
	return g.close(out)
}

// Reset drops an open span and the counters.
func (g *Grouper) Reset() {
	g.open = false
	g.buf = g.buf[:0]
	g.spans = 0
	g.nonText = 0
}

func (g *Grouper) close(out []Span) []Span {
	g.spans++
	out = append(out, Span{
		Text:  string(g.buf),
		Raw:   slices.Clone(g.buf),
		Start: g.start,
		End:   g.end,
	})
	g.open = false
	g.buf = g.buf[:0]
	return out
}

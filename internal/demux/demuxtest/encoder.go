// Package demuxtest builds TPIU formatted frames for tests.
package demuxtest

import (
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Run is a block of payload bytes for one stream.
type Run struct {
	ID   uint8
	Data []byte
}

// Encoder packs stream bytes into formatted frames the way a TPIU would,
// repeating the current ID at the start of each frame.
type Encoder struct {
	out   []byte
	slots [ocsd.DfrmtrAuxByte]byte
	aux   byte
	pos   int
	cur   uint8
}

// NewEncoder creates an encoder with no current stream.
func NewEncoder() *Encoder {
	return &Encoder{cur: ocsd.BadCSSrcID}
}

// IDByte is the frame byte announcing stream id.
func IDByte(id uint8) byte {
	return (id << 1) | 0x01
}

func (e *Encoder) advance() {
	e.pos++
	if e.pos == ocsd.DfrmtrAuxByte {
		e.out = append(e.out, e.slots[:]...)
		e.out = append(e.out, e.aux)
		e.slots = [ocsd.DfrmtrAuxByte]byte{}
		e.aux = 0
		e.pos = 0
	}
}

func (e *Encoder) setID(id uint8) {
	if e.pos%2 == 0 {
		e.slots[e.pos] = IDByte(id)
		e.aux &^= 1 << (e.pos / 2)
	} else {
		// ID goes in the preceding even slot, flagged so its data byte stays with the old ID
		prev := e.pos - 1
		x := e.slots[prev] | ((e.aux >> (prev / 2)) & 1)
		e.slots[prev] = IDByte(id)
		e.aux |= 1 << (prev / 2)
		e.slots[e.pos] = x
	}
	e.cur = id
	e.advance()
}

func (e *Encoder) writeData(v byte) {
	if e.pos%2 == 0 {
		e.slots[e.pos] = v &^ 1
		e.aux &^= 1 << (e.pos / 2)
		e.aux |= (v & 1) << (e.pos / 2)
	} else {
		e.slots[e.pos] = v
	}
	e.advance()
}

// AddByte adds one payload byte for stream id.
func (e *Encoder) AddByte(id uint8, v byte) {
	for e.cur != id || e.pos == 0 {
		e.setID(id)
	}
	e.writeData(v)
}

// Add adds payload bytes for stream id.
func (e *Encoder) Add(id uint8, data []byte) {
	for _, v := range data {
		e.AddByte(id, v)
	}
}

// Finish pads the last frame with the idle stream and returns all frames.
func (e *Encoder) Finish() []byte {
	for e.pos != 0 {
		if e.cur != ocsd.IdleCSSrcID {
			e.setID(ocsd.IdleCSSrcID)
		} else {
			e.writeData(0)
		}
	}
	return e.out
}

// EncodeRuns formats the runs in order.
func EncodeRuns(runs []Run) []byte {
	e := NewEncoder()
	for _, r := range runs {
		e.Add(r.ID, r.Data)
	}
	return e.Finish()
}

// StreamBytes returns the bytes of stream id in order.
func StreamBytes(runs []Run, id uint8) []byte {
	var out []byte
	for _, r := range runs {
		if r.ID == id {
			out = append(out, r.Data...)
		}
	}
	return out
}

package itm

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

type ItmStreamBuilder struct {
	data []byte
}

func (b *ItmStreamBuilder) AddBytes(v ...byte) {
	b.data = append(b.data, v...)
}

func (b *ItmStreamBuilder) AddAsync() {
	b.AddBytes(0x00, 0x00, 0x00, 0x00, 0x00, 0x80)
}

func (b *ItmStreamBuilder) AddOverflow() {
	b.AddBytes(0x70)
}

func (b *ItmStreamBuilder) AddSWIT(chanID uint8, val uint32, size uint8) {
	hdr := ((chanID & 0x1F) << 3) | (size & 0x3)
	b.AddBytes(hdr)
	b.AddVal(val, size)
}

func (b *ItmStreamBuilder) AddDWT(discID uint8, val uint32, size uint8) {
	hdr := ((discID & 0x1F) << 3) | 0x04 | (size & 0x3)
	b.AddBytes(hdr)
	b.AddVal(val, size)
}

func (b *ItmStreamBuilder) AddVal(val uint32, size uint8) {
	if size >= 1 {
		b.AddBytes(byte(val & 0xFF))
	}
	if size >= 2 {
		b.AddBytes(byte((val >> 8) & 0xFF))
	}
	if size == 3 { // size 3 maps to 4 bytes in ITM
		b.AddBytes(byte((val>>16)&0xFF), byte((val>>24)&0xFF))
	}
}

func (b *ItmStreamBuilder) AddLTS(tc uint8, val uint32, size uint8) {
	hdr := ((tc & 0x3) << 4) | 0x80 | 0x40 // TS_CONT | TS_TC_BIT
	b.AddBytes(hdr)
	b.addContVal(uint64(val), size)
}

func (b *ItmStreamBuilder) AddLTSSync(val uint8) {
	hdr := (val & 0x7) << 4 // No desc TS_SYNC
	b.AddBytes(hdr)
}

func (b *ItmStreamBuilder) AddGTS1(time uint32, size uint8) {
	b.AddBytes(0x94)
	b.addContVal(uint64(time), size)
}

func (b *ItmStreamBuilder) AddGTS2(time uint64, size uint8) {
	b.AddBytes(0xB4)
	b.addContVal(time, size)
}

// AddStimPage selects the stimulus port page with a one byte SW extension packet.
func (b *ItmStreamBuilder) AddStimPage(page uint8) {
	b.AddExtension(false, uint32(page&0x7), 0)
}

func (b *ItmStreamBuilder) AddExtension(srcHW bool, val uint32, numBytes uint8) {
	hdr := uint8(0x08) | uint8(val&0x7)<<4
	if srcHW {
		hdr |= 0x4
	}
	if numBytes == 0 {
		b.AddBytes(hdr)
		return
	}
	b.AddBytes(hdr | 0x80)
	b.addContVal(uint64(val>>3), numBytes)
}

func (b *ItmStreamBuilder) addContVal(val uint64, numBytes uint8) {
	for i := uint8(0); i < numBytes-1; i++ {
		b.AddBytes(byte((val & 0x7F) | 0x80))
		val >>= 7
	}
	b.AddBytes(byte(val & 0x7F))
}

func newProc(t *testing.T, cfg Config) *PktProc {
	t.Helper()
	p, err := NewPktProc(cfg, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func feedProc(p *PktProc, data []byte, start ocsd.TrcIndex) []Packet {
	var pkts []Packet
	for i, b := range data {
		if pkt, ok := p.Feed(b, start+ocsd.TrcIndex(i)); ok {
			pkts = append(pkts, pkt)
		}
	}
	return pkts
}

func parseAll(t *testing.T, cfg Config, data []byte) []Packet {
	t.Helper()
	return feedProc(newProc(t, cfg), data, 0)
}

func pktTypes(pkts []Packet) []PktType {
	out := make([]PktType, len(pkts))
	for i := range pkts {
		out[i] = pkts[i].Type
	}
	return out
}

func TestHeaderPayloadLength(t *testing.T) {
	counts := map[PktType]int{}

	for h := 0; h < 256; h++ {
		hdr := byte(h)
		info := ClassifyHeader(hdr)
		counts[info.Type]++

		t.Run(fmt.Sprintf("0x%02X", hdr), func(t *testing.T) {
			if hdr == 0x00 {
				assert.Equal(t, PktAsync, info.Type)
				return
			}

			if !info.Cont {
				p := newProc(t, Config{})
				stream := append([]byte{hdr}, bytes.Repeat([]byte{0xFF}, info.Payload)...)
				pkts := feedProc(p, stream, 0)
				require.Len(t, pkts, 1)
				assert.Equal(t, info.Type, pkts[0].Type)
				assert.Equal(t, stream, pkts[0].Raw)
				assert.Equal(t, ocsd.TrcIndex(info.Payload), pkts[0].End)
				assert.False(t, p.InPacket())
				return
			}

			for n := 1; n <= info.MaxPayload; n++ {
				p := newProc(t, Config{})
				stream := []byte{hdr}
				for i := 1; i < n; i++ {
					stream = append(stream, 0x81)
				}
				stream = append(stream, 0x01)
				pkts := feedProc(p, stream, 0)
				require.Len(t, pkts, 1, "payload %d", n)
				assert.Equal(t, info.Type, pkts[0].Type)
				assert.Len(t, pkts[0].Raw, 1+n)
				assert.False(t, p.InPacket())
			}

			// a continuation bit on the last allowed byte is a bad sequence
			stream := append([]byte{hdr}, bytes.Repeat([]byte{0x80}, info.MaxPayload)...)
			pkts := parseAll(t, Config{}, stream)
			require.Len(t, pkts, 1)
			assert.Equal(t, PktBadSequence, pkts[0].Type)
			assert.Equal(t, info.Type, pkts[0].ErrType)
			assert.Equal(t, stream, pkts[0].Raw)
		})
	}

	want := map[PktType]int{
		PktAsync:     1,
		PktOverflow:  1,
		PktSWIT:      96,
		PktDWT:       96,
		PktTSLocal:   14,
		PktExtension: 32,
		PktTSGlobal1: 1,
		PktTSGlobal2: 1,
		PktReserved:  14,
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("header classes mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncPacket(t *testing.T) {
	t.Run("Minimal", func(t *testing.T) {
		sb := &ItmStreamBuilder{}
		sb.AddAsync()
		pkts := parseAll(t, Config{}, sb.data)
		require.Len(t, pkts, 1)
		assert.Equal(t, PktAsync, pkts[0].Type)
		assert.Equal(t, uint64(5), pkts[0].Value)
		assert.Equal(t, sb.data, pkts[0].Raw)
		assert.Equal(t, ocsd.TrcIndex(0), pkts[0].Start)
		assert.Equal(t, ocsd.TrcIndex(5), pkts[0].End)
		assert.Nil(t, pkts[0].Payload())
	})

	t.Run("LongRunCapsRaw", func(t *testing.T) {
		data := append(make([]byte, 40), 0x80)
		p := newProc(t, Config{})
		pkts := feedProc(p, data, 0)
		require.Len(t, pkts, 1)
		assert.Equal(t, PktAsync, pkts[0].Type)
		assert.Equal(t, uint64(40), pkts[0].Value)
		assert.Len(t, pkts[0].Raw, maxSyncRaw)
		assert.Equal(t, byte(0x80), pkts[0].Raw[maxSyncRaw-1])
		assert.Equal(t, ocsd.TrcIndex(40), pkts[0].End)
		assert.Equal(t, uint64(1), p.Stats().Syncs)
	})

	t.Run("ShortRun", func(t *testing.T) {
		pkts := parseAll(t, Config{}, []byte{0x00, 0x00, 0x00, 0x80, 0x01, 0x41})
		require.Len(t, pkts, 2)
		assert.Equal(t, PktBadSequence, pkts[0].Type)
		assert.Equal(t, PktAsync, pkts[0].ErrType)
		assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x80}, pkts[0].Raw)
		assert.True(t, pkts[0].IsBadPacket())
		assert.Equal(t, PktSWIT, pkts[1].Type)
	})

	t.Run("BrokenRun", func(t *testing.T) {
		pkts := parseAll(t, Config{}, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x11})
		require.Len(t, pkts, 1)
		assert.Equal(t, PktBadSequence, pkts[0].Type)
		assert.Equal(t, byte(0x11), pkts[0].Raw[len(pkts[0].Raw)-1])
	})
}

func TestSourcePackets(t *testing.T) {
	sb := &ItmStreamBuilder{}
	sb.AddAsync()
	sb.AddSWIT(3, 0xBB, 1)
	sb.AddSWIT(1, 0x2345, 2)
	sb.AddSWIT(31, 0x67890123, 3)
	sb.AddDWT(0, 0x15, 1)
	sb.AddDWT(1, 0x1012, 2)
	sb.AddDWT(2, 0x1000, 3)

	pkts := parseAll(t, Config{}, sb.data)
	require.Len(t, pkts, 7)

	type decoded struct {
		Type  PktType
		SrcID uint8
		Value uint64
		ValSz uint8
	}
	var got []decoded
	for _, p := range pkts[1:] {
		got = append(got, decoded{p.Type, p.SrcID, p.Value, p.ValSz})
	}
	want := []decoded{
		{PktSWIT, 3, 0xBB, 1},
		{PktSWIT, 1, 0x2345, 2},
		{PktSWIT, 31, 0x67890123, 4},
		{PktDWT, 0, 0x15, 1},
		{PktDWT, 1, 0x1012, 2},
		{PktDWT, 2, 0x1000, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("source packets mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []byte{0x23, 0x01, 0x89, 0x67}, pkts[3].Payload())
	assert.Equal(t, ocsd.TrcIndex(6), pkts[1].Start)
	assert.Equal(t, ocsd.TrcIndex(7), pkts[1].End)
}

func TestTimestampAndExtension(t *testing.T) {
	sb := &ItmStreamBuilder{}
	sb.AddAsync()
	sb.AddLTSSync(2)
	sb.AddLTS(1, 0x3220, 2)
	sb.AddGTS1(0x3D02, 2)
	sb.AddBytes(0x94, 0x81, 0x80, 0x80, 0x65) // wrap and clock change in the 4th byte
	sb.AddGTS2(1<<35, 6)
	sb.AddExtension(false, 0, 0)
	sb.AddExtension(true, 8, 2)
	sb.AddOverflow()

	pkts := parseAll(t, Config{}, sb.data)
	require.Equal(t, []PktType{
		PktAsync, PktTSLocal, PktTSLocal, PktTSGlobal1, PktTSGlobal1,
		PktTSGlobal2, PktExtension, PktExtension, PktOverflow,
	}, pktTypes(pkts))

	assert.Equal(t, uint64(2), pkts[1].Value)
	assert.Equal(t, uint8(0), pkts[1].SrcID)

	assert.Equal(t, uint64(0x3220), pkts[2].Value)
	assert.Equal(t, uint8(1), pkts[2].SrcID)
	assert.Equal(t, uint8(2), pkts[2].ValSz)

	assert.Equal(t, uint64(0x3D02), pkts[3].Value)
	assert.Equal(t, uint64(1|5<<21), pkts[4].Value)
	assert.Equal(t, uint8(3), pkts[4].SrcID)

	assert.Equal(t, uint64(1)<<35, pkts[5].Value)
	assert.Equal(t, uint8(6), pkts[5].ValSz)

	assert.Equal(t, uint8(2), pkts[6].SrcID)
	assert.Equal(t, uint64(0), pkts[6].Value)
	assert.Equal(t, uint8(0x80|16), pkts[7].SrcID)
	assert.Equal(t, uint64(8), pkts[7].Value)
}

func TestReservedHeaderContinues(t *testing.T) {
	sb := &ItmStreamBuilder{}
	sb.AddAsync()
	sb.AddBytes(0x14)
	sb.AddSWIT(0, 'A', 1)

	p := newProc(t, Config{})
	pkts := feedProc(p, sb.data, 0)
	require.Equal(t, []PktType{PktAsync, PktReserved, PktSWIT}, pktTypes(pkts))
	assert.Equal(t, []byte{0x14}, pkts[1].Raw)
	assert.Equal(t, uint64(1), p.Stats().BadPackets)
	assert.Equal(t, uint64(3), p.Stats().Packets)
}

func TestFlushDiscardsPartialPacket(t *testing.T) {
	p := newProc(t, Config{})
	pkts := feedProc(p, []byte{0x03, 0x01, 0x02}, 0)
	assert.Empty(t, pkts)
	assert.True(t, p.InPacket())

	p.Flush()
	assert.False(t, p.InPacket())
	assert.Equal(t, uint64(1), p.Stats().Truncated)

	pkts = feedProc(p, []byte{0x01, 0x41}, 3)
	require.Len(t, pkts, 1)
	assert.Equal(t, PktSWIT, pkts[0].Type)
	assert.Equal(t, ocsd.TrcIndex(3), pkts[0].Start)

	p.Reset()
	assert.Equal(t, Stats{}, p.Stats())
}

func TestWaitForSync(t *testing.T) {
	sb := &ItmStreamBuilder{}
	sb.AddBytes(bytes.Repeat([]byte{0x55}, 10)...)
	sb.AddBytes(0x00, 0x00, 0x80) // too short to sync
	sb.AddSWIT(0, 'x', 1)
	sb.AddAsync()
	sb.AddSWIT(0, 'y', 1)

	p := newProc(t, Config{WaitForSync: true})
	pkts := feedProc(p, sb.data, 0)
	require.Equal(t, []PktType{PktNotSync, PktNotSync, PktNotSync, PktNotSync, PktAsync, PktSWIT}, pktTypes(pkts))

	assert.Len(t, pkts[0].Raw, maxNotSyncRaw)
	assert.Equal(t, ocsd.TrcIndex(0), pkts[0].Start)
	assert.Equal(t, ocsd.TrcIndex(7), pkts[0].End)
	assert.Equal(t, []byte{0x55, 0x55}, pkts[1].Raw)
	assert.Equal(t, []byte{0x00, 0x00, 0x80}, pkts[2].Raw)
	assert.Equal(t, []byte{0x01, 'x'}, pkts[3].Raw)
	assert.Equal(t, uint64('y'), pkts[5].Value)
	assert.Equal(t, uint64(15), p.Stats().NotSyncBytes)

	// bad sequences after sync no longer drop back to waiting
	pkts = feedProc(p, []byte{0x00, 0x80, 0x01, 'z'}, 100)
	require.Equal(t, []PktType{PktBadSequence, PktSWIT}, pktTypes(pkts))
}

func TestFlushCountsUnsyncedBytes(t *testing.T) {
	p := newProc(t, Config{WaitForSync: true})
	pkts := feedProc(p, bytes.Repeat([]byte{0x55}, maxNotSyncRaw+3), 0)
	require.Equal(t, []PktType{PktNotSync}, pktTypes(pkts))
	assert.Equal(t, uint64(maxNotSyncRaw), p.Stats().NotSyncBytes)

	p.Flush()
	assert.Equal(t, uint64(maxNotSyncRaw+3), p.Stats().NotSyncBytes)
	assert.Zero(t, p.Stats().Truncated)

	// nothing left to count on a second flush
	p.Flush()
	assert.Equal(t, uint64(maxNotSyncRaw+3), p.Stats().NotSyncBytes)

	pkts = feedProc(p, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x80}, 20)
	require.Equal(t, []PktType{PktAsync}, pktTypes(pkts))
	assert.Equal(t, ocsd.TrcIndex(20), pkts[0].Start)
}

func TestTrackerPageAndTimestamps(t *testing.T) {
	sb := &ItmStreamBuilder{}
	sb.AddAsync()
	sb.AddStimPage(3)
	sb.AddSWIT(5, 0x41, 1)
	sb.AddLTSSync(2)
	sb.AddSWIT(5, 0x42, 1)
	sb.AddOverflow()
	sb.AddSWIT(5, 0x43, 1)
	sb.AddSWIT(5, 0x44, 1)
	sb.AddAsync()
	sb.AddSWIT(5, 0x45, 1)

	cfg := Config{TSPrescale: 4}
	tr := NewTracker(cfg)
	var swit []Packet
	for _, pkt := range parseAll(t, cfg, sb.data) {
		tr.Apply(&pkt)
		if pkt.Type == PktSWIT {
			swit = append(swit, pkt)
		}
	}
	require.Len(t, swit, 5)

	ports := []int{swit[0].Port(), swit[1].Port(), swit[2].Port(), swit[3].Port(), swit[4].Port()}
	assert.Equal(t, []int{101, 101, 101, 101, 5}, ports)

	assert.Equal(t, uint64(0), swit[0].Timestamp)
	assert.Equal(t, uint64(8), swit[1].Timestamp)
	assert.Equal(t, uint64(0), swit[2].Timestamp)
	assert.True(t, swit[2].Overflow)
	assert.False(t, swit[3].Overflow)
	assert.Equal(t, uint8(0), tr.Page())
}

func TestTrackerGlobalTimestamp(t *testing.T) {
	sb := &ItmStreamBuilder{}
	sb.AddGTS1(0x3FFFFFF, 4)
	sb.AddGTS2(0x5, 1)
	sb.AddGTS1(0x12, 1)

	tr := NewTracker(Config{})
	pkts := parseAll(t, Config{}, sb.data)
	require.Len(t, pkts, 3)
	for i := range pkts {
		tr.Apply(&pkts[i])
	}
	assert.Equal(t, uint64(0x3FFFFFF)|uint64(5)<<26, pkts[1].Timestamp)
	assert.Equal(t, uint64(0x3FFFF92)|uint64(5)<<26, tr.GlobalTS())

	tr.Reset()
	assert.Zero(t, tr.GlobalTS())
}

func TestConfigValidate(t *testing.T) {
	_, err := NewPktProc(Config{TSPrescale: 3}, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewPktProc(Config{TraceID: 0x80}, zerolog.Nop())
	assert.Error(t, err)

	assert.Equal(t, uint64(1), Config{}.TSPrescaleValue())
	assert.Equal(t, uint64(64), Config{TSPrescale: 64}.TSPrescaleValue())
}

func TestITMPacketStringVariants(t *testing.T) {
	pkt := &Packet{Type: PktNotSync}
	assert.Equal(t, "NOTSYNC:ITM not synchronised; ", pkt.String())

	pkt = &Packet{Type: PktDWT, SrcID: 0, Value: 0x15, ValSz: 1}
	assert.Contains(t, pkt.String(), "CPI; SLP; FLD;")

	pkt = &Packet{Type: PktSWIT, SrcID: 3, Page: 1, Value: 0xAA, ValSz: 1}
	assert.Contains(t, pkt.String(), "Port 35")

	pkt = &Packet{Type: PktBadSequence, ErrType: PktTSGlobal1, Raw: []byte{0x94, 0x80}}
	assert.Contains(t, pkt.String(), "[TS_G1]")

	for _, id := range []uint8{1, 2, 8, 9, 16, 17, 99} {
		pkt = &Packet{Type: PktDWT, SrcID: id, Value: 0x2000, ValSz: 4}
		assert.NotEmpty(t, pkt.String(), "src id %d", id)
	}

	types := []PktType{
		PktNotSync, PktNoErrType, PktAsync, PktOverflow,
		PktSWIT, PktDWT, PktTSLocal, PktTSGlobal1, PktTSGlobal2, PktExtension,
		PktBadSequence, PktReserved, PktType(99),
	}
	for _, pktType := range types {
		pkt = &Packet{Type: pktType, Overflow: true}
		assert.Contains(t, pkt.String(), "after overflow")
		assert.NotEmpty(t, pkt.TypeName())
	}
	assert.Equal(t, -1, (&Packet{Type: PktDWT}).Port())
}

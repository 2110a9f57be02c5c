// Package capture loads SWO capture files into memory.
package capture

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Encoding is the container format of a capture file.
type Encoding int

const (
	EncodingRaw Encoding = iota
	EncodingGzip
	EncodingZstd
)

func (e Encoding) String() string {
	switch e {
	case EncodingGzip:
		return "gzip"
	case EncodingZstd:
		return "zstd"
	default:
		return "raw"
	}
}

var (
	gzipMagic = []byte{0x1F, 0x8B}
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// Detect identifies the encoding from the leading bytes.
func Detect(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return EncodingZstd
	case bytes.HasPrefix(data, gzipMagic):
		return EncodingGzip
	default:
		return EncodingRaw
	}
}

// Capture is an immutable capture held in memory. Data may be shared by
// any number of decoders.
type Capture struct {
	Path     string
	Encoding Encoding
	Data     []byte
}

// Load reads the file at path, decompressing it when it is gzip or zstd.
func Load(path string) (*Capture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	c, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Decode unpacks capture bytes already in memory.
func Decode(raw []byte) (*Capture, error) {
	enc := Detect(raw)
	c := &Capture{Encoding: enc}

	switch enc {
	case EncodingZstd:
		data, err := ZstdDecompress(nil, raw)
		if err != nil {
			return nil, captureError("zstd: %v", err)
		}
		c.Data = data
	case EncodingGzip:
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, captureError("gzip: %v", err)
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, captureError("gzip: %v", err)
		}
		c.Data = data
	default:
		c.Data = raw
	}
	return c, nil
}

// ZstdDecompress decompresses a zstd-compressed byte slice and returns the original data.
func ZstdDecompress(dst, data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, dst)
}

func captureError(format string, args ...any) error {
	return common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrFileError, fmt.Sprintf(format, args...))
}

// Package config loads the TOML description of a capture and the analyzer
// views decoded from it.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
	"github.com/RallySmith/logic2-ext-armdebug/internal/pipeline"
)

// Format selects the record output encoding.
type Format string

const (
	FormatText    Format = "text"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts "text" (default) or "msgpack".
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatText:
		return FormatText, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	}
	return FormatText, parseError("unknown output format %q", name)
}

// File is a loaded configuration.
type File struct {
	Capture    string // path to the capture, resolved against the file directory
	Format     Format
	LogLevel   common.Severity
	DumpFrames bool // print the de-framed streams before decoding
	Views      []pipeline.Config
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Format:   FormatText,
		LogLevel: common.SeverityInfo,
	}
}

type fileConfig struct {
	Capture    string       `toml:"capture"`
	Format     string       `toml:"format"`
	LogLevel   string       `toml:"log_level"`
	DumpFrames bool         `toml:"dump_frames"`
	Views      []viewConfig `toml:"view"`
}

type viewConfig struct {
	Name       string  `toml:"name"`
	Style      string  `toml:"style"`
	Port       *int    `toml:"port"`
	TPIU       bool    `toml:"tpiu"`
	Stream     *int    `toml:"stream"`
	Offset     int     `toml:"offset"`
	WaitSync   bool    `toml:"wait_sync"`
	TSPrescale *uint32 `toml:"ts_prescale"`
}

// Load reads the configuration file at path.
func Load(path string) (File, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return File{}, fmt.Errorf("load view config: %w", parseError("%s: %v", path, err))
	}
	cfg, err := build(raw, meta)
	if err != nil {
		return File{}, fmt.Errorf("load view config %s: %w", path, err)
	}
	if cfg.Capture != "" && !filepath.IsAbs(cfg.Capture) {
		cfg.Capture = filepath.Join(filepath.Dir(path), cfg.Capture)
	}
	return cfg, nil
}

// Parse decodes configuration text. A relative capture path is left as is.
func Parse(data string) (File, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return File{}, fmt.Errorf("parse view config: %w", parseError("%v", err))
	}
	return build(raw, meta)
}

func build(raw fileConfig, meta toml.MetaData) (File, error) {
	cfg := Default()

	if undec := meta.Undecoded(); len(undec) > 0 {
		return File{}, parseError("unknown key %q", undec[0].String())
	}

	if meta.IsDefined("capture") {
		cfg.Capture = strings.TrimSpace(raw.Capture)
	}

	if meta.IsDefined("format") {
		f, err := ParseFormat(raw.Format)
		if err != nil {
			return File{}, err
		}
		cfg.Format = f
	}

	if meta.IsDefined("log_level") {
		lvl, err := common.ParseSeverity(raw.LogLevel)
		if err != nil {
			return File{}, parseError("%v", err)
		}
		cfg.LogLevel = lvl
	}

	cfg.DumpFrames = raw.DumpFrames

	for i, v := range raw.Views {
		vc, err := buildView(i, v)
		if err != nil {
			return File{}, err
		}
		cfg.Views = append(cfg.Views, vc)
	}
	return cfg, nil
}

func buildView(i int, v viewConfig) (pipeline.Config, error) {
	name := strings.TrimSpace(v.Name)
	if name == "" {
		name = fmt.Sprintf("view%d", i)
	}

	style, err := pipeline.ParseStyle(v.Style)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("view %s: %w", name, err)
	}

	vc := pipeline.Config{
		Name:        name,
		Style:       style,
		TPIU:        v.TPIU,
		WaitForSync: v.WaitSync,
	}
	if v.Port != nil {
		vc.Port = *v.Port
	}
	if v.TSPrescale != nil {
		vc.TSPrescale = *v.TSPrescale
	}

	stream := 1
	if v.Stream != nil {
		stream = *v.Stream
	}
	if stream < 0 || stream > int(ocsd.MaxCSSrcID) {
		return pipeline.Config{}, parseError("view %s: stream %d out of range 0..127", name, stream)
	}
	vc.StreamID = uint8(stream)

	if v.Offset < 0 || v.Offset >= ocsd.DfrmtrFrameSize {
		return pipeline.Config{}, parseError("view %s: offset %d out of range 0..15", name, v.Offset)
	}
	vc.Offset = uint8(v.Offset)

	if err := vc.Validate(); err != nil {
		return pipeline.Config{}, fmt.Errorf("view %s: %w", name, err)
	}
	return vc, nil
}

func parseError(format string, args ...any) error {
	return common.NewErrorMsg(ocsd.ErrSevError, ocsd.ErrConfigParse, fmt.Sprintf(format, args...))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
	"github.com/RallySmith/logic2-ext-armdebug/internal/pipeline"
)

const sample = `
capture = "swo.bin.zst"
format = "msgpack"
log_level = "debug"

[[view]]
name = "console"
style = "console"
port = 0
tpiu = true
stream = 2
offset = 3

[[view]]
style = "instrumentation"
port = 24
wait_sync = true
ts_prescale = 4
`

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "views.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := File{
		Capture:  filepath.Join(dir, "swo.bin.zst"),
		Format:   FormatMsgpack,
		LogLevel: common.SeverityDebug,
		Views: []pipeline.Config{
			{Name: "console", Style: pipeline.StyleConsole, Port: 0, TPIU: true, StreamID: 2, Offset: 3},
			{Name: "view1", Style: pipeline.StyleInstrumentation, Port: 24, StreamID: 1, WaitForSync: true, TSPrescale: 4},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse("[[view]]\n")
	require.NoError(t, err)

	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, common.SeverityInfo, cfg.LogLevel)
	assert.Empty(t, cfg.Capture)
	require.Len(t, cfg.Views, 1)
	assert.Equal(t, pipeline.Config{Name: "view0", Style: pipeline.StyleAll, StreamID: 1}, cfg.Views[0])

	cfg, err = Parse(`capture = "/abs/cap.bin"`)
	require.NoError(t, err)
	assert.Equal(t, "/abs/cap.bin", cfg.Capture)
	assert.Empty(t, cfg.Views)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Syntax", "capture = "},
		{"UnknownKey", "colour = 1"},
		{"Format", `format = "csv"`},
		{"LogLevel", `log_level = "loud"`},
		{"Style", "[[view]]\nstyle = \"hex\""},
		{"Stream", "[[view]]\ntpiu = true\nstream = 200"},
		{"Offset", "[[view]]\ntpiu = true\noffset = 16"},
		{"Prescale", "[[view]]\nts_prescale = 3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data)
			require.Error(t, err)
		})
	}

	// range and syntax problems carry the config parse code
	_, err := Parse("[[view]]\nstream = -1")
	assert.ErrorIs(t, err, common.NewError(ocsd.ErrSevError, ocsd.ErrConfigParse))
	_, err = Parse("capture = ")
	assert.ErrorIs(t, err, common.NewError(ocsd.ErrSevError, ocsd.ErrConfigParse))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("MsgPack")
	require.NoError(t, err)
	assert.Equal(t, FormatMsgpack, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("json")
	assert.Error(t, err)
}

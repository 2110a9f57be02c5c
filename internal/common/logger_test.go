package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

func TestSeverityString(t *testing.T) {
	tests := []struct {
		severity Severity
		expected string
		level    zerolog.Level
	}{
		{SeverityDebug, "DEBUG", zerolog.DebugLevel},
		{SeverityInfo, "INFO", zerolog.InfoLevel},
		{SeverityWarning, "WARNING", zerolog.WarnLevel},
		{SeverityError, "ERROR", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.severity.String())
			assert.Equal(t, tt.level, tt.severity.Level())
		})
	}
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity(" Debug ")
	require.NoError(t, err)
	assert.Equal(t, SeverityDebug, sev)

	sev, err = ParseSeverity("")
	require.NoError(t, err)
	assert.Equal(t, SeverityInfo, sev)

	sev, err = ParseSeverity("warn")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, sev)

	_, err = ParseSeverity("loud")
	assert.Error(t, err)
}

func TestNewLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, SeverityWarning, "swo_lister")

	logger.Info().Msg("hidden message")
	logger.Warn().Msg("visible message")

	out := buf.String()
	assert.NotContains(t, out, "hidden message")
	assert.Contains(t, out, "visible message")
	assert.Contains(t, out, "swo_lister")
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogError(logger, NewErrorWithIdxChanMsg(ocsd.ErrSevWarn, ocsd.ErrIncompletePkt, 77, 0x01, "partial SWIT"))
	LogError(logger, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"level":"warn"`)
	assert.Contains(t, lines[0], `"idx":77`)
	assert.Contains(t, lines[0], `"stream":1`)
	assert.Contains(t, lines[0], `"message":"partial SWIT"`)
}

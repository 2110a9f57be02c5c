package common

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
)

// Severity represents log message severity levels
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Level maps the severity onto the zerolog level.
func (s Severity) Level() zerolog.Level {
	switch s {
	case SeverityDebug:
		return zerolog.DebugLevel
	case SeverityInfo:
		return zerolog.InfoLevel
	case SeverityWarning:
		return zerolog.WarnLevel
	case SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseSeverity accepts the names used in configuration files, case insensitive.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return SeverityDebug, nil
	case "", "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger builds the console logger shared by the command line tools.
func NewLogger(w io.Writer, minLevel Severity, app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(minLevel.Level()).With().Timestamp().Str("app", app).Logger()
}

// ComponentLogger tags a logger with the component name used in log lines.
func ComponentLogger(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// LogError writes a library error at the level matching its severity.
func LogError(l zerolog.Logger, err *Error) {
	if err == nil {
		return
	}
	var ev *zerolog.Event
	switch err.Sev {
	case ocsd.ErrSevError:
		ev = l.Error()
	case ocsd.ErrSevWarn:
		ev = l.Warn()
	default:
		ev = l.Info()
	}
	ev = ev.Uint32("code", uint32(err.Code))
	if err.Idx != ocsd.BadTrcIndex {
		ev = ev.Uint64("idx", uint64(err.Idx))
	}
	if err.ChanID != ocsd.BadCSSrcID {
		ev = ev.Uint8("stream", err.ChanID)
	}
	ev.Msg(err.Message)
}

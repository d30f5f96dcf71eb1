package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Clock holds the instant a run started. Log lines show the time elapsed
// since then instead of the wall clock.
type Clock struct {
	start time.Time
}

func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

func (c *Clock) Start() time.Time {
	return c.start
}

func (c *Clock) Elapsed(t time.Time) time.Duration {
	return t.Sub(c.start)
}

// Format renders t as the elapsed milliseconds since start, e.g. "+  42ms".
func (c *Clock) Format(t time.Time) string {
	return fmt.Sprintf("+%4dms", c.Elapsed(t).Milliseconds())
}

// ParseLevel maps the LOG_LEVEL values to slog levels. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger writing to w whose time attribute is the
// elapsed time on clock.
func NewLogger(w io.Writer, level slog.Level, clock *Clock) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(clock.Format(a.Value.Time()))
			}

			return a
		},
	}

	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

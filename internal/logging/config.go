package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel reads a slog level name such as "debug" or "WARN+2". WARNING is
// accepted for WARN. Empty or unknown values give Info.
func ParseLevel(raw string) slog.Level {
	raw = strings.TrimSpace(raw)
	if rest, ok := cutPrefixFold(raw, "WARNING"); ok {
		raw = "WARN" + rest
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// New returns a JSON logger writing to w at the LOG_LEVEL level.
func New(w io.Writer, attrs ...slog.Attr) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(os.Getenv("LOG_LEVEL")),
	})
	if len(attrs) > 0 {
		return slog.New(handler.WithAttrs(attrs))
	}
	return slog.New(handler)
}

// Component returns the attribute used to tag log lines with the program part emitting them.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

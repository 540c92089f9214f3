package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New はslogのロガーを作る。prodはJSON、それ以外はテキスト。
func New(level string, prod bool, component string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, prod, component)
}

func NewWithWriter(w io.Writer, level string, prod bool, component string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if prod {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("component", component)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// テスト用。何も出さない
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

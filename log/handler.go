package log

import (
	"context"
	"io"
	"log/slog"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[1;31m"
	colorYellow = "\033[1;33m"
	colorGreen  = "\033[1;32m"
	colorCyan   = "\033[1;36m"
	colorPurple = "\033[1;35m"
)

func levelColor(l slog.Level) string {
	switch {
	case l >= LevelCrit:
		return colorPurple
	case l >= slog.LevelError:
		return colorRed
	case l >= slog.LevelWarn:
		return colorYellow
	case l >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}

// NewTerminalHandlerWithLevel returns a text handler for humans: short
// timestamps, aligned level names, and optionally colored levels.
func NewTerminalHandlerWithLevel(w io.Writer, lvl slog.Level, useColor bool) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) != 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String(slog.TimeKey, a.Value.Time().Format("01-02|15:04:05.000"))
			case slog.LevelKey:
				level, _ := a.Value.Any().(slog.Level)
				name := LevelAlignedString(level)
				if useColor {
					name = levelColor(level) + name + colorReset
				}
				return slog.String(slog.LevelKey, name)
			}
			return a
		},
	})
}

type discardHandler struct{}

// DiscardHandler returns a no-op handler
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, r slog.Record) error {
	return nil
}

func (h *discardHandler) Enabled(_ context.Context, level slog.Level) bool {
	return false
}

func (h *discardHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &discardHandler{}
}

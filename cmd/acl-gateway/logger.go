// ABOUTME: slog setup for acl-gateway: JSON for machines, colorized text for terminals
// ABOUTME: colorHandler serializes writes so concurrent request logs never interleave

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-acl/internal/config"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newColorHandler(os.Stdout, level))
}

var levelLabels = map[slog.Level]func(string, ...any) string{
	slog.LevelDebug: color.MagentaString,
	slog.LevelInfo:  color.CyanString,
	slog.LevelWarn:  color.YellowString,
	slog.LevelError: color.New(color.FgRed, color.Bold).SprintfFunc(),
}

var levelNames = map[slog.Level]string{
	slog.LevelDebug: "DBG",
	slog.LevelInfo:  "INF",
	slog.LevelWarn:  "WRN",
	slog.LevelError: "ERR",
}

// colorHandler writes one dimmed-key line per record. Handlers derived with
// WithAttrs or WithGroup share mu so lines from concurrent requests stay whole.
type colorHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	prefix string // open groups, joined with "."
	fields string // pre-rendered WithAttrs output
}

func newColorHandler(out io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{mu: &sync.Mutex{}, out: out, level: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	label := r.Level.String()
	if paint, ok := levelLabels[r.Level]; ok {
		label = paint(levelNames[r.Level])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s%s", color.HiBlackString(r.Time.Format(time.TimeOnly)), label, r.Message, h.fields)
	r.Attrs(func(a slog.Attr) bool {
		b.WriteString(h.render(a))
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *colorHandler) render(a slog.Attr) string {
	return color.HiBlackString(" "+h.prefix+a.Key+"=") + a.Value.Resolve().String()
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		next.fields += h.render(a)
	}
	return &next
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix += name + "."
	return &next
}

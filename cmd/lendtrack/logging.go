// ABOUTME: slog setup for the lendtrack CLI
// ABOUTME: JSON or colorized text handler on stderr, level from config

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/lendtrack/internal/config"
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

// setupLogger logs to stderr so command output on stdout stays clean.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = &colorHandler{
			out:   os.Stderr,
			mu:    &sync.Mutex{},
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler writes one short colored line per record. The "component"
// attribute becomes a bracketed prefix instead of a key=value pair.
type colorHandler struct {
	out       io.Writer
	mu        *sync.Mutex
	level     slog.Level
	component string
	attrs     []slog.Attr
	groups    []string
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: color.MagentaString("debug"),
	slog.LevelInfo:  color.CyanString("info"),
	slog.LevelWarn:  color.YellowString("warn"),
	slog.LevelError: color.New(color.FgRed, color.Bold).Sprint("error"),
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	tag, ok := levelTags[r.Level]
	if !ok {
		tag = r.Level.String()
	}

	var fields strings.Builder
	write := func(key string, v slog.Value) {
		fmt.Fprintf(&fields, " %s%s", color.HiBlackString(key+"="), v.String())
	}

	for _, a := range h.attrs {
		write(a.Key, a.Value)
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		write(prefix+a.Key, a.Value)
		return true
	})

	line := tag + " "
	if h.component != "" {
		line += color.HiBlackString("[" + h.component + "] ")
	}
	line += r.Message + fields.String()

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.out, line)
	return err
}

func (h *colorHandler) clone() *colorHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if a.Key == "component" && len(c.groups) == 0 {
			c.component = a.Value.String()
			continue
		}
		if len(c.groups) > 0 {
			a.Key = strings.Join(c.groups, ".") + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

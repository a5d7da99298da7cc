package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"k8s.io/utils/clock"

	"github.com/sudesh1611/scanreport/pkg/types"
)

// FileHandler is an append-only slog.Handler. Every record is rendered into a
// single line and written with one open-append-close cycle, so any number of
// handlers may share the same file without coordination.
type FileHandler struct {
	path   string
	echo   io.Writer
	level  slog.Leveler
	clock  clock.PassiveClock
	attrs  []slog.Attr
	groups []string
}

type FileOption func(*FileHandler)

// WithClock sets the time source of the line timestamps.
func WithClock(c clock.PassiveClock) FileOption {
	return func(h *FileHandler) {
		h.clock = c
	}
}

// WithEcho copies every line to w in addition to the file.
func WithEcho(w io.Writer) FileOption {
	return func(h *FileHandler) {
		h.echo = w
	}
}

func WithLevel(level slog.Leveler) FileOption {
	return func(h *FileHandler) {
		h.level = level
	}
}

func NewFileHandler(path string, opts ...FileOption) *FileHandler {
	h := &FileHandler{
		path:  path,
		level: slog.LevelInfo,
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewFileLogger returns a logger appending to path. When echo is set, lines
// are also printed to stdout.
func NewFileLogger(path string, echo bool, opts ...FileOption) *Logger {
	if echo {
		opts = append([]FileOption{WithEcho(os.Stdout)}, opts...)
	}
	return slog.New(NewFileHandler(path, opts...))
}

// Enabled implements slog.Handler interface
func (h *FileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler interface
func (h *FileHandler) Handle(_ context.Context, r slog.Record) error {
	// r.Time is ignored so the clock stays the single source of timestamps.
	ts := h.clock.Now()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] [%s]: %s", r.Level.String(), ts.Format(types.DateTimeFormat), r.Message)
	for _, a := range h.attrs {
		writeAttr(&buf, "", a)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, prefix, a)
		return true
	})
	buf.WriteByte('\n')

	if h.echo != nil {
		_, _ = h.echo.Write(buf.Bytes())
	}

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to open log file %s: %v\n", h.path, err)
		return err
	}
	if _, err = f.Write(buf.Bytes()); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "ERROR: failed to write log file %s: %v\n", h.path, err)
		return err
	}
	return f.Close()
}

// WithAttrs implements slog.Handler interface
func (h *FileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	prefix := strings.Join(h.groups, ".")
	h2.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

// WithGroup implements slog.Handler interface
func (h *FileHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string{}, h.groups...), name)
	return &h2
}

func writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(buf, key, ga)
		}
		return
	}
	val := a.Value.String()
	if val == "" || strings.ContainsAny(val, " \t\n\"=") {
		val = strconv.Quote(val)
	}
	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteByte('=')
	buf.WriteString(val)
}

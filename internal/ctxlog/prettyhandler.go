// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/TylerBrock/colorjson"
	"golang.org/x/term"

	"github.com/evildarkarchon/autoqac/internal/color"
)

// ErrRenderAttrs is returned when record attributes cannot be rendered.
var ErrRenderAttrs = errors.New("could not render log attributes")

// timeFormat is the timestamp layout in console log lines.
const timeFormat = "[15:04:05.000]"

var attrFormatter = colorjson.NewFormatter()

func init() {
	attrFormatter.Indent = 2
	attrFormatter.DisabledColor = !term.IsTerminal(int(os.Stderr.Fd()))
}

// PrettyHandler renders slog records as colored console lines: a timestamp,
// the level, the message, then any attributes as indented JSON. Attribute
// encoding is delegated to an inner JSON handler so groups and WithAttrs
// behave exactly as slog defines them.
type PrettyHandler struct {
	inner  slog.Handler
	out    io.Writer
	colour bool

	// buf collects the inner handler's output per record; mu serializes
	// records across handler clones, which all share the same buffer.
	buf *bytes.Buffer
	mu  *sync.Mutex
}

// Option configures a PrettyHandler.
type Option func(*PrettyHandler)

// WithDestinationWriter sets where log lines are written.
func WithDestinationWriter(w io.Writer) Option {
	return func(h *PrettyHandler) {
		h.out = w
	}
}

// WithAutoColour enables color when the environment supports it.
func WithAutoColour() Option {
	return func(h *PrettyHandler) {
		h.colour = color.Enabled()
	}
}

// NewPrettyHandler creates a PrettyHandler honouring the level from opts.
func NewPrettyHandler(opts *slog.HandlerOptions, options ...Option) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	buf := &bytes.Buffer{}

	h := &PrettyHandler{
		inner: slog.NewJSONHandler(buf, &slog.HandlerOptions{
			Level:       opts.Level,
			AddSource:   opts.AddSource,
			ReplaceAttr: dropHeaderAttrs,
		}),
		out: os.Stderr,
		buf: buf,
		mu:  &sync.Mutex{},
	}

	for _, opt := range options {
		opt(h)
	}

	return h
}

// Enabled reports whether records at level would be logged.
func (h *PrettyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// WithAttrs returns a handler whose records carry the given attributes.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)

	return &clone
}

// WithGroup returns a handler that nests attributes under name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)

	return &clone
}

// Handle writes one console line for the record.
func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs, err := h.renderAttrs(ctx, r)
	if err != nil {
		return err
	}

	var line strings.Builder

	line.WriteString(h.colorize(r.Time.Format(timeFormat), color.FgWhite))
	line.WriteString(" ")
	line.WriteString(h.colorize(r.Level.String()+":", levelColor(r.Level)))
	line.WriteString(" ")
	line.WriteString(h.colorize(r.Message, color.FgHiWhite))

	if len(attrs) > 0 {
		line.WriteString(" ")
		line.WriteString(h.colorize(attrs, color.FgHiWhite))
	}

	line.WriteString("\n")

	if _, err := io.WriteString(h.out, line.String()); err != nil {
		return fmt.Errorf("write log line: %w", err)
	}

	return nil
}

// renderAttrs runs the inner JSON handler and pretty-prints everything it
// emitted besides the header fields.
func (h *PrettyHandler) renderAttrs(ctx context.Context, r slog.Record) (string, error) {
	h.mu.Lock()
	defer func() {
		h.buf.Reset()
		h.mu.Unlock()
	}()

	if err := h.inner.Handle(ctx, r); err != nil {
		return "", errors.Join(ErrRenderAttrs, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(h.buf.Bytes(), &fields); err != nil {
		return "", errors.Join(ErrRenderAttrs, err)
	}

	if len(fields) == 0 {
		return "", nil
	}

	rendered, err := attrFormatter.Marshal(fields)
	if err != nil {
		return "", errors.Join(ErrRenderAttrs, err)
	}

	return string(rendered), nil
}

func (h *PrettyHandler) colorize(s string, c color.Code) string {
	if !h.colour {
		return s
	}

	return color.Colorize(s, c)
}

func levelColor(level slog.Level) color.Code {
	switch {
	case level <= slog.LevelDebug:
		return color.FgWhite
	case level <= slog.LevelInfo:
		return color.FgCyan
	case level < slog.LevelError:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

// dropHeaderAttrs strips time, level and message from the inner JSON
// handler's output; the console line already carries them.
func dropHeaderAttrs(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey, slog.LevelKey, slog.MessageKey:
		return slog.Attr{}
	}

	return a
}

// Package output serializes records, reports and history to writers and
// files.
package output

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatJSONL, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// FormatFromPath picks a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".jsonl", ".ndjson":
		return FormatJSONL
	}
	return FormatJSON
}

// Writer handles output serialization.
type Writer interface {
	// Write outputs a single item.
	Write(data any) error

	// WriteAll outputs multiple items.
	WriteAll(data []any) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// documentWriter buffers items and encodes them as a single document on
// Flush: a list, or the lone item bare unless array output was requested.
// Items are cleared once written, so a later Flush or Close writes
// nothing new. A forced empty list is written once.
type documentWriter struct {
	w       *bufio.Writer
	encode  func(io.Writer, any) error
	array   bool
	written bool
	items   []any
}

func newDocumentWriter(w io.Writer, encode func(io.Writer, any) error) documentWriter {
	return documentWriter{
		w:      bufio.NewWriter(w),
		encode: encode,
		items:  make([]any, 0),
	}
}

// Write buffers a single item.
func (d *documentWriter) Write(data any) error {
	d.items = append(d.items, data)
	return nil
}

// WriteAll buffers multiple items.
func (d *documentWriter) WriteAll(data []any) error {
	d.items = append(d.items, data...)
	return nil
}

// Flush encodes the buffered items.
func (d *documentWriter) Flush() error {
	if len(d.items) == 0 && (!d.array || d.written) {
		return d.w.Flush()
	}
	var doc any = d.items
	if len(d.items) == 1 && !d.array {
		doc = d.items[0]
	}
	if err := d.encode(d.w, doc); err != nil {
		return err
	}
	d.items = d.items[:0]
	d.written = true
	return d.w.Flush()
}

// Close flushes the writer.
func (d *documentWriter) Close() error {
	return d.Flush()
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
	array  bool
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) { c.pretty = enabled }
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) { c.indent = indent }
}

// WithArray always emits a list, even for zero or one item. Without it a
// single item is written bare.
func WithArray(enabled bool) WriterOption {
	return func(c *writerConfig) { c.array = enabled }
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		jw := NewJSONWriter(w, cfg.pretty, cfg.indent)
		jw.array = cfg.array
		return jw, nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		yw := NewYAMLWriter(w)
		yw.array = cfg.array
		return yw, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Items converts a typed slice into the []any WriteAll takes.
func Items[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes one JSON document per Flush.
type JSONWriter struct {
	documentWriter
}

// NewJSONWriter creates a JSON writer. Indentation applies when pretty
// is set.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{newDocumentWriter(w, func(out io.Writer, v any) error {
		enc := json.NewEncoder(out)
		if pretty {
			enc.SetIndent("", indent)
		}
		return enc.Encode(v)
	})}
}

// JSONLWriter writes newline-delimited JSON (JSONL), one line per item,
// flushed as it goes.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	return &JSONLWriter{w: bw, enc: json.NewEncoder(bw)}
}

// Write writes a single item as a JSON line.
func (w *JSONLWriter) Write(data any) error {
	if err := w.enc.Encode(data); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteAll writes multiple items as JSON lines.
func (w *JSONLWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}

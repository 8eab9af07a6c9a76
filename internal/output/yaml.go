package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes one YAML document per Flush, indented by two spaces.
type YAMLWriter struct {
	documentWriter
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{newDocumentWriter(w, func(out io.Writer, v any) error {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	})}
}

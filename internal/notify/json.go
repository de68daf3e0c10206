package notify

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs digests as indented JSON for machine consumption
// and downstream tooling.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

// WriteDigest outputs the digest as JSON.
func (w *JSONWriter) WriteDigest(digest *Digest) (int, error) {
	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

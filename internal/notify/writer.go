package notify

import (
	"io"
)

// Writer renders a change digest to a destination.
//
// Design decision: We use an interface to allow different output
// formats and destinations. Writing to a terminal, a file, or an email
// body all go through the same API.
type Writer interface {
	// WriteDigest outputs the digest to the configured destination.
	// Returns the number of bytes written and any error encountered.
	WriteDigest(digest *Digest) (int, error)
}

// MultiWriter writes one digest to several Writers, for example both
// the terminal and a file.
//
// Design decision: A separate type rather than io.MultiWriter because
// our Writer interface writes digests, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteDigest outputs the digest to all configured Writers, stopping
// on the first error.
func (m *MultiWriter) WriteDigest(digest *Digest) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDigest(digest)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides the shared output destination for digest writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Package multipart implements a minimal multipart/form-data codec for the
// upload endpoint. The decoder works on a fully buffered body and tolerates
// malformed parts: a part that cannot be parsed is skipped, never fatal.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"github.com/book-expert/logger"
)

// ErrMissingBoundary indicates that the Content-Type header carries no
// boundary parameter. This is the only hard failure mode of Decode.
var ErrMissingBoundary = errors.New("missing boundary in content type")

var (
	boundaryPattern    = regexp.MustCompile(`boundary=([^;]+)`)
	dispositionPattern = regexp.MustCompile(`Content-Disposition: form-data; name="([^"]+)"(?:; filename="([^"]+)")?`)
)

// Field is one decoded form field. A field with a non-empty Filename is a file
// field and carries its payload in Content; otherwise Value holds the text.
type Field struct {
	Filename string
	Content  []byte
	Value    string
}

// IsFile reports whether the field was submitted with a filename attribute.
func (f Field) IsFile() bool {
	return f.Filename != ""
}

// Decoder parses multipart/form-data bodies.
type Decoder struct {
	log *logger.Logger
}

// NewDecoder creates a decoder that logs per-part parse failures to log.
func NewDecoder(log *logger.Logger) *Decoder {
	return &Decoder{log: log}
}

// Decode parses body into a mapping of field name to Field. The boundary is
// taken from contentType; a missing boundary parameter fails the whole call
// with ErrMissingBoundary. Every other anomaly degrades to a skipped part:
// a later part with the same name silently replaces an earlier one, and an
// empty result map is a valid outcome.
func (d *Decoder) Decode(body []byte, contentType string) (map[string]Field, error) {
	match := boundaryPattern.FindStringSubmatch(contentType)
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingBoundary, contentType)
	}

	boundary := match[1]
	fields := make(map[string]Field)

	// Splitting on the delimiter yields a preamble fragment first and a
	// closing "--" fragment last; neither contributes a field.
	fragments := bytes.Split(body, []byte("--"+boundary))
	if len(fragments) < 3 {
		return fields, nil
	}

	for _, part := range fragments[1 : len(fragments)-1] {
		headerBlock, payload, found := bytes.Cut(part, []byte("\r\n\r\n"))
		if !found {
			d.log.Error("Skipping malformed part: no header separator in %d bytes", len(part))

			continue
		}

		disposition := dispositionPattern.FindStringSubmatch(string(headerBlock))
		if disposition == nil {
			continue
		}

		name, filename := disposition[1], disposition[2]
		payload = bytes.TrimRight(payload, "\r\n")

		if filename != "" {
			fields[name] = Field{Filename: filename, Content: payload, Value: ""}
		} else {
			fields[name] = Field{Filename: "", Content: nil, Value: string(payload)}
		}
	}

	return fields, nil
}

package multipart

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Boundary length limits per RFC 2046 section 5.1.1.
const (
	minBoundaryLength = 1
	maxBoundaryLength = 69
)

var (
	// ErrBoundaryLength indicates a boundary outside the RFC 2046 length limits.
	ErrBoundaryLength = errors.New("invalid boundary length")
	// ErrBoundaryCharacter indicates a boundary containing a forbidden character.
	ErrBoundaryCharacter = errors.New("invalid boundary character")
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Encoder builds a multipart/form-data body part by part. It is the producing
// half of the codec, used by the upload client and by tests exercising the
// decoder against well-formed input.
type Encoder struct {
	boundary string
	buf      bytes.Buffer
}

// NewEncoder creates an encoder with a random boundary.
func NewEncoder() (*Encoder, error) {
	boundary, err := randomBoundary()
	if err != nil {
		return nil, fmt.Errorf("failed to generate boundary: %w", err)
	}

	return NewEncoderWithBoundary(boundary)
}

// NewEncoderWithBoundary creates an encoder with a caller-chosen boundary.
func NewEncoderWithBoundary(boundary string) (*Encoder, error) {
	err := validateBoundary(boundary)
	if err != nil {
		return nil, err
	}

	return &Encoder{boundary: boundary, buf: bytes.Buffer{}}, nil
}

// WriteField appends a plain text field.
func (e *Encoder) WriteField(name, value string) {
	e.writeHeader(fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(name)))
	e.buf.WriteString(value)
	e.buf.WriteString("\r\n")
}

// WriteFile appends a file field with the given filename and content.
func (e *Encoder) WriteFile(name, filename string, content []byte) {
	e.writeHeader(fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(name), escapeQuotes(filename)))
	e.buf.Write(content)
	e.buf.WriteString("\r\n")
}

// ContentType returns the header value declaring the boundary.
func (e *Encoder) ContentType() string {
	return "multipart/form-data; boundary=" + e.boundary
}

// Bytes returns the encoded body, terminated with the closing delimiter.
func (e *Encoder) Bytes() []byte {
	body := make([]byte, 0, e.buf.Len()+len(e.boundary)+6)
	body = append(body, e.buf.Bytes()...)
	body = append(body, []byte("--"+e.boundary+"--\r\n")...)

	return body
}

func (e *Encoder) writeHeader(disposition string) {
	e.buf.WriteString("--" + e.boundary + "\r\n")
	e.buf.WriteString("Content-Disposition: " + disposition + "\r\n")
	e.buf.WriteString("\r\n")
}

func randomBoundary() (string, error) {
	var raw [15]byte

	_, err := rand.Read(raw[:])
	if err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return hex.EncodeToString(raw[:]), nil
}

func validateBoundary(boundary string) error {
	if len(boundary) < minBoundaryLength || len(boundary) > maxBoundaryLength {
		return fmt.Errorf("%w: %d characters", ErrBoundaryLength, len(boundary))
	}

	for _, char := range boundary {
		if 'A' <= char && char <= 'Z' || 'a' <= char && char <= 'z' || '0' <= char && char <= '9' {
			continue
		}

		switch char {
		case '\'', '(', ')', '+', '_', ',', '-', '.', '/', ':', '=', '?':
			continue
		}

		return fmt.Errorf("%w: %q", ErrBoundaryCharacter, char)
	}

	return nil
}

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

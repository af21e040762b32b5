// Package core defines the domain types and interfaces for the speech service.
package core

import (
	"context"
	"time"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// MetadataStore records upload metadata. Writes are best-effort at the call
// sites: a failed Record is logged by the caller and never fails the upload.
type MetadataStore interface {
	Record(ctx context.Context, rec UploadRecord) error
}

// SynthesisRequest holds the parameters for a single speech synthesis call.
type SynthesisRequest struct {
	Text         string
	Voice        string
	OutputFormat string
}

// Audio is the result of a synthesis call.
type Audio struct {
	Content     []byte
	ContentType string
}

// Synthesizer defines the interface for a text-to-speech engine.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*Audio, error)
}

// UploadRecord is the metadata row written after a successful file upload.
type UploadRecord struct {
	FileKey          string    `json:"file_key" dynamodbav:"file_key"`
	OriginalFilename string    `json:"original_filename" dynamodbav:"original_filename"`
	Status           string    `json:"status" dynamodbav:"status"`
	UploadTime       time.Time `json:"upload_time" dynamodbav:"upload_time"`
	Stage            string    `json:"stage" dynamodbav:"stage"`
}

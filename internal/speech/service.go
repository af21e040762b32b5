// Package speech implements the two pipeline operations: synthesizing text to
// stored audio, and persisting uploaded audio files with metadata.
package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/langbridge/speech-service/internal/core"
	"github.com/langbridge/speech-service/internal/multipart"
)

const (
	fileFieldName   = "file"
	statusUploaded  = "uploaded"
	stageUpload     = "upload"
	contentTypeMPEG = "audio/mpeg"

	// Upload keys look like 20240102T030405Z_ab12.mp3.
	uploadKeyTimeLayout = "20060102T150405Z"
	uploadKeyIDLength   = 4
	uploadKeySuffix     = ".mp3"

	// Synthesis output keys default to <uuid>_speech.mp3.
	defaultOutputKeySuffix = "_speech.mp3"
)

// Deps carries the collaborators of the Service. Stores are bucket-bound; the
// bucket names are only used for log lines and result messages.
type Deps struct {
	Synthesizer  core.Synthesizer
	InputStore   core.ObjectStore
	OutputStore  core.ObjectStore
	Metadata     core.MetadataStore
	InputBucket  string
	OutputBucket string
	Log          *logger.Logger
}

// Service glues the synthesizer, object stores and metadata store together.
type Service struct {
	synthesizer  core.Synthesizer
	inputStore   core.ObjectStore
	outputStore  core.ObjectStore
	metadata     core.MetadataStore
	inputBucket  string
	outputBucket string
	log          *logger.Logger
	now          func() time.Time
	newID        func() string
}

// NewService creates a Service from its dependencies.
func NewService(deps Deps) *Service {
	return &Service{
		synthesizer:  deps.Synthesizer,
		inputStore:   deps.InputStore,
		outputStore:  deps.OutputStore,
		metadata:     deps.Metadata,
		inputBucket:  deps.InputBucket,
		outputBucket: deps.OutputBucket,
		log:          deps.Log,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// SynthesizeInput is one synthesis job. An empty OutputKey is replaced with a
// generated unique key.
type SynthesizeInput struct {
	Text      string `json:"text"`
	OutputKey string `json:"output_key,omitempty"`
	Voice     string `json:"voice,omitempty"`
}

// SynthesizeResult reports where the synthesized audio was stored.
type SynthesizeResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Synthesize converts text to speech and stores the audio in the output
// bucket. Empty text fails with ErrTextEmpty; synthesis and storage failures
// are wrapped and surfaced as server errors.
func (s *Service) Synthesize(ctx context.Context, input SynthesizeInput) (*SynthesizeResult, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, ErrTextEmpty
	}

	outputKey := input.OutputKey
	if outputKey == "" {
		outputKey = s.newID() + defaultOutputKeySuffix
	}

	audio, err := s.synthesizer.Synthesize(ctx, core.SynthesisRequest{
		Text:         input.Text,
		Voice:        input.Voice,
		OutputFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	err = s.outputStore.Upload(ctx, outputKey, audio.Content, audio.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio for key '%s': %w", outputKey, err)
	}

	s.log.Info("Audio saved to %s/%s", s.outputBucket, outputKey)

	return &SynthesizeResult{
		Bucket: s.outputBucket,
		Key:    outputKey,
	}, nil
}

// UploadResult reports the stored file key for an accepted upload.
type UploadResult struct {
	FileKey          string `json:"file_key"`
	OriginalFilename string `json:"original_filename"`
}

// StoreUpload persists the "file" field of a decoded multipart form to the
// input bucket and records upload metadata. The metadata write is best-effort:
// a failure is logged as a warning and the upload still succeeds.
func (s *Service) StoreUpload(ctx context.Context, fields map[string]multipart.Field) (*UploadResult, error) {
	fileField, ok := fields[fileFieldName]
	if !ok || !fileField.IsFile() {
		return nil, ErrMissingFileField
	}

	if len(fileField.Content) == 0 {
		return nil, ErrEmptyFileContent
	}

	s.log.Info("Received upload '%s' (%d bytes)", fileField.Filename, len(fileField.Content))

	uploadTime := s.now().UTC()
	fileKey := uploadTime.Format(uploadKeyTimeLayout) +
		"_" + s.newID()[:uploadKeyIDLength] + uploadKeySuffix

	err := s.inputStore.Upload(ctx, fileKey, fileField.Content, contentTypeMPEG)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file for key '%s': %w", fileKey, err)
	}

	s.log.Info("File uploaded to %s/%s", s.inputBucket, fileKey)

	rec := core.UploadRecord{
		FileKey:          fileKey,
		OriginalFilename: fileField.Filename,
		Status:           statusUploaded,
		UploadTime:       uploadTime,
		Stage:            stageUpload,
	}

	recordErr := s.metadata.Record(ctx, rec)
	if recordErr != nil {
		s.log.Warn("Failed to log metadata for '%s': %v", fileKey, recordErr)
	} else {
		s.log.Info("Metadata logged for '%s'", fileKey)
	}

	return &UploadResult{
		FileKey:          fileKey,
		OriginalFilename: fileField.Filename,
	}, nil
}

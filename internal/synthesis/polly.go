// Package synthesis provides the text-to-speech engines for the speech
// service: AWS Polly and a standalone HTTP TTS service.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/langbridge/speech-service/internal/core"
)

// Defaults applied when a request leaves voice or format unset.
const (
	DefaultVoice        = "Joanna"
	DefaultOutputFormat = "mp3"

	contentTypeMPEG = "audio/mpeg"
)

// ErrNoAudio indicates that the engine returned no audio data for a request.
var ErrNoAudio = errors.New("no audio produced")

// pollyAPI is the subset of the Polly client used by the engine, extracted so
// tests can substitute a double.
type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyEngine implements core.Synthesizer using AWS Polly.
type PollyEngine struct {
	client pollyAPI
	voice  string
}

// NewPollyEngine creates an engine with the given default voice. An empty
// defaultVoice falls back to DefaultVoice.
func NewPollyEngine(client *polly.Client, defaultVoice string) *PollyEngine {
	return newPollyEngine(client, defaultVoice)
}

func newPollyEngine(client pollyAPI, defaultVoice string) *PollyEngine {
	if defaultVoice == "" {
		defaultVoice = DefaultVoice
	}

	return &PollyEngine{
		client: client,
		voice:  defaultVoice,
	}
}

// Synthesize converts text to audio. The text is normalized before the call,
// and an empty audio stream from Polly is reported as ErrNoAudio.
func (p *PollyEngine) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.Audio, error) {
	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}

	format := req.OutputFormat
	if format == "" {
		format = DefaultOutputFormat
	}

	result, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		OutputFormat: pollytypes.OutputFormat(format),
		Text:         aws.String(NormalizeText(req.Text)),
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		return nil, fmt.Errorf("polly synthesize speech failed: %w", err)
	}

	if result.AudioStream == nil {
		return nil, fmt.Errorf("%w: response carried no audio stream", ErrNoAudio)
	}

	audioData, readErr := io.ReadAll(result.AudioStream)
	closeErr := result.AudioStream.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", readErr)
	}

	if closeErr != nil {
		return nil, fmt.Errorf("failed to close audio stream: %w", closeErr)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: audio stream was empty", ErrNoAudio)
	}

	contentType := aws.ToString(result.ContentType)
	if contentType == "" {
		contentType = contentTypeMPEG
	}

	return &core.Audio{
		Content:     audioData,
		ContentType: contentType,
	}, nil
}

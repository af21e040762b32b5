// main package for the speech-client, a small command-line client for the
// speech service.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/langbridge/speech-service/internal/multipart"
)

// Flag names and descriptions.
const (
	flagURL     = "url"
	flagFile    = "file"
	flagText    = "text"
	flagOutput  = "output"
	flagVoice   = "voice"
	flagHealth  = "health"
	flagURLDesc = "Base URL of the speech service"

	flagFileDesc   = "Audio file to upload"
	flagTextDesc   = "Text to synthesize"
	flagOutputDesc = "Output key for synthesized audio"
	flagVoiceDesc  = "Voice to synthesize with"
	flagHealthDesc = "Check service health and exit"
)

const (
	defaultServiceURL = "http://localhost:8080"
	requestTimeout    = 60 * time.Second
)

var (
	errEitherFileOrText  = errors.New("either --file or --text must be provided")
	errCannotSpecifyBoth = errors.New("cannot specify both --file and --text")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	url    string
	file   string
	text   string
	output string
	voice  string
	health bool
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if flags.health {
		return checkHealth(ctx, flags.url)
	}

	if flags.file == "" && flags.text == "" {
		flag.Usage()

		return errEitherFileOrText
	}

	if flags.file != "" && flags.text != "" {
		return errCannotSpecifyBoth
	}

	if flags.file != "" {
		return uploadFile(ctx, flags.url, flags.file)
	}

	return synthesize(ctx, flags)
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.url, flagURL, defaultServiceURL, flagURLDesc)
	flag.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.Parse()

	return flags
}

func checkHealth(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	return send(req)
}

func uploadFile(ctx context.Context, baseURL, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	encoder, err := multipart.NewEncoder()
	if err != nil {
		return fmt.Errorf("failed to create multipart encoder: %w", err)
	}

	encoder.WriteFile("file", filepath.Base(path), content)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/v1/uploads", bytes.NewReader(encoder.Bytes()))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Content-Type", encoder.ContentType())

	return send(req)
}

func synthesize(ctx context.Context, flags appFlags) error {
	payload, err := json.Marshal(map[string]string{
		"text":       flags.text,
		"output_key": flags.output,
		"voice":      flags.voice,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		flags.url+"/v1/speech", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create synthesis request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return send(req)
}

func send(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	fmt.Printf("%s\n%s\n", resp.Status, string(body))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned %s", resp.Status)
	}

	return nil
}

// Package server_test tests the HTTP handlers against a mock pipeline.
package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbridge/speech-service/internal/metrics"
	"github.com/langbridge/speech-service/internal/multipart"
	"github.com/langbridge/speech-service/internal/server"
	"github.com/langbridge/speech-service/internal/speech"
)

var errMockPipeline = errors.New("mock pipeline error")

type mockPipeline struct {
	synthesizeInput speech.SynthesizeInput
	uploadFields    map[string]multipart.Field
	synthesizeErr   error
	uploadErr       error
}

func (m *mockPipeline) Synthesize(_ context.Context, input speech.SynthesizeInput) (*speech.SynthesizeResult, error) {
	if m.synthesizeErr != nil {
		return nil, m.synthesizeErr
	}

	m.synthesizeInput = input

	return &speech.SynthesizeResult{Bucket: "speech-output", Key: "out.mp3"}, nil
}

func (m *mockPipeline) StoreUpload(_ context.Context, fields map[string]multipart.Field) (*speech.UploadResult, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}

	m.uploadFields = fields

	return &speech.UploadResult{FileKey: "20240102T030405Z_ab12.mp3", OriginalFilename: "talk.mp3"}, nil
}

func setupServer(t *testing.T) (*mockPipeline, http.Handler) {
	t.Helper()

	log, err := logger.New(t.TempDir(), "server-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	pipeline := &mockPipeline{}
	srv := server.New(
		pipeline,
		multipart.NewDecoder(log),
		metrics.New(prometheus.NewRegistry()),
		"polly",
		log,
	)

	return pipeline, srv.Router()
}

func TestHandleSynthesize(t *testing.T) {
	t.Parallel()

	pipeline, router := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/speech",
		strings.NewReader(`{"text":"hello","voice":"Joanna","output_key":"greeting.mp3"}`))
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "hello", pipeline.synthesizeInput.Text)
	assert.Equal(t, "greeting.mp3", pipeline.synthesizeInput.OutputKey)

	var resp map[string]string

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "Audio saved to speech-output/out.mp3", resp["message"])
	assert.Equal(t, "out.mp3", resp["key"])
}

func TestHandleSynthesize_BadJSON(t *testing.T) {
	t.Parallel()

	_, router := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader("{not json"))
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleSynthesize_EmptyTextIsClientError(t *testing.T) {
	t.Parallel()

	pipeline, router := setupServer(t)
	pipeline.synthesizeErr = speech.ErrTextEmpty

	req := httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader(`{"text":""}`))
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleSynthesize_UpstreamFailureIsServerError(t *testing.T) {
	t.Parallel()

	pipeline, router := setupServer(t)
	pipeline.synthesizeErr = errMockPipeline

	req := httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader(`{"text":"hello"}`))
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestHandleUpload(t *testing.T) {
	t.Parallel()

	pipeline, router := setupServer(t)

	encoder, err := multipart.NewEncoder()
	require.NoError(t, err)
	encoder.WriteFile("file", "talk.mp3", []byte{0xFF, 0xFB, 0x90, 0x00})

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", bytes.NewReader(encoder.Bytes()))
	req.Header.Set("Content-Type", encoder.ContentType())
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))

	require.Contains(t, pipeline.uploadFields, "file")
	assert.Equal(t, "talk.mp3", pipeline.uploadFields["file"].Filename)

	var resp map[string]string

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "File uploaded successfully.", resp["message"])
	assert.Equal(t, "20240102T030405Z_ab12.mp3", resp["file_key"])
}

func TestHandleUpload_MissingBoundary(t *testing.T) {
	t.Parallel()

	_, router := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", strings.NewReader("irrelevant"))
	req.Header.Set("Content-Type", "multipart/form-data")
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleUpload_MissingContentType(t *testing.T) {
	t.Parallel()

	_, router := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", strings.NewReader("irrelevant"))
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleUpload_MissingFileField(t *testing.T) {
	t.Parallel()

	pipeline, router := setupServer(t)
	pipeline.uploadErr = speech.ErrMissingFileField

	encoder, err := multipart.NewEncoder()
	require.NoError(t, err)
	encoder.WriteField("language", "en")

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", bytes.NewReader(encoder.Bytes()))
	req.Header.Set("Content-Type", encoder.ContentType())
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	_, router := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"ok"`)
}

// Package synthesis_test tests the HTTP TTS engine against a stub server.
package synthesis_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbridge/speech-service/internal/core"
	"github.com/langbridge/speech-service/internal/synthesis"
)

const testTimeout = 5 * time.Second

func TestHTTPEngine_Synthesize(t *testing.T) {
	t.Parallel()

	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/generate/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	engine := synthesis.NewHTTPEngine(server.URL, testTimeout)

	audio, err := engine.Synthesize(context.Background(), core.SynthesisRequest{
		Text:  "  hello   world  ",
		Voice: "Joanna",
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("mp3-bytes"), audio.Content)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, "hello world", received["text"])
	assert.Equal(t, "mp3", received["format"])
}

func TestHTTPEngine_EmptyResponseBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	engine := synthesis.NewHTTPEngine(server.URL, testTimeout)

	_, err := engine.Synthesize(context.Background(), core.SynthesisRequest{Text: "hi"})
	require.ErrorIs(t, err, synthesis.ErrNoAudio)
}

func TestHTTPEngine_StructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"text too long","error_code":"TEXT_LENGTH"}`))
	}))
	defer server.Close()

	engine := synthesis.NewHTTPEngine(server.URL, testTimeout)

	_, err := engine.Synthesize(context.Background(), core.SynthesisRequest{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text too long")
	assert.Contains(t, err.Error(), "TEXT_LENGTH")
}

func TestHTTPEngine_HealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)

			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	engine := synthesis.NewHTTPEngine(server.URL, testTimeout)
	require.NoError(t, engine.HealthCheck(context.Background()))
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "whitespace collapse", in: "a\tb\r\nc   d", want: "a b c d"},
		{name: "em dash", in: "one—two", want: "one, two"},
		{name: "ellipsis", in: "wait…", want: "wait..."},
		{name: "trim", in: "  padded  ", want: "padded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, synthesis.NormalizeText(tc.in))
		})
	}
}

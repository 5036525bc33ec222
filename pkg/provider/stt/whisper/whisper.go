// Package whisper provides speech-to-text engines backed by whisper.cpp.
//
// Two variants are available:
//
//   - [Engine] talks to a running whisper-server binary over its REST API
//     (POST /inference), uploading each utterance as a WAV file.
//   - [NativeEngine] runs the model in-process through the whisper.cpp CGO
//     bindings. The model is loaded once at startup.
//
// whisper.cpp is a batch engine, which suits the one-segment-per-call shape
// of the recognition loop.
//
// Usage:
//
//	e, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	text, err := e.Transcribe(ctx, stt.Utterance{Audio: buf})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

const (
	defaultLanguage = "en"

	// whisper.cpp only accepts 16 kHz input.
	modelSampleRate = 16000
)

// Compile-time assertion that Engine implements stt.Engine.
var _ stt.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with. This is the default.
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithLanguage sets the language code sent to the server (e.g., "en").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		e.language = lang
	}
}

// WithHTTPClient replaces the HTTP client. The recognition loop bounds every
// call with its own deadline, so the client timeout is only a backstop.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// Engine implements stt.Engine against a whisper.cpp HTTP server.
type Engine struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates an Engine that posts to the whisper.cpp server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Engine, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	e := &Engine{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Transcribe uploads the utterance as multipart/form-data and returns the
// trimmed text from the server's JSON response.
func (e *Engine) Transcribe(ctx context.Context, u stt.Utterance) (string, error) {
	wav, err := u.WAV()
	if err != nil {
		return "", fmt.Errorf("whisper: encode utterance: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "json"},
		{"language", e.language},
		{"model", e.model},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

// Package deepgram provides a Deepgram-backed speech-to-text engine using
// the Deepgram streaming WebSocket API. Each utterance opens one connection,
// streams the PCM payload, asks the server to flush with CloseStream, and
// joins the final transcripts received before the server closes the socket.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkBytes is the size of each binary frame sent to Deepgram. 100 ms of
	// 16 kHz 16-bit mono audio.
	chunkBytes = 3200
)

// Compile-time assertion that Engine implements stt.Engine.
var _ stt.Engine = (*Engine)(nil)

// Option is a functional option for configuring the Deepgram Engine.
type Option func(*Engine)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en").
func WithLanguage(language string) Option {
	return func(e *Engine) {
		e.language = language
	}
}

// WithKeywords boosts the given words. nova-3 models receive them as
// keyterm prompts, older models as keywords with a fixed boost.
func WithKeywords(words ...string) Option {
	return func(e *Engine) {
		e.keywords = append(e.keywords, words...)
	}
}

// WithEndpoint overrides the WebSocket endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(e *Engine) {
		e.endpoint = endpoint
	}
}

// Engine implements stt.Engine backed by the Deepgram streaming API.
type Engine struct {
	apiKey   string
	model    string
	language string
	keywords []string
	endpoint string
}

// New creates a new Deepgram Engine. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	e := &Engine{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Transcribe streams the utterance and returns the joined final transcripts.
func (e *Engine) Transcribe(ctx context.Context, u stt.Utterance) (string, error) {
	wsURL, err := e.buildURL(u.Audio.SampleRate)
	if err != nil {
		return "", fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+e.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return "", fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	pcm := u.Audio.PCM16()
	for len(pcm) > 0 {
		n := min(chunkBytes, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[:n]); err != nil {
			return "", fmt.Errorf("deepgram: send audio: %w", err)
		}
		pcm = pcm[n:]
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return "", fmt.Errorf("deepgram: close stream: %w", err)
	}

	var parts []string
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("deepgram: %w", ctx.Err())
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return "", fmt.Errorf("deepgram: read: %w", err)
		}
		text, final, ok := parseDeepgramResponse(msg)
		if ok && final && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// buildURL constructs the Deepgram streaming endpoint URL for a segment at
// the given sample rate.
func (e *Engine) buildURL(sampleRate int) (string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", e.model)
	q.Set("language", e.language)
	q.Set("punctuate", "false")
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	if sampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(sampleRate))
	}

	for _, kw := range e.keywords {
		if strings.HasPrefix(e.model, "nova-3") {
			q.Add("keyterm", kw)
		} else {
			// Deepgram keyword format: word:boost.
			q.Add("keywords", kw+":2")
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseDeepgramResponse extracts the top alternative from a Results message.
// ok is false for any other message type or malformed JSON.
func parseDeepgramResponse(data []byte) (text string, final, ok bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", false, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return "", false, false
	}
	return strings.TrimSpace(resp.Channel.Alternatives[0].Transcript), resp.IsFinal, true
}

package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicesteer/pkg/audio"
	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	e, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := e.buildURL(16000)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "host", "api.deepgram.com", u.Host)
	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
	assertEqual(t, "interim_results", "false", q.Get("interim_results"))
}

func TestBuildURL_KeywordsByModel(t *testing.T) {
	tests := []struct {
		model string
		param string
		want  []string
	}{
		{"nova-3", "keyterm", []string{"up", "down"}},
		{"nova-2", "keywords", []string{"up:2", "down:2"}},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			e, _ := New("key", WithModel(tt.model), WithKeywords("up", "down"))
			rawURL, err := e.buildURL(16000)
			if err != nil {
				t.Fatalf("buildURL: %v", err)
			}
			u, _ := url.Parse(rawURL)
			got := u.Query()[tt.param]
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("%s = %v, want %v", tt.param, got, tt.want)
			}
		})
	}
}

// ---- response parsing ----

func TestParseDeepgramResponse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantText  string
		wantFinal bool
		wantOK    bool
	}{
		{
			name:      "final",
			raw:       `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":" left ","confidence":0.9}]}}`,
			wantText:  "left",
			wantFinal: true,
			wantOK:    true,
		},
		{
			name:     "partial",
			raw:      `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"le"}]}}`,
			wantText: "le",
			wantOK:   true,
		},
		{name: "metadata", raw: `{"type":"Metadata"}`},
		{name: "no alternatives", raw: `{"type":"Results","channel":{"alternatives":[]}}`},
		{name: "invalid json", raw: `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, final, ok := parseDeepgramResponse([]byte(tt.raw))
			if text != tt.wantText || final != tt.wantFinal || ok != tt.wantOK {
				t.Errorf("got (%q, %v, %v), want (%q, %v, %v)", text, final, ok, tt.wantText, tt.wantFinal, tt.wantOK)
			}
		})
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// ---- end-to-end against a fake server ----

func fakeDeepgram(t *testing.T, finals []string, gotAudio *atomic.Int64, gotAuth *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			typ, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				gotAudio.Add(int64(len(msg)))
				continue
			}
			if strings.Contains(string(msg), "CloseStream") {
				break
			}
		}
		for _, f := range finals {
			resp := map[string]any{
				"type":     "Results",
				"is_final": true,
				"channel": map[string]any{
					"alternatives": []map[string]any{{"transcript": f}},
				},
			}
			data, _ := json.Marshal(resp)
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Metadata"}`))
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranscribe_JoinsFinals(t *testing.T) {
	var gotAudio atomic.Int64
	var gotAuth atomic.Value
	srv := fakeDeepgram(t, []string{"go", "", "left"}, &gotAudio, &gotAuth)

	e, err := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf := audio.Buffer{Samples: make([]float32, 16000), SampleRate: 16000}
	text, err := e.Transcribe(context.Background(), stt.Utterance{Audio: buf})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "go left" {
		t.Errorf("Transcribe = %q, want %q", text, "go left")
	}
	if n := gotAudio.Load(); n != 32000 {
		t.Errorf("server received %d audio bytes, want 32000", n)
	}
	if auth, _ := gotAuth.Load().(string); auth != "Token secret" {
		t.Errorf("Authorization = %q, want %q", auth, "Token secret")
	}
}

func TestTranscribe_DialFailure(t *testing.T) {
	e, _ := New("secret", WithEndpoint("ws://127.0.0.1:1/v1/listen"))
	buf := audio.Buffer{Samples: make([]float32, 160), SampleRate: 16000}
	if _, err := e.Transcribe(context.Background(), stt.Utterance{Audio: buf}); err == nil {
		t.Fatal("expected dial error")
	}
}

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}

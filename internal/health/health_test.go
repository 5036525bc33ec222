package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/voicesteer/pkg/direction"
)

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return v
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New(nil, Checker{Name: "broken", Check: func(context.Context) error {
		return errors.New("down")
	}})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if body := decode[result](t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(msg string) func(context.Context) error {
		return func(context.Context) error { return errors.New(msg) }
	}

	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantBody   result
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
			wantBody:   result{Status: "ok"},
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "recognizer", Check: ok},
				{Name: "engines", Check: ok},
			},
			wantStatus: http.StatusOK,
			wantBody:   result{Status: "ok", Checks: map[string]string{"recognizer": "ok", "engines": "ok"}},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "recognizer", Check: fail("stalled")},
				{Name: "engines", Check: ok},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   result{Status: "fail", Checks: map[string]string{"recognizer": "fail: stalled", "engines": "ok"}},
		},
		{
			name: "all fail",
			checkers: []Checker{
				{Name: "recognizer", Check: fail("stalled")},
				{Name: "engines", Check: fail("all open")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   result{Status: "fail", Checks: map[string]string{"recognizer": "fail: stalled", "engines": "fail: all open"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(nil, tc.checkers...).Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			body := decode[result](t, rec)
			if body.Status != tc.wantBody.Status || len(body.Checks) != len(tc.wantBody.Checks) {
				t.Fatalf("body = %+v, want %+v", body, tc.wantBody)
			}
			for k, v := range tc.wantBody.Checks {
				if body.Checks[k] != v {
					t.Errorf("check %s = %q, want %q", k, body.Checks[k], v)
				}
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(nil, Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	state := direction.NewState(direction.Right)
	state.Propose(direction.Up)

	mux := http.NewServeMux()
	New(state).Register(mux)

	for _, path := range []string{"/healthz", "/readyz", "/v1/direction"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/direction", nil))
	body := decode[directionResponse](t, rec)
	if body.Direction != "up" || body.Changes != 1 {
		t.Errorf("direction body = %+v, want up with 1 change", body)
	}
}

func TestRegister_NoStateNoDirectionRoute(t *testing.T) {
	mux := http.NewServeMux()
	New(nil).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/direction", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/config"
	"github.com/murmurlabs/murmur-core/internal/dictation"
	"github.com/murmurlabs/murmur-core/internal/eventstore"
	"github.com/murmurlabs/murmur-core/internal/transcriber"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAPI assembles the control surface against the mock capture
// backend and a stub transcription endpoint.
func newTestAPI(t *testing.T, endpoint string) *api {
	t.Helper()
	log := newLogger()

	audioCfg := config.AudioConfig{
		Mode:            "mock",
		SampleRate:      16000,
		Channels:        1,
		BitDepth:        16,
		FrameDurationMS: 20,
	}
	opener, err := audio.NewOpener(audioCfg)
	if err != nil {
		t.Fatalf("new opener: %v", err)
	}
	trCfg := config.TranscriberConfig{
		Endpoint:       endpoint,
		Model:          "whisper-1",
		ResponseFormat: "json",
		TimeoutMS:      5000,
	}
	store, err := eventstore.Open(context.Background(), config.HistoryConfig{RetentionMode: "ephemeral"}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	br := newBridge(nil, store, log)
	ctrl, err := dictation.NewController(dictation.ControllerParams{
		Audio:       audioCfg,
		Transcriber: trCfg,
		Opener:      opener,
		Client:      transcriber.NewClient(trCfg, log),
		Oracle:      dictation.PermissionFunc(func() bool { return true }),
		Sink:        br,
		Observer:    br,
		Logger:      log,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	br.bind(ctrl)

	ready := &atomic.Bool{}
	ready.Store(true)
	return &api{ctrl: ctrl, store: store, ready: ready, log: log}
}

func stubTranscriptionServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, handler http.Handler, method, path string) (*httptest.ResponseRecorder, sessionResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var body sessionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestDictationLifecycleOverHTTP(t *testing.T) {
	stub := stubTranscriptionServer(t, "hello from the api")
	api := newTestAPI(t, stub.URL)
	mux := api.routes()

	rec, body := doRequest(t, mux, http.MethodPost, "/v1/dictation/begin")
	if rec.Code != http.StatusOK {
		t.Fatalf("begin = %d: %s", rec.Code, rec.Body.String())
	}
	if body.SessionID == "" || body.State != "recording" {
		t.Fatalf("begin body = %+v", body)
	}

	rec, _ = doRequest(t, mux, http.MethodPost, "/v1/dictation/begin")
	if rec.Code != http.StatusConflict {
		t.Fatalf("begin while busy = %d", rec.Code)
	}

	rec, _ = doRequest(t, mux, http.MethodPost, "/v1/dictation/end")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("end = %d: %s", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(3 * time.Second)
	var status sessionResponse
	for time.Now().Before(deadline) {
		_, status = doRequest(t, mux, http.MethodGet, "/v1/dictation/status")
		if status.State == "complete" || status.State == "failed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.State != "complete" {
		t.Fatalf("final state = %+v", status)
	}
	if status.Transcript != "hello from the api" {
		t.Fatalf("transcript = %q", status.Transcript)
	}
}

func TestCancelOverHTTP(t *testing.T) {
	stub := stubTranscriptionServer(t, "unused")
	api := newTestAPI(t, stub.URL)
	mux := api.routes()

	rec, _ := doRequest(t, mux, http.MethodPost, "/v1/dictation/begin")
	if rec.Code != http.StatusOK {
		t.Fatalf("begin = %d", rec.Code)
	}
	rec, body := doRequest(t, mux, http.MethodPost, "/v1/dictation/cancel")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel = %d", rec.Code)
	}
	if body.State != "cancelled" {
		t.Fatalf("cancel body = %+v", body)
	}

	rec, _ = doRequest(t, mux, http.MethodPost, "/v1/dictation/cancel")
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel without session = %d", rec.Code)
	}
}

func TestEndWithoutRecording(t *testing.T) {
	stub := stubTranscriptionServer(t, "unused")
	api := newTestAPI(t, stub.URL)
	mux := api.routes()

	rec, _ := doRequest(t, mux, http.MethodPost, "/v1/dictation/end")
	if rec.Code != http.StatusConflict {
		t.Fatalf("end without session = %d", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	stub := stubTranscriptionServer(t, "unused")
	api := newTestAPI(t, stub.URL)
	mux := api.routes()

	rec, _ := doRequest(t, mux, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	rec, _ = doRequest(t, mux, http.MethodGet, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}

	api.ready.Store(false)
	rec, _ = doRequest(t, mux, http.MethodGet, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz when stopping = %d", rec.Code)
	}
}

func TestStatusRejectsPost(t *testing.T) {
	stub := stubTranscriptionServer(t, "unused")
	api := newTestAPI(t, stub.URL)
	mux := api.routes()

	rec, _ := doRequest(t, mux, http.MethodPost, "/v1/dictation/status")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status via POST = %d", rec.Code)
	}
}

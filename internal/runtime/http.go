package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/dictation"
	"github.com/murmurlabs/murmur-core/internal/eventstore"
	"github.com/murmurlabs/murmur-core/internal/presence"
)

// api is the HTTP control surface. Host UIs drive the press-to-record
// gesture through it and poll session status.
type api struct {
	ctrl    *dictation.Controller
	store   *eventstore.Store
	tracker *presence.Tracker
	busOK   func() bool
	ready   *atomic.Bool
	metrics http.Handler
	log     *slog.Logger
}

type sessionResponse struct {
	SessionID  string `json:"session_id,omitempty"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
	AudioBytes int    `json:"audio_bytes,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/dictation/begin", a.handleBegin)
	mux.HandleFunc("/v1/dictation/end", a.handleEnd)
	mux.HandleFunc("/v1/dictation/cancel", a.handleCancel)
	mux.HandleFunc("/v1/dictation/status", a.handleStatus)
	mux.HandleFunc("/v1/dictation/history", a.handleHistory)
	mux.HandleFunc("/v1/nodes", a.handleNodes)
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/readyz", a.handleReady)
	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics)
	}
	return mux
}

func (a *api) handleBegin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := a.ctrl.Begin()
	if err != nil {
		switch {
		case errors.Is(err, dictation.ErrSessionBusy):
			writeError(w, http.StatusConflict, "a session is already in progress")
		case errors.Is(err, audio.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, "microphone permission denied")
		case errors.Is(err, audio.ErrDeviceUnavailable):
			writeError(w, http.StatusServiceUnavailable, "capture device unavailable")
		default:
			a.log.Error("begin failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "begin failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, State: dictation.StateRecording.String()})
}

func (a *api) handleEnd(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := a.ctrl.End(); err != nil {
		if errors.Is(err, dictation.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, "no recording to end")
			return
		}
		a.writeSessionStatus(w, http.StatusOK)
		return
	}
	a.writeSessionStatus(w, http.StatusAccepted)
}

func (a *api) handleCancel(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := a.ctrl.Cancel(); err != nil {
		writeError(w, http.StatusConflict, "no session to cancel")
		return
	}
	a.writeSessionStatus(w, http.StatusOK)
}

func (a *api) handleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a.writeSessionStatus(w, http.StatusOK)
}

func (a *api) handleHistory(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	records, err := a.store.Recent(req.Context(), limit)
	if err != nil {
		a.log.Error("history query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []eventstore.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *api) handleNodes(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var nodes []presence.NodeInfo
	if a.tracker != nil {
		nodes = a.tracker.Nodes()
	}
	if nodes == nil {
		nodes = []presence.NodeInfo{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if a.busOK != nil && !a.busOK() {
		writeError(w, http.StatusServiceUnavailable, "bus disconnected")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *api) handleReady(w http.ResponseWriter, _ *http.Request) {
	if a.ready != nil && a.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (a *api) writeSessionStatus(w http.ResponseWriter, code int) {
	st := a.ctrl.Status()
	writeJSON(w, code, sessionResponse{
		SessionID:  st.SessionID,
		State:      st.State.String(),
		Error:      errorKind(st.Err),
		AudioBytes: st.AudioBytes,
		DurationMS: st.Duration.Milliseconds(),
		Transcript: st.Transcript,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

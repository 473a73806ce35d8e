package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/bus"
	"github.com/murmurlabs/murmur-core/internal/dictation"
	"github.com/murmurlabs/murmur-core/internal/eventstore"
	"github.com/murmurlabs/murmur-core/internal/protocol"
	"github.com/murmurlabs/murmur-core/internal/transcriber"
)

// bridge fans session outcomes out of the pipeline: state changes and
// transcripts go to the bus, terminal sessions go to the history store.
// It implements dictation.StatusObserver and dictation.TextSink.
type bridge struct {
	bus   *bus.Client
	store *eventstore.Store
	log   *slog.Logger
	ctrl  *dictation.Controller
}

func newBridge(busClient *bus.Client, store *eventstore.Store, log *slog.Logger) *bridge {
	return &bridge{
		bus:   busClient,
		store: store,
		log:   log.With(slog.String("component", "bridge")),
	}
}

// bind attaches the controller after construction; the controller and
// the bridge reference each other.
func (b *bridge) bind(ctrl *dictation.Controller) {
	b.ctrl = ctrl
}

func (b *bridge) StateChanged(sessionID string, state dictation.State, err error) {
	b.publish(protocol.SubjectDictationState, protocol.StateChange{
		SessionID: sessionID,
		State:     state.String(),
		Error:     errorKind(err),
		Timestamp: time.Now().UTC(),
	})
	if state.Terminal() {
		b.record(sessionID, state, err)
	}
}

func (b *bridge) Insert(sessionID, text string) {
	b.publish(protocol.SubjectDictationTranscript, protocol.Transcript{
		SessionID: sessionID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

func (b *bridge) publish(subject string, msg any) {
	if b.bus == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.Warn("marshal bus message", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := b.bus.Conn().Publish(subject, payload); err != nil {
		b.log.Warn("publish bus message", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

func (b *bridge) record(sessionID string, state dictation.State, err error) {
	if b.store == nil || b.ctrl == nil {
		return
	}
	status := b.ctrl.Status()
	if status.SessionID != sessionID {
		// a newer session already replaced this one; nothing to record
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := eventstore.Record{
		SessionID:  sessionID,
		State:      state.String(),
		ErrorKind:  errorKind(err),
		AudioBytes: status.AudioBytes,
		DurationMS: status.Duration.Milliseconds(),
		Transcript: status.Transcript,
	}
	if err := b.store.RecordSession(ctx, rec); err != nil {
		b.log.Warn("record session history", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
}

// errorKind maps pipeline failures to their wire labels.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, audio.ErrReadFailed):
		return "read_failed"
	}
	if kind, _, ok := transcriber.Classify(err); ok {
		return kind.String()
	}
	return "internal"
}

package dictation

import (
	"errors"
	"testing"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/config"
)

func newTestController(t *testing.T, opener audio.Opener, client Transcriber) *Controller {
	t.Helper()
	ctrl, err := NewController(ControllerParams{
		Audio:       testAudioConfig(),
		Transcriber: config.TranscriberConfig{TimeoutMS: 30000},
		Opener:      opener,
		Client:      client,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return ctrl
}

func TestControllerRejectsBeginWhileBusy(t *testing.T) {
	src := audio.NewMockSource(0)
	client := newScriptedTranscriber()
	ctrl := newTestController(t, &stubOpener{src: src}, client)

	id, err := ctrl.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if id == "" {
		t.Fatalf("begin returned empty session id")
	}
	if _, err := ctrl.Begin(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("second begin = %v, want busy", err)
	}
	// still busy while the upload is in flight
	if err := ctrl.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := ctrl.Begin(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("begin while uploading = %v, want busy", err)
	}
	client.deliver("ok", nil)
	waitFor(t, "terminal state", func() bool { return ctrl.Status().State.Terminal() })
}

func TestControllerMintsFreshSessionPerBegin(t *testing.T) {
	src := audio.NewMockSource(0)
	client := newScriptedTranscriber()
	ctrl := newTestController(t, &stubOpener{src: src}, client)

	first, err := ctrl.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := ctrl.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := ctrl.Status().State; got != StateCancelled {
		t.Fatalf("state = %v", got)
	}

	second, err := ctrl.Begin()
	if err != nil {
		t.Fatalf("begin after cancel: %v", err)
	}
	if second == first {
		t.Fatalf("terminal session was reused")
	}
	if got := ctrl.Status().State; got != StateRecording {
		t.Fatalf("state = %v", got)
	}
}

func TestControllerRetriesAfterOpenFailure(t *testing.T) {
	opener := &stubOpener{err: audio.ErrDeviceUnavailable}
	ctrl := newTestController(t, opener, newScriptedTranscriber())

	if _, err := ctrl.Begin(); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("begin = %v", err)
	}
	if got := ctrl.Status().State; got != StateIdle {
		t.Fatalf("state = %v", got)
	}

	opener.mu.Lock()
	opener.err = nil
	opener.src = audio.NewMockSource(0)
	opener.mu.Unlock()
	if _, err := ctrl.Begin(); err != nil {
		t.Fatalf("retry begin = %v", err)
	}
}

func TestControllerEventsWithoutSession(t *testing.T) {
	ctrl := newTestController(t, &stubOpener{src: audio.NewMockSource(0)}, newScriptedTranscriber())

	if err := ctrl.End(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("end without session = %v", err)
	}
	if err := ctrl.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel without session = %v", err)
	}
	if got := ctrl.Status().State; got != StateIdle {
		t.Fatalf("status = %v", got)
	}
}

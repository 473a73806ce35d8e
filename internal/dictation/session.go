package dictation

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/config"
	"github.com/murmurlabs/murmur-core/internal/transcriber"
	"github.com/murmurlabs/murmur-core/internal/wav"
)

// Transcriber uploads one encoded capture and delivers the outcome over
// a channel. *transcriber.Client satisfies it.
type Transcriber interface {
	Submit(ctx context.Context, payload []byte) <-chan transcriber.Outcome
}

// PermissionOracle answers whether the host grants microphone access.
// It is consulted before the capture device is opened.
type PermissionOracle interface {
	MicrophoneGranted() bool
}

// PermissionFunc adapts a function to PermissionOracle.
type PermissionFunc func() bool

func (f PermissionFunc) MicrophoneGranted() bool { return f() }

// StatusObserver is notified after every state transition. Callbacks
// run on session goroutines and must not block.
type StatusObserver interface {
	StateChanged(sessionID string, state State, err error)
}

// ObserverFunc adapts a function to StatusObserver.
type ObserverFunc func(sessionID string, state State, err error)

func (f ObserverFunc) StateChanged(sessionID string, state State, err error) {
	f(sessionID, state, err)
}

// TextSink receives the final transcript, exactly once per completed
// session.
type TextSink interface {
	Insert(sessionID, text string)
}

// SinkFunc adapts a function to TextSink.
type SinkFunc func(sessionID, text string)

func (f SinkFunc) Insert(sessionID, text string) { f(sessionID, text) }

// SessionParams collects the collaborators one session needs.
type SessionParams struct {
	ID            string
	Audio         config.AudioConfig
	Opener        audio.Opener
	Client        Transcriber
	Oracle        PermissionOracle
	Sink          TextSink
	Observer      StatusObserver
	Logger        *slog.Logger
	UploadTimeout time.Duration
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	SessionID  string
	State      State
	Err        error
	AudioBytes int
	Duration   time.Duration
	Transcript string
}

// Session is one press-to-record lifecycle. It starts in Idle and ends
// in exactly one of Complete, Failed or Cancelled; a new recording needs
// a new Session. All transitions are serialized through the session
// mutex, so Begin, End, Cancel and Status are safe to call from any
// goroutine.
type Session struct {
	id            string
	cfg           config.AudioConfig
	format        wav.Format
	opener        audio.Opener
	client        Transcriber
	oracle        PermissionOracle
	sink          TextSink
	observer      StatusObserver
	log           *slog.Logger
	uploadTimeout time.Duration

	buffer *audio.CaptureBuffer

	// stop asks the capture loop to exit at its next flag check;
	// cancelled additionally marks the session as discarded.
	stop      atomic.Bool
	cancelled atomic.Bool

	captureDone  chan error
	done         chan struct{}
	cancelUpload context.CancelFunc

	mu         sync.Mutex
	state      State
	err        error
	releasing  bool
	audioBytes int
	duration   time.Duration
	transcript string
}

// NewSession builds an idle session. It does not touch the device.
func NewSession(p SessionParams) *Session {
	timeout := p.UploadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		id:            p.ID,
		cfg:           p.Audio,
		format:        wav.Format{SampleRate: p.Audio.SampleRate, Channels: p.Audio.Channels, BitDepth: p.Audio.BitDepth},
		opener:        p.Opener,
		client:        p.Client,
		oracle:        p.Oracle,
		sink:          p.Sink,
		observer:      p.Observer,
		log:           log.With(slog.String("component", "dictation"), slog.String("session_id", p.ID)),
		uploadTimeout: timeout,
		buffer:        audio.NewCaptureBuffer(),
		captureDone:   make(chan error, 1),
		done:          make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID:  s.id,
		State:      s.state,
		Err:        s.err,
		AudioBytes: s.audioBytes,
		Duration:   s.duration,
		Transcript: s.transcript,
	}
}

// Begin consults the permission oracle, opens the device and starts the
// capture loop. A denied oracle moves the session to Failed without
// touching the device; a device open failure leaves the session Idle so
// the caller may retry.
func (s *Session) Begin() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.mu.Unlock()

	if s.oracle != nil && !s.oracle.MicrophoneGranted() {
		s.transitionIf(StateIdle, StateFailed, audio.ErrPermissionDenied)
		return audio.ErrPermissionDenied
	}

	src, err := s.opener.Open()
	if err != nil {
		s.log.Error("capture device open failed", slog.String("error", err.Error()))
		return err
	}

	s.transitionIf(StateIdle, StateRecording, nil)
	go s.captureLoop(src)
	return nil
}

// captureLoop pulls frames into the buffer until the stop flag is set
// or the device errors. The source is closed before captureDone is
// signaled or a transition fires, so the device is released before the
// session leaves Recording on every path.
func (s *Session) captureLoop(src audio.Source) {
	release := func() {
		if err := src.Close(); err != nil {
			s.log.Warn("capture source close failed", slog.String("error", err.Error()))
		}
	}
	for {
		if s.stop.Load() {
			release()
			s.captureDone <- nil
			return
		}
		frame, err := src.ReadFrame()
		if err != nil {
			release()
			if s.stop.Load() {
				// release was requested; the read was interrupted, not broken
				s.captureDone <- nil
				return
			}
			s.log.Error("device read failed", slog.String("error", err.Error()))
			s.buffer.Clear()
			s.transitionIf(StateRecording, StateFailed, err)
			s.captureDone <- err
			return
		}
		s.buffer.Append(frame)
	}
}

// End stops capture, encodes the buffered audio and starts the upload.
// It returns once the upload is in flight; completion is reported
// through the observer and the text sink.
func (s *Session) End() error {
	s.mu.Lock()
	if s.state != StateRecording || s.releasing {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.releasing = true
	s.mu.Unlock()

	s.stop.Store(true)
	if err := <-s.captureDone; err != nil {
		// the capture loop already failed the session
		return err
	}

	if !s.advance(StateRecording, StateEncoding) {
		if st := s.Status(); st.State == StateFailed {
			return st.Err
		}
		return nil
	}
	frames := s.buffer.DrainAll()
	container := wav.Encode(frames, s.format)
	s.mu.Lock()
	s.audioBytes = len(container) - wav.HeaderSize
	s.duration = wav.Duration(container, s.format)
	s.mu.Unlock()
	if s.cfg.DumpDir != "" {
		path := filepath.Join(s.cfg.DumpDir, s.id+".wav")
		if err := wav.DumpFile(path, frames, s.format); err != nil {
			s.log.Warn("audio dump failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	if !s.advance(StateEncoding, StateUploading) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.uploadTimeout)
	s.mu.Lock()
	s.cancelUpload = cancel
	s.mu.Unlock()
	outcomes := s.client.Submit(ctx, container)
	go s.awaitUpload(outcomes, cancel)
	return nil
}

func (s *Session) awaitUpload(outcomes <-chan transcriber.Outcome, cancel context.CancelFunc) {
	defer cancel()
	out := <-outcomes
	if s.cancelled.Load() {
		// the result of an abandoned upload is discarded; the session
		// may still be Uploading when the cancel raced the release
		s.transitionIf(StateUploading, StateCancelled, nil)
		return
	}
	if out.Err != nil {
		s.transitionIf(StateUploading, StateFailed, out.Err)
		return
	}
	if s.complete(out.Result.Text) && s.sink != nil {
		s.sink.Insert(s.id, out.Result.Text)
	}
}

// Cancel discards the session from any live state. Buffered audio is
// dropped, an in-flight upload is abandoned, and no text is delivered.
func (s *Session) Cancel() error {
	s.mu.Lock()
	switch s.state {
	case StateRecording:
		alreadyReleasing := s.releasing
		s.releasing = true
		s.cancelled.Store(true)
		s.stop.Store(true)
		s.mu.Unlock()
		if alreadyReleasing {
			// End is mid-release; its next advance sees the cancel flag
			return nil
		}
		<-s.captureDone
		s.buffer.Clear()
		s.transitionIf(StateRecording, StateCancelled, nil)
		return nil
	case StateEncoding:
		s.cancelled.Store(true)
		s.mu.Unlock()
		s.transitionIf(StateEncoding, StateCancelled, nil)
		return nil
	case StateUploading:
		cancel := s.cancelUpload
		s.cancelled.Store(true)
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.transitionIf(StateUploading, StateCancelled, nil)
		return nil
	default:
		s.mu.Unlock()
		return ErrInvalidTransition
	}
}

// advance is transitionIf for the release path. The cancel flag is
// re-read under the mutex on every hop, so a cancel that lands after
// the release started still turns the session Cancelled instead of
// riding along to the next state.
func (s *Session) advance(from, to State) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	if s.cancelled.Load() {
		s.state = StateCancelled
		close(s.done)
		s.mu.Unlock()
		s.buffer.Clear()
		s.notify(StateCancelled, nil)
		return false
	}
	s.state = to
	if to.Terminal() {
		close(s.done)
	}
	s.mu.Unlock()
	s.notify(to, nil)
	return true
}

// transitionIf moves the session from one state to another and notifies
// the observer. It is a no-op when the session has already moved on,
// which keeps racing finishers (capture failure, cancel, upload result)
// from overwriting a terminal state.
func (s *Session) transitionIf(from, to State, err error) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	if err != nil {
		s.err = err
	}
	if to.Terminal() {
		close(s.done)
	}
	s.mu.Unlock()
	s.notify(to, err)
	return true
}

func (s *Session) complete(text string) bool {
	s.mu.Lock()
	if s.state != StateUploading {
		s.mu.Unlock()
		return false
	}
	s.state = StateComplete
	s.transcript = text
	close(s.done)
	s.mu.Unlock()
	s.notify(StateComplete, nil)
	return true
}

func (s *Session) notify(state State, err error) {
	if err != nil {
		s.log.Info("session state changed", slog.String("state", state.String()), slog.String("error", err.Error()))
	} else {
		s.log.Info("session state changed", slog.String("state", state.String()))
	}
	if s.observer != nil {
		s.observer.StateChanged(s.id, state, err)
	}
}

package dictation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/config"
)

// Controller owns at most one live session. Begin mints a fresh session
// with a fresh ID; terminal sessions are immutable history and a new
// recording always gets a new session.
type Controller struct {
	audioCfg      config.AudioConfig
	uploadTimeout time.Duration
	opener        audio.Opener
	client        Transcriber
	oracle        PermissionOracle
	sink          TextSink
	observer      StatusObserver
	log           *slog.Logger

	sessionsStarted  metric.Int64Counter
	sessionsFinished metric.Int64Counter

	mu      sync.Mutex
	current *Session
}

// ControllerParams collects the controller's collaborators. Oracle,
// Sink and Observer may be nil.
type ControllerParams struct {
	Audio       config.AudioConfig
	Transcriber config.TranscriberConfig
	Opener      audio.Opener
	Client      Transcriber
	Oracle      PermissionOracle
	Sink        TextSink
	Observer    StatusObserver
	Logger      *slog.Logger
}

func NewController(p ControllerParams) (*Controller, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	meter := otel.Meter("murmur-core/dictation")
	started, err := meter.Int64Counter("murmur.dictation.sessions.started",
		metric.WithDescription("Dictation sessions begun"))
	if err != nil {
		return nil, fmt.Errorf("create started counter: %w", err)
	}
	finished, err := meter.Int64Counter("murmur.dictation.sessions.finished",
		metric.WithDescription("Dictation sessions reaching a terminal state"))
	if err != nil {
		return nil, fmt.Errorf("create finished counter: %w", err)
	}
	return &Controller{
		audioCfg:         p.Audio,
		uploadTimeout:    time.Duration(p.Transcriber.TimeoutMS) * time.Millisecond,
		opener:           p.Opener,
		client:           p.Client,
		oracle:           p.Oracle,
		sink:             p.Sink,
		observer:         p.Observer,
		log:              log,
		sessionsStarted:  started,
		sessionsFinished: finished,
	}, nil
}

// Begin starts a new session and returns its ID. It fails with
// ErrSessionBusy while a previous session is still live.
func (c *Controller) Begin() (string, error) {
	c.mu.Lock()
	if c.current != nil && !c.current.Status().State.Terminal() {
		c.mu.Unlock()
		return "", ErrSessionBusy
	}
	sess := NewSession(SessionParams{
		ID:            uuid.NewString(),
		Audio:         c.audioCfg,
		Opener:        c.opener,
		Client:        c.client,
		Oracle:        c.oracle,
		Sink:          c.sink,
		Observer:      c.observe(),
		Logger:        c.log,
		UploadTimeout: c.uploadTimeout,
	})
	c.current = sess
	c.mu.Unlock()

	c.sessionsStarted.Add(context.Background(), 1)
	if err := sess.Begin(); err != nil {
		if !sess.Status().State.Terminal() {
			// device open failure leaves the session idle; drop it so the
			// next begin is not rejected as busy
			c.mu.Lock()
			if c.current == sess {
				c.current = nil
			}
			c.mu.Unlock()
		}
		return sess.ID(), err
	}
	return sess.ID(), nil
}

// End releases the live session's capture and starts its upload.
func (c *Controller) End() error {
	sess := c.live()
	if sess == nil {
		return ErrInvalidTransition
	}
	return sess.End()
}

// Cancel discards the live session.
func (c *Controller) Cancel() error {
	sess := c.live()
	if sess == nil {
		return ErrInvalidTransition
	}
	return sess.Cancel()
}

// Status reports the most recent session, or an idle status when no
// session was ever begun.
func (c *Controller) Status() Status {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()
	if sess == nil {
		return Status{State: StateIdle}
	}
	return sess.Status()
}

func (c *Controller) live() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Status().State.Terminal() {
		return nil
	}
	return c.current
}

// observe wraps the configured observer with terminal-state accounting.
func (c *Controller) observe() StatusObserver {
	return ObserverFunc(func(sessionID string, state State, err error) {
		if state.Terminal() {
			c.sessionsFinished.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("state", state.String())))
		}
		if c.observer != nil {
			c.observer.StateChanged(sessionID, state, err)
		}
	})
}

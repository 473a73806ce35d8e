// Package runtime wires the dictation pipeline to its surfaces: the
// HTTP control API, the message bus, telemetry and the session history.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/bus"
	"github.com/murmurlabs/murmur-core/internal/config"
	"github.com/murmurlabs/murmur-core/internal/dictation"
	"github.com/murmurlabs/murmur-core/internal/eventstore"
	"github.com/murmurlabs/murmur-core/internal/natsserver"
	"github.com/murmurlabs/murmur-core/internal/presence"
	"github.com/murmurlabs/murmur-core/internal/transcriber"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer  *http.Server
	promServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up, serves until ctx is cancelled, then
// shuts down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	store, err := eventstore.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("open session history: %w", err)
	}
	defer store.Close()

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	var tracker *presence.Tracker
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("start embedded bus: %w", err)
		}
		defer embedded.Shutdown()

		busCfg := r.cfg.Bus
		if embedded != nil {
			busCfg.Servers = []string{embedded.ClientURL()}
		}
		busClient, err = bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("connect bus: %w", err)
		}
		defer busClient.Close()

		tracker, err = presence.NewTracker(ctx, r.cfg.Node, r.cfg.RuntimeName, busClient, r.logger)
		if err != nil {
			return fmt.Errorf("start presence tracker: %w", err)
		}
		defer tracker.Close()
	}

	opener, err := audio.NewOpener(r.cfg.Audio)
	if err != nil {
		return fmt.Errorf("configure capture backend: %w", err)
	}
	client := transcriber.NewClient(r.cfg.Transcriber, r.logger)

	bridge := newBridge(busClient, store, r.logger)
	ctrl, err := dictation.NewController(dictation.ControllerParams{
		Audio:       r.cfg.Audio,
		Transcriber: r.cfg.Transcriber,
		Opener:      opener,
		Client:      client,
		Oracle:      dictation.PermissionFunc(func() bool { return true }),
		Sink:        bridge,
		Observer:    bridge,
		Logger:      r.logger,
	})
	if err != nil {
		return fmt.Errorf("build dictation controller: %w", err)
	}
	bridge.bind(ctrl)

	api := &api{
		ctrl:    ctrl,
		store:   store,
		tracker: tracker,
		busOK: func() bool {
			return busClient == nil || busClient.Healthy()
		},
		ready:   &r.ready,
		metrics: metricsHandler,
		log:     r.logger,
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           api.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		promMux := http.NewServeMux()
		promMux.Handle("/metrics", metricsHandler)
		r.promServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           promMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.promServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("audio_mode", r.cfg.Audio.Mode),
		slog.Bool("bus", r.cfg.Bus.Enabled))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.promServer != nil {
		if err := r.promServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

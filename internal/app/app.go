// Package app wires the speakcoach subsystems into a running server.
//
// The App struct owns the full lifecycle: New opens the history store and
// assembles providers, resilience and the HTTP routes; Run serves until the
// context is cancelled; Shutdown drains connections and releases resources
// in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics, WithListener). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/speakcoach/internal/config"
	"github.com/MrWong99/speakcoach/internal/health"
	"github.com/MrWong99/speakcoach/internal/history"
	"github.com/MrWong99/speakcoach/internal/observe"
	"github.com/MrWong99/speakcoach/internal/practice"
	"github.com/MrWong99/speakcoach/internal/resilience"
	"github.com/MrWong99/speakcoach/internal/server"
	"github.com/MrWong99/speakcoach/pkg/provider/stt"
	"github.com/MrWong99/speakcoach/pkg/provider/tts"
)

const readHeaderTimeout = 10 * time.Second

// NamedSTT pairs a fallback STT provider with its config name.
type NamedSTT struct {
	Name     string
	Provider stt.Provider
}

// Providers holds the speech backends built by main.go via the config
// registry. Nil means the provider is not configured.
type Providers struct {
	STT          stt.Provider
	STTFallbacks []NamedSTT
	TTS          tts.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store    history.Store
	metrics  *observe.Metrics
	listener net.Listener

	sttGroup *resilience.FallbackGroup[stt.Provider]
	ttsGroup *resilience.FallbackGroup[tts.Provider]
	service  *practice.Service
	handler  http.Handler
	srv      *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a history store instead of opening one from config.
// The App does not close injected stores.
func WithStore(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects metric instruments instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithListener makes Run serve on l instead of listening on
// cfg.Server.ListenAddr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	svcOpts := []practice.Option{
		practice.WithStore(a.store),
		practice.WithMetrics(a.metrics),
	}
	if name, sttp := a.buildSTT(); sttp != nil {
		svcOpts = append(svcOpts, practice.WithSTT(name, sttp))
	}
	if ttsp := a.buildTTS(); ttsp != nil {
		svcOpts = append(svcOpts, practice.WithTTS(cfg.Providers.TTS.Name, ttsp))
	}
	a.service = practice.New(svcOpts...)

	a.handler = server.New(a.service,
		server.WithMaxAudioBytes(cfg.Server.MaxAudioBytes),
		server.WithHealth(health.New(a.checkers()...)),
		server.WithMetrics(a.metrics),
	)
	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	hc := a.cfg.History
	switch hc.Backend {
	case config.HistoryNone:
		a.store = history.NopStore{}
	case config.HistoryPostgres:
		s, err := history.OpenPostgres(ctx, hc.PostgresDSN)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	default:
		s := history.NewFileStore(hc.FilePath)
		if err := s.Ping(ctx); err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	}
	slog.Info("history store ready", "backend", hc.Backend)
	return nil
}

// breakerConfig builds the circuit breaker settings shared by every
// provider group. State changes are counted.
func (a *App) breakerConfig() resilience.FallbackConfig {
	rc := a.cfg.Resilience
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  rc.MaxFailures,
			ResetTimeout: rc.ResetTimeout,
			HalfOpenMax:  rc.HalfOpenMax,
			OnStateChange: func(name string, from, to resilience.State) {
				a.metrics.RecordCircuitTransition(context.Background(), name, from.String(), to.String())
			},
		},
	}
}

// buildSTT wraps the primary STT provider and its fallbacks in a
// [resilience.STTFallback]. A fallback list without a primary promotes the
// first fallback. The returned name is that of the first provider in the
// chain.
func (a *App) buildSTT() (string, stt.Provider) {
	entries := make([]NamedSTT, 0, 1+len(a.providers.STTFallbacks))
	if a.providers.STT != nil {
		entries = append(entries, NamedSTT{Name: a.cfg.Providers.STT.Name, Provider: a.providers.STT})
	}
	for _, fb := range a.providers.STTFallbacks {
		if fb.Provider != nil {
			entries = append(entries, fb)
		}
	}
	if len(entries) == 0 {
		slog.Warn("no stt provider configured; audio attempts are disabled")
		return "", nil
	}

	fb := resilience.NewSTTFallback(entries[0].Provider, entries[0].Name, a.breakerConfig())
	for _, e := range entries[1:] {
		fb.AddFallback(e.Name, e.Provider)
	}
	a.sttGroup = fb.Group()
	slog.Info("stt providers ready", "chain", a.sttGroup.Names())
	return entries[0].Name, fb
}

func (a *App) buildTTS() tts.Provider {
	if a.providers.TTS == nil {
		slog.Warn("no tts provider configured; reference audio is disabled")
		return nil
	}
	fb := resilience.NewTTSFallback(a.providers.TTS, a.cfg.Providers.TTS.Name, a.breakerConfig())
	a.ttsGroup = fb.Group()
	return fb
}

// checkers returns the readiness probes for the configured subsystems.
func (a *App) checkers() []health.Checker {
	cs := []health.Checker{{Name: "history", Check: a.store.Ping}}
	if g := a.sttGroup; g != nil {
		cs = append(cs, health.Checker{Name: "stt", Check: groupCheck(g.Available, "stt")})
	}
	if g := a.ttsGroup; g != nil {
		cs = append(cs, health.Checker{Name: "tts", Check: groupCheck(g.Available, "tts")})
	}
	return cs
}

func groupCheck(available func() bool, kind string) func(context.Context) error {
	return func(context.Context) error {
		if !available() {
			return fmt.Errorf("every %s circuit is open", kind)
		}
		return nil
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Service returns the practice service.
func (a *App) Service() *practice.Service { return a.service }

// Run serves HTTP until ctx is cancelled or the server fails. It returns
// ctx.Err() after cancellation; call Shutdown afterwards to drain
// in-flight requests.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
	}

	tlsCfg := a.cfg.Server.TLS
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsCfg != nil {
			err = a.srv.ServeTLS(ln, tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = a.srv.Serve(ln)
		}
		errCh <- err
	}()
	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", tlsCfg != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops accepting requests, waits for in-flight ones, then runs the
// closers. It respects the context deadline: if ctx expires, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.srv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

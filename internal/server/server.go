// Package server exposes the practice service over a JSON HTTP API.
//
// Routes:
//
//	POST /v1/evaluations                 score a typed transcript
//	POST /v1/attempts                    transcribe and score an uploaded recording
//	GET  /v1/reference-audio?text=&voice= synthesize the sentence
//	GET  /v1/voices                      list TTS voices
//	GET  /v1/users/{userID}/history      recent records, newest first
//	GET  /v1/users/{userID}/summary      aggregated progress
//	GET  /v1/records/{id}                one record
//	GET  /healthz, /readyz, /metrics
package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/speakcoach/internal/health"
	"github.com/MrWong99/speakcoach/internal/history"
	"github.com/MrWong99/speakcoach/internal/observe"
	"github.com/MrWong99/speakcoach/internal/practice"
	"github.com/MrWong99/speakcoach/pkg/provider/tts"
)

// DefaultMaxAudioBytes caps attempt uploads when no limit is configured.
const DefaultMaxAudioBytes = 10 << 20

// Practice is the subset of [practice.Service] the HTTP layer needs.
type Practice interface {
	Evaluate(ctx context.Context, req practice.Request) (*history.Record, error)
	Attempt(ctx context.Context, req practice.AttemptRequest) (*history.Record, error)
	ReferenceAudio(ctx context.Context, text, voiceID string) (tts.Speech, error)
	Voices(ctx context.Context) ([]tts.VoiceProfile, error)
	Record(ctx context.Context, id string) (*history.Record, error)
	History(ctx context.Context, userID string, limit int) ([]history.Record, error)
	Summary(ctx context.Context, userID string) (history.Summary, error)
}

var _ Practice = (*practice.Service)(nil)

// Option configures a [Server].
type Option func(*Server)

// WithMaxAudioBytes caps the size of uploaded recordings.
func WithMaxAudioBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxAudioBytes = n
		}
	}
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics sets the instruments used by the request middleware.
// Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler replaces the /metrics handler. Defaults to
// [promhttp.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// Server routes HTTP requests to a [Practice] implementation.
type Server struct {
	svc            Practice
	maxAudioBytes  int64
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	handler        http.Handler
}

// New builds the route table.
func New(svc Practice, opts ...Option) *Server {
	s := &Server{
		svc:           svc,
		maxAudioBytes: DefaultMaxAudioBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/evaluations", s.handleEvaluate)
	mux.HandleFunc("POST /v1/attempts", s.handleAttempt)
	mux.HandleFunc("GET /v1/reference-audio", s.handleReferenceAudio)
	mux.HandleFunc("GET /v1/voices", s.handleVoices)
	mux.HandleFunc("GET /v1/users/{userID}/history", s.handleHistory)
	mux.HandleFunc("GET /v1/users/{userID}/summary", s.handleSummary)
	mux.HandleFunc("GET /v1/records/{id}", s.handleRecord)
	mux.Handle("GET /metrics", s.metricsHandler)
	if s.health != nil {
		s.health.Register(mux)
	}

	s.handler = observe.Middleware(s.metrics)(mux)
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

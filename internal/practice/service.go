// Package practice implements the pronunciation practice workflow: scoring
// typed or transcribed attempts, synthesizing reference audio, and reading
// back a learner's history.
//
// A [Service] is assembled from optional collaborators. Without an STT
// provider audio attempts fail with [ErrSTTUnavailable]; without a TTS
// provider reference audio fails with [ErrTTSUnavailable]; without a store
// nothing is persisted.
package practice

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MrWong99/speakcoach/internal/history"
	"github.com/MrWong99/speakcoach/internal/observe"
	"github.com/MrWong99/speakcoach/internal/pronunciation"
	"github.com/MrWong99/speakcoach/pkg/provider/stt"
	"github.com/MrWong99/speakcoach/pkg/provider/tts"
)

const (
	// MaxTextLength is the longest expected or spoken text accepted, in
	// characters.
	MaxTextLength = 1000

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

var (
	// ErrInvalidRequest wraps every validation failure.
	ErrInvalidRequest = errors.New("practice: invalid request")

	// ErrSTTUnavailable is returned by [Service.Attempt] when no
	// speech-to-text provider is configured.
	ErrSTTUnavailable = errors.New("practice: speech-to-text is not configured")

	// ErrTTSUnavailable is returned by [Service.ReferenceAudio] and
	// [Service.Voices] when no text-to-speech provider is configured.
	ErrTTSUnavailable = errors.New("practice: text-to-speech is not configured")

	// ErrProviderFailed wraps errors returned by the STT or TTS provider.
	ErrProviderFailed = errors.New("practice: provider failed")
)

// Request is a text-only evaluation.
type Request struct {
	UserID       string
	ExpectedText string
	SpokenText   string

	// Mode is "read" or "repeat"; empty means "read".
	Mode string

	// Save persists the resulting record.
	Save bool
}

// AttemptRequest is a recorded attempt to be transcribed and evaluated.
// Attempts are always persisted.
type AttemptRequest struct {
	UserID       string
	ExpectedText string
	Mode         string
	Audio        stt.Audio

	// Language overrides the STT provider's default language.
	Language string
}

// Option configures a [Service].
type Option func(*Service)

// WithSTT sets the speech-to-text provider. name labels its metrics.
func WithSTT(name string, p stt.Provider) Option {
	return func(s *Service) {
		s.stt = p
		s.sttName = name
	}
}

// WithTTS sets the text-to-speech provider. name labels its metrics.
func WithTTS(name string, p tts.Provider) Option {
	return func(s *Service) {
		s.tts = p
		s.ttsName = name
	}
}

// WithStore sets the history store. Defaults to [history.NopStore].
func WithStore(st history.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithMetrics sets the metric instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service runs practice attempts. It is safe for concurrent use.
type Service struct {
	stt     stt.Provider
	sttName string
	tts     tts.Provider
	ttsName string
	store   history.Store
	metrics *observe.Metrics
	now     func() time.Time
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{
		store: history.NopStore{},
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Evaluate scores req.SpokenText against req.ExpectedText.
func (s *Service) Evaluate(ctx context.Context, req Request) (*history.Record, error) {
	mode, err := validate(req.ExpectedText, req.Mode)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.SpokenText) > MaxTextLength {
		return nil, fmt.Errorf("%w: spoken text exceeds %d characters", ErrInvalidRequest, MaxTextLength)
	}
	return s.evaluate(ctx, req.UserID, mode, req.ExpectedText, req.SpokenText, req.Save, "text")
}

// Attempt transcribes req.Audio and evaluates the transcript. An empty
// transcript still yields a (poor) evaluation.
func (s *Service) Attempt(ctx context.Context, req AttemptRequest) (*history.Record, error) {
	mode, err := validate(req.ExpectedText, req.Mode)
	if err != nil {
		return nil, err
	}
	if len(req.Audio.Data) == 0 {
		return nil, fmt.Errorf("%w: audio is empty", ErrInvalidRequest)
	}
	if s.stt == nil {
		return nil, ErrSTTUnavailable
	}

	ctx, span := observe.StartSpan(ctx, "practice.transcribe")
	start := time.Now()
	tr, err := s.stt.Transcribe(ctx, req.Audio, stt.Options{Language: req.Language})
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	observe.EndSpan(span, err)
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.sttName, "stt", "error")
		s.metrics.RecordProviderError(ctx, s.sttName, "stt")
		if errors.Is(err, stt.ErrEmptyAudio) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("%w: transcribe: %w", ErrProviderFailed, err)
	}
	s.metrics.RecordProviderRequest(ctx, s.sttName, "stt", "ok")

	observe.Logger(ctx).Debug("attempt transcribed",
		"user_id", req.UserID,
		"format", req.Audio.Format,
		"chars", utf8.RuneCountInString(tr.Text),
	)
	return s.evaluate(ctx, req.UserID, mode, req.ExpectedText, tr.Text, true, "audio")
}

func (s *Service) evaluate(ctx context.Context, userID string, mode history.Mode, expected, spoken string, save bool, source string) (*history.Record, error) {
	ev := pronunciation.Evaluate(spoken, expected)
	rec := &history.Record{
		ID:           uuid.NewString(),
		UserID:       userID,
		Mode:         mode,
		ExpectedText: expected,
		SpokenText:   spoken,
		Evaluation:   ev,
		ErrorRate:    pronunciation.WordErrorRate(spoken, expected),
		Hints:        homophoneHints(ev.WordAnalysis),
		CreatedAt:    s.now().UTC(),
	}

	s.metrics.RecordEvaluation(ctx, string(mode), string(ev.Level), source, observe.EvaluationScores{
		Accuracy:      ev.Accuracy,
		Pronunciation: ev.Pronunciation,
		Fluency:       ev.Fluency,
		Completeness:  ev.Completeness,
	})

	if save {
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("practice: save record: %w", err)
		}
	}
	return rec, nil
}

// homophoneHints lists incorrect words whose spoken form still sounds like
// the expected word. Those usually point at a transcription ambiguity
// rather than a pronunciation error.
func homophoneHints(analysis []pronunciation.WordAnalysis) []string {
	var hints []string
	for _, wa := range analysis {
		if wa.Status != pronunciation.StatusIncorrect {
			continue
		}
		if pronunciation.MetaphoneMatch(wa.Expected, wa.Spoken) {
			hints = append(hints, fmt.Sprintf("%q was heard as %q, which sounds alike", wa.Expected, wa.Spoken))
		}
	}
	return hints
}

// ReferenceAudio synthesizes text with the given voice. An empty voiceID
// selects the provider default.
func (s *Service) ReferenceAudio(ctx context.Context, text, voiceID string) (tts.Speech, error) {
	if pronunciation.Normalize(text) == "" {
		return tts.Speech{}, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return tts.Speech{}, fmt.Errorf("%w: text exceeds %d characters", ErrInvalidRequest, MaxTextLength)
	}
	if s.tts == nil {
		return tts.Speech{}, ErrTTSUnavailable
	}

	ctx, span := observe.StartSpan(ctx, "practice.synthesize")
	start := time.Now()
	speech, err := s.tts.Synthesize(ctx, text, tts.VoiceProfile{ID: voiceID})
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	observe.EndSpan(span, err)
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.ttsName, "tts", "error")
		s.metrics.RecordProviderError(ctx, s.ttsName, "tts")
		return tts.Speech{}, fmt.Errorf("%w: synthesize: %w", ErrProviderFailed, err)
	}
	s.metrics.RecordProviderRequest(ctx, s.ttsName, "tts", "ok")
	return speech, nil
}

// Voices lists the voices of the TTS provider.
func (s *Service) Voices(ctx context.Context) ([]tts.VoiceProfile, error) {
	if s.tts == nil {
		return nil, ErrTTSUnavailable
	}
	voices, err := s.tts.ListVoices(ctx)
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.ttsName, "tts")
		return nil, fmt.Errorf("%w: list voices: %w", ErrProviderFailed, err)
	}
	return voices, nil
}

// Record returns a stored record by ID.
func (s *Service) Record(ctx context.Context, id string) (*history.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record id is required", ErrInvalidRequest)
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("practice: get record: %w", err)
	}
	return rec, nil
}

// History returns up to limit records of userID, newest first. limit is
// clamped to [1, 100]; zero or less selects 20.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	recs, err := s.store.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("practice: list history: %w", err)
	}
	return recs, nil
}

// Summary aggregates every record of userID.
func (s *Service) Summary(ctx context.Context, userID string) (history.Summary, error) {
	if userID == "" {
		return history.Summary{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	recs, err := s.store.List(ctx, userID, 0)
	if err != nil {
		return history.Summary{}, fmt.Errorf("practice: list history: %w", err)
	}
	return history.Summarize(recs), nil
}

// validate checks the fields shared by text and audio attempts.
func validate(expected, mode string) (history.Mode, error) {
	if pronunciation.Normalize(expected) == "" {
		return "", fmt.Errorf("%w: expected text is required", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(expected) > MaxTextLength {
		return "", fmt.Errorf("%w: expected text exceeds %d characters", ErrInvalidRequest, MaxTextLength)
	}
	m, err := history.ParseMode(mode)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return m, nil
}

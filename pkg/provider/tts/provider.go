// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and is
// used to render reference audio for a practice sentence, so a learner can
// hear how the text should sound before repeating it.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned by Synthesize when there is nothing to speak.
var ErrEmptyText = errors.New("tts: text is empty")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice and returns the complete
	// encoded audio. An empty voice.ID selects the provider's default voice.
	//
	// Returns [ErrEmptyText] for blank input, or an error if the provider
	// cannot be reached or ctx is cancelled before synthesis completes.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (Speech, error)

	// ListVoices returns all voice profiles available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

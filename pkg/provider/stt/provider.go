// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A practice attempt is recorded on the device and uploaded as one clip, so
// providers are batch transcribers: a complete [Audio] goes in and a single
// [Transcript] comes out. The transcript text is what the pronunciation
// evaluator compares against the reference sentence.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned by providers when the supplied audio contains no
// bytes.
var ErrEmptyAudio = errors.New("stt: audio is empty")

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use; several attempts may be
// transcribed in parallel.
type Provider interface {
	// Transcribe converts audio into text.
	//
	// Returns [ErrEmptyAudio] for zero-length input, or an error if the
	// provider cannot be reached, rejects the request, or ctx is cancelled.
	// Silence is not an error: it yields a Transcript with empty Text.
	Transcribe(ctx context.Context, audio Audio, opts Options) (Transcript, error)
}

package stt

import "time"

// Transcript is the text recognised from one recorded attempt.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the language the provider detected or was told to use.
	// May be empty when the provider does not report it.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Words contains per-word timing when the provider returns it.
	// May be nil.
	Words []WordDetail

	// Duration is the length of the recognised audio.
	Duration time.Duration
}

// WordDetail holds per-word metadata from providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Audio is a single recorded attempt handed to a [Provider].
type Audio struct {
	// Data holds the encoded (or raw PCM) audio bytes.
	Data []byte

	// Format is the container or encoding of Data: "wav", "mp3", "m4a",
	// "webm", "ogg" or "pcm" for 16-bit little-endian raw samples.
	// Empty means "wav".
	Format string

	// SampleRate and Channels describe raw PCM input. Ignored for encoded
	// formats.
	SampleRate int
	Channels   int
}

// Filename returns a file name with the extension matching a.Format. Vendor
// APIs use the extension to sniff the upload type.
func (a Audio) Filename() string {
	if a.Format == "" || a.Format == "pcm" {
		return "attempt.wav"
	}
	return "attempt." + a.Format
}

// ContentType returns the MIME type matching a.Format.
func (a Audio) ContentType() string {
	switch a.Format {
	case "mp3":
		return "audio/mpeg"
	case "m4a":
		return "audio/mp4"
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}

// Options carries per-request recognition hints.
type Options struct {
	// Language is an ISO-639 / BCP-47 language code (e.g., "en", "de-DE").
	// Empty lets the provider auto-detect the language, if supported.
	Language string
}

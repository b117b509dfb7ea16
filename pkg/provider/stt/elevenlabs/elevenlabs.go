// Package elevenlabs provides an STT provider backed by the ElevenLabs
// Speech-to-Text (Scribe) REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/speakcoach/pkg/audio"
	"github.com/MrWong99/speakcoach/pkg/provider/stt"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "scribe_v1"

	// pcmFileFormat tells Scribe the upload is raw 16 kHz mono 16-bit PCM.
	pcmFileFormat = "pcm_s16le_16"
	pcmSampleRate = 16000
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Scribe model ID (e.g., "scribe_v1").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code used when a request carries none.
// Empty enables automatic language detection.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithBaseURL overrides the API origin.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider using ElevenLabs Scribe.
type Provider struct {
	apiKey     string
	model      string
	language   string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs stt: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// scribeResponse is the JSON body returned by POST /v1/speech-to-text.
type scribeResponse struct {
	LanguageCode        string       `json:"language_code"`
	LanguageProbability float64      `json:"language_probability"`
	Text                string       `json:"text"`
	Words               []scribeWord `json:"words"`
}

type scribeWord struct {
	Text    string  `json:"text"`
	Type    string  `json:"type"` // "word", "spacing" or "audio_event"
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Logprob float64 `json:"logprob"`
}

// Transcribe uploads audio to Scribe and returns the transcript with
// per-word timings.
func (p *Provider) Transcribe(ctx context.Context, in stt.Audio, opts stt.Options) (stt.Transcript, error) {
	if len(in.Data) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	if in.Format == "pcm" {
		in = toScribePCM(in)
	}
	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	body, contentType, err := p.buildForm(in, lang)
	if err != nil {
		return stt.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/speech-to-text", body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs stt: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs stt: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs stt: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("elevenlabs stt: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var sr scribeResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs stt: parse JSON response: %w", err)
	}
	return sr.transcript(), nil
}

func (p *Provider) buildForm(audio stt.Audio, lang string) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", audio.Filename())
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs stt: create form file: %w", err)
	}
	if _, err := fw.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("elevenlabs stt: write audio data: %w", err)
	}

	fields := [][2]string{{"model_id", p.model}}
	if lang != "" {
		fields = append(fields, [2]string{"language_code", lang})
	}
	if audio.Format == "pcm" {
		fields = append(fields, [2]string{"file_format", pcmFileFormat})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("elevenlabs stt: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("elevenlabs stt: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// toScribePCM converts raw PCM to the 16 kHz mono layout Scribe expects.
// Unspecified rates and channel counts are taken to be 16 kHz mono.
func toScribePCM(in stt.Audio) stt.Audio {
	sr := in.SampleRate
	if sr <= 0 {
		sr = pcmSampleRate
	}
	in.Data = audio.ToMono16(in.Data, sr, in.Channels, pcmSampleRate)
	in.SampleRate = pcmSampleRate
	in.Channels = 1
	return in
}

func (sr scribeResponse) transcript() stt.Transcript {
	tr := stt.Transcript{
		Text:       strings.TrimSpace(sr.Text),
		Language:   sr.LanguageCode,
		Confidence: sr.LanguageProbability,
	}
	for _, w := range sr.Words {
		if w.Type != "word" {
			continue
		}
		tr.Words = append(tr.Words, stt.WordDetail{
			Word:  w.Text,
			Start: seconds(w.Start),
			End:   seconds(w.End),
		})
		if end := seconds(w.End); end > tr.Duration {
			tr.Duration = end
		}
	}
	return tr
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

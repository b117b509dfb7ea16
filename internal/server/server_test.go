package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/speakcoach/internal/health"
	"github.com/MrWong99/speakcoach/internal/history"
	"github.com/MrWong99/speakcoach/internal/observe"
	"github.com/MrWong99/speakcoach/internal/practice"
	"github.com/MrWong99/speakcoach/internal/server"
	"github.com/MrWong99/speakcoach/pkg/provider/stt"
	sttmock "github.com/MrWong99/speakcoach/pkg/provider/stt/mock"
	"github.com/MrWong99/speakcoach/pkg/provider/tts"
	ttsmock "github.com/MrWong99/speakcoach/pkg/provider/tts/mock"
)

type fixture struct {
	srv *httptest.Server
	stt *sttmock.Provider
	tts *ttsmock.Provider
}

func newFixture(t *testing.T, svcOpts []practice.Option, srvOpts ...server.Option) *fixture {
	t.Helper()

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	f := &fixture{
		stt: &sttmock.Provider{Result: stt.Transcript{Text: "good morning"}},
		tts: &ttsmock.Provider{
			SynthesizeResult: tts.Speech{Audio: []byte("RIFFdata"), ContentType: "audio/wav"},
			ListVoicesResult: []tts.VoiceProfile{{ID: "v1", Name: "Rachel", Provider: "elevenlabs"}},
		},
	}
	store := history.NewFileStore(filepath.Join(t.TempDir(), "history.jsonl"))
	base := []practice.Option{
		practice.WithSTT("mock", f.stt),
		practice.WithTTS("mock", f.tts),
		practice.WithStore(store),
		practice.WithMetrics(m),
	}
	svc := practice.New(append(base, svcOpts...)...)

	opts := append([]server.Option{server.WithMetrics(m)}, srvOpts...)
	f.srv = httptest.NewServer(server.New(svc, opts...))
	t.Cleanup(f.srv.Close)
	return f
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

type attemptForm struct {
	fields      map[string]string
	filename    string
	contentType string
	audio       []byte
}

func postAttempt(t *testing.T, url string, form attemptForm) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range form.fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if form.audio != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="audio"; filename="`+form.filename+`"`)
		ct := form.contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(form.audio); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url+"/v1/attempts", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST attempt: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := postJSON(t, f.srv.URL+"/v1/evaluations", map[string]any{
		"userId":       "alice",
		"expectedText": "The quick brown fox",
		"spokenText":   "the quick brown fox",
		"mode":         "read",
		"save":         true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if cid := resp.Header.Get("X-Correlation-ID"); len(cid) != 32 {
		t.Errorf("X-Correlation-ID = %q, want a 32-char id", cid)
	}

	rec := decode[history.Record](t, resp)
	if rec.Evaluation.Accuracy != 100 || rec.UserID != "alice" {
		t.Errorf("record = %+v", rec)
	}

	// Saved records are retrievable.
	got := get(t, f.srv.URL+"/v1/records/"+rec.ID)
	if got.StatusCode != http.StatusOK {
		t.Fatalf("GET record status = %d, want 200", got.StatusCode)
	}
	if r := decode[history.Record](t, got); r.ID != rec.ID {
		t.Errorf("GET record ID = %q, want %q", r.ID, rec.ID)
	}
}

func TestEvaluate_BadRequests(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"expectedText":`, http.StatusBadRequest},
		{"unknown field", `{"expectedText":"hi","bogus":1}`, http.StatusBadRequest},
		{"missing expected text", `{"spokenText":"hi"}`, http.StatusBadRequest},
		{"unknown mode", `{"expectedText":"hi","mode":"shout"}`, http.StatusBadRequest},
		{"oversized body", `{"expectedText":"` + strings.Repeat("a", 70<<10) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp, err := http.Post(f.srv.URL+"/v1/evaluations", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			var e struct {
				Error string `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
				t.Errorf("error body missing: %v", err)
			}
		})
	}
}

func TestAttempt(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := postAttempt(t, f.srv.URL, attemptForm{
		fields: map[string]string{
			"userId":       "bob",
			"expectedText": "Good morning",
			"mode":         "repeat",
			"language":     "en",
		},
		filename: "take1.webm",
		audio:    []byte("webm-bytes"),
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}
	rec := decode[history.Record](t, resp)
	if rec.Mode != history.ModeRepeat || rec.SpokenText != "good morning" {
		t.Errorf("record = %+v", rec)
	}

	if f.stt.CallCount() != 1 {
		t.Fatalf("Transcribe calls = %d, want 1", f.stt.CallCount())
	}
	call := f.stt.Calls[0]
	if call.Audio.Format != "webm" || string(call.Audio.Data) != "webm-bytes" {
		t.Errorf("audio = %q/%q", call.Audio.Format, call.Audio.Data)
	}
	if call.Opts.Language != "en" {
		t.Errorf("language = %q, want en", call.Opts.Language)
	}
}

func TestAttempt_FormatFromContentTypeAndPCM(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := postAttempt(t, f.srv.URL, attemptForm{
		fields:      map[string]string{"expectedText": "hi", "sampleRate": "22050", "channels": "2"},
		filename:    "blob",
		contentType: "audio/L16; rate=22050",
		audio:       []byte{0, 1, 2, 3},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if f.stt.CallCount() != 1 {
		t.Fatalf("Transcribe calls = %d, want 1", f.stt.CallCount())
	}
	call := f.stt.Calls[0]
	if call.Audio.Format != "pcm" || call.Audio.SampleRate != 22050 {
		t.Errorf("audio format/rate = %q/%d, want pcm/22050", call.Audio.Format, call.Audio.SampleRate)
	}
	if call.Audio.Channels != 2 {
		t.Errorf("channels = %d, want 2", call.Audio.Channels)
	}
}

func TestAttempt_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		resp := postAttempt(t, f.srv.URL, attemptForm{fields: map[string]string{"expectedText": "hi"}})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		resp := postJSON(t, f.srv.URL+"/v1/attempts", map[string]string{"expectedText": "hi"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil, server.WithMaxAudioBytes(1024))
		resp := postAttempt(t, f.srv.URL, attemptForm{
			fields:   map[string]string{"expectedText": "hi"},
			filename: "a.wav",
			audio:    bytes.Repeat([]byte{1}, 2048),
		})
		if resp.StatusCode != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", resp.StatusCode)
		}
		if f.stt.CallCount() != 0 {
			t.Error("oversized upload reached the STT provider")
		}
	})

	t.Run("no stt configured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, []practice.Option{practice.WithSTT("", nil)})
		resp := postAttempt(t, f.srv.URL, attemptForm{
			fields:   map[string]string{"expectedText": "hi"},
			filename: "a.wav",
			audio:    []byte{1},
		})
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		t.Parallel()
		failing := &sttmock.Provider{Err: errors.New("upstream 500")}
		f := newFixture(t, []practice.Option{practice.WithSTT("mock", failing)})
		resp := postAttempt(t, f.srv.URL, attemptForm{
			fields:   map[string]string{"expectedText": "hi"},
			filename: "a.wav",
			audio:    []byte{1},
		})
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
	})
}

func TestReferenceAudio(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := get(t, f.srv.URL+"/v1/reference-audio?text=Good+morning&voice=v1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "RIFFdata" {
		t.Errorf("body = %q", body)
	}
	call, ok := f.tts.LastSynthesize()
	if !ok {
		t.Fatal("Synthesize was not called")
	}
	if call.Text != "Good morning" || call.Voice.ID != "v1" {
		t.Errorf("synthesize call = %+v", call)
	}

	if resp := get(t, f.srv.URL+"/v1/reference-audio"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing text status = %d, want 400", resp.StatusCode)
	}
}

func TestReferenceAudio_DefaultContentType(t *testing.T) {
	t.Parallel()
	mp3 := &ttsmock.Provider{SynthesizeResult: tts.Speech{Audio: []byte("ID3")}}
	f := newFixture(t, []practice.Option{practice.WithTTS("mock", mp3)})

	resp := get(t, f.srv.URL+"/v1/reference-audio?text=hi")
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
}

func TestVoices(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := get(t, f.srv.URL+"/v1/voices")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[struct {
		Voices []tts.VoiceProfile `json:"voices"`
	}](t, resp)
	if len(body.Voices) != 1 || body.Voices[0].Name != "Rachel" {
		t.Errorf("voices = %+v", body.Voices)
	}
}

func TestHistoryAndSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	for _, spoken := range []string{"hello world", "hello", "hello word"} {
		resp := postJSON(t, f.srv.URL+"/v1/evaluations", map[string]any{
			"userId": "carol", "expectedText": "hello world", "spokenText": spoken, "save": true,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("evaluate status = %d", resp.StatusCode)
		}
	}

	resp := get(t, f.srv.URL+"/v1/users/carol/history?limit=2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, want 200", resp.StatusCode)
	}
	hist := decode[struct {
		Records []history.Record `json:"records"`
	}](t, resp)
	if len(hist.Records) != 2 {
		t.Errorf("history len = %d, want 2", len(hist.Records))
	}

	empty := decode[map[string]json.RawMessage](t, get(t, f.srv.URL+"/v1/users/nobody/history"))
	if string(empty["records"]) != "[]" {
		t.Errorf("empty history records = %s, want []", empty["records"])
	}

	if resp := get(t, f.srv.URL+"/v1/users/carol/history?limit=abc"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}

	sum := decode[history.Summary](t, get(t, f.srv.URL+"/v1/users/carol/summary"))
	if sum.Attempts != 3 {
		t.Errorf("summary attempts = %d, want 3", sum.Attempts)
	}
}

func TestRecord_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if resp := get(t, f.srv.URL+"/v1/records/does-not-exist"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	t.Parallel()
	h := health.New(health.Checker{Name: "history", Check: func(context.Context) error { return nil }})
	var metricsHit atomic.Bool
	f := newFixture(t, nil,
		server.WithHealth(h),
		server.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			metricsHit.Store(true)
			_, _ = io.WriteString(w, "# metrics\n")
		})),
	)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if resp := get(t, f.srv.URL+path); resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
	if !metricsHit.Load() {
		t.Error("custom metrics handler was not used")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if resp := get(t, f.srv.URL+"/v1/evaluations"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrWong99/speakcoach/internal/history"
	"github.com/MrWong99/speakcoach/internal/observe"
	"github.com/MrWong99/speakcoach/internal/practice"
	"github.com/MrWong99/speakcoach/pkg/provider/stt"
	"github.com/MrWong99/speakcoach/pkg/provider/tts"
)

const (
	// maxJSONBytes bounds JSON request bodies.
	maxJSONBytes = 64 << 10

	// formOverhead is the slack allowed on top of the audio limit for the
	// other multipart fields and boundaries.
	formOverhead = 64 << 10

	// multipartMemory is how much of a multipart body is kept in memory
	// before spilling to temporary files.
	multipartMemory = 8 << 20

	defaultAudioContentType = "audio/mpeg"
)

// evaluationRequest is the body of POST /v1/evaluations.
type evaluationRequest struct {
	UserID       string `json:"userId"`
	ExpectedText string `json:"expectedText"`
	SpokenText   string `json:"spokenText"`
	Mode         string `json:"mode"`
	Save         bool   `json:"save"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)

	var req evaluationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := s.svc.Evaluate(r.Context(), practice.Request{
		UserID:       req.UserID,
		ExpectedText: req.ExpectedText,
		SpokenText:   req.SpokenText,
		Mode:         req.Mode,
		Save:         req.Save,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxAudioBytes+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the audio size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fh, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()
	if fh.Size > s.maxAudioBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the audio size limit")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}

	audio := stt.Audio{Data: data, Format: audioFormat(r.FormValue("format"), fh)}
	if v := r.FormValue("sampleRate"); v != "" {
		sr, err := strconv.Atoi(v)
		if err != nil || sr <= 0 {
			writeError(w, http.StatusBadRequest, "sampleRate must be a positive integer")
			return
		}
		audio.SampleRate = sr
	}
	if v := r.FormValue("channels"); v != "" {
		ch, err := strconv.Atoi(v)
		if err != nil || ch < 1 || ch > 2 {
			writeError(w, http.StatusBadRequest, "channels must be 1 or 2")
			return
		}
		audio.Channels = ch
	}

	rec, err := s.svc.Attempt(r.Context(), practice.AttemptRequest{
		UserID:       r.FormValue("userId"),
		ExpectedText: r.FormValue("expectedText"),
		Mode:         r.FormValue("mode"),
		Language:     r.FormValue("language"),
		Audio:        audio,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReferenceAudio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	speech, err := s.svc.ReferenceAudio(r.Context(), q.Get("text"), q.Get("voice"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ct := speech.ContentType
	if ct == "" {
		ct = defaultAudioContentType
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(speech.Audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(speech.Audio)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.svc.Voices(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if voices == nil {
		voices = []tts.VoiceProfile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs, err := s.svc.History(r.Context(), r.PathValue("userID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), r.PathValue("userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Record(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// fail maps a service error to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		observe.Logger(r.Context()).Error("request failed", "err", err)
		msg = "internal error"
	case status == http.StatusBadGateway:
		observe.Logger(r.Context()).Warn("provider request failed", "err", err)
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, practice.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, practice.ErrSTTUnavailable), errors.Is(err, practice.ErrTTSUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, practice.ErrProviderFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// contentTypeFormats maps upload MIME types to [stt.Audio] formats.
var contentTypeFormats = map[string]string{
	"audio/wav":   "wav",
	"audio/wave":  "wav",
	"audio/x-wav": "wav",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/l16":   "pcm",
}

var knownFormats = map[string]bool{
	"wav": true, "mp3": true, "m4a": true, "webm": true, "ogg": true, "pcm": true,
}

// audioFormat picks the upload format from an explicit form value, the file
// extension, or the part's content type, in that order. Unknown uploads are
// treated as WAV.
func audioFormat(explicit string, fh *multipart.FileHeader) string {
	if f := strings.ToLower(explicit); knownFormats[f] {
		return f
	}
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), ".")); knownFormats[ext] {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type")); err == nil {
		if f, ok := contentTypeFormats[strings.ToLower(mt)]; ok {
			return f
		}
	}
	return "wav"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

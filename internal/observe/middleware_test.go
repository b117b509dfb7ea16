package observe

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace/noop"
)

// practiceMux mimics the shape of the public routes. Handlers answer with
// the status given in the "status" query parameter, 200 by default.
func practiceMux() *http.ServeMux {
	reply := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("status") {
		case "502":
			w.WriteHeader(http.StatusBadGateway)
		case "400":
			w.WriteHeader(http.StatusBadRequest)
		default:
			_, _ = w.Write([]byte("{}"))
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/attempts", reply)
	mux.HandleFunc("GET /v1/users/{userID}/history", reply)
	mux.HandleFunc("GET /v1/records/{id}", reply)
	return mux
}

func TestMiddleware_SpansAndStatus(t *testing.T) {
	exp := useTestTracer(t)
	m, _ := newTestMetrics(t)
	h := Middleware(m)(practiceMux())

	tests := []struct {
		method, target string
		wantCode       int
		wantSpan       string
		wantError      bool
	}{
		{http.MethodGet, "/v1/users/alice/history", 200, "HTTP GET /v1/users/{userID}/history", false},
		{http.MethodPost, "/v1/attempts?status=400", 400, "HTTP POST /v1/attempts", false},
		{http.MethodPost, "/v1/attempts?status=502", 502, "HTTP POST /v1/attempts", true},
		{http.MethodGet, "/v2/unknown", 404, "HTTP GET unmatched", false},
	}
	for _, tc := range tests {
		exp.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))

		if rec.Code != tc.wantCode {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.target, rec.Code, tc.wantCode)
		}
		cid := rec.Header().Get("X-Correlation-ID")
		if len(cid) != 32 {
			t.Errorf("%s %s: X-Correlation-ID = %q", tc.method, tc.target, cid)
		}

		spans := exp.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("%s %s: %d spans, want 1", tc.method, tc.target, len(spans))
		}
		s := spans[0]
		if s.Name != tc.wantSpan {
			t.Errorf("span name = %q, want %q", s.Name, tc.wantSpan)
		}
		if s.SpanContext.TraceID().String() != cid {
			t.Errorf("span trace %s does not match correlation id %s", s.SpanContext.TraceID(), cid)
		}
		if got := s.Status.Code == codes.Error; got != tc.wantError {
			t.Errorf("%s %s: span error status = %v, want %v", tc.method, tc.target, got, tc.wantError)
		}
		var status int64
		for _, a := range s.Attributes {
			if a.Key == "http.response.status_code" {
				status = a.Value.AsInt64()
			}
		}
		if status != int64(tc.wantCode) {
			t.Errorf("span http.response.status_code = %d, want %d", status, tc.wantCode)
		}
	}
}

func TestMiddleware_DurationLabelledByPattern(t *testing.T) {
	useTestTracer(t)
	m, reader := newTestMetrics(t)
	h := Middleware(m)(practiceMux())

	for _, target := range []string{"/v1/records/r1", "/v1/records/r2", "/v1/records/r3?status=400", "/favicon.ico"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	met := findMetric(collect(t, reader), "speakcoach.http.request.duration")
	if met == nil {
		t.Fatal("speakcoach.http.request.duration not recorded")
	}
	counts := make(map[string]uint64)
	for _, dp := range met.Data.(metricdata.Histogram[float64]).DataPoints {
		method, _ := dp.Attributes.Value("method")
		route, _ := dp.Attributes.Value("route")
		status, _ := dp.Attributes.Value("status")
		counts[method.AsString()+" "+route.AsString()+" "+status.AsString()] += dp.Count
	}
	want := map[string]uint64{
		"GET /v1/records/{id} 200": 2,
		"GET /v1/records/{id} 400": 1,
		"GET unmatched 404":        1,
	}
	for key, n := range want {
		if counts[key] != n {
			t.Errorf("samples[%s] = %d, want %d (all: %v)", key, counts[key], n, counts)
		}
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	exp := useTestTracer(t)
	m, _ := newTestMetrics(t)

	const (
		traceID = "0af7651916cd43dd8448eb211c80319c"
		parent  = "b7ad6b7169203331"
	)
	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
		Logger(r.Context()).Info("handling attempt")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/attempts", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-"+parent+"-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != traceID || rec.Header().Get("X-Correlation-ID") != traceID {
		t.Errorf("correlation id handler=%q header=%q, want %s", seen, rec.Header().Get("X-Correlation-ID"), traceID)
	}
	if got := rec.Header().Get("traceparent"); len(got) != 55 || got[3:35] != traceID {
		t.Errorf("response traceparent = %q, want trace %s", got, traceID)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Parent.SpanID().String() != parent {
		t.Errorf("span parent not taken from traceparent: %+v", spans)
	}
}

func TestMiddleware_CorrelationIDWithoutRecordingTracer(t *testing.T) {
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(noop.NewTracerProvider())
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	m, _ := newTestMetrics(t)
	h := Middleware(m)(practiceMux())

	seen := make(map[string]bool)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/records/r1", nil))
		cid := rec.Header().Get("X-Correlation-ID")
		if len(cid) != 32 || strings.Trim(cid, "0123456789abcdef") != "" {
			t.Fatalf("X-Correlation-ID = %q, want 32 hex chars", cid)
		}
		if seen[cid] {
			t.Fatalf("X-Correlation-ID %s repeated", cid)
		}
		seen[cid] = true
	}
}

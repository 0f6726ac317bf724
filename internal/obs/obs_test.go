package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"pgregory.net/rapid"
)

func testMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return mux
}

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	t.Parallel()
	m := NewMetrics(nil)
	h := m.Middleware(testMux())

	for _, path := range []string{"/items/1", "/items/2", "/items/3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/boom", nil))

	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "GET /items/{id}", "200")); got != 3 {
		t.Fatalf("items counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("POST", "POST /boom", "500")); got != 1 {
		t.Fatalf("boom counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsInFlight); got != 0 {
		t.Fatalf("in flight = %v after requests finished", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "noteful_http_request_duration_seconds_bucket") {
		t.Fatalf("exposition missing histogram:\n%s", rec.Body.String())
	}
}

func TestAccessLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := RequestContextMiddleware(AccessLogMiddleware("test", testMux()))
	req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
	req.Header.Set("X-Request-Id", "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-abc" {
		t.Fatalf("X-Request-Id = %q", got)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("access log is not one JSON line: %v\n%s", err, buf.String())
	}
	want := map[string]any{
		"msg":        "http_access",
		"pkg":        "test",
		"route":      "GET /items/{id}",
		"path":       "/items/7",
		"request_id": "req-abc",
		"status":     float64(200),
		"resp_bytes": float64(2),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestRequestContextMiddleware_TraceparentBecomesRequestID(t *testing.T) {
	t.Parallel()
	var seen Correlation
	h := RequestContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen.TraceID != "4bf92f3577b34da6a3ce929d0e0e4736" || seen.RequestID != seen.TraceID {
		t.Fatalf("unexpected correlation %+v", seen)
	}
}

func testWithUserIDKeepsRequestID(t *rapid.T) {
	reqID := rapid.StringMatching(`req-[0-9a-f]{1,32}`).Draw(t, "requestID")
	userID := rapid.StringMatching(`[a-z0-9-]{1,36}`).Draw(t, "userID")

	ctx := WithCorrelation(context.Background(), Correlation{RequestID: reqID})
	ctx = WithUserID(ctx, userID)
	corr := CorrelationFromContext(ctx)
	if corr.RequestID != reqID || corr.UserID != userID {
		t.Fatalf("correlation = %+v", corr)
	}
}

func TestWithUserIDKeepsRequestID(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testWithUserIDKeepsRequestID)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
		if _, ok := ParseLevel(s); !ok {
			t.Errorf("ParseLevel(%q) rejected", s)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("ParseLevel accepted an unknown level")
	}
}

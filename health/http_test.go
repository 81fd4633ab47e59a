package health

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/healthreport/resilience"
)

func serve(t *testing.T, h http.Handler, method, target, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) ReportDocument {
	t.Helper()
	var env JSONEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode JSON body: %v\n%s", err, rec.Body.String())
	}
	return env.Status
}

func TestLivenessHandler(t *testing.T) {
	handler := LivenessHandler()

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Body = %v, want 'OK'", rec.Body.String())
	}
}

func TestHandler_StatusCodes(t *testing.T) {
	failing := Check{
		Name:        "legacy",
		WarnOnError: true,
		Fn: func(context.Context, *State) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	slow := Check{
		Name:    "Slow dependency",
		Timeout: 100 * time.Millisecond,
		Fn: func(context.Context, *State) (string, error) {
			time.Sleep(200 * time.Millisecond)
			return "late", nil
		},
	}

	tests := []struct {
		name        string
		checks      []Check
		want        int
		wantStatus  string
		wantMessage string
	}{
		{name: "no checks", want: http.StatusOK, wantStatus: "OK"},
		{name: "ok", checks: []Check{okCheck("a")}, want: http.StatusOK, wantStatus: "OK"},
		{name: "warning", checks: []Check{okCheck("a"), statusCheck("b", StatusWarning)}, want: http.StatusOK, wantStatus: "WARNING"},
		{name: "error", checks: []Check{okCheck("a"), statusCheck("b", StatusError)}, want: http.StatusServiceUnavailable, wantStatus: "ERROR"},
		{
			name:        "failure downgraded by warnOnError",
			checks:      []Check{okCheck("a"), failing},
			want:        http.StatusOK,
			wantStatus:  "WARNING",
			wantMessage: "legacy | ERROR was: connection refused",
		},
		{
			name:        "timeout",
			checks:      []Check{okCheck("a"), slow},
			want:        http.StatusServiceUnavailable,
			wantStatus:  "ERROR",
			wantMessage: "Slow dependency | ERROR was: Check did not complete before timeout of 100ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.checks, WithAggregator(testAggregator()))
			rec := serve(t, h, http.MethodGet, "/", "")
			if rec.Code != tt.want {
				t.Errorf("Status = %d, want %d", rec.Code, tt.want)
			}

			doc := decodeJSON(t, rec)
			if doc.ApplicationStatus != tt.wantStatus {
				t.Errorf("applicationstatus = %q, want %q", doc.ApplicationStatus, tt.wantStatus)
			}
			if tt.wantMessage == "" {
				return
			}
			last := doc.Checks[len(doc.Checks)-1]
			if last.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", last.Message, tt.wantMessage)
			}
		})
	}
}

func TestHandler_JSON(t *testing.T) {
	checks := []Check{
		{Name: "db", Description: "Database", Fn: func(context.Context, *State) (string, error) {
			return "", nil
		}},
		statusCheck("cache", StatusError),
	}
	h := NewHandler(checks, WithAggregator(testAggregator()))

	rec := serve(t, h, http.MethodGet, "/", "application/json")

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Header().Get(ReportIDHeader) == "" {
		t.Errorf("missing %s header", ReportIDHeader)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", rec.Header().Get("Cache-Control"))
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode JSON body: %v", err)
	}
	for _, key := range []string{"applicationname", "applicationversion", "applicationstatus", "servername", "uptime", "timestamp", "check"} {
		if _, ok := raw["status"][key]; !ok {
			t.Errorf("JSON body missing status.%s", key)
		}
	}

	doc := decodeJSON(t, rec)
	if doc.ApplicationStatus != "ERROR" {
		t.Errorf("applicationstatus = %q, want ERROR", doc.ApplicationStatus)
	}
	if doc.ApplicationName != "orders" || doc.ServerName != "web-1" {
		t.Errorf("metadata = %q/%q, want orders/web-1", doc.ApplicationName, doc.ServerName)
	}
	if doc.Timestamp != "2024-03-01T12:30:00.000Z" {
		t.Errorf("timestamp = %q, want 2024-03-01T12:30:00.000Z", doc.Timestamp)
	}
	if len(doc.Checks) != 2 {
		t.Fatalf("check = %d entries, want 2", len(doc.Checks))
	}
	if doc.Checks[0].Name != "db" || doc.Checks[0].Status != "OK" || doc.Checks[0].Message != "Database: OK" {
		t.Errorf("check[0] = %+v", doc.Checks[0])
	}
	if doc.Checks[1].Status != "ERROR" || doc.Checks[1].Message != "cache | ERROR was: cache down" {
		t.Errorf("check[1] = %+v", doc.Checks[1])
	}
}

func TestHandler_XML(t *testing.T) {
	checks := []Check{okCheck("a"), statusCheck("b", StatusWarning), okCheck("c")}
	h := NewHandler(checks, WithAggregator(testAggregator()))

	for _, accept := range []string{"application/xml", "text/xml", "text/html, application/xml;q=0.9"} {
		t.Run(accept, func(t *testing.T) {
			rec := serve(t, h, http.MethodGet, "/", accept)

			if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "xml") {
				t.Errorf("Content-Type = %q, want XML", ct)
			}

			var doc ReportDocument
			if err := xml.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
				t.Fatalf("decode XML body: %v\n%s", err, rec.Body.String())
			}
			if doc.XMLName.Local != "status" {
				t.Errorf("root = %q, want status", doc.XMLName.Local)
			}
			if doc.ApplicationStatus != "WARNING" {
				t.Errorf("applicationstatus = %q, want WARNING", doc.ApplicationStatus)
			}
			if len(doc.Checks) != 3 {
				t.Fatalf("<check> elements = %d, want 3", len(doc.Checks))
			}
			if doc.Checks[1].Name != "b" || doc.Checks[1].Message != "b degraded" {
				t.Errorf("check[1] = %+v", doc.Checks[1])
			}
		})
	}
}

func TestHandler_UnsupportedAcceptFallsBackToJSON(t *testing.T) {
	h := NewHandler([]Check{okCheck("a")}, WithAggregator(testAggregator()))

	rec := serve(t, h, http.MethodGet, "/", "text/html")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	decodeJSON(t, rec)
}

func TestHandler_Routing(t *testing.T) {
	h := NewHandler([]Check{okCheck("a")}, WithAggregator(testAggregator()))

	if rec := serve(t, h, http.MethodPost, "/", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST / = %d, want 405", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/other", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /other = %d, want 404", rec.Code)
	}
	if rec := serve(t, h, http.MethodHead, "/", ""); rec.Code != http.StatusOK {
		t.Errorf("HEAD / = %d, want 200", rec.Code)
	}
}

func TestHandler_RateLimited(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 0.5, Burst: 1})
	h := NewHandler([]Check{okCheck("a")}, WithAggregator(testAggregator()), WithRateLimiter(rl))

	if rec := serve(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", rec.Code)
	}
	rec := serve(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if rec.Header().Get(ReportIDHeader) != "" {
		t.Error("rejected request should not carry a report id")
	}
}

func TestHandler_RateLimitWait(t *testing.T) {
	tests := []struct {
		name    string
		config  resilience.RateLimiterConfig
		want    int
		minWait time.Duration
	}{
		{
			name:    "token arrives within max wait",
			config:  resilience.RateLimiterConfig{Rate: 20, Burst: 1, WaitOnLimit: true, MaxWait: time.Second},
			want:    http.StatusOK,
			minWait: 30 * time.Millisecond,
		},
		{
			name:   "token beyond max wait",
			config: resilience.RateLimiterConfig{Rate: 0.001, Burst: 1, WaitOnLimit: true, MaxWait: 20 * time.Millisecond},
			want:   http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := resilience.NewRateLimiter(tt.config)
			h := NewHandler([]Check{okCheck("a")}, WithAggregator(testAggregator()), WithRateLimiter(rl))

			if rec := serve(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
				t.Fatalf("first request = %d, want 200", rec.Code)
			}

			start := time.Now()
			rec := serve(t, h, http.MethodGet, "/", "")
			elapsed := time.Since(start)

			if rec.Code != tt.want {
				t.Errorf("second request = %d, want %d", rec.Code, tt.want)
			}
			if elapsed < tt.minWait {
				t.Errorf("second request took %v, want at least %v", elapsed, tt.minWait)
			}
		})
	}
}

func TestHandler_RateLimitWaitClientGone(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 1, Burst: 1, WaitOnLimit: true, MaxWait: 5 * time.Second})
	ran := 0
	check := Check{Name: "a", Fn: func(context.Context, *State) (string, error) {
		ran++
		return "", nil
	}}
	h := NewHandler([]Check{check}, WithAggregator(testAggregator()), WithRateLimiter(rl))

	serve(t, h, http.MethodGet, "/", "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ran != 1 {
		t.Errorf("check ran %d times, want 1", ran)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("abandoned request wrote %q", rec.Body.String())
	}
}

func TestReportHandler_FollowsRegistry(t *testing.T) {
	agg := testAggregator()
	h := ReportHandler(agg)

	if rec := serve(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
		t.Errorf("empty registry = %d, want 200", rec.Code)
	}

	agg.Register(statusCheck("db", StatusError))
	rec := serve(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("after Register = %d, want 503", rec.Code)
	}
	if doc := decodeJSON(t, rec); len(doc.Checks) != 1 || doc.Checks[0].Name != "db" {
		t.Errorf("checks = %+v, want [db]", doc.Checks)
	}
}

func TestMount(t *testing.T) {
	mux := http.NewServeMux()
	Mount(mux, "/health/", NewHandler([]Check{okCheck("a")}, WithAggregator(testAggregator())))

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/health", "/health/"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := client.Get(srv.URL + "/health/extra")
	if err != nil {
		t.Fatalf("GET /health/extra: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /health/extra = %d, want 404", resp.StatusCode)
	}
}

func TestHTTPStatus(t *testing.T) {
	if HTTPStatus(StatusError) != StatusErrorCode {
		t.Errorf("HTTPStatus(ERROR) = %d, want %d", HTTPStatus(StatusError), StatusErrorCode)
	}
	if HTTPStatus(StatusWarning) != http.StatusOK {
		t.Errorf("HTTPStatus(WARNING) = %d, want 200", HTTPStatus(StatusWarning))
	}
}

package health

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/munnerz/goautoneg"

	"github.com/jonwraymond/healthreport/observe"
	"github.com/jonwraymond/healthreport/resilience"
)

// StatusErrorCode is the HTTP status returned when the report is ERROR.
const StatusErrorCode = http.StatusServiceUnavailable

// TimestampFormat renders report timestamps as ISO-8601 UTC with milliseconds.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// ReportIDHeader carries the per-request report identifier.
const ReportIDHeader = "X-Health-Report-Id"

const (
	contentTypeJSON    = "application/json"
	contentTypeXML     = "application/xml"
	contentTypeTextXML = "text/xml"
)

var offers = []string{contentTypeJSON, contentTypeXML, contentTypeTextXML}

// ReportDocument is the wire form of a Report, shared by the JSON and XML
// renderings. The XML root element is <status>.
type ReportDocument struct {
	XMLName            xml.Name        `json:"-" xml:"status"`
	ApplicationName    string          `json:"applicationname" xml:"applicationname"`
	ApplicationVersion string          `json:"applicationversion" xml:"applicationversion"`
	ApplicationStatus  string          `json:"applicationstatus" xml:"applicationstatus"`
	ServerName         string          `json:"servername" xml:"servername"`
	Uptime             float64         `json:"uptime" xml:"uptime"`
	Timestamp          string          `json:"timestamp" xml:"timestamp"`
	Checks             []CheckDocument `json:"check" xml:"check"`
}

// CheckDocument is the wire form of a Result.
type CheckDocument struct {
	Name         string  `json:"name" xml:"name"`
	Status       string  `json:"status" xml:"status"`
	Message      string  `json:"message" xml:"message"`
	ResponseInMs float64 `json:"responseinms" xml:"responseinms"`
}

// JSONEnvelope wraps the JSON body in a top-level "status" object.
type JSONEnvelope struct {
	Status ReportDocument `json:"status"`
}

// NewReportDocument converts a report to its wire form.
func NewReportDocument(r Report) ReportDocument {
	doc := ReportDocument{
		ApplicationName:    r.ApplicationName,
		ApplicationVersion: r.ApplicationVersion,
		ApplicationStatus:  r.ApplicationStatus.String(),
		ServerName:         r.ServerName,
		Uptime:             r.UptimeSeconds(),
		Timestamp:          r.Timestamp.UTC().Format(TimestampFormat),
		Checks:             make([]CheckDocument, 0, len(r.Checks)),
	}
	for _, c := range r.Checks {
		doc.Checks = append(doc.Checks, CheckDocument{
			Name:         c.Name,
			Status:       c.Status.String(),
			Message:      c.Message,
			ResponseInMs: c.ResponseTimeMs(),
		})
	}
	return doc
}

// HTTPStatus maps an overall status to the response code.
func HTTPStatus(s Status) int {
	if s == StatusError {
		return StatusErrorCode
	}
	return http.StatusOK
}

// HandlerOption configures a report handler.
type HandlerOption func(*reportHandler)

// WithRateLimiter limits report requests before any check runs. Requests
// over the limit get 429 with Retry-After. With WaitOnLimit set, a request
// first waits up to MaxWait for a token.
func WithRateLimiter(rl *resilience.RateLimiter) HandlerOption {
	return func(h *reportHandler) {
		h.limiter = rl
	}
}

// WithLogger logs each served report.
func WithLogger(l observe.Logger) HandlerOption {
	return func(h *reportHandler) {
		h.logger = l
	}
}

// WithAggregator sets the aggregator used by NewHandler.
func WithAggregator(agg *Aggregator) HandlerOption {
	return func(h *reportHandler) {
		h.agg = agg
	}
}

type reportHandler struct {
	agg     *Aggregator
	report  func(ctx context.Context) Report
	limiter *resilience.RateLimiter
	logger  observe.Logger
}

func newReportHandler(opts []HandlerOption) *reportHandler {
	h := &reportHandler{logger: observe.NoopLogger()}
	for _, opt := range opts {
		opt(h)
	}
	if h.agg == nil {
		h.agg = NewAggregator()
	}
	if h.logger == nil {
		h.logger = observe.NoopLogger()
	}
	return h
}

// NewHandler serves a report over the given checks on GET /.
func NewHandler(checks []Check, opts ...HandlerOption) http.Handler {
	h := newReportHandler(opts)
	fixed := make([]Check, len(checks))
	copy(fixed, checks)
	h.report = func(ctx context.Context) Report {
		return h.agg.GetStatus(ctx, fixed)
	}
	return h
}

// ReportHandler serves a report over the checks registered on agg, so
// Register and Replace take effect on the next request.
func ReportHandler(agg *Aggregator, opts ...HandlerOption) http.Handler {
	h := newReportHandler(append(opts, WithAggregator(agg)))
	h.report = h.agg.Report
	return h
}

// ServeHTTP serves exactly one route, GET /, relative to wherever the
// handler is mounted.
func (h *reportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if h.limiter == nil {
		h.serveReport(w, r)
		return
	}

	err := h.limiter.Execute(r.Context(), func(context.Context) error {
		h.serveReport(w, r)
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, resilience.ErrRateLimitExceeded):
		h.rejectLimited(w, r)
	default:
		// The client went away while waiting for a token.
		h.logger.Debug(r.Context(), "health report abandoned", observe.F("error", err.Error()))
	}
}

func (h *reportHandler) rejectLimited(w http.ResponseWriter, r *http.Request) {
	cfg := h.limiter.Config()
	retryAfter := max(int(math.Ceil(1/cfg.Rate)), 1)

	h.logger.Warn(r.Context(), "health report rate limited",
		observe.F("tokens", h.limiter.Tokens()),
		observe.F("retry_after_s", retryAfter),
	)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}

func (h *reportHandler) serveReport(w http.ResponseWriter, r *http.Request) {
	reportID := uuid.NewString()
	report := h.report(r.Context())
	code := HTTPStatus(report.ApplicationStatus)
	doc := NewReportDocument(report)

	h.logger.Debug(r.Context(), "serving health report",
		observe.F("report_id", reportID),
		observe.F("status", doc.ApplicationStatus),
		observe.F("http_status", code),
	)

	w.Header().Set(ReportIDHeader, reportID)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Add("Vary", "Accept")

	switch ct := negotiate(r.Header.Get("Accept")); ct {
	case contentTypeXML, contentTypeTextXML:
		writeXML(w, ct, code, doc)
	default:
		writeJSON(w, code, doc)
	}
}

// negotiate picks the response type for an Accept header. Anything that
// does not ask for XML gets JSON.
func negotiate(accept string) string {
	if strings.TrimSpace(accept) == "" {
		return contentTypeJSON
	}
	if ct := goautoneg.Negotiate(accept, offers); ct != "" {
		return ct
	}
	return contentTypeJSON
}

func writeJSON(w http.ResponseWriter, code int, doc ReportDocument) {
	w.Header().Set("Content-Type", contentTypeJSON+"; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(JSONEnvelope{Status: doc})
}

func writeXML(w http.ResponseWriter, contentType string, code int, doc ReportDocument) {
	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(doc)
}

// LivenessHandler returns an HTTP handler for liveness probes.
// It runs no checks.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// Mount registers h on mux under prefix, stripping the prefix so the
// handler sees its own root.
func Mount(mux *http.ServeMux, prefix string, h http.Handler) {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		mux.Handle("/", h)
		return
	}
	stripped := http.StripPrefix(prefix, h)
	mux.Handle(prefix, stripped)
	mux.Handle(prefix+"/", stripped)
}

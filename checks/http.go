package checks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jonwraymond/healthreport/health"
	"github.com/jonwraymond/healthreport/resilience"
)

// maxDrain bounds how much of a response body is read before closing.
const maxDrain = 64 << 10

// HTTPConfig configures an HTTP probe.
type HTTPConfig struct {
	Name        string
	Description string

	// URL is the endpoint to request.
	URL string

	// Method defaults to GET.
	Method string

	// Headers are added to every request.
	Headers map[string]string

	// ExpectStatusMin and ExpectStatusMax bound the accepted response codes.
	// Default: 200 to 399
	ExpectStatusMin int
	ExpectStatusMax int

	Timeout     time.Duration
	WarnOnError bool

	// Retry retries failed requests inside the check timeout.
	// Nil means a single attempt.
	Retry *resilience.RetryConfig

	// Client overrides the HTTP client. The default client traces requests
	// with otelhttp and does not follow redirects.
	Client *http.Client
}

var defaultClient = &http.Client{
	Transport: otelhttp.NewTransport(http.DefaultTransport),
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// HTTP returns a check that requests cfg.URL and passes when the response
// status is in the expected range.
func HTTP(cfg HTTPConfig) health.Check {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.ExpectStatusMin == 0 {
		cfg.ExpectStatusMin = http.StatusOK
	}
	if cfg.ExpectStatusMax == 0 {
		cfg.ExpectStatusMax = 399
	}
	if cfg.Client == nil {
		cfg.Client = defaultClient
	}

	var retry *resilience.Retry
	if cfg.Retry != nil {
		rc := *cfg.Retry
		if rc.RetryIf == nil {
			rc.RetryIf = retryable
		}
		retry = resilience.NewRetry(rc)
	}

	return health.Check{
		Name:        cfg.Name,
		Description: cfg.Description,
		Timeout:     cfg.Timeout,
		WarnOnError: cfg.WarnOnError,
		Fn: func(ctx context.Context, _ *health.State) (string, error) {
			if cfg.URL == "" {
				return "", fmt.Errorf("%w: url", ErrMissingTarget)
			}

			var code int
			probe := func(ctx context.Context) error {
				var err error
				code, err = doRequest(ctx, cfg)
				return err
			}

			var err error
			if retry != nil {
				err = retry.Execute(ctx, probe)
			} else {
				err = probe(ctx)
			}
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s %s returned %d", cfg.Method, cfg.URL, code), nil
		},
	}
}

func doRequest(ctx context.Context, cfg HTTPConfig) (int, error) {
	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode < cfg.ExpectStatusMin || resp.StatusCode > cfg.ExpectStatusMax {
		return resp.StatusCode, fmt.Errorf("%w: %d (want %d-%d)",
			ErrUnexpectedStatus, resp.StatusCode, cfg.ExpectStatusMin, cfg.ExpectStatusMax)
	}
	return resp.StatusCode, nil
}

// retryable skips retries once the check's own deadline is gone.
func retryable(err error) bool {
	return err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}

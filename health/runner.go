package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/healthreport/observe"
)

// Option configures a Runner or an Aggregator.
type Option func(*settings)

type settings struct {
	defaultTimeout time.Duration
	middleware     *observe.Middleware
	environment    EnvironmentProvider
	now            func() time.Time
}

func newSettings(opts []Option) settings {
	s := settings{
		defaultTimeout: DefaultTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.defaultTimeout <= 0 {
		s.defaultTimeout = DefaultTimeout
	}
	if s.middleware == nil {
		s.middleware = observe.NoopMiddleware()
	}
	if s.environment == nil {
		s.environment = ProcessEnvironment("", "")
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// WithDefaultTimeout sets the timeout for checks that do not set their own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.defaultTimeout = d
	}
}

// WithMiddleware instruments check and report execution.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(s *settings) {
		s.middleware = mw
	}
}

// WithEnvironment sets the source of report metadata.
func WithEnvironment(p EnvironmentProvider) Option {
	return func(s *settings) {
		s.environment = p
	}
}

// WithClock sets the wall clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// Runner executes single checks. The zero value is not usable; use NewRunner.
type Runner struct {
	defaultTimeout time.Duration
	mw             *observe.Middleware
}

// NewRunner creates a new check runner.
func NewRunner(opts ...Option) *Runner {
	s := newSettings(opts)
	return newRunner(s)
}

func newRunner(s settings) *Runner {
	return &Runner{
		defaultTimeout: s.defaultTimeout,
		mw:             s.middleware,
	}
}

func (r *Runner) timeoutFor(check Check) time.Duration {
	if check.Timeout > 0 {
		return check.Timeout
	}
	return r.defaultTimeout
}

// Run executes check to completion or timeout and always returns a Result.
// Errors, panics and timeouts inside the check are converted into a
// WARNING or ERROR result; Run itself never fails.
//
// Cancelling ctx does not cut the check short; only its timeout does.
func (r *Runner) Run(ctx context.Context, check Check) Result {
	meta := observe.CheckMeta{
		Name:        check.Name,
		Description: check.Description,
		Timeout:     r.timeoutFor(check),
	}

	var res Result
	exec := r.mw.Wrap(func(ctx context.Context, meta observe.CheckMeta) observe.CheckOutcome {
		var err error
		res, err = r.execute(ctx, check, meta.Timeout)
		return observe.CheckOutcome{Status: res.Status.String(), Err: err}
	})
	exec(ctx, meta)
	return res
}

type outcome struct {
	detail string
	err    error
}

// execute races the check function against its timeout. The returned error
// is the failure cause, for instrumentation only.
func (r *Runner) execute(ctx context.Context, check Check, timeout time.Duration) (Result, error) {
	state := newState(check.WarnOnError)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	// Buffered so an abandoned check can still finish and exit.
	done := make(chan outcome, 1)

	start := time.Now()
	go invoke(runCtx, check.Fn, state, done)

	var out outcome
	select {
	case out = <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && runCtx.Err() != nil {
			out.err = &TimeoutError{Timeout: timeout}
		}
	case <-runCtx.Done():
		out.err = &TimeoutError{Timeout: timeout}
	}
	elapsed := time.Since(start)

	return buildResult(check, state.snapshot(), out, elapsed), out.err
}

func invoke(ctx context.Context, fn CheckFunc, state *State, done chan<- outcome) {
	defer func() {
		if p := recover(); p != nil {
			done <- outcome{err: &PanicError{Value: p}}
		}
	}()

	if fn == nil {
		done <- outcome{err: ErrNilCheckFunc}
		return
	}
	detail, err := fn(ctx, state)
	done <- outcome{detail: detail, err: err}
}

func buildResult(check Check, snap stateSnapshot, out outcome, elapsed time.Duration) Result {
	res := Result{
		Name:         check.Name,
		ResponseTime: elapsed,
	}

	if out.err != nil {
		res.Status = StatusError
		if snap.warnOnError {
			res.Status = StatusWarning
		}
		res.Message = fmt.Sprintf("%s | ERROR was: %s", check.prefix(), out.err.Error())
		return res
	}

	res.Status = StatusOK
	if snap.statusSet {
		res.Status = snap.status
		if !res.Status.valid() {
			res.Status = StatusError
		}
	}

	detail := out.detail
	if detail == "" {
		detail = "OK"
	}
	res.Message = fmt.Sprintf("%s: %s", check.prefix(), detail)
	if snap.messageSet {
		res.Message = snap.message
	}
	return res
}

package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/healthreport/observe"
)

// Report is the aggregated health of the application.
type Report struct {
	ApplicationName    string
	ApplicationVersion string
	ApplicationStatus  Status
	ServerName         string
	Uptime             time.Duration

	// Timestamp is taken after every check has settled.
	Timestamp time.Time

	// Checks holds one result per check, in input order.
	Checks []Result
}

// UptimeSeconds returns the process uptime in fractional seconds.
func (r Report) UptimeSeconds() float64 {
	return r.Uptime.Seconds()
}

// Aggregator runs sets of checks concurrently and assembles reports.
// It also keeps an optional registry of checks for Report.
type Aggregator struct {
	runner *Runner
	env    EnvironmentProvider
	now    func() time.Time
	mw     *observe.Middleware

	mu     sync.RWMutex
	checks []Check // registration order
}

// NewAggregator creates a new health aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	s := newSettings(opts)
	return &Aggregator{
		runner: newRunner(s),
		env:    s.environment,
		now:    s.now,
		mw:     s.middleware,
	}
}

// Register adds a check, replacing any registered check with the same name.
func (a *Aggregator) Register(check Check) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.checks {
		if a.checks[i].Name == check.Name {
			a.checks[i] = check
			return
		}
	}
	a.checks = append(a.checks, check)
}

// Unregister removes the named check. It reports whether the check existed.
func (a *Aggregator) Unregister(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.checks {
		if a.checks[i].Name == name {
			a.checks = append(a.checks[:i], a.checks[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the whole registry atomically.
func (a *Aggregator) Replace(checks []Check) {
	next := make([]Check, len(checks))
	copy(next, checks)

	a.mu.Lock()
	a.checks = next
	a.mu.Unlock()
}

// Checks returns a copy of the registered checks in registration order.
func (a *Aggregator) Checks() []Check {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Check, len(a.checks))
	copy(out, a.checks)
	return out
}

// Check runs a single registered check by name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	for _, c := range a.Checks() {
		if c.Name == name {
			return a.runner.Run(ctx, c), nil
		}
	}
	return Result{}, fmt.Errorf("%w: %q", ErrCheckNotFound, name)
}

// Report runs every registered check and assembles a report.
func (a *Aggregator) Report(ctx context.Context) Report {
	return a.GetStatus(ctx, a.Checks())
}

// GetStatus runs checks concurrently and assembles a report. Every check
// yields exactly one result, in input order, whatever order they finish in.
// GetStatus does not fail: check failures only show up as statuses.
func (a *Aggregator) GetStatus(ctx context.Context, checks []Check) Report {
	var report Report
	run := a.mw.WrapReport(func(ctx context.Context) (string, int) {
		results := a.runAll(ctx, checks)
		report = a.assemble(ctx, results)
		return report.ApplicationStatus.String(), len(results)
	})
	run(ctx)
	return report
}

func (a *Aggregator) runAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, len(checks))
	settled := make([]bool, len(checks))

	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = a.runner.Run(ctx, check)
			settled[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i, ok := range settled {
		if !ok {
			panic(fmt.Errorf("%w: check %q at index %d", ErrNoResult, checks[i].Name, i))
		}
	}
	return results
}

func (a *Aggregator) assemble(ctx context.Context, results []Result) Report {
	env := a.env.Environment(ctx)
	return Report{
		ApplicationName:    env.ApplicationName,
		ApplicationVersion: env.ApplicationVersion,
		ApplicationStatus:  Reduce(results),
		ServerName:         env.HostName,
		Uptime:             env.Uptime,
		Timestamp:          a.now().UTC(),
		Checks:             results,
	}
}

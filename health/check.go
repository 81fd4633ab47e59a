package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout applies to checks that do not set their own.
const DefaultTimeout = 5 * time.Second

// Status represents the outcome of a check or of a whole report.
// Higher values are more severe.
type Status int

const (
	// StatusOK indicates the check passed.
	StatusOK Status = iota
	// StatusWarning indicates the check is degraded but should not take the
	// instance out of rotation.
	StatusWarning
	// StatusError indicates the check failed.
	StatusError
)

// String returns the wire representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s Status) valid() bool {
	return s >= StatusOK && s <= StatusError
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "OK":
		*s = StatusOK
	case "WARNING":
		*s = StatusWarning
	case "ERROR":
		*s = StatusError
	default:
		return fmt.Errorf("health: unknown status %q", text)
	}
	return nil
}

// CheckFunc probes one dependency.
//
// Returning a nil error marks the check as passed; detail is appended to the
// default success message ("OK" when empty). Returning an error, panicking
// or overrunning the timeout marks it as failed. The function may also
// record its own status and message through s; those take priority over
// the generated success defaults.
//
// ctx is cancelled when the check's timeout elapses.
type CheckFunc func(ctx context.Context, s *State) (detail string, err error)

// Check describes one probe. A Check is a template: it is passed by value and
// every run gets its own State, so the same Check may be shared by any number
// of concurrent reports.
type Check struct {
	// Name identifies the check in the report.
	Name string

	// Description is a human-readable label used as the message prefix.
	// Optional; Name is used when empty.
	Description string

	// Fn performs the probe.
	Fn CheckFunc

	// Timeout bounds the check.
	// Default: DefaultTimeout
	Timeout time.Duration

	// WarnOnError downgrades a failure from ERROR to WARNING.
	WarnOnError bool
}

// prefix is the label leading every generated message.
func (c Check) prefix() string {
	if c.Description != "" {
		return c.Description
	}
	return c.Name
}

// State is the mutable result of a single check run. It is safe for
// concurrent use: a check that overruns its timeout may still write to it
// after the runner has moved on.
type State struct {
	mu          sync.Mutex
	status      Status
	statusSet   bool
	message     string
	messageSet  bool
	warnOnError bool
}

func newState(warnOnError bool) *State {
	return &State{warnOnError: warnOnError}
}

// SetStatus overrides the status reported on success.
func (s *State) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.statusSet = true
}

// SetMessage overrides the message reported on success.
func (s *State) SetMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = msg
	s.messageSet = true
}

// Warn reports a degraded but passing check.
func (s *State) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusWarning
	s.statusSet = true
	s.message = msg
	s.messageSet = true
}

// SetWarnOnError changes how a later failure of this run is classified.
func (s *State) SetWarnOnError(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnOnError = v
}

// WarnOnError reports whether a failure of this run is downgraded to WARNING.
func (s *State) WarnOnError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnOnError
}

type stateSnapshot struct {
	status      Status
	statusSet   bool
	message     string
	messageSet  bool
	warnOnError bool
}

func (s *State) snapshot() stateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stateSnapshot{
		status:      s.status,
		statusSet:   s.statusSet,
		message:     s.message,
		messageSet:  s.messageSet,
		warnOnError: s.warnOnError,
	}
}

// Result is the outcome of one check run.
type Result struct {
	Name         string
	Status       Status
	Message      string
	ResponseTime time.Duration
}

// ResponseTimeMs returns the response time in fractional milliseconds.
func (r Result) ResponseTimeMs() float64 {
	return float64(r.ResponseTime) / float64(time.Millisecond)
}

// Reduce computes the overall status of a set of results: ERROR if any
// result is ERROR, else WARNING if any is WARNING, else OK. An empty set is OK.
func Reduce(results []Result) Status {
	overall := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusError:
			return StatusError
		case StatusWarning:
			overall = StatusWarning
		}
	}
	return overall
}

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProbeStatus encodes the outcome of a readiness probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// ProbeResult is the outcome of one dependency check.
type ProbeResult struct {
	Component  string      `json:"component"`
	Status     ProbeStatus `json:"status"`
	Details    string      `json:"details,omitempty"`
	DurationMS int64       `json:"durationMs"`
}

// Report aggregates probe results. Status is the worst status of any check.
type Report struct {
	Status ProbeStatus   `json:"status"`
	Checks []ProbeResult `json:"checks"`
}

// Ready reports whether the service can take traffic. Degraded dependencies
// (an optional cache, a stale cleanup job) do not make it unready.
func (r Report) Ready() bool {
	return r.Status != StatusDown
}

// Check probes a single dependency.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck names fn. A nil fn always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// Readiness runs a fixed set of checks, each bounded by the same timeout.
type Readiness struct {
	checks  []Check
	timeout time.Duration
}

// NewReadiness builds an evaluator. A non-positive timeout defaults to 2s.
func NewReadiness(timeout time.Duration, checks ...Check) *Readiness {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	r := &Readiness{timeout: timeout}
	for _, check := range checks {
		r.Register(check)
	}
	return r
}

// Register appends a check; unnamed checks are ignored.
func (r *Readiness) Register(check Check) {
	if check.Name == "" {
		return
	}
	r.checks = append(r.checks, check)
}

// Evaluate runs every check in registration order.
func (r *Readiness) Evaluate(ctx context.Context) Report {
	report := Report{Status: StatusUp, Checks: make([]ProbeResult, 0, len(r.checks))}
	for _, check := range r.checks {
		result := r.run(ctx, check)
		report.Checks = append(report.Checks, result)
		report.Status = Worst(report.Status, result.Status)
	}
	return report
}

func (r *Readiness) run(ctx context.Context, check Check) (result ProbeResult) {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		if result.Status == "" {
			result.Status = StatusDown
		}
		result.Component = check.Name
		result.DurationMS = time.Since(start).Milliseconds()
	}()

	return check.Run(probeCtx)
}

// Worst orders statuses down > degraded > up.
func Worst(a, b ProbeStatus) ProbeStatus {
	switch {
	case a == StatusDown || b == StatusDown:
		return StatusDown
	case a == StatusDegraded || b == StatusDegraded:
		return StatusDegraded
	default:
		return StatusUp
	}
}

// ResultFromError maps a probe error to a result. Timeouts count as degraded.
func ResultFromError(err error) ProbeResult {
	if err == nil {
		return ProbeResult{Status: StatusUp}
	}
	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return ProbeResult{Status: status, Details: err.Error()}
}

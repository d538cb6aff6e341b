// Package health runs one-shot dependency checks and reports which of them
// failed.
//
// Every check gets its own timeout and all checks run concurrently, so one
// hanging dependency does not hide the state of the others.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

// CheckFunc is a health check function. It should return nil if the checked
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Result is the outcome of a single check.
type Result struct {
	Name string
	Err  error
	Took time.Duration
}

// Healthy reports whether the check passed.
func (r Result) Healthy() bool { return r.Err == nil }

// Report holds the results of a Run, ordered by check name.
type Report []Result

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	for _, res := range r {
		if !res.Healthy() {
			return false
		}
	}
	return true
}

// Failures maps the name of every failed check to its error message.
func (r Report) Failures() map[string]string {
	failures := make(map[string]string)
	for _, res := range r {
		if !res.Healthy() {
			failures[res.Name] = res.Err.Error()
		}
	}
	return failures
}

// Checker holds named checks.
type Checker struct {
	mu     sync.Mutex
	checks []check
}

// New creates an empty Checker.
func New() *Checker {
	return &Checker{}
}

// Add registers a check. A non-positive timeout means the check is bounded
// only by the context passed to Run.
func (c *Checker) Add(name string, timeout time.Duration, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check{name: name, timeout: timeout, fn: fn})
}

// Run executes all registered checks concurrently and waits for them.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.Lock()
	checks := append([]check(nil), c.checks...)
	c.mu.Unlock()

	report := make(Report, len(checks))
	var g errgroup.Group
	for i, chk := range checks {
		g.Go(func() error {
			report[i] = chk.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report, func(i, j int) bool { return report[i].Name < report[j].Name })
	return report
}

func (c check) run(ctx context.Context) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = errors.Wrap(ctx.Err(), "check did not finish in time")
	}
	return Result{Name: c.name, Err: err, Took: time.Since(start)}
}

// Package health runs the readiness probes of a service. Each registered
// check is run concurrently under its own deadline and the worst result
// decides whether the instance stays in the load balancer.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// rank orders statuses from best to worst.
func (s Status) rank() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	}
	return 2
}

type Check func(ctx context.Context) ComponentHealth

// ComponentHealth is one probe result. Details carries check-specific
// figures such as the served index generation.
type ComponentHealth struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency string         `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type entry struct {
	check    Check
	optional bool
}

type Checker struct {
	version      string
	checkTimeout time.Duration
	started      time.Time
	logger       *slog.Logger

	mu     sync.RWMutex
	checks map[string]entry
}

type Option func(*Checker)

// WithVersion stamps reports with the build version.
func WithVersion(v string) Option {
	return func(c *Checker) { c.version = v }
}

// WithCheckTimeout bounds each probe. Default 3s.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.checkTimeout = d
		}
	}
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		checkTimeout: 3 * time.Second,
		started:      time.Now(),
		checks:       make(map[string]entry),
		logger:       slog.Default().With("component", "health"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a check whose failure takes the instance out of rotation.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	c.checks[name] = entry{check: check}
	c.mu.Unlock()
}

// RegisterOptional adds a check whose failure only degrades the instance,
// for dependencies such as the recommendation cache that requests can
// succeed without.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.mu.Lock()
	c.checks[name] = entry{check: check, optional: true}
	c.mu.Unlock()
}

// PingCheck turns a Ping method into a Check.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	entries := make(map[string]entry, len(c.checks))
	for name, e := range c.checks {
		entries[name] = e
	}
	c.mu.RUnlock()

	results := make(map[string]ComponentHealth, len(entries))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.probe(ctx, e)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	report := Report{
		Status:     StatusUp,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Components: results,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := results[name]
		if res.Status.rank() > report.Status.rank() {
			report.Status = res.Status
		}
		if res.Status != StatusUp {
			c.logger.Warn("health check not up", "check", name, "status", res.Status, "message", res.Message)
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, e entry) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()
	start := time.Now()
	res := e.check(ctx)
	if res.Status == "" {
		res.Status = StatusUp
	}
	if res.Status == StatusDown && e.optional {
		res.Status = StatusDegraded
	}
	res.Latency = time.Since(start).Round(time.Microsecond).String()
	return res
}

// LiveHandler answers liveness probes without running any checks.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "alive",
			"version": c.version,
			"uptime":  time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler runs every check and answers 503 only when a required
// dependency is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package loadtest drives synthetic traffic against a running server
// and reports latency distributions, status histograms and achieved
// throughput. Breached thresholds mark the run failed.
package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// Options controls one run.
type Options struct {
	BaseURL  string
	Scenario Scenario

	// Users is how many distinct principals drive traffic.
	Users int
	// Requests is the total request budget. Zero with a Duration set
	// means "as many as fit".
	Requests int
	// Concurrency bounds in-flight requests.
	Concurrency int
	// Duration stops the run after the given wall time when set.
	Duration time.Duration

	// Test-user credentials: usernames are <UserPrefix>-NNN, all
	// sharing Password. The users command creates them.
	UserPrefix string
	Password   string

	// Admin credentials for the audit scenario.
	AdminUsername string
	AdminPassword string

	// Thresholds; zero values disable the check.
	MaxErrorRate float64
	MaxP95       time.Duration

	// HTTPClient defaults to a 30s-timeout client.
	HTTPClient *http.Client
}

func (o *Options) normalize() error {
	if o.BaseURL == "" {
		return errors.New("base URL is required")
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Scenario == "" {
		o.Scenario = ScenarioMixed
	}
	if o.Users <= 0 {
		o.Users = 10
	}
	if o.Concurrency <= 0 {
		o.Concurrency = o.Users
	}
	if o.Requests <= 0 && o.Duration <= 0 {
		o.Requests = o.Users * 10
	}
	if o.UserPrefix == "" {
		o.UserPrefix = "loadtest"
	}
	return nil
}

func (o *Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Report is the outcome of one run.
type Report struct {
	Scenario     Scenario      `json:"scenario"`
	Users        int           `json:"users"`
	Concurrency  int           `json:"concurrency"`
	Requests     int           `json:"requests"`
	Errors       int           `json:"errors"`
	Duration     time.Duration `json:"duration_ns"`
	RPS          float64       `json:"rps"`
	Latency      LatencyStats  `json:"latency"`
	StatusCounts map[int]int   `json:"status_counts"`
	Breached     []string      `json:"breached,omitempty"`
}

// Failed reports whether any threshold was breached.
func (r *Report) Failed() bool { return len(r.Breached) > 0 }

// sample is one request's outcome.
type sample struct {
	latency time.Duration
	status  int
	err     error
}

// Run executes the configured scenario against the target.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	requester, err := buildScenario(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("preparing scenario %s: %w", opts.Scenario, err)
	}

	var (
		mu      sync.Mutex
		samples []sample
		issued  int
	)

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	// next hands out request sequence numbers until the budget or the
	// clock runs out.
	next := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if opts.Requests > 0 && issued >= opts.Requests {
			return 0, false
		}
		if runCtx.Err() != nil {
			return 0, false
		}
		n := issued
		issued++
		return n, true
	}

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				seq, ok := next()
				if !ok {
					return
				}
				t0 := time.Now()
				status, err := requester(runCtx, seq)
				s := sample{latency: time.Since(t0), status: status, err: err}
				if errors.Is(err, context.DeadlineExceeded) && runCtx.Err() != nil {
					// The run clock expired mid-request; not a failure.
					return
				}
				mu.Lock()
				samples = append(samples, s)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	report := &Report{
		Scenario:     opts.Scenario,
		Users:        opts.Users,
		Concurrency:  opts.Concurrency,
		Requests:     len(samples),
		Duration:     elapsed,
		StatusCounts: make(map[int]int),
	}

	latencies := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		latencies = append(latencies, s.latency)
		if s.err != nil {
			report.Errors++
			continue
		}
		report.StatusCounts[s.status]++
		if s.status >= http.StatusInternalServerError {
			report.Errors++
		}
	}
	report.Latency = computeStats(latencies)
	if elapsed > 0 {
		report.RPS = float64(len(samples)) / elapsed.Seconds()
	}

	report.checkThresholds(opts)
	return report, nil
}

func (r *Report) checkThresholds(opts Options) {
	if opts.MaxErrorRate > 0 && r.Requests > 0 {
		rate := float64(r.Errors) / float64(r.Requests)
		if rate > opts.MaxErrorRate {
			r.Breached = append(r.Breached,
				fmt.Sprintf("error rate %.2f%% above %.2f%%", rate*100, opts.MaxErrorRate*100))
		}
	}
	if opts.MaxP95 > 0 && r.Latency.P95 > opts.MaxP95 {
		r.Breached = append(r.Breached,
			fmt.Sprintf("p95 %s above %s", r.Latency.P95.Round(time.Millisecond), opts.MaxP95))
	}
}

// Table renders the report for the terminal.
func (r *Report) Table() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "scenario\t%s\n", r.Scenario)
	fmt.Fprintf(w, "requests\t%d (%d errors)\n", r.Requests, r.Errors)
	fmt.Fprintf(w, "duration\t%s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "throughput\t%.1f req/s\n", r.RPS)
	fmt.Fprintf(w, "latency min/mean/max\t%s / %s / %s\n",
		r.Latency.Min.Round(time.Millisecond),
		r.Latency.Mean.Round(time.Millisecond),
		r.Latency.Max.Round(time.Millisecond))
	fmt.Fprintf(w, "p50/p90/p95/p99\t%s / %s / %s / %s\n",
		r.Latency.P50.Round(time.Millisecond),
		r.Latency.P90.Round(time.Millisecond),
		r.Latency.P95.Round(time.Millisecond),
		r.Latency.P99.Round(time.Millisecond))

	codes := make([]int, 0, len(r.StatusCounts))
	for code := range r.StatusCounts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "status %d\t%d\n", code, r.StatusCounts[code])
	}
	for _, breach := range r.Breached {
		fmt.Fprintf(w, "BREACH\t%s\n", breach)
	}
	w.Flush()
	return b.String()
}

// JSON renders the report for --json.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gkchatty/gkchatty-local/internal/alerts"
	"github.com/gkchatty/gkchatty-local/internal/audit"
	"github.com/gkchatty/gkchatty-local/internal/findings"
)

// checkTimeout bounds one check; a hung dependency must not hang the run.
const checkTimeout = 30 * time.Second

// Runner executes checks and handles the fallout: findings, alerts,
// audit entries, persisted reports.
type Runner struct {
	env *Env

	// All optional.
	Findings *findings.Store
	Alerts   *alerts.Dispatcher
	Audit    *audit.Store
	// Actor names who triggered the run in audit entries.
	Actor string
}

// NewRunner creates a Runner over the given environment.
func NewRunner(env *Env) *Runner {
	return &Runner{env: env}
}

// Report is one diagnostic run.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Results   []Result      `json:"results"`
}

// Failed reports whether any check failed outright.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFail {
			return true
		}
	}
	return false
}

// Run executes the named checks concurrently. Every check runs to
// completion; the report collects all results.
func (r *Runner) Run(ctx context.Context, names []string) (*Report, error) {
	checks, err := ByName(names)
	if err != nil {
		return nil, err
	}

	report := &Report{StartedAt: time.Now().UTC()}
	results := make([]Result, len(checks))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()
			res := check.Run(cctx, r.env)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Results = results
	report.Duration = time.Since(report.StartedAt)

	r.file(ctx, report)
	r.record(ctx, report)
	return report, nil
}

// file turns warn and fail results into findings and notifies alert
// channels. Failures here never fail the run.
func (r *Runner) file(ctx context.Context, report *Report) {
	if r.Findings == nil {
		return
	}
	for _, res := range report.Results {
		var severity findings.Severity
		switch res.Status {
		case StatusFail:
			severity = findings.SeverityCritical
		case StatusWarn:
			severity = findings.SeverityWarning
		default:
			continue
		}

		f, err := r.Findings.File(ctx, findings.Finding{
			CheckName: res.Check,
			Severity:  severity,
			Title:     fmt.Sprintf("diagnostic check %s: %s", res.Check, res.Status),
			Detail:    strings.Join(res.Detail, "\n"),
			Source:    findings.SourceDiag,
		})
		if err != nil {
			continue
		}
		if r.Alerts != nil {
			r.Alerts.Notify(ctx, *f)
		}
	}
}

func (r *Runner) record(ctx context.Context, report *Report) {
	if r.Audit == nil {
		return
	}
	statuses := make([]string, 0, len(report.Results))
	for _, res := range report.Results {
		statuses = append(statuses, res.Check+"="+string(res.Status))
	}
	sort.Strings(statuses)
	audit.Record(ctx, r.Audit, audit.Entry{
		Action:   audit.ActionDiagnosticsRun,
		Username: r.Actor,
		Success:  !report.Failed(),
		Detail:   strings.Join(statuses, " "),
	})
}

// Table renders the report as an aligned text table.
func (r *Report) Table() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tLATENCY\tDETAIL")
	for _, res := range r.Results {
		detail := ""
		if len(res.Detail) > 0 {
			detail = res.Detail[0]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			res.Check, strings.ToUpper(string(res.Status)),
			res.Latency.Round(time.Millisecond), detail)
		if len(res.Detail) > 1 {
			for _, line := range res.Detail[1:] {
				fmt.Fprintf(w, "\t\t\t%s\n", line)
			}
		}
	}
	w.Flush()
	return b.String()
}

// Markdown renders the report for persistence and the dashboard.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Diagnostic report\n\n")
	fmt.Fprintf(&b, "Run at %s, took %s.\n\n",
		r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	fmt.Fprintln(&b, "| Check | Status | Latency |")
	fmt.Fprintln(&b, "|-------|--------|---------|")
	for _, res := range r.Results {
		fmt.Fprintf(&b, "| %s | %s | %s |\n",
			res.Check, strings.ToUpper(string(res.Status)), res.Latency.Round(time.Millisecond))
	}
	for _, res := range r.Results {
		if len(res.Detail) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", res.Check)
		for _, line := range res.Detail {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

// JSON renders the report for --json and the admin API.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Persist writes the markdown report under dir and returns its path.
func (r *Report) Persist(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}
	path := filepath.Join(dir, "diag-"+r.StartedAt.Format("20060102-150405")+".md")
	if err := os.WriteFile(path, []byte(r.Markdown()), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// LatestReport returns the newest persisted report's contents, or empty
// strings when none exist.
func LatestReport(dir string) (path, content string, err error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("reading reports directory: %w", err)
	}

	var latest string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "diag-") || !strings.HasSuffix(name, ".md") {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	if latest == "" {
		return "", "", nil
	}

	path = filepath.Join(dir, latest)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading report: %w", err)
	}
	return path, string(data), nil
}

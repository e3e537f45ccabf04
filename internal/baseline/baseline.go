// Package baseline runs CIS-style security configuration checks against the
// local host and computes an additive compliance score.
package baseline

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/runner"
)

const checkTimeout = 30 * time.Second

// Check is one baseline configuration check.
type Check struct {
	// ID is the unique identifier matching config baseline.skip entries.
	ID string
	// Title is the human-readable control name.
	Title string
	// Benchmark references the control section (CIS numbering where it exists).
	Benchmark string
	// Severity of a failed check.
	Severity report.Status
	// Points earned when the check passes.
	Points int
	// Command and Args are what to run.
	Command string
	Args    []string
	// Expect matches the command output of a compliant host.
	Expect *regexp.Regexp
	// ExpectAbsent inverts the match: compliant output does NOT match.
	ExpectAbsent bool
	// WorkstationOnly checks are skipped under the "server" profile.
	WorkstationOnly bool
}

// Outcome of one executed check.
type CheckResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Benchmark string `json:"benchmark,omitempty"`
	Passed    bool   `json:"passed"`
	Skipped   bool   `json:"skipped,omitempty"`
	Points    int    `json:"points"`
	Earned    int    `json:"earned"`
	Severity  string `json:"severity"`
	Evidence  string `json:"evidence,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Querier runs the check command; swapped out in tests.
type Querier func(ctx context.Context, name string, timeout time.Duration, command string, args ...string) runner.Result

// Tool is the security baseline checker.
type Tool struct {
	cfg    config.BaselineConfig
	goos   string
	run    Querier
	checks []Check
}

// New creates the baseline checker with the check table for the current OS.
func New(cfg config.BaselineConfig) *Tool {
	t := &Tool{cfg: cfg, goos: runtime.GOOS, run: runner.Run}
	switch t.goos {
	case "windows":
		t.checks = windowsChecks()
	default:
		t.checks = linuxChecks()
	}
	return t
}

func (t *Tool) Name() string  { return "baseline" }
func (t *Tool) Title() string { return "Security Baseline Report" }

// Evaluate runs every applicable check. Command failures mark the check as
// not passed with the error recorded; the run always continues.
func (t *Tool) Evaluate(ctx context.Context, log *logrus.Logger) []CheckResult {
	skip := make(map[string]bool, len(t.cfg.Skip))
	for _, id := range t.cfg.Skip {
		skip[id] = true
	}

	var results []CheckResult
	for _, c := range t.checks {
		cr := CheckResult{
			ID:        c.ID,
			Title:     c.Title,
			Benchmark: c.Benchmark,
			Points:    c.Points,
			Severity:  string(c.Severity),
		}
		if skip[c.ID] {
			cr.Skipped = true
			log.Debugf("check %s: skipped (config)", c.ID)
			results = append(results, cr)
			continue
		}
		if c.WorkstationOnly && t.cfg.Profile != "workstation" {
			cr.Skipped = true
			log.Debugf("check %s: skipped (profile)", c.ID)
			results = append(results, cr)
			continue
		}

		res := t.run(ctx, c.ID, checkTimeout, c.Command, c.Args...)
		if res.Err != nil && res.FailureKind != runner.FailureExit {
			// exit_error still carries usable output (grep exits 1 on no match);
			// everything else means the probe itself failed
			cr.Error = res.Err.Error()
			log.Warnf("check %s: %v", c.ID, res.Err)
			results = append(results, cr)
			continue
		}

		matched := c.Expect.Match(res.Stdout)
		cr.Passed = matched != c.ExpectAbsent
		if cr.Passed {
			cr.Earned = c.Points
		} else {
			cr.Evidence = truncate(res.Text(), 200)
		}
		log.Debugf("check %s: passed=%v", c.ID, cr.Passed)
		results = append(results, cr)
	}
	return results
}

// Score computes earned/possible as a percentage. Skipped and errored checks
// are excluded from the possible total.
func Score(results []CheckResult) float64 {
	possible, earned := 0, 0
	for _, r := range results {
		if r.Skipped || r.Error != "" {
			continue
		}
		possible += r.Points
		earned += r.Earned
	}
	if possible == 0 {
		return 0
	}
	return 100 * float64(earned) / float64(possible)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Collect implements pipeline.Tool.
func (t *Tool) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	if len(t.checks) == 0 {
		return nil, fmt.Errorf("no baseline checks available for platform %q", t.goos)
	}
	results := t.Evaluate(ctx, log)
	score := Score(results)
	log.Infof("baseline complete: %.0f%% (%d checks)", score, len(results))
	return t.outcome(results, score), nil
}

func (t *Tool) outcome(results []CheckResult, score float64) *pipeline.Outcome {
	table := report.Table{
		Title:  "Checks",
		Header: []string{"ID", "Control", "Benchmark", "Result", "Points", "Evidence"},
	}
	var findings []report.Finding
	var failures []report.Failure
	var csvRows [][]string

	for _, r := range results {
		var status report.Status
		var result string
		switch {
		case r.Skipped:
			status, result = report.StatusInfo, "skipped"
		case r.Error != "":
			status, result = report.StatusWarning, "error"
			failures = append(failures, report.Failure{Item: r.ID, Error: r.Error})
		case r.Passed:
			status, result = report.StatusOK, "pass"
		default:
			status, result = report.Status(r.Severity), "fail"
			findings = append(findings, report.Finding{
				Severity: status,
				Title:    fmt.Sprintf("%s (%s)", r.Title, r.Benchmark),
				Detail:   r.Evidence,
			})
		}
		table.Rows = append(table.Rows, report.Row{
			Status: status,
			Cells: []string{
				r.ID, r.Title, r.Benchmark, result,
				fmt.Sprintf("%d/%d", r.Earned, r.Points), r.Evidence,
			},
		})
		csvRows = append(csvRows, []string{
			r.ID, r.Title, r.Benchmark, result,
			fmt.Sprintf("%d", r.Earned), fmt.Sprintf("%d", r.Points), r.Severity, r.Evidence,
		})
	}

	tables := []report.Table{table}
	data := &report.Data{
		Findings: findings,
		Tables:   tables,
		Failures: failures,
	}
	data.Summary = report.Summarize("Compliance", score, tables)

	return &pipeline.Outcome{
		Report:    data,
		CSVHeader: []string{"id", "title", "benchmark", "result", "earned", "points", "severity", "evidence"},
		CSVRows:   csvRows,
		Export:    results,
	}
}

package baseline

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/runner"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func fixedOutput(outputs map[string]string) Querier {
	return func(ctx context.Context, name string, timeout time.Duration, command string, args ...string) runner.Result {
		if out, ok := outputs[name]; ok {
			return runner.Result{Name: name, Stdout: []byte(out), ExitCode: 0}
		}
		return runner.Result{
			Name: name, ExitCode: -1,
			FailureKind: runner.FailureNotFound,
			Err:         fmt.Errorf("probe unavailable"),
		}
	}
}

func testChecks() []Check {
	return []Check{
		{
			ID: "pass_check", Title: "present value", Severity: report.StatusCritical,
			Points: 10, Command: "probe", Expect: regexp.MustCompile(`enabled`),
		},
		{
			ID: "fail_check", Title: "missing value", Severity: report.StatusWarning,
			Points: 5, Command: "probe", Expect: regexp.MustCompile(`hardened`),
		},
		{
			ID: "absent_check", Title: "bad value absent", Severity: report.StatusCritical,
			Points: 10, Command: "probe",
			Expect: regexp.MustCompile(`telnet`), ExpectAbsent: true,
		},
		{
			ID: "ws_check", Title: "workstation only", Severity: report.StatusInfo,
			Points: 2, Command: "probe", WorkstationOnly: true,
			Expect: regexp.MustCompile(`x`),
		},
	}
}

func newTestTool(cfg config.BaselineConfig, outputs map[string]string) *Tool {
	t := &Tool{cfg: cfg, goos: "linux", run: fixedOutput(outputs), checks: testChecks()}
	return t
}

func TestEvaluate_PassFailAbsent(t *testing.T) {
	tool := newTestTool(config.BaselineConfig{Profile: "server"}, map[string]string{
		"pass_check":   "feature enabled",
		"fail_check":   "feature disabled",
		"absent_check": "no legacy services",
	})

	results := tool.Evaluate(context.Background(), quietLog())
	byID := make(map[string]CheckResult)
	for _, r := range results {
		byID[r.ID] = r
	}

	if !byID["pass_check"].Passed || byID["pass_check"].Earned != 10 {
		t.Errorf("pass_check = %+v", byID["pass_check"])
	}
	if byID["fail_check"].Passed {
		t.Errorf("fail_check should fail: %+v", byID["fail_check"])
	}
	if byID["fail_check"].Evidence == "" {
		t.Error("failed check should carry evidence")
	}
	if !byID["absent_check"].Passed {
		t.Errorf("absent_check should pass when pattern absent: %+v", byID["absent_check"])
	}
	if !byID["ws_check"].Skipped {
		t.Error("workstation-only check should be skipped under server profile")
	}
}

func TestEvaluate_SkipList(t *testing.T) {
	tool := newTestTool(config.BaselineConfig{Profile: "server", Skip: []string{"fail_check"}},
		map[string]string{"pass_check": "enabled", "absent_check": ""})

	results := tool.Evaluate(context.Background(), quietLog())
	for _, r := range results {
		if r.ID == "fail_check" && !r.Skipped {
			t.Error("fail_check should be skipped via config")
		}
	}
}

func TestEvaluate_ProbeErrorRecorded(t *testing.T) {
	tool := newTestTool(config.BaselineConfig{Profile: "server"}, map[string]string{})
	results := tool.Evaluate(context.Background(), quietLog())
	for _, r := range results {
		if r.Skipped {
			continue
		}
		if r.Error == "" {
			t.Errorf("check %s should record probe error", r.ID)
		}
		if r.Passed {
			t.Errorf("check %s should not pass on probe error", r.ID)
		}
	}
}

func TestScore(t *testing.T) {
	results := []CheckResult{
		{Points: 10, Earned: 10, Passed: true},
		{Points: 5, Earned: 0},
		{Points: 10, Skipped: true},       // excluded
		{Points: 10, Error: "no command"}, // excluded
		{Points: 5, Earned: 5, Passed: true},
	}
	// earned 15 of possible 20
	if got := Score(results); got != 75 {
		t.Errorf("Score = %v, want 75", got)
	}
	if got := Score(nil); got != 0 {
		t.Errorf("Score(nil) = %v, want 0", got)
	}
}

func TestCollect_OutcomeShape(t *testing.T) {
	tool := newTestTool(config.BaselineConfig{Profile: "server"}, map[string]string{
		"pass_check":   "enabled",
		"fail_check":   "disabled",
		"absent_check": "telnet running",
	})
	out, err := tool.Collect(context.Background(), quietLog())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	// pass 10, fail 0, absent fails (telnet present) 0 → 10/25
	if got := out.Report.Summary.Score; got != 40 {
		t.Errorf("score = %v, want 40", got)
	}
	if out.Report.Banner() != "red" {
		t.Errorf("banner = %q, want red (critical fail)", out.Report.Banner())
	}
	if len(out.Report.Findings) != 2 {
		t.Errorf("findings = %d, want 2", len(out.Report.Findings))
	}
	if len(out.CSVRows) != 4 {
		t.Errorf("csv rows = %d, want 4", len(out.CSVRows))
	}
}

func TestDefaultCheckTables(t *testing.T) {
	for _, tc := range []struct {
		name   string
		checks []Check
	}{
		{"windows", windowsChecks()},
		{"linux", linuxChecks()},
	} {
		seen := make(map[string]bool)
		for _, c := range tc.checks {
			if c.ID == "" || c.Title == "" || c.Command == "" || c.Expect == nil || c.Points <= 0 {
				t.Errorf("%s check %q incomplete: %+v", tc.name, c.ID, c)
			}
			if seen[c.ID] {
				t.Errorf("%s duplicate check ID %q", tc.name, c.ID)
			}
			seen[c.ID] = true
		}
	}
}

func TestPassMaxDaysExpect(t *testing.T) {
	checks := linuxChecks()
	var check *Check
	for i := range checks {
		if checks[i].ID == "lin_pass_max_days" {
			check = &checks[i]
			break
		}
	}
	if check == nil {
		t.Fatal("lin_pass_max_days check not found")
	}
	for _, tc := range []struct {
		output string
		pass   bool
	}{
		{"PASS_MAX_DAYS\t90", true},
		{"PASS_MAX_DAYS\t180", true},
		{"PASS_MAX_DAYS\t360", true},
		{"PASS_MAX_DAYS\t365", true},
		{"PASS_MAX_DAYS\t366", false},
		{"PASS_MAX_DAYS\t3650", false},
		{"PASS_MAX_DAYS\t99999", false},
	} {
		if got := check.Expect.MatchString(tc.output); got != tc.pass {
			t.Errorf("Expect.MatchString(%q) = %v, want %v", tc.output, got, tc.pass)
		}
	}
}

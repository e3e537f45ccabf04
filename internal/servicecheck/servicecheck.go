// Package servicecheck verifies that the configured critical services are
// running, optionally attempting a restart of stopped ones.
package servicecheck

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/runner"
)

const queryTimeout = 15 * time.Second

// ServiceState is one watched service's observed state.
type ServiceState struct {
	Name      string `json:"name"`
	State     string `json:"state"` // running | stopped | unknown
	Detail    string `json:"detail,omitempty"`
	Restarted bool   `json:"restarted,omitempty"`
	Status    string `json:"status"`
}

// Querier runs the platform service query; swapped out in tests.
type Querier func(ctx context.Context, name string, timeout time.Duration, command string, args ...string) runner.Result

// Tool is the service health check.
type Tool struct {
	cfg     config.ServicesConfig
	Restart bool
	goos    string
	run     Querier
}

// New creates the health check for the configured critical services.
func New(cfg config.ServicesConfig) *Tool {
	return &Tool{cfg: cfg, goos: runtime.GOOS, run: runner.Run}
}

func (t *Tool) Name() string  { return "services" }
func (t *Tool) Title() string { return "Service Health Report" }

// Collect queries each critical service. Query failures are absorbed as
// "unknown" states so one broken service manager call does not end the run.
func (t *Tool) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	if len(t.cfg.Critical) == 0 {
		return nil, fmt.Errorf("no services configured: set services.critical in config.toml")
	}

	var states []ServiceState
	for _, name := range t.cfg.Critical {
		state := t.query(ctx, name)

		if state.State == "stopped" && t.Restart && t.cfg.AllowRestart {
			log.Warnf("service %s stopped, attempting restart", name)
			if t.restart(ctx, name) {
				state = t.query(ctx, name)
				state.Restarted = true
			}
		}

		switch state.State {
		case "running":
			state.Status = string(report.StatusOK)
		case "stopped":
			state.Status = string(report.StatusCritical)
		default:
			state.Status = string(report.StatusWarning)
		}
		log.Debugf("service %s: %s", name, state.State)
		states = append(states, state)
	}

	return t.outcome(states), nil
}

// query asks the platform service manager for the service state.
func (t *Tool) query(ctx context.Context, name string) ServiceState {
	state := ServiceState{Name: name, State: "unknown"}

	var res runner.Result
	switch t.goos {
	case "windows":
		res = t.run(ctx, name, queryTimeout, "sc", "query", name)
	default:
		res = t.run(ctx, name, queryTimeout, "systemctl", "is-active", name)
	}

	switch t.goos {
	case "windows":
		out := res.Text()
		switch {
		case strings.Contains(out, "RUNNING"):
			state.State = "running"
		case strings.Contains(out, "STOPPED"):
			state.State = "stopped"
		case res.FailureKind == runner.FailureExit:
			state.State = "stopped"
			state.Detail = "service not found or not queryable"
		default:
			state.Detail = failureDetail(res)
		}
	default:
		// systemctl is-active prints the unit state and exits non-zero for
		// anything but "active".
		out := res.Text()
		switch out {
		case "active":
			state.State = "running"
		case "inactive", "failed", "deactivating":
			state.State = "stopped"
			state.Detail = out
		default:
			state.Detail = failureDetail(res)
		}
	}
	return state
}

func (t *Tool) restart(ctx context.Context, name string) bool {
	var res runner.Result
	switch t.goos {
	case "windows":
		res = t.run(ctx, name, queryTimeout, "sc", "start", name)
	default:
		res = t.run(ctx, name, queryTimeout, "systemctl", "restart", name)
	}
	return res.OK()
}

func failureDetail(res runner.Result) string {
	if res.Err != nil {
		return fmt.Sprintf("%s (%s)", res.Err, res.FailureKind)
	}
	return "unrecognized service manager output"
}

func (t *Tool) outcome(states []ServiceState) *pipeline.Outcome {
	table := report.Table{
		Title:  "Critical Services",
		Header: []string{"Service", "State", "Restarted", "Detail"},
	}
	var findings []report.Finding
	var csvRows [][]string

	for _, s := range states {
		restarted := ""
		if s.Restarted {
			restarted = "yes"
		}
		table.Rows = append(table.Rows, report.Row{
			Status: report.Status(s.Status),
			Cells:  []string{s.Name, s.State, restarted, s.Detail},
		})
		csvRows = append(csvRows, []string{s.Name, s.State, restarted, s.Detail, s.Status})

		switch report.Status(s.Status) {
		case report.StatusCritical:
			findings = append(findings, report.Finding{
				Severity: report.StatusCritical,
				Title:    fmt.Sprintf("%s is stopped", s.Name),
				Detail:   s.Detail,
			})
		case report.StatusWarning:
			findings = append(findings, report.Finding{
				Severity: report.StatusWarning,
				Title:    fmt.Sprintf("%s state unknown", s.Name),
				Detail:   s.Detail,
			})
		}
	}

	tables := []report.Table{table}
	data := &report.Data{Findings: findings, Tables: tables}
	summary := report.Summarize("Health", 0, tables)
	summary.Score = report.HealthPercent(summary)
	summary.Grade = report.Grade(summary.Score)
	data.Summary = summary

	return &pipeline.Outcome{
		Report:    data,
		CSVHeader: []string{"service", "state", "restarted", "detail", "status"},
		CSVRows:   csvRows,
		Export:    states,
	}
}

package backupcheck

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

// Fetcher retrieves the job states; tests substitute a fixture.
type Fetcher func(ctx context.Context) ([]JobState, error)

// Tool is the backup verification report.
type Tool struct {
	cfg   config.VeeamConfig
	fetch Fetcher
	now   func() time.Time
}

// New creates the report against a live backup server.
func New(cfg config.VeeamConfig) *Tool {
	t := &Tool{cfg: cfg, now: time.Now}
	t.fetch = t.fetchJobStates
	return t
}

func (t *Tool) Name() string  { return "backupcheck" }
func (t *Tool) Title() string { return "Backup Verification" }

func (t *Tool) fetchJobStates(ctx context.Context) ([]JobState, error) {
	client := NewClient(t.cfg)
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return client.JobStates(ctx)
}

// Collect implements pipeline.Tool.
func (t *Tool) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	jobs, err := t.fetch(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("retrieved %d backup job(s)", len(jobs))
	return t.outcome(jobs), nil
}

// classify maps one job to a severity and a human note.
func (t *Tool) classify(job JobState) (report.Status, string) {
	if strings.EqualFold(job.Status, "disabled") {
		return report.StatusWarning, "job is disabled"
	}

	var notes []string
	sev := report.StatusOK
	switch strings.ToLower(job.LastResult) {
	case "success":
	case "warning":
		sev = report.StatusWarning
		notes = append(notes, "last run finished with warnings")
	case "failed":
		sev = report.StatusCritical
		notes = append(notes, "last run failed")
	default:
		sev = report.StatusWarning
		notes = append(notes, "job has never run")
	}

	if !job.LastRun.IsZero() &&
		t.now().Sub(job.LastRun) > time.Duration(t.cfg.RPOHours)*time.Hour {
		sev = report.StatusCritical
		notes = append(notes, fmt.Sprintf("no restore point in %dh window (last run %s)",
			t.cfg.RPOHours, humanize.Time(job.LastRun)))
	}
	return sev, strings.Join(notes, "; ")
}

func formatRun(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}

func (t *Tool) outcome(jobs []JobState) *pipeline.Outcome {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	table := report.Table{
		Title: "Backup Jobs",
		Header: []string{
			"Job", "Type", "Repository", "Objects", "Last Result",
			"Last Run", "Next Run", "Notes",
		},
	}
	var findings []report.Finding
	var csvRows [][]string
	var summary report.Summary

	for _, job := range jobs {
		sev, note := t.classify(job)
		table.Rows = append(table.Rows, report.Row{
			Status: sev,
			Cells: []string{
				job.Name, job.Type, job.Repository,
				strconv.Itoa(job.ObjectCount), job.LastResult,
				formatRun(job.LastRun), formatRun(job.NextRun), note,
			},
		})
		csvRows = append(csvRows, []string{
			job.Name, job.Type, job.Status, job.Repository,
			strconv.Itoa(job.ObjectCount), job.LastResult,
			formatRun(job.LastRun), formatRun(job.NextRun), note,
		})

		switch sev {
		case report.StatusCritical:
			summary.Critical++
			findings = append(findings, report.Finding{
				Severity: report.StatusCritical,
				Title:    fmt.Sprintf("%s: %s", job.Name, note),
			})
		case report.StatusWarning:
			summary.Warning++
			findings = append(findings, report.Finding{
				Severity: report.StatusWarning,
				Title:    fmt.Sprintf("%s: %s", job.Name, note),
			})
		default:
			summary.OK++
		}
	}

	summary.Total = len(jobs)
	summary.ScoreLabel = "Protection"
	summary.Score = report.HealthPercent(summary)
	summary.Grade = report.Grade(summary.Score)

	if summary.Critical == 0 && summary.Warning == 0 && len(jobs) > 0 {
		findings = append(findings, report.Finding{
			Severity: report.StatusOK,
			Title:    fmt.Sprintf("all %d job(s) inside the %dh RPO window", len(jobs), t.cfg.RPOHours),
		})
	}

	return &pipeline.Outcome{
		Report: &report.Data{
			Target:   t.cfg.URL,
			Summary:  summary,
			Findings: findings,
			Tables:   []report.Table{table},
		},
		CSVHeader: []string{
			"job", "type", "status", "repository", "objects",
			"last_result", "last_run", "next_run", "notes",
		},
		CSVRows: csvRows,
		Export:  jobs,
	}
}

// Package diskmon implements the disk space monitor: one row per mounted
// volume with usage thresholds from config.
package diskmon

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

// Volume is one mounted filesystem's usage snapshot.
type Volume struct {
	Mount       string  `json:"mount"`
	Device      string  `json:"device"`
	FSType      string  `json:"fstype"`
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
	Status      string  `json:"status"`
}

// Tool is the disk monitor.
type Tool struct {
	cfg config.DiskConfig
}

// New creates the disk monitor with thresholds from config.
func New(cfg config.DiskConfig) *Tool {
	return &Tool{cfg: cfg}
}

func (t *Tool) Name() string  { return "disk" }
func (t *Tool) Title() string { return "Disk Space Report" }

// Collect enumerates mounted volumes and classifies each against the
// warn/crit thresholds. Unreadable mounts are recorded as failures.
func (t *Tool) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	excluded := make(map[string]bool, len(t.cfg.ExcludeFSTypes))
	for _, fs := range t.cfg.ExcludeFSTypes {
		excluded[fs] = true
	}

	var volumes []Volume
	var failures []report.Failure
	for _, p := range parts {
		if excluded[p.Fstype] {
			log.Debugf("skipping %s (%s)", p.Mountpoint, p.Fstype)
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			log.Warnf("usage %s: %v", p.Mountpoint, err)
			failures = append(failures, report.Failure{Item: p.Mountpoint, Error: err.Error()})
			continue
		}
		if usage.Total == 0 {
			continue
		}
		volumes = append(volumes, Volume{
			Mount:       p.Mountpoint,
			Device:      p.Device,
			FSType:      p.Fstype,
			TotalBytes:  usage.Total,
			UsedBytes:   usage.Used,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
			Status:      string(t.classify(usage.UsedPercent)),
		})
	}
	sort.Slice(volumes, func(i, j int) bool { return volumes[i].UsedPercent > volumes[j].UsedPercent })

	return t.outcome(volumes, failures), nil
}

func (t *Tool) classify(usedPercent float64) report.Status {
	switch {
	case usedPercent >= t.cfg.CritPercent:
		return report.StatusCritical
	case usedPercent >= t.cfg.WarnPercent:
		return report.StatusWarning
	default:
		return report.StatusOK
	}
}

func (t *Tool) outcome(volumes []Volume, failures []report.Failure) *pipeline.Outcome {
	table := report.Table{
		Title:  "Volumes",
		Header: []string{"Mount", "Device", "Type", "Size", "Used", "Free", "Used %"},
	}
	var findings []report.Finding
	csvRows := make([][]string, 0, len(volumes))

	for _, v := range volumes {
		table.Rows = append(table.Rows, report.Row{
			Status: report.Status(v.Status),
			Cells: []string{
				v.Mount, v.Device, v.FSType,
				humanize.IBytes(v.TotalBytes),
				humanize.IBytes(v.UsedBytes),
				humanize.IBytes(v.FreeBytes),
				fmt.Sprintf("%.1f%%", v.UsedPercent),
			},
		})
		switch report.Status(v.Status) {
		case report.StatusCritical:
			findings = append(findings, report.Finding{
				Severity: report.StatusCritical,
				Title:    fmt.Sprintf("%s at %.1f%%", v.Mount, v.UsedPercent),
				Detail:   fmt.Sprintf("above critical threshold %.0f%%, %s free", t.cfg.CritPercent, humanize.IBytes(v.FreeBytes)),
			})
		case report.StatusWarning:
			findings = append(findings, report.Finding{
				Severity: report.StatusWarning,
				Title:    fmt.Sprintf("%s at %.1f%%", v.Mount, v.UsedPercent),
				Detail:   fmt.Sprintf("above warning threshold %.0f%%, %s free", t.cfg.WarnPercent, humanize.IBytes(v.FreeBytes)),
			})
		}
		csvRows = append(csvRows, []string{
			v.Mount, v.Device, v.FSType,
			fmt.Sprintf("%d", v.TotalBytes),
			fmt.Sprintf("%d", v.UsedBytes),
			fmt.Sprintf("%d", v.FreeBytes),
			fmt.Sprintf("%.1f", v.UsedPercent),
			v.Status,
		})
	}

	tables := []report.Table{table}
	data := &report.Data{
		Findings: findings,
		Tables:   tables,
		Failures: failures,
	}
	summary := report.Summarize("Health", 0, tables)
	summary.Score = report.HealthPercent(summary)
	summary.Grade = report.Grade(summary.Score)
	data.Summary = summary

	return &pipeline.Outcome{
		Report:    data,
		CSVHeader: []string{"mount", "device", "fstype", "total_bytes", "used_bytes", "free_bytes", "used_percent", "status"},
		CSVRows:   csvRows,
		Export:    volumes,
	}
}

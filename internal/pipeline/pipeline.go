// Package pipeline coordinates the Collect → Report → Export flow shared by
// every toolkit command.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/export"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/history"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/logging"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

// Outcome is what a tool's collection phase produces: the report model plus
// the flat records for the CSV/JSON exports.
type Outcome struct {
	Report    *report.Data
	CSVHeader []string
	CSVRows   [][]string
	// Export is marshaled to <tool>.json. Usually the tool's record slice.
	Export interface{}
}

// Tool is one report generator (disk monitor, port scanner, ...).
type Tool interface {
	// Name is the short identifier used for file names and history rows.
	Name() string
	// Title is the human-readable report heading.
	Title() string
	// Collect queries the target system and shapes the result. Per-item
	// failures go into Outcome.Report.Failures; Collect itself only fails
	// when nothing at all could be produced.
	Collect(ctx context.Context, log *logrus.Logger) (*Outcome, error)
}

// Options holds the flags common to all commands.
type Options struct {
	OutputRoot  string
	HistoryDB   string
	Version     string
	OpenBrowser bool
	Bundle      bool
	NoHistory   bool
}

// Run executes one tool end to end: dated output directory, run.log sink,
// collection, trend lookup, HTML/CSV/JSON emission, history record, console
// summary.
func Run(ctx context.Context, log *logrus.Logger, opts Options, tool Tool) error {
	hostname, _ := os.Hostname()
	start := time.Now()
	runID := uuid.NewString()[:8]

	outputDir, err := export.RunDir(opts.OutputRoot, tool.Name(), start)
	if err != nil {
		return err
	}

	closeLog, err := logging.AttachFile(log, outputDir)
	if err != nil {
		return err
	}
	defer closeLog()

	log.WithFields(logrus.Fields{"run": runID, "output": outputDir}).
		Infof("starting %s", tool.Title())

	outcome, err := tool.Collect(ctx, log)
	if err != nil {
		return fmt.Errorf("%s: %w", tool.Name(), err)
	}

	data := outcome.Report
	data.Tool = tool.Name()
	data.Title = tool.Title()
	data.Hostname = hostname
	data.RunID = runID
	data.Version = opts.Version
	data.GeneratedAt = time.Now().UTC()
	data.Duration = time.Since(start).Round(time.Millisecond).String()

	// Trend against the previous recorded run, best-effort.
	var store *history.Store
	if !opts.NoHistory {
		store, err = history.Open(opts.HistoryDB)
		if err != nil {
			log.Warnf("history disabled: %v", err)
			store = nil
		} else {
			defer store.Close()
			if prev, err := store.Last(tool.Name(), hostname); err != nil {
				log.Warnf("history lookup: %v", err)
			} else if prev != nil {
				data.Trend = &report.Trend{
					PreviousScore: prev.Score,
					PreviousAt:    prev.StartedAt,
					Delta:         data.Summary.Score - prev.Score,
				}
			}
		}
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}
	reportPath, err := renderer.Render(data, outputDir)
	if err != nil {
		return err
	}
	log.Infof("report generated: %s", reportPath)

	csvPath := filepath.Join(outputDir, tool.Name()+".csv")
	if err := export.WriteCSV(csvPath, outcome.CSVHeader, outcome.CSVRows); err != nil {
		return err
	}
	jsonPath := filepath.Join(outputDir, tool.Name()+".json")
	if err := export.WriteJSON(jsonPath, outcome.Export); err != nil {
		return err
	}

	if store != nil {
		err := store.Record(history.Run{
			ID:        runID,
			Tool:      tool.Name(),
			Hostname:  hostname,
			StartedAt: start,
			Duration:  data.Duration,
			Score:     data.Summary.Score,
			OK:        data.Summary.OK,
			Warning:   data.Summary.Warning,
			Critical:  data.Summary.Critical,
			ReportDir: outputDir,
		})
		if err != nil {
			log.Warnf("history record: %v", err)
		}
	}

	report.PrintSummary(data)
	fmt.Printf("\nReport:  %s\nCSV:     %s\nJSON:    %s\n", reportPath, csvPath, jsonPath)

	if opts.Bundle {
		zipPath, err := export.Bundle(outputDir, hostname, tool.Name(), opts.Version)
		if err != nil {
			log.Warnf("bundle: %v", err)
		} else {
			fmt.Printf("Bundle:  %s\n", zipPath)
		}
	}

	if opts.OpenBrowser {
		report.OpenBrowser(absPath(reportPath))
	}
	return nil
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	// Windows start/xdg-open both accept plain paths; normalize separators.
	return strings.ReplaceAll(abs, "\\", "/")
}

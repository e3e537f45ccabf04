package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/runner"
)

const (
	queryTimeout  = 60 * time.Second
	topListSize   = 10
	recentErrSize = 25
)

// Querier runs the live log query command; swapped out in tests.
type Querier func(ctx context.Context, name string, timeout time.Duration, command string, args ...string) runner.Result

// Tool is the event log analyzer.
type Tool struct {
	cfg config.EventLogConfig
	// InputPath, when set, analyzes an exported file instead of querying live.
	InputPath string
	goos      string
	run       Querier
}

// New creates the analyzer.
func New(cfg config.EventLogConfig) *Tool {
	return &Tool{cfg: cfg, goos: runtime.GOOS, run: runner.Run}
}

func (t *Tool) Name() string  { return "eventlog" }
func (t *Tool) Title() string { return "Event Log Analysis" }

// Summary is the aggregate view exported as JSON.
type Summary struct {
	Total        int            `json:"total"`
	ByLevel      map[string]int `json:"by_level"`
	TopProviders []Count        `json:"top_providers"`
	TopEventIDs  []Count        `json:"top_event_ids"`
	SigmaMatches []Match        `json:"sigma_matches,omitempty"`
	Window       string         `json:"window"`
}

// Count is a name/count aggregation entry.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Collect implements pipeline.Tool.
func (t *Tool) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	var events []Event
	var failures []report.Failure
	var err error

	if t.InputPath != "" {
		events, err = LoadEvents(t.InputPath)
		if err != nil {
			return nil, err
		}
		log.Infof("loaded %d event(s) from %s", len(events), t.InputPath)
	} else {
		events, failures = t.queryLive(ctx, log)
		log.Infof("collected %d event(s) from live logs", len(events))
	}
	if len(events) > t.cfg.MaxEvents {
		events = events[:t.cfg.MaxEvents]
	}

	var matches []Match
	engine, err := NewEngine()
	if err != nil {
		log.Warnf("sigma engine init: %v", err)
	} else {
		matches = engine.MatchAll(ctx, events)
		if len(matches) > 0 {
			log.Infof("sigma: %d rule match(es)", len(matches))
		}
	}

	return t.outcome(events, matches, failures), nil
}

// queryLive pulls recent events from the platform log facility. Per-log
// failures are absorbed so one unreadable channel does not end the run.
func (t *Tool) queryLive(ctx context.Context, log *logrus.Logger) ([]Event, []report.Failure) {
	var events []Event
	var failures []report.Failure

	if t.goos == "windows" {
		for _, channel := range t.cfg.Logs {
			// Project TimeCreated to ISO 8601 text: Windows PowerShell
			// 5.1 would otherwise emit /Date(ms)/ objects.
			script := fmt.Sprintf(
				`Get-WinEvent -FilterHashtable @{LogName='%s'; StartTime=(Get-Date).AddHours(-%d)} -MaxEvents %d -ErrorAction Stop | `+
					`Select-Object @{n='TimeCreated';e={$_.TimeCreated.ToUniversalTime().ToString('o')}}, Id, LevelDisplayName, ProviderName, LogName, Message | `+
					`ConvertTo-Json -Compress`,
				channel, t.cfg.Hours, t.cfg.MaxEvents)
			res := t.run(ctx, channel, queryTimeout, "powershell.exe",
				"-NoProfile", "-NonInteractive", "-Command", script)
			if !res.OK() {
				failures = append(failures, report.Failure{Item: channel, Error: queryError(res)})
				log.Warnf("query %s: %s", channel, queryError(res))
				continue
			}
			parsed, err := parseJSONEvents(strings.NewReader(string(res.Stdout)))
			if err != nil {
				failures = append(failures, report.Failure{Item: channel, Error: err.Error()})
				continue
			}
			events = append(events, parsed...)
		}
		return events, failures
	}

	res := t.run(ctx, "journal", queryTimeout, "journalctl",
		"-o", "json", "--no-pager",
		"--since", fmt.Sprintf("-%dh", t.cfg.Hours),
		"-n", strconv.Itoa(t.cfg.MaxEvents))
	if !res.OK() {
		failures = append(failures, report.Failure{Item: "journal", Error: queryError(res)})
		return nil, failures
	}
	parsed, err := parseJournal(res.Stdout)
	if err != nil {
		failures = append(failures, report.Failure{Item: "journal", Error: err.Error()})
		return nil, failures
	}
	return parsed, failures
}

func queryError(res runner.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	return strings.TrimSpace(string(res.Stderr))
}

// journaldPriorities maps syslog priority to the Windows-style level names
// the rest of the analyzer speaks.
var journaldPriorities = map[string]string{
	"0": "Critical", "1": "Critical", "2": "Critical",
	"3": "Error", "4": "Warning", "5": "Information",
	"6": "Information", "7": "Information",
}

// parseJournal converts journalctl -o json output (one object per line).
func parseJournal(data []byte) ([]Event, error) {
	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("decode journal line: %w", err)
		}
		e := Event{Channel: "journal"}
		if v, ok := raw["MESSAGE"].(string); ok {
			e.Message = v
		}
		if v, ok := raw["SYSLOG_IDENTIFIER"].(string); ok {
			e.Provider = v
		} else if v, ok := raw["_COMM"].(string); ok {
			e.Provider = v
		}
		if v, ok := raw["PRIORITY"].(string); ok {
			e.Level = journaldPriorities[v]
		}
		if e.Level == "" {
			e.Level = "Information"
		}
		if v, ok := raw["__REALTIME_TIMESTAMP"].(string); ok {
			if usec, err := strconv.ParseInt(v, 10, 64); err == nil {
				e.TimeCreated = time.UnixMicro(usec).UTC()
			}
		}
		events = append(events, e)
	}
	return events, nil
}

// Aggregate computes the summary counters over the events.
func Aggregate(events []Event, matches []Match, window string) Summary {
	s := Summary{
		Total:        len(events),
		ByLevel:      make(map[string]int),
		SigmaMatches: matches,
		Window:       window,
	}
	providers := make(map[string]int)
	ids := make(map[string]int)
	for _, e := range events {
		level := e.Level
		if level == "" {
			level = "Information"
		}
		s.ByLevel[level]++
		if isProblem(level) {
			providers[e.Provider]++
			ids[fmt.Sprintf("%d (%s)", e.ID, e.Provider)]++
		}
	}
	s.TopProviders = topCounts(providers, topListSize)
	s.TopEventIDs = topCounts(ids, topListSize)
	return s
}

func isProblem(level string) bool {
	switch strings.ToLower(level) {
	case "critical", "error":
		return true
	}
	return false
}

func topCounts(m map[string]int, n int) []Count {
	counts := make([]Count, 0, len(m))
	for name, c := range m {
		counts = append(counts, Count{Name: name, Count: c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// HealthScore is 100 minus the share of events at error level or worse.
func HealthScore(s Summary) float64 {
	if s.Total == 0 {
		return 100
	}
	problems := s.ByLevel["Critical"] + s.ByLevel["Error"]
	return 100 * float64(s.Total-problems) / float64(s.Total)
}

func sigmaSeverity(level string) report.Status {
	switch strings.ToLower(level) {
	case "critical", "high":
		return report.StatusCritical
	case "medium":
		return report.StatusWarning
	default:
		return report.StatusInfo
	}
}

func (t *Tool) outcome(events []Event, matches []Match, failures []report.Failure) *pipeline.Outcome {
	window := fmt.Sprintf("last %dh", t.cfg.Hours)
	if t.InputPath != "" {
		window = t.InputPath
	}
	summary := Aggregate(events, matches, window)

	var findings []report.Finding
	for _, m := range matches {
		findings = append(findings, report.Finding{
			Severity: sigmaSeverity(m.Level),
			Title:    fmt.Sprintf("[sigma] %s", m.RuleTitle),
			Detail:   fmt.Sprintf("event %d from %s at %s", m.EventID, m.Provider, m.Timestamp),
		})
	}
	if crit := summary.ByLevel["Critical"]; crit > 0 {
		findings = append(findings, report.Finding{
			Severity: report.StatusCritical,
			Title:    fmt.Sprintf("%d critical event(s) in window", crit),
		})
	}

	levelTable := report.Table{Title: "Events by Level", Header: []string{"Level", "Count"}}
	for _, level := range []string{"Critical", "Error", "Warning", "Information"} {
		count := summary.ByLevel[level]
		status := report.StatusOK
		if count > 0 {
			switch level {
			case "Critical":
				status = report.StatusCritical
			case "Error":
				status = report.StatusWarning
			}
		}
		levelTable.Rows = append(levelTable.Rows, report.Row{
			Status: status,
			Cells:  []string{level, strconv.Itoa(count)},
		})
	}

	providerTable := report.Table{Title: "Top Error Sources", Header: []string{"Provider", "Errors"}}
	for _, c := range summary.TopProviders {
		providerTable.Rows = append(providerTable.Rows, report.Row{
			Status: report.StatusInfo,
			Cells:  []string{c.Name, strconv.Itoa(c.Count)},
		})
	}

	recentTable := report.Table{
		Title:  "Recent Errors",
		Header: []string{"Time", "Level", "ID", "Provider", "Message"},
	}
	var csvRows [][]string
	recent := 0
	for _, e := range events {
		csvRows = append(csvRows, []string{
			e.TimeCreated.Format(time.RFC3339), strconv.Itoa(e.ID),
			e.Level, e.Provider, e.Channel, truncateMessage(e.Message),
		})
		if !isProblem(e.Level) || recent >= recentErrSize {
			continue
		}
		recent++
		status := report.StatusWarning
		if strings.EqualFold(e.Level, "critical") {
			status = report.StatusCritical
		}
		recentTable.Rows = append(recentTable.Rows, report.Row{
			Status: status,
			Cells: []string{
				e.TimeCreated.Format("2006-01-02 15:04:05"), e.Level,
				strconv.Itoa(e.ID), e.Provider, truncateMessage(e.Message),
			},
		})
	}

	data := &report.Data{
		Target:   window,
		Findings: findings,
		Tables:   []report.Table{levelTable, providerTable, recentTable},
		Failures: failures,
	}
	score := HealthScore(summary)
	data.Summary = report.Summary{
		ScoreLabel: "Health",
		Score:      score,
		Grade:      report.Grade(score),
		OK:         summary.Total - summary.ByLevel["Critical"] - summary.ByLevel["Error"] - summary.ByLevel["Warning"],
		Warning:    summary.ByLevel["Warning"] + summary.ByLevel["Error"],
		Critical:   summary.ByLevel["Critical"],
		Total:      summary.Total,
	}

	return &pipeline.Outcome{
		Report:    data,
		CSVHeader: []string{"time_created", "id", "level", "provider", "channel", "message"},
		CSVRows:   csvRows,
		Export:    summary,
	}
}

func truncateMessage(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 160 {
		return s[:160] + "..."
	}
	return s
}

package eventlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/runner"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadEventsJSONArray(t *testing.T) {
	path := writeFile(t, "events.json", `[
		{"TimeCreated":"2026-01-10T08:00:00Z","Id":7045,"LevelDisplayName":"Information","ProviderName":"Service Control Manager","LogName":"System","Message":"A service was installed"},
		{"TimeCreated":"2026-01-10T08:05:00Z","Id":1000,"LevelDisplayName":"Error","ProviderName":"Application Error","LogName":"Application","Message":"Faulting application"}
	]`)
	events, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID != 7045 || events[0].Provider != "Service Control Manager" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Level != "Error" {
		t.Errorf("Level = %q, want Error", events[1].Level)
	}
}

func TestLoadEventsWindowsPowerShellDates(t *testing.T) {
	// Windows PowerShell 5.1 ConvertTo-Json emits DateTime as
	// \/Date(milliseconds)\/ rather than ISO 8601 text.
	path := writeFile(t, "events.json", `[
		{"TimeCreated":"\/Date(1767945600000)\/","Id":1102,"LevelDisplayName":"Information","ProviderName":"Microsoft-Windows-Eventlog","LogName":"Security","Message":"The audit log was cleared."},
		{"TimeCreated":"\/Date(1767945660000-0500)\/","Id":6008,"LevelDisplayName":"Error","ProviderName":"EventLog","LogName":"System","Message":"unexpected shutdown"}
	]`)
	events, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	want := time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC)
	if !events[0].TimeCreated.Equal(want) {
		t.Errorf("TimeCreated = %v, want %v", events[0].TimeCreated, want)
	}
	if events[1].ID != 6008 || events[1].TimeCreated.IsZero() {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2026-01-09T08:00:00Z", time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC), false},
		{"2026-01-09T08:00:00.0000000Z", time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC), false},
		{"/Date(1767945600000)/", time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC), false},
		{"/Date(1767945600000+0100)/", time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC), false},
		{"/Date(nope)/", time.Time{}, true},
		{"not a time", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadEventsJSONLines(t *testing.T) {
	path := writeFile(t, "events.jsonl",
		`{"TimeCreated":"2026-01-10T08:00:00Z","Id":1102,"LevelDisplayName":"Information","ProviderName":"Microsoft-Windows-Eventlog","LogName":"Security","Message":"The audit log was cleared."}
{"TimeCreated":"2026-01-10T08:01:00Z","Id":4624,"LevelDisplayName":"Information","ProviderName":"Microsoft-Windows-Security-Auditing","LogName":"Security","Message":"An account was successfully logged on."}
`)
	events, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID != 1102 {
		t.Errorf("ID = %d, want 1102", events[0].ID)
	}
}

func TestLoadEventsCSV(t *testing.T) {
	path := writeFile(t, "events.csv",
		"TimeCreated,Id,Level,Provider,Channel,Message\n"+
			"2026-01-10 08:00:00,6008,Error,EventLog,System,The previous system shutdown was unexpected\n")
	events, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.ID != 6008 || e.Level != "Error" || e.Channel != "System" {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.TimeCreated.Hour() != 8 {
		t.Errorf("TimeCreated = %v", e.TimeCreated)
	}
}

func TestLoadEventsMissingFile(t *testing.T) {
	if _, err := LoadEvents(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseJournal(t *testing.T) {
	data := []byte(`{"MESSAGE":"segfault in libfoo","PRIORITY":"3","SYSLOG_IDENTIFIER":"kernel","__REALTIME_TIMESTAMP":"1767945600000000"}
{"MESSAGE":"started session","PRIORITY":"6","_COMM":"systemd"}
`)
	events, err := parseJournal(data)
	if err != nil {
		t.Fatalf("parseJournal: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Level != "Error" || events[0].Provider != "kernel" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[0].TimeCreated.IsZero() {
		t.Error("timestamp not parsed")
	}
	if events[1].Level != "Information" || events[1].Provider != "systemd" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestAggregate(t *testing.T) {
	events := []Event{
		{Level: "Error", Provider: "Disk", ID: 7},
		{Level: "Error", Provider: "Disk", ID: 7},
		{Level: "Critical", Provider: "Kernel-Power", ID: 41},
		{Level: "Warning", Provider: "DNS Client", ID: 1014},
		{Level: "Information", Provider: "Service Control Manager", ID: 7036},
		{Provider: "NoLevel", ID: 1},
	}
	s := Aggregate(events, nil, "last 24h")
	if s.Total != 6 {
		t.Errorf("Total = %d, want 6", s.Total)
	}
	if s.ByLevel["Error"] != 2 || s.ByLevel["Critical"] != 1 || s.ByLevel["Information"] != 2 {
		t.Errorf("ByLevel = %v", s.ByLevel)
	}
	if len(s.TopProviders) == 0 || s.TopProviders[0].Name != "Disk" || s.TopProviders[0].Count != 2 {
		t.Errorf("TopProviders = %v", s.TopProviders)
	}
	// Only error-level events feed the top event ID list.
	for _, c := range s.TopEventIDs {
		if strings.Contains(c.Name, "7036") {
			t.Errorf("informational event in TopEventIDs: %v", s.TopEventIDs)
		}
	}
}

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name string
		s    Summary
		want float64
	}{
		{"empty", Summary{}, 100},
		{"clean", Summary{Total: 10, ByLevel: map[string]int{"Information": 10}}, 100},
		{"half errors", Summary{Total: 10, ByLevel: map[string]int{"Error": 4, "Critical": 1}}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HealthScore(tt.s); got != tt.want {
				t.Errorf("HealthScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollectFromFile(t *testing.T) {
	path := writeFile(t, "events.json", `[
		{"TimeCreated":"2026-01-10T08:00:00Z","Id":1102,"LevelDisplayName":"Information","ProviderName":"Microsoft-Windows-Eventlog","LogName":"Security","Message":"The audit log was cleared."},
		{"TimeCreated":"2026-01-10T08:05:00Z","Id":1000,"LevelDisplayName":"Error","ProviderName":"Application Error","LogName":"Application","Message":"Faulting application notepad.exe"}
	]`)
	tool := New(config.EventLogConfig{Hours: 24, MaxEvents: 5000})
	tool.InputPath = path

	out, err := tool.Collect(context.Background(), quietLog())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if out.Report.Summary.Total != 2 {
		t.Errorf("Total = %d, want 2", out.Report.Summary.Total)
	}
	if len(out.CSVRows) != 2 {
		t.Errorf("CSVRows = %d, want 2", len(out.CSVRows))
	}
	// The cleared-log event must surface as a sigma finding.
	found := false
	for _, f := range out.Report.Findings {
		if strings.Contains(f.Title, "Audit Log Cleared") {
			found = true
		}
	}
	if !found {
		t.Errorf("no sigma finding for cleared audit log: %+v", out.Report.Findings)
	}
	if len(out.Report.Tables) != 3 {
		t.Errorf("Tables = %d, want 3", len(out.Report.Tables))
	}
}

func TestCollectMaxEventsCap(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, `{"TimeCreated":"2026-01-10T08:00:00Z","Id":1,"LevelDisplayName":"Information","ProviderName":"p","LogName":"Application","Message":"m"}`)
	}
	path := writeFile(t, "events.jsonl", strings.Join(lines, "\n")+"\n")
	tool := New(config.EventLogConfig{Hours: 24, MaxEvents: 5})
	tool.InputPath = path

	out, err := tool.Collect(context.Background(), quietLog())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if out.Report.Summary.Total != 5 {
		t.Errorf("Total = %d, want 5 after cap", out.Report.Summary.Total)
	}
}

func TestQueryLiveLinux(t *testing.T) {
	tool := New(config.EventLogConfig{Hours: 24, MaxEvents: 100})
	tool.goos = "linux"
	tool.run = func(ctx context.Context, name string, timeout time.Duration, command string, args ...string) runner.Result {
		if command != "journalctl" {
			t.Errorf("command = %q, want journalctl", command)
		}
		return runner.Result{
			Name:   name,
			Stdout: []byte(`{"MESSAGE":"oom-killer invoked","PRIORITY":"3","SYSLOG_IDENTIFIER":"kernel"}` + "\n"),
		}
	}

	events, failures := tool.queryLive(context.Background(), quietLog())
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(events) != 1 || events[0].Level != "Error" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestQueryLiveWindowsAbsorbsChannelFailure(t *testing.T) {
	tool := New(config.EventLogConfig{Hours: 24, MaxEvents: 100, Logs: []string{"System", "Security"}})
	tool.goos = "windows"
	tool.run = func(ctx context.Context, name string, timeout time.Duration, command string, args ...string) runner.Result {
		if name == "Security" {
			return runner.Result{
				Name:     name,
				ExitCode: 1,
				Err:      errors.New("access is denied"),
			}
		}
		return runner.Result{
			Name:   name,
			Stdout: []byte(`[{"TimeCreated":"2026-01-10T08:00:00Z","Id":6008,"LevelDisplayName":"Error","ProviderName":"EventLog","LogName":"System","Message":"unexpected shutdown"}]`),
		}
	}

	events, failures := tool.queryLive(context.Background(), quietLog())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if len(failures) != 1 || failures[0].Item != "Security" {
		t.Fatalf("failures = %+v, want one for Security", failures)
	}
}

func TestTruncateMessage(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := truncateMessage("line1\nline2")
	if strings.Contains(got, "\n") {
		t.Errorf("newline survived truncation: %q", got)
	}
	if got := truncateMessage(long); len(got) != 163 {
		t.Errorf("len = %d, want 163", len(got))
	}
}

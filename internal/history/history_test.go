package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLast_EmptyStore(t *testing.T) {
	s := openStore(t)
	run, err := s.Last("disk", "srv01")
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if run != nil {
		t.Errorf("Last() = %+v, want nil", run)
	}
}

func TestRecordAndLast(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	runs := []Run{
		{ID: "run-1", Tool: "disk", Hostname: "srv01", StartedAt: base, Duration: "1s", Score: 80, OK: 4, Warning: 1, ReportDir: "a"},
		{ID: "run-2", Tool: "disk", Hostname: "srv01", StartedAt: base.Add(time.Hour), Duration: "1s", Score: 60, OK: 3, Warning: 1, Critical: 1, ReportDir: "b"},
		{ID: "run-3", Tool: "disk", Hostname: "srv02", StartedAt: base.Add(2 * time.Hour), Duration: "1s", Score: 100, OK: 5, ReportDir: "c"},
		{ID: "run-4", Tool: "portscan", Hostname: "srv01", StartedAt: base.Add(3 * time.Hour), Duration: "1s", Score: 100, OK: 9, ReportDir: "d"},
	}
	for _, r := range runs {
		if err := s.Record(r); err != nil {
			t.Fatalf("Record(%s) error = %v", r.ID, err)
		}
	}

	last, err := s.Last("disk", "srv01")
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if last == nil || last.ID != "run-2" {
		t.Fatalf("Last() = %+v, want run-2", last)
	}
	if last.Score != 60 || last.Critical != 1 {
		t.Errorf("last run fields = %+v", last)
	}
}

func TestRecent_FiltersByTool(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, tool := range []string{"disk", "disk", "baseline"} {
		err := s.Record(Run{
			ID: string(rune('a' + i)), Tool: tool, Hostname: "srv01",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Duration:  "1s", ReportDir: "x",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.Recent("disk", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent() returned %d runs, want 2", len(recent))
	}
	if recent[0].StartedAt.Before(recent[1].StartedAt) {
		t.Error("Recent() not sorted newest first")
	}

	all, err := s.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Recent(\"\") returned %d runs, want 3", len(all))
	}
}

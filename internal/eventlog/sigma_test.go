package eventlog

import (
	"context"
	"testing"
	"testing/fstest"
	"time"
)

func TestNewEngineLoadsEmbeddedRules(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if engine.RuleCount() < 5 {
		t.Errorf("RuleCount = %d, want at least 5", engine.RuleCount())
	}
}

func TestMatchAllClearedAuditLog(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	events := []Event{
		{
			TimeCreated: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
			ID:          1102,
			Level:       "Information",
			Provider:    "Microsoft-Windows-Eventlog",
			Channel:     "Security",
			Message:     "The audit log was cleared.",
		},
		{
			TimeCreated: time.Date(2026, 1, 10, 8, 1, 0, 0, time.UTC),
			ID:          4624,
			Level:       "Information",
			Provider:    "Microsoft-Windows-Security-Auditing",
			Channel:     "Security",
			Message:     "An account was successfully logged on.",
		},
	}

	matches := engine.MatchAll(context.Background(), events)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1: %+v", len(matches), matches)
	}
	m := matches[0]
	if m.EventID != 1102 || m.Level != "high" {
		t.Errorf("unexpected match: %+v", m)
	}
	if m.Timestamp != "2026-01-10 08:00:00" {
		t.Errorf("Timestamp = %q", m.Timestamp)
	}
}

func TestMatchAllScopesByChannel(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	// Same event ID but in the wrong channel must not match a
	// Security-scoped rule.
	events := []Event{
		{ID: 1102, Channel: "Application", Provider: "SomeApp"},
	}
	for _, m := range engine.MatchAll(context.Background(), events) {
		if m.RuleTitle == "Audit Log Cleared" {
			t.Errorf("Security-scoped rule matched Application event: %+v", m)
		}
	}
}

func TestNewEngineFromFS(t *testing.T) {
	rulesFS := fstest.MapFS{
		"custom.yml": &fstest.MapFile{Data: []byte(`title: Custom Probe
id: 00000000-0000-0000-0000-000000000001
description: test rule
logsource:
  product: windows
detection:
  selection:
    EventID: 9999
  condition: selection
level: low
`)},
		"notes.txt": &fstest.MapFile{Data: []byte("ignored")},
	}

	engine, err := NewEngineFromFS(rulesFS)
	if err != nil {
		t.Fatalf("NewEngineFromFS: %v", err)
	}
	if engine.RuleCount() != 1 {
		t.Fatalf("RuleCount = %d, want 1", engine.RuleCount())
	}

	matches := engine.MatchAll(context.Background(), []Event{{ID: 9999, Channel: "System"}})
	if len(matches) != 1 || matches[0].RuleTitle != "Custom Probe" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestNewEngineFromFSBadRule(t *testing.T) {
	rulesFS := fstest.MapFS{
		"bad.yml": &fstest.MapFile{Data: []byte("{{not yaml")},
	}
	if _, err := NewEngineFromFS(rulesFS); err == nil {
		t.Fatal("expected error for malformed rule")
	}
}

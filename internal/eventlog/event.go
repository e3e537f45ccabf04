// Package eventlog analyzes Windows/Linux event logs: level aggregation, top
// noisy providers, and Sigma rule matching over the collected events.
package eventlog

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Event is one normalized log record. Field names follow the PowerShell
// Get-WinEvent export shape so existing exports load unchanged.
type Event struct {
	TimeCreated time.Time `json:"TimeCreated"`
	ID          int       `json:"Id"`
	Level       string    `json:"LevelDisplayName"` // Critical | Error | Warning | Information
	Provider    string    `json:"ProviderName"`
	Channel     string    `json:"LogName"`
	Message     string    `json:"Message"`
}

// UnmarshalJSON accepts the timestamp shapes ConvertTo-Json produces across
// PowerShell versions: RFC 3339 strings and the Windows PowerShell 5.1
// "/Date(milliseconds)/" form.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	aux := struct {
		TimeCreated json.RawMessage `json:"TimeCreated"`
		*plain
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.TimeCreated) == 0 || string(aux.TimeCreated) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.TimeCreated, &s); err != nil {
		return fmt.Errorf("TimeCreated: %w", err)
	}
	ts, err := parseTime(s)
	if err != nil {
		return err
	}
	e.TimeCreated = ts
	return nil
}

// LoadEvents reads an exported event log file. JSON files may contain either
// an array or one object per line; anything else is parsed as CSV with a
// TimeCreated,Id,Level,Provider,Channel,Message header.
func LoadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event export: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") ||
		strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return parseJSONEvents(f)
	}
	return parseCSVEvents(f)
}

func parseJSONEvents(r io.Reader) ([]Event, error) {
	br := bufio.NewReader(r)

	// Peek to distinguish a JSON array from JSON lines.
	first, err := br.Peek(1)
	if err != nil {
		return nil, fmt.Errorf("read event JSON: %w", err)
	}
	if first[0] == '[' {
		var events []Event
		if err := json.NewDecoder(br).Decode(&events); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		return events, nil
	}

	var events []Event
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("decode event line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

func parseCSVEvents(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var events []Event
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		id, _ := strconv.Atoi(field(record, "id"))
		ts, _ := parseTime(field(record, "timecreated"))
		events = append(events, Event{
			TimeCreated: ts,
			ID:          id,
			Level:       field(record, "level"),
			Provider:    field(record, "provider"),
			Channel:     field(record, "channel"),
			Message:     field(record, "message"),
		})
	}
	return events, nil
}

func parseTime(s string) (time.Time, error) {
	// Windows PowerShell 5.1 serializes DateTime as /Date(ms)/ with an
	// optional trailing UTC offset.
	if inner, ok := strings.CutPrefix(s, "/Date("); ok {
		inner, ok = strings.CutSuffix(inner, ")/")
		if !ok {
			return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
		}
		if i := strings.IndexAny(inner[1:], "+-"); i >= 0 {
			inner = inner[:i+1]
		}
		ms, err := strconv.ParseInt(inner, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{
		time.RFC3339, "2006-01-02 15:04:05", "1/2/2006 3:04:05 PM",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

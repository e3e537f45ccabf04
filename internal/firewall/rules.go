// Package firewall audits an exported firewall rule table for duplicates,
// shadowed rules, and risky exposure, and computes a compliance score.
package firewall

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Rule is one vendor-neutral firewall rule as exported from the management
// console (Check Point, Fortinet, Windows Firewall CSV exports all map onto
// these columns).
type Rule struct {
	Name        string `json:"name"`
	Action      string `json:"action"` // accept | drop | reject
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Port        string `json:"port"` // number, range, or "any"
	Protocol    string `json:"protocol"`
	Enabled     bool   `json:"enabled"`
	Comment     string `json:"comment"`
	// Position is the 1-based rule order in the export.
	Position int `json:"position"`
}

// normalized returns the match tuple used for duplicate/shadow comparison.
func (r Rule) tuple() string {
	return strings.ToLower(strings.Join([]string{
		r.Source, r.Destination, r.Port, r.Protocol,
	}, "|"))
}

func (r Rule) isAccept() bool {
	return strings.EqualFold(r.Action, "accept") || strings.EqualFold(r.Action, "allow")
}

func anyValue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "" || s == "any" || s == "*" || s == "0.0.0.0/0" || s == "all"
}

// LoadRules reads a rule export. The format is chosen by extension:
// .json expects an array of rule objects, anything else is parsed as CSV
// with a header row (name,action,source,destination,port,protocol,enabled,comment).
func LoadRules(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule export: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseJSON(f)
	}
	return parseCSV(f)
}

func parseJSON(r io.Reader) ([]Rule, error) {
	var rules []Rule
	if err := json.NewDecoder(r).Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode rule JSON: %w", err)
	}
	for i := range rules {
		if rules[i].Position == 0 {
			rules[i].Position = i + 1
		}
	}
	return rules, nil
}

func parseCSV(r io.Reader) ([]Rule, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "action", "source", "destination", "port", "protocol"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("rule CSV missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rules []Rule
	pos := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		pos++

		enabled := true
		if v := field(record, "enabled"); v != "" {
			enabled, _ = strconv.ParseBool(strings.ToLower(v))
			if strings.EqualFold(v, "yes") {
				enabled = true
			}
		}
		rules = append(rules, Rule{
			Name:        field(record, "name"),
			Action:      strings.ToLower(field(record, "action")),
			Source:      field(record, "source"),
			Destination: field(record, "destination"),
			Port:        field(record, "port"),
			Protocol:    strings.ToLower(field(record, "protocol")),
			Enabled:     enabled,
			Comment:     field(record, "comment"),
			Position:    pos,
		})
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule export contains no rules")
	}
	return rules, nil
}

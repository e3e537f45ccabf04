package firewall

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/report"
)

// Point deductions per finding category, applied to a 100-point score.
const (
	deductAnyAny    = 15
	deductRiskyPort = 10
	deductShadowed  = 8
	deductDuplicate = 5
	deductDisabled  = 2
	deductNoComment = 1
)

// Issue is one audit finding against a rule.
type Issue struct {
	Rule     string `json:"rule"`
	Position int    `json:"position"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
	Points   int    `json:"points"`
}

// Auditor runs the rule checks.
type Auditor struct {
	ExportPath string
	cfg        config.FirewallConfig
}

// New creates an Auditor for the given export file.
func New(exportPath string, cfg config.FirewallConfig) *Auditor {
	return &Auditor{ExportPath: exportPath, cfg: cfg}
}

func (a *Auditor) Name() string  { return "firewall" }
func (a *Auditor) Title() string { return "Firewall Rule Audit" }

// Audit runs every check over the rule set and returns the issues found.
func (a *Auditor) Audit(rules []Rule) []Issue {
	var issues []Issue
	issues = append(issues, checkDuplicates(rules)...)
	issues = append(issues, checkShadowed(rules)...)
	issues = append(issues, a.checkExposure(rules)...)
	issues = append(issues, checkHygiene(rules)...)
	return issues
}

// Score computes the compliance score: 100 minus the deduction for each
// issue, floored at 0.
func Score(issues []Issue) float64 {
	score := 100
	for _, issue := range issues {
		score -= issue.Points
	}
	if score < 0 {
		score = 0
	}
	return float64(score)
}

// checkDuplicates flags rules whose match tuple and action both repeat an
// earlier enabled rule.
func checkDuplicates(rules []Rule) []Issue {
	var issues []Issue
	seen := make(map[string]Rule)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		key := r.tuple() + "|" + strings.ToLower(r.Action)
		if first, ok := seen[key]; ok {
			issues = append(issues, Issue{
				Rule:     r.Name,
				Position: r.Position,
				Category: "duplicate",
				Severity: string(report.StatusWarning),
				Detail:   fmt.Sprintf("identical to rule %q at position %d", first.Name, first.Position),
				Points:   deductDuplicate,
			})
			continue
		}
		seen[key] = r
	}
	return issues
}

// checkShadowed flags rules preceded by a broader rule with the opposite
// action: the later rule can never match.
func checkShadowed(rules []Rule) []Issue {
	var issues []Issue
	for i, r := range rules {
		if !r.Enabled {
			continue
		}
		for _, earlier := range rules[:i] {
			if !earlier.Enabled || earlier.isAccept() == r.isAccept() {
				continue
			}
			if covers(earlier, r) {
				issues = append(issues, Issue{
					Rule:     r.Name,
					Position: r.Position,
					Category: "shadowed",
					Severity: string(report.StatusWarning),
					Detail: fmt.Sprintf("never matches: rule %q at position %d already %ss this traffic",
						earlier.Name, earlier.Position, strings.ToLower(earlier.Action)),
					Points: deductShadowed,
				})
				break
			}
		}
	}
	return issues
}

// covers reports whether rule a matches a superset of rule b's traffic.
func covers(a, b Rule) bool {
	return fieldCovers(a.Source, b.Source) &&
		fieldCovers(a.Destination, b.Destination) &&
		fieldCovers(a.Port, b.Port) &&
		fieldCovers(a.Protocol, b.Protocol)
}

func fieldCovers(a, b string) bool {
	if anyValue(a) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// checkExposure flags any/any accepts and risky ports open to any source.
func (a *Auditor) checkExposure(rules []Rule) []Issue {
	risky := make(map[int]bool, len(a.cfg.RiskyPorts))
	for _, p := range a.cfg.RiskyPorts {
		risky[p] = true
	}

	var issues []Issue
	for _, r := range rules {
		if !r.Enabled || !r.isAccept() {
			continue
		}
		if anyValue(r.Source) && anyValue(r.Destination) && anyValue(r.Port) {
			issues = append(issues, Issue{
				Rule:     r.Name,
				Position: r.Position,
				Category: "any_any_accept",
				Severity: string(report.StatusCritical),
				Detail:   "accepts all traffic from any source to any destination",
				Points:   deductAnyAny,
			})
			continue
		}
		if anyValue(r.Source) {
			if port, err := strconv.Atoi(strings.TrimSpace(r.Port)); err == nil && risky[port] {
				issues = append(issues, Issue{
					Rule:     r.Name,
					Position: r.Position,
					Category: "risky_port_exposure",
					Severity: string(report.StatusCritical),
					Detail:   fmt.Sprintf("port %d accepted from any source", port),
					Points:   deductRiskyPort,
				})
			}
		}
	}
	return issues
}

// checkHygiene flags disabled-rule clutter and missing comments.
func checkHygiene(rules []Rule) []Issue {
	var issues []Issue
	for _, r := range rules {
		if !r.Enabled {
			issues = append(issues, Issue{
				Rule:     r.Name,
				Position: r.Position,
				Category: "disabled_rule",
				Severity: string(report.StatusInfo),
				Detail:   "disabled rule left in the policy",
				Points:   deductDisabled,
			})
			continue
		}
		if strings.TrimSpace(r.Comment) == "" {
			issues = append(issues, Issue{
				Rule:     r.Name,
				Position: r.Position,
				Category: "missing_comment",
				Severity: string(report.StatusInfo),
				Detail:   "no change-control comment",
				Points:   deductNoComment,
			})
		}
	}
	return issues
}

// Collect implements pipeline.Tool.
func (a *Auditor) Collect(ctx context.Context, log *logrus.Logger) (*pipeline.Outcome, error) {
	rules, err := LoadRules(a.ExportPath)
	if err != nil {
		return nil, err
	}
	log.Infof("loaded %d rule(s) from %s", len(rules), a.ExportPath)

	issues := a.Audit(rules)
	score := Score(issues)
	log.Infof("audit complete: %d issue(s), compliance %.0f%%", len(issues), score)

	return a.outcome(rules, issues, score), nil
}

func (a *Auditor) outcome(rules []Rule, issues []Issue, score float64) *pipeline.Outcome {
	byRule := make(map[int]report.Status)
	var findings []report.Finding
	for _, issue := range issues {
		sev := report.Status(issue.Severity)
		if sev.Worse(byRule[issue.Position]) {
			byRule[issue.Position] = sev
		}
		if sev == report.StatusCritical || sev == report.StatusWarning {
			findings = append(findings, report.Finding{
				Severity: sev,
				Title:    fmt.Sprintf("[%s] %s", issue.Category, issue.Rule),
				Detail:   issue.Detail,
			})
		}
	}

	table := report.Table{
		Title:  "Rules",
		Header: []string{"#", "Name", "Action", "Source", "Destination", "Port", "Proto", "Enabled", "Comment"},
	}
	var csvRows [][]string
	for _, r := range rules {
		status := byRule[r.Position]
		if status == "" {
			status = report.StatusOK
		}
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		table.Rows = append(table.Rows, report.Row{
			Status: status,
			Cells: []string{
				fmt.Sprintf("%d", r.Position), r.Name, r.Action, r.Source,
				r.Destination, r.Port, r.Protocol, enabled, r.Comment,
			},
		})
		csvRows = append(csvRows, []string{
			fmt.Sprintf("%d", r.Position), r.Name, r.Action, r.Source,
			r.Destination, r.Port, r.Protocol, enabled, r.Comment, string(status),
		})
	}

	tables := []report.Table{table}
	data := &report.Data{
		Target:   a.ExportPath,
		Findings: findings,
		Tables:   tables,
	}
	data.Summary = report.Summarize("Compliance", score, tables)

	return &pipeline.Outcome{
		Report:    data,
		CSVHeader: []string{"position", "name", "action", "source", "destination", "port", "protocol", "enabled", "comment", "status"},
		CSVRows:   csvRows,
		Export: struct {
			Rules  []Rule  `json:"rules"`
			Issues []Issue `json:"issues"`
			Score  float64 `json:"compliance_score"`
		}{rules, issues, score},
	}
}

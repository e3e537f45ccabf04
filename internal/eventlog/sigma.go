package eventlog

import (
	"context"
	"embed"
	"io/fs"
	"path/filepath"
	"strings"

	sigmalib "github.com/bradleyjkemp/sigma-go"
	"github.com/bradleyjkemp/sigma-go/evaluator"
)

//go:embed rules
var embeddedRules embed.FS

// Match records one Sigma rule hit against a collected event.
type Match struct {
	RuleID      string `json:"rule_id"`
	RuleTitle   string `json:"rule_title"`
	Level       string `json:"level"` // informational | low | medium | high | critical
	Description string `json:"description,omitempty"`
	EventID     int    `json:"event_id"`
	Provider    string `json:"provider"`
	Channel     string `json:"channel"`
	Timestamp   string `json:"timestamp"`
}

// Engine evaluates Sigma rules against normalized events.
type Engine struct {
	rules []evaluator.RuleEvaluator
}

// NewEngine creates an Engine loaded with the built-in embedded rules.
func NewEngine() (*Engine, error) {
	sub, err := fs.Sub(embeddedRules, "rules")
	if err != nil {
		return nil, err
	}
	return NewEngineFromFS(sub)
}

// NewEngineFromFS loads every .yml/.yaml file in rulesFS as a Sigma rule.
func NewEngineFromFS(rulesFS fs.FS) (*Engine, error) {
	var rules []evaluator.RuleEvaluator

	err := fs.WalkDir(rulesFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}
		data, err := fs.ReadFile(rulesFS, path)
		if err != nil {
			return err
		}
		rule, err := sigmalib.ParseRule(data)
		if err != nil {
			return err
		}
		rules = append(rules, *evaluator.ForRule(rule))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Engine{rules: rules}, nil
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int { return len(e.rules) }

// MatchAll evaluates every rule against every event. Rules carrying a
// logsource.service are scoped to events from that channel.
func (e *Engine) MatchAll(ctx context.Context, events []Event) []Match {
	var matches []Match
	for _, event := range events {
		fields := map[string]interface{}{
			"EventID":  event.ID,
			"Level":    event.Level,
			"Provider": event.Provider,
			"Channel":  event.Channel,
			"Message":  event.Message,
		}
		for _, ev := range e.rules {
			if svc := ev.Rule.Logsource.Service; svc != "" &&
				!strings.EqualFold(svc, event.Channel) {
				continue
			}
			res, err := ev.Matches(ctx, fields)
			if err != nil || !res.Match {
				continue
			}
			matches = append(matches, Match{
				RuleID:      ev.Rule.ID,
				RuleTitle:   ev.Rule.Title,
				Level:       ev.Rule.Level,
				Description: ev.Rule.Description,
				EventID:     event.ID,
				Provider:    event.Provider,
				Channel:     event.Channel,
				Timestamp:   event.TimeCreated.Format("2006-01-02 15:04:05"),
			})
		}
	}
	return matches
}

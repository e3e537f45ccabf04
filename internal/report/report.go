// Package report renders run results as a styled HTML document and a colored
// console summary. Every toolkit command feeds the same Data model.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Status classifies a record or finding.
type Status string

const (
	StatusOK       Status = "ok"
	StatusInfo     Status = "info"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// rank orders statuses by severity for banner selection.
func (s Status) rank() int {
	switch s {
	case StatusCritical:
		return 3
	case StatusWarning:
		return 2
	case StatusInfo:
		return 1
	default:
		return 0
	}
}

// Worse reports whether s is more severe than other.
func (s Status) Worse(other Status) bool { return s.rank() > other.rank() }

// Finding is a single noteworthy observation (failed check, risky rule,
// over-quota volume) surfaced above the detail tables.
type Finding struct {
	Severity Status `json:"severity"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
}

// Row is one record in a detail table.
type Row struct {
	Cells  []string `json:"cells"`
	Status Status   `json:"status"`
}

// Table is a titled detail table, one row per object queried this run.
type Table struct {
	Title  string   `json:"title"`
	Header []string `json:"header"`
	Rows   []Row    `json:"rows"`
}

// Failure records an item that could not be collected. Failures never abort
// the run; they are reported alongside the partial result set.
type Failure struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// Summary carries the headline score and status counts.
type Summary struct {
	ScoreLabel string  `json:"score_label"` // e.g. "Health", "Compliance"
	Score      float64 `json:"score"`       // 0..100
	Grade      string  `json:"grade"`
	OK         int     `json:"ok"`
	Warning    int     `json:"warning"`
	Critical   int     `json:"critical"`
	Total      int     `json:"total"`
}

// Trend compares this run against the previous recorded run of the same tool.
type Trend struct {
	PreviousScore float64   `json:"previous_score"`
	PreviousAt    time.Time `json:"previous_at"`
	Delta         float64   `json:"delta"`
}

// Data is the complete model passed to the HTML template.
type Data struct {
	Tool        string    `json:"tool"`
	Title       string    `json:"title"`
	Hostname    string    `json:"hostname"`
	Target      string    `json:"target,omitempty"`
	RunID       string    `json:"run_id"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Duration    string    `json:"duration"`
	Summary     Summary   `json:"summary"`
	Findings    []Finding `json:"findings,omitempty"`
	Tables      []Table   `json:"tables,omitempty"`
	Failures    []Failure `json:"failures,omitempty"`
	Trend       *Trend    `json:"trend,omitempty"`
}

// Banner returns the headline color derived from the worst finding severity.
func (d *Data) Banner() string {
	worst := StatusOK
	for _, f := range d.Findings {
		if f.Severity.rank() > worst.rank() {
			worst = f.Severity
		}
	}
	if d.Summary.Critical > 0 && worst.rank() < StatusCritical.rank() {
		worst = StatusCritical
	}
	if d.Summary.Warning > 0 && worst.rank() < StatusWarning.rank() {
		worst = StatusWarning
	}
	switch worst {
	case StatusCritical:
		return "red"
	case StatusWarning:
		return "yellow"
	default:
		return "green"
	}
}

// Grade maps a 0..100 score onto a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Summarize fills the count fields and grade from table rows.
func Summarize(label string, score float64, tables []Table) Summary {
	s := Summary{ScoreLabel: label, Score: score, Grade: Grade(score)}
	for _, t := range tables {
		for _, r := range t.Rows {
			s.Total++
			switch r.Status {
			case StatusCritical:
				s.Critical++
			case StatusWarning:
				s.Warning++
			default:
				s.OK++
			}
		}
	}
	return s
}

// HealthPercent is the common score heuristic: share of rows that are not
// warning or critical.
func HealthPercent(s Summary) float64 {
	if s.Total == 0 {
		return 100
	}
	return 100 * float64(s.OK) / float64(s.Total)
}

// Renderer generates HTML reports from run data.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded HTML template.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"statusClass": func(s Status) string {
			switch s {
			case StatusCritical:
				return "st-critical"
			case StatusWarning:
				return "st-warning"
			case StatusInfo:
				return "st-info"
			default:
				return "st-ok"
			}
		},
		"bannerClass": func(banner string) string {
			switch banner {
			case "red":
				return "banner-red"
			case "yellow":
				return "banner-yellow"
			default:
				return "banner-green"
			}
		},
		"pct": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v)
		},
		"delta": func(v float64) string {
			if v >= 0 {
				return fmt.Sprintf("+%.1f", v)
			}
			return fmt.Sprintf("%.1f", v)
		},
		"upper": strings.ToUpper,
	}

	tmpl, err := template.New("report.html.tmpl").Funcs(funcMap).ParseFS(templates, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// RenderString renders the HTML report to a string.
func (r *Renderer) RenderString(data *Data) (string, error) {
	var buf strings.Builder
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// Render writes report.html into the output directory and returns its path.
func (r *Renderer) Render(data *Data, outputDir string) (string, error) {
	path := filepath.Join(outputDir, "report.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if err := r.tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return path, nil
}

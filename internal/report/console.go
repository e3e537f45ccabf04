package report

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	critColor = color.New(color.FgRed, color.Bold)
)

// PrintSummary writes the colored console summary: headline status line,
// score card, and a table of the findings worth a human's attention.
func PrintSummary(data *Data) {
	fmt.Println()
	switch data.Banner() {
	case "red":
		critColor.Printf("[CRITICAL] ")
	case "yellow":
		warnColor.Printf("[WARNING]  ")
	default:
		okColor.Printf("[OK]       ")
	}
	fmt.Printf("%s — %s\n", data.Title, data.Hostname)

	fmt.Printf("  %s: %.1f%% (grade %s)", data.Summary.ScoreLabel, data.Summary.Score, data.Summary.Grade)
	if data.Trend != nil {
		fmt.Printf("  [prev %.1f%%, %+.1f]", data.Trend.PreviousScore, data.Trend.Delta)
	}
	fmt.Println()
	fmt.Printf("  Items: %d total, %d ok, %d warning, %d critical\n",
		data.Summary.Total, data.Summary.OK, data.Summary.Warning, data.Summary.Critical)

	if len(data.Findings) > 0 {
		fmt.Println()
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Severity", "Finding", "Detail"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		for _, f := range data.Findings {
			table.Append([]string{string(f.Severity), f.Title, f.Detail})
		}
		table.Render()
	}

	if len(data.Failures) > 0 {
		fmt.Println()
		warnColor.Printf("  %d item(s) could not be collected — see report for details\n", len(data.Failures))
	}
}

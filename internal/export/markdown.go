// Package export renders rollup snapshots to Markdown files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"workobs/internal/domain"
)

// Day writes the Markdown report for a day rollup into dir, creating the
// directory if needed, and returns the absolute path written.
func Day(rollup domain.DayRollup, dir string) (string, error) {
	if dir == "" {
		dir = "logs-md"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# Date: %s\n\n", rollup.Date)

	md.WriteString("## Today's Intents\n")
	for _, intent := range rollup.Intents {
		fmt.Fprintf(&md, "- [ ] %s\n", intent)
	}
	md.WriteString("\n")

	md.WriteString("## Intent Blocks\n\n")
	md.WriteString("| Intent | Actual Outcome | Duration | Interrupted | Reason |\n")
	md.WriteString("|--------|----------------|----------|-------------|--------|\n")
	for _, b := range rollup.Blocks {
		outcome := ""
		if b.ActualOutcome != nil {
			outcome = *b.ActualOutcome
		}
		interrupted := "No"
		if b.Interrupted {
			interrupted = "Yes"
		}
		reason := "—"
		if b.ReasonCode != nil && *b.ReasonCode != "" {
			reason = *b.ReasonCode
		}
		fmt.Fprintf(&md, "| %s | %s | %s | %s | %s |\n",
			b.Intent, outcome, b.DurationLabel, interrupted, reason)
	}

	md.WriteString("\n## Metrics\n")
	fmt.Fprintf(&md, "- Total Active Time: %s\n", rollup.Metrics.TotalActiveLabel)
	fmt.Fprintf(&md, "- Total Blocks: %d\n", rollup.Metrics.TotalBlocks)
	fmt.Fprintf(&md, "- Fragmentation Rate: %d%%\n", int(rollup.Metrics.FragmentationRate*100))
	fmt.Fprintf(&md, "- Focus Blocks: %d\n", rollup.Metrics.FocusBlocks)

	path := filepath.Join(dir, fmt.Sprintf("daily-%s.md", rollup.Date))
	if err := os.WriteFile(path, []byte(md.String()), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

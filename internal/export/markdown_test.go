package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"workobs/internal/domain"
)

func TestDayWritesReport(t *testing.T) {
	dir := t.TempDir()
	outcome := "Shipped it"
	reason := "MEETING"
	minutes := 45
	rollup := domain.DayRollup{
		Date:    "2023-10-27",
		Intents: []string{"Code feature", "Review PR"},
		Blocks: []domain.WorkBlock{
			{
				BlockID:         "b1",
				Intent:          "Code feature",
				Date:            "2023-10-27",
				Interrupted:     true,
				ReasonCode:      &reason,
				ActualOutcome:   &outcome,
				DurationMinutes: &minutes,
				DurationLabel:   "~1 hour",
			},
		},
		Metrics: domain.DayMetrics{
			TotalBlocks:        1,
			InterruptedBlocks:  1,
			FragmentationRate:  1.0,
			TotalActiveMinutes: 45,
			TotalActiveLabel:   "~1 hour",
		},
	}

	path, err := Day(rollup, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Base(path) != "daily-2023-10-27.md" {
		t.Errorf("unexpected filename %s", path)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	md := string(data)
	for _, want := range []string{
		"# Date: 2023-10-27",
		"- [ ] Code feature",
		"- [ ] Review PR",
		"| Code feature | Shipped it | ~1 hour | Yes | MEETING |",
		"- Total Active Time: ~1 hour",
		"- Fragmentation Rate: 100%",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n%s", want, md)
		}
	}
}

func TestDayEmptyRollup(t *testing.T) {
	dir := t.TempDir()
	rollup := domain.DayRollup{
		Date:    "2024-01-01",
		Intents: []string{},
		Metrics: domain.DayMetrics{TotalActiveLabel: "~15 mins"},
	}
	path, err := Day(rollup, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "- Fragmentation Rate: 0%") {
		t.Errorf("expected zero fragmentation in empty report:\n%s", data)
	}
}

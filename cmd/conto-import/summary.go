package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"conto/internal/core"
	"conto/internal/services"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	labelStyle = lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color("#7f849c"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// renderSummary draws the import outcome. committed is nil for dry runs.
func renderSummary(p services.Preview, committed *services.Committed) string {
	var total float64
	for _, t := range p.New {
		total += t.Amount
	}

	title := "Import preview (dry run)"
	if committed != nil {
		title = "Import complete"
	}

	lines := []string{
		titleStyle.Render(title),
		row("New", fmt.Sprintf("%d (%s)", len(p.New), core.FormatAmount(total))),
		row("Duplicates", fmt.Sprintf("%d", len(p.Duplicates))),
		row("Auto-classified", fmt.Sprintf("%d", p.AutoClassified)),
		row("Skipped rows", fmt.Sprintf("%d", p.Skipped)),
	}
	if committed != nil {
		lines = append(lines, row("Stored", fmt.Sprintf("%d", len(committed.Imported))))
		if committed.DuplicatesSkipped > 0 {
			lines = append(lines, warnStyle.Render(
				fmt.Sprintf("%d duplicate(s) left out; rerun with -include-duplicates to keep them", committed.DuplicatesSkipped)))
		}
	}
	for _, fp := range p.Problems {
		lines = append(lines, errStyle.Render(fmt.Sprintf("%s: %s", fp.File, fp.Message)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

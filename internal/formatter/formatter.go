// package formatter renders merge summaries for terminal and Markdown output
package formatter

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/tbonnin/mediatheque/internal/merge"
	"github.com/tbonnin/mediatheque/internal/ui"
)

// sortedTables returns the insert-count table names in stable order.
func sortedTables(counts map[string]int) []string {
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// FormatText renders a summary for the terminal.
func FormatText(s *merge.Summary) []byte {
	var buf bytes.Buffer

	switch {
	case s.Err != "":
		buf.WriteString(ui.Err("Merge failed") + "\n")
		buf.WriteString(fmt.Sprintf("  %s\n", s.Err))
		return buf.Bytes()
	case s.Skipped:
		buf.WriteString(ui.Warn("Merge deferred") + "\n")
		buf.WriteString(fmt.Sprintf("  %s\n", s.SkipReason))
		return buf.Bytes()
	case !s.Merged:
		buf.WriteString(ui.OK("Nothing new to merge") + "\n")
	default:
		buf.WriteString(ui.OK(fmt.Sprintf("Merged %d new rows", s.TotalInserted())) + "\n")
	}

	for _, table := range sortedTables(s.Inserted) {
		buf.WriteString(fmt.Sprintf("  %-24s %d\n", table, s.Inserted[table]))
	}

	for _, store := range s.Stores {
		switch store.Status {
		case merge.StoreSkipped:
			buf.WriteString(ui.Warn(fmt.Sprintf("skipped %s: %s", store.Path, store.Reason)) + "\n")
		case merge.StoreFailed:
			buf.WriteString(ui.Err(fmt.Sprintf("failed %s: %s", store.Path, store.Reason)) + "\n")
		}
	}

	return buf.Bytes()
}

// FormatMarkdown renders a summary as a Markdown report.
func FormatMarkdown(s *merge.Summary) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Merge report\n\n")

	if s.Err != "" {
		buf.WriteString(fmt.Sprintf("**Failed**: %s\n", s.Err))
		return buf.Bytes()
	}
	if s.Skipped {
		buf.WriteString(fmt.Sprintf("**Deferred**: %s\n", s.SkipReason))
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("**New rows**: %d\n\n", s.TotalInserted()))

	if len(s.Inserted) > 0 {
		buf.WriteString("| Table | Inserted |\n|---|---|\n")
		for _, table := range sortedTables(s.Inserted) {
			buf.WriteString(fmt.Sprintf("| %s | %d |\n", table, s.Inserted[table]))
		}
		buf.WriteString("\n")
	}

	if len(s.Stores) > 0 {
		buf.WriteString("## Stores\n\n")
		for _, store := range s.Stores {
			line := fmt.Sprintf("- %s: %s", store.Path, store.Status)
			if store.Reason != "" {
				line += fmt.Sprintf(" (%s)", store.Reason)
			}
			buf.WriteString(line + "\n")
		}
	}

	return buf.Bytes()
}

package formatter

import (
	"strings"
	"testing"

	"github.com/tbonnin/mediatheque/internal/merge"
)

func TestFormatText(t *testing.T) {
	t.Run("successful run lists insert counts", func(t *testing.T) {
		s := &merge.Summary{
			Merged:   true,
			Inserted: map[string]int{"tomes": 3, "series": 1},
			Stores:   []merge.StoreReport{{Path: "/lib/bob.db", Status: merge.StoreMerged}},
		}

		out := string(FormatText(s))

		if !strings.Contains(out, "Merged 4 new rows") {
			t.Errorf("expected headline with total, got:\n%s", out)
		}
		if !strings.Contains(out, "series") || !strings.Contains(out, "tomes") {
			t.Errorf("expected per-table counts, got:\n%s", out)
		}
		if strings.Index(out, "series") > strings.Index(out, "tomes") {
			t.Error("expected tables in sorted order")
		}
	})

	t.Run("no-op run", func(t *testing.T) {
		out := string(FormatText(&merge.Summary{}))
		if !strings.Contains(out, "Nothing new to merge") {
			t.Errorf("expected no-op headline, got:\n%s", out)
		}
	})

	t.Run("deferred run shows the reason", func(t *testing.T) {
		s := &merge.Summary{Skipped: true, SkipReason: "conflicting job active"}
		out := string(FormatText(s))
		if !strings.Contains(out, "Merge deferred") || !strings.Contains(out, "conflicting job active") {
			t.Errorf("expected deferral notice, got:\n%s", out)
		}
	})

	t.Run("failed run shows the error", func(t *testing.T) {
		s := &merge.Summary{Err: "destination store inaccessible"}
		out := string(FormatText(s))
		if !strings.Contains(out, "Merge failed") || !strings.Contains(out, "destination store inaccessible") {
			t.Errorf("expected failure notice, got:\n%s", out)
		}
	})

	t.Run("skipped stores are surfaced", func(t *testing.T) {
		s := &merge.Summary{
			Merged:   true,
			Inserted: map[string]int{"series": 1},
			Stores: []merge.StoreReport{
				{Path: "/lib/bob.db", Status: merge.StoreMerged},
				{Path: "/lib/eve.db", Status: merge.StoreSkipped, Reason: "store corrupt"},
			},
		}

		out := string(FormatText(s))
		if !strings.Contains(out, "/lib/eve.db") || !strings.Contains(out, "store corrupt") {
			t.Errorf("expected the skipped store listed, got:\n%s", out)
		}
		if strings.Contains(out, "skipped /lib/bob.db") {
			t.Error("merged stores must not be listed as skipped")
		}
	})
}

func TestFormatMarkdown(t *testing.T) {
	t.Run("renders the report table", func(t *testing.T) {
		s := &merge.Summary{
			Merged:   true,
			Inserted: map[string]int{"series": 2},
			Stores:   []merge.StoreReport{{Path: "/lib/bob.db", Status: merge.StoreMerged}},
		}

		out := string(FormatMarkdown(s))

		for _, want := range []string{"# Merge report", "**New rows**: 2", "| series | 2 |", "## Stores", "- /lib/bob.db: merged"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in:\n%s", want, out)
			}
		}
	})

	t.Run("deferred and failed runs short-circuit", func(t *testing.T) {
		out := string(FormatMarkdown(&merge.Summary{Skipped: true, SkipReason: "conflicting job active"}))
		if !strings.Contains(out, "**Deferred**: conflicting job active") {
			t.Errorf("expected deferral line, got:\n%s", out)
		}
		if strings.Contains(out, "New rows") {
			t.Error("deferred report must not include counts")
		}

		out = string(FormatMarkdown(&merge.Summary{Err: "boom"}))
		if !strings.Contains(out, "**Failed**: boom") {
			t.Errorf("expected failure line, got:\n%s", out)
		}
	})
}

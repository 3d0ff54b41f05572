package merge

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/tbonnin/mediatheque/internal/schema"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle folds a raw title into its comparison form: trimmed,
// lower-cased, Latin diacritics stripped, inner whitespace collapsed.
func NormalizeTitle(s string) string {
	folded := strings.ToLower(strings.TrimSpace(foldDiacritics(s)))
	return strings.Join(strings.Fields(folded), " ")
}

// foldDiacritics strips combining marks from Latin base characters only.
// Marks on other scripts are significant (kana dakuten and handakuten
// distinguish titles) and must survive the fold.
func foldDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	latinBase := false
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			if latinBase {
				continue
			}
			b.WriteRune(r)
			continue
		}
		latinBase = unicode.Is(unicode.Latin, r)
		b.WriteRune(r)
	}

	return norm.NFC.String(b.String())
}

// titleVariants builds the normalized title set of a row: each title column
// split on "/" and "|" separators, every piece normalized, empties dropped.
func titleVariants(row Row, cols []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, col := range cols {
		raw, ok := toString(row[col])
		if !ok || raw == "" {
			continue
		}
		for _, piece := range strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == '|' }) {
			if v := NormalizeTitle(piece); v != "" {
				set[v] = struct{}{}
			}
		}
	}
	return set
}

func setsOverlap(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for v := range a {
		if _, ok := b[v]; ok {
			return true
		}
	}
	return false
}

// titleEntry caches one destination row's id and normalized title set.
type titleEntry struct {
	id       int64
	variants map[string]struct{}
}

// Resolver matches source rows to destination rows through each entity's
// ordered identity-key chain. It caches destination title sets per table;
// the cache is dropped whenever the orchestrator inserts into that table.
type Resolver struct {
	dest   *sql.DB
	titles map[string][]titleEntry
}

// NewResolver creates a Resolver bound to the destination store.
func NewResolver(dest *sql.DB) *Resolver {
	return &Resolver{dest: dest, titles: make(map[string][]titleEntry)}
}

// Invalidate drops the cached title sets for table.
func (r *Resolver) Invalidate(table string) {
	delete(r.titles, table)
}

// HasIdentity reports whether the row carries enough data to be identified
// at all: at least one non-null identity-key column, or a non-empty title
// set. Rows without any identity are skipped rather than inserted blind.
func HasIdentity(ent schema.Entity, row Row, common map[string]bool) bool {
	for _, key := range ent.Identity {
		if key.Kind == schema.KeyTitleSet {
			if len(titleVariants(row, availableCols(ent.TitleCols, common))) > 0 {
				return true
			}
			continue
		}
		for _, col := range key.Columns {
			if common[col] && row[col] != nil {
				return true
			}
		}
	}
	return false
}

// Resolve walks the identity chain and returns the matching destination
// row id. First hit wins; no further keys are tried once a key matches.
// found is false when the chain is exhausted, signalling an insert.
//
// Foreign-key columns in compound keys must already be remapped to
// destination-local ids by the caller.
func (r *Resolver) Resolve(ent schema.Entity, row Row, common map[string]bool) (id int64, found bool, err error) {
	for _, key := range ent.Identity {
		switch key.Kind {
		case schema.KeyExternal:
			col := key.Columns[0]
			if !common[col] || row[col] == nil {
				continue
			}
			id, found, err = r.lookup(ent.Table, []string{col}, []any{row[col]})

		case schema.KeyCompound:
			cols, values, usable := compoundKey(key, row, common)
			if !usable {
				continue
			}
			id, found, err = r.lookup(ent.Table, cols, values)

		case schema.KeyTitleSet:
			id, found, err = r.resolveByTitles(ent, row, common)
		}

		if err != nil {
			return 0, false, err
		}
		if found {
			return id, true, nil
		}
	}

	return 0, false, nil
}

// compoundKey collects the column/value pairs of a compound key. Null
// members are kept and matched as IS NULL; the key is only unusable when a
// column is missing from the live schemas or every member is null.
func compoundKey(key schema.IdentityKey, row Row, common map[string]bool) ([]string, []any, bool) {
	cols := make([]string, 0, len(key.Columns))
	values := make([]any, 0, len(key.Columns))
	nonNull := false
	for _, col := range key.Columns {
		if !common[col] {
			return nil, nil, false
		}
		if row[col] != nil {
			nonNull = true
		}
		cols = append(cols, col)
		values = append(values, row[col])
	}
	return cols, values, nonNull
}

func (r *Resolver) lookup(table string, cols []string, values []any) (int64, bool, error) {
	conds := make([]string, len(cols))
	args := make([]any, 0, len(values))
	for i, col := range cols {
		if values[i] == nil {
			conds[i] = col + " IS NULL"
			continue
		}
		conds[i] = col + " = ?"
		args = append(args, values[i])
	}
	query := fmt.Sprintf("SELECT id FROM %s WHERE %s LIMIT 1", table, strings.Join(conds, " AND "))

	var id int64
	err := r.dest.QueryRow(query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("identity lookup on %s failed: %w", table, err)
	}
	return id, true, nil
}

// resolveByTitles is the last-resort fallback: any overlap between the
// source row's normalized title set and a destination row's set is a
// match. Linear over the destination table, which stays small for
// personal libraries; it only runs when cheaper keys failed or are absent.
func (r *Resolver) resolveByTitles(ent schema.Entity, row Row, common map[string]bool) (int64, bool, error) {
	cols := availableCols(ent.TitleCols, common)
	if len(cols) == 0 {
		return 0, false, nil
	}
	want := titleVariants(row, cols)
	if len(want) == 0 {
		return 0, false, nil
	}

	entries, ok := r.titles[ent.Table]
	if !ok {
		destRows, err := readTable(r.dest, ent.Table, cols)
		if err != nil {
			return 0, false, err
		}
		for _, dr := range destRows {
			entries = append(entries, titleEntry{id: dr.ID(), variants: titleVariants(dr, cols)})
		}
		r.titles[ent.Table] = entries
	}

	for _, entry := range entries {
		if setsOverlap(want, entry.variants) {
			return entry.id, true, nil
		}
	}
	return 0, false, nil
}

// availableCols filters declared columns down to those live in both schemas.
func availableCols(cols []string, common map[string]bool) []string {
	var out []string
	for _, col := range cols {
		if common[col] {
			out = append(out, col)
		}
	}
	return out
}

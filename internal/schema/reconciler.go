package schema

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/tbonnin/mediatheque/internal/shared"
)

// ColumnDef is a column the reconciler knows how to backfill.
type ColumnDef struct {
	Name string
	Type string
}

// lateColumns are nullable columns introduced by later application
// versions. Stores written before their migration existed lack them; the
// reconciler adds them on sight so every store it visits converges on the
// current shape. Additive only: columns are never dropped or renamed.
var lateColumns = map[string][]ColumnDef{
	"users":  {{Name: "sync_uuid", Type: "TEXT"}},
	"series": {{Name: "source_tag", Type: "TEXT"}, {Name: "anilist_id", Type: "INTEGER"}},
	"animes": {{Name: "anilist_id", Type: "INTEGER"}},
}

// TableColumns returns the live column names of table in declaration order.
func TableColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info for %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("column iteration error for %s: %w", table, err)
	}

	return cols, nil
}

// CommonColumns returns the ordered intersection of column names present in
// both the source and destination schemas for table, id excluded. Schemas
// drift across application versions, so the merge only ever reads and
// writes this intersection.
//
// An empty intersection returns [shared.ErrSchemaMismatch]; the caller
// skips the table for that store.
func CommonColumns(src, dst *sql.DB, table string) ([]string, error) {
	srcCols, err := TableColumns(src, table)
	if err != nil {
		return nil, err
	}
	dstCols, err := TableColumns(dst, table)
	if err != nil {
		return nil, err
	}

	inDst := make(map[string]bool, len(dstCols))
	for _, c := range dstCols {
		inDst[c] = true
	}

	var common []string
	for _, c := range srcCols {
		if c != "id" && inDst[c] {
			common = append(common, c)
		}
	}

	if len(common) == 0 {
		return nil, fmt.Errorf("%w: table %s", shared.ErrSchemaMismatch, table)
	}

	return common, nil
}

// EnsureColumns adds any known late-version columns missing from table.
// Idempotent: columns already present are left untouched. A failed ALTER is
// logged and swallowed; the merge then simply works without that column.
func EnsureColumns(db *sql.DB, logger *log.Logger, table string) error {
	wanted, ok := lateColumns[table]
	if !ok {
		return nil
	}

	live, err := TableColumns(db, table)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(live))
	for _, c := range live {
		present[c] = true
	}

	for _, def := range wanted {
		if present[def.Name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, def.Name, def.Type)
		if _, err := db.Exec(stmt); err != nil {
			if logger != nil {
				logger.Warn("failed to backfill column", "table", table, "column", def.Name, "error", err)
			}
			continue
		}
		if logger != nil {
			logger.Debug("backfilled column", "table", table, "column", def.Name)
		}
	}

	return nil
}

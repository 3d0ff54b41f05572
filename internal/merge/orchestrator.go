// package merge implements the reconciliation engine that folds the other
// household members' library stores into the active user's store.
//
// A run is a single synchronous batch: locate candidate stores, gate each
// one through an integrity check, then walk the mergeable tables in
// dependency order, resolving identity, remapping foreign keys and
// applying column-level conflict resolution. Failures are contained at
// row, table and store granularity; only losing the destination store
// fails the run.
package merge

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tbonnin/mediatheque/internal/schema"
	"github.com/tbonnin/mediatheque/internal/shared"
)

// Options configure a merge run.
type Options struct {
	Dir        string // library directory holding candidate stores
	ActiveUser string // owner of the destination store
	Policy     Policy

	// JobActive reports whether a conflicting background job (catalogue
	// enrichment) currently mutates the destination store. When it
	// returns true the whole run is deferred; there is no fine-grained
	// locking.
	JobActive func() bool

	Logger *log.Logger
	Now    func() time.Time
}

// Orchestrator drives merge runs against one destination store. It is the
// destination's only writer; every source store is opened read-only.
type Orchestrator struct {
	dest   *sql.DB
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// NewOrchestrator creates an Orchestrator writing into dest.
func NewOrchestrator(dest *sql.DB, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy == "" {
		opts.Policy = PolicyCurrentUser
	}
	return &Orchestrator{dest: dest, opts: opts, logger: opts.Logger, now: opts.Now}
}

// Run executes one merge pass and never returns an error: every failure
// mode is folded into the Summary. Re-running with unchanged sources is
// idempotent.
func (o *Orchestrator) Run() *Summary {
	summary := &Summary{}

	if o.opts.JobActive != nil && o.opts.JobActive() {
		o.logger.Info("merge deferred", "reason", shared.ErrPreconditionBlocked)
		summary.Skipped = true
		summary.SkipReason = shared.ErrPreconditionBlocked.Error()
		return summary
	}

	if o.dest == nil {
		summary.Err = "destination store not open"
		return summary
	}
	if err := o.dest.Ping(); err != nil {
		summary.Err = fmt.Sprintf("destination store inaccessible: %v", err)
		return summary
	}

	// Additive forward-migrations on the destination. Sources stay
	// read-only; their missing columns simply fall out of the common set.
	for _, ent := range schema.Entities() {
		if err := schema.EnsureColumns(o.dest, o.logger, ent.Table); err != nil {
			o.logger.Warn("schema backfill failed", "table", ent.Table, "error", err)
		}
	}

	stores, err := LocateStores(o.opts.Dir, o.opts.ActiveUser)
	if err != nil {
		summary.Err = err.Error()
		return summary
	}
	o.logger.Info("merge starting", "candidates", len(stores), "policy", o.opts.Policy)

	for _, path := range stores {
		report := o.mergeStore(path)
		summary.Stores = append(summary.Stores, report)
		for _, tr := range report.Tables {
			summary.addTable(tr)
		}
	}

	summary.Merged = summary.TotalInserted() > 0
	o.logger.Info("merge finished", "merged", summary.Merged, "inserted", summary.TotalInserted())
	return summary
}

// mergeStore folds one source store into the destination. An abort here
// only loses this store's remaining tables; the run continues with the
// next candidate.
func (o *Orchestrator) mergeStore(path string) StoreReport {
	logger := o.logger.With("store", path)

	src, err := OpenSource(path)
	if err != nil {
		logger.Warn("skipping store", "error", err)
		return StoreReport{Path: path, Status: StoreSkipped, Reason: err.Error()}
	}
	defer src.Close()

	report := StoreReport{Path: path, Status: StoreMerged}
	ids := NewIDMap()
	resolver := NewResolver(o.dest)

	for _, ent := range schema.Entities() {
		tr, err := o.mergeTable(src, ent, ids, resolver, logger)
		report.Tables = append(report.Tables, tr)
		if err != nil {
			logger.Error("aborting store", "table", ent.Table, "error", err)
			report.Status = StoreFailed
			report.Reason = err.Error()
			break
		}
	}

	return report
}

// mergeTable folds one table of one source store. The returned error is
// store-level (source unreadable mid-traversal); everything else is
// contained in the report.
func (o *Orchestrator) mergeTable(src *sql.DB, ent schema.Entity, ids *IDMap, resolver *Resolver, logger *log.Logger) (TableReport, error) {
	tr := TableReport{Table: ent.Table}

	common, err := schema.CommonColumns(src, o.dest, ent.Table)
	if errors.Is(err, shared.ErrSchemaMismatch) {
		logger.Warn("skipping table", "table", ent.Table, "error", err)
		tr.Reason = err.Error()
		return tr, nil
	}
	if err != nil {
		return tr, err
	}

	commonSet := make(map[string]bool, len(common))
	for _, col := range common {
		commonSet[col] = true
	}

	rows, err := readTable(src, ent.Table, common)
	if err != nil {
		return tr, err
	}

	for _, srcRow := range rows {
		row := srcRow.Clone()

		if err := RemapParents(ent, row, commonSet, ids); err != nil {
			logger.Debug("discarding row", "table", ent.Table, "row", srcRow.ID(), "error", err)
			tr.Skipped++
			continue
		}

		if !HasIdentity(ent, row, commonSet) {
			logger.Debug("discarding row", "table", ent.Table, "row", srcRow.ID(), "error", shared.ErrIdentityUnresolved)
			tr.Skipped++
			continue
		}

		dstID, found, err := resolver.Resolve(ent, row, commonSet)
		if err != nil {
			logger.Warn("identity resolution failed", "table", ent.Table, "row", srcRow.ID(), "error", err)
			tr.Skipped++
			continue
		}

		if found {
			if err := o.updateRow(ent, row, dstID, common, commonSet); err != nil {
				logger.Warn("failed to update row", "table", ent.Table, "row", srcRow.ID(), "dest", dstID, "error", err)
				tr.Skipped++
				continue
			}
			if ent.Table == "users" {
				o.linkUserSync(row, dstID, commonSet, logger)
			}
			ids.Put(ent.Table, srcRow.ID(), dstID)
			tr.Matched++
			continue
		}

		newID, err := o.insertRow(ent, row, common)
		if err != nil {
			if errors.Is(err, shared.ErrUniqueExpected) {
				// Already merged on a previous run; recover the
				// destination id so child rows stay remappable.
				if dstID, ok, rerr := resolver.Resolve(ent, row, commonSet); rerr == nil && ok {
					ids.Put(ent.Table, srcRow.ID(), dstID)
					tr.Matched++
				} else {
					tr.Skipped++
				}
				continue
			}
			logger.Warn("failed to insert row", "table", ent.Table, "row", srcRow.ID(), "error", err)
			tr.Skipped++
			continue
		}

		ids.Put(ent.Table, srcRow.ID(), newID)
		tr.Inserted++
		resolver.Invalidate(ent.Table)
	}

	return tr, nil
}

// updateRow applies column-level conflict resolution to a matched row.
// Only non-null resolved values that differ from the current destination
// value are written, and updated_at is refreshed only when something
// actually changed.
func (o *Orchestrator) updateRow(ent schema.Entity, srcRow Row, dstID int64, common []string, commonSet map[string]bool) error {
	destRow, err := readRowByID(o.dest, ent.Table, common, dstID)
	if err != nil {
		return fmt.Errorf("failed to read destination row: %w", err)
	}

	srcUpdated := toTime(srcRow["updated_at"])
	destUpdated := toTime(destRow["updated_at"])

	var srcTagged, destTagged bool
	if ent.Provenance != "" && commonSet[ent.Provenance] {
		srcTagged = tagSet(srcRow[ent.Provenance])
		destTagged = tagSet(destRow[ent.Provenance])
	}

	var assigns []string
	var args []any
	for _, col := range ent.Mergeable(common) {
		resolved := o.opts.Policy.Resolve(Conflict{
			Column:        col,
			Source:        srcRow[col],
			Dest:          destRow[col],
			SourceUpdated: srcUpdated,
			DestUpdated:   destUpdated,
			SourceTagged:  srcTagged,
			DestTagged:    destTagged,
		})
		if resolved == nil || valuesEqual(resolved, destRow[col]) {
			continue
		}
		assigns = append(assigns, col+" = ?")
		args = append(args, resolved)
	}

	if len(assigns) == 0 {
		return nil
	}

	assigns = append(assigns, "updated_at = ?")
	args = append(args, o.now(), dstID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", ent.Table, strings.Join(assigns, ", "))
	if _, err := o.dest.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to update %s row %d: %w", ent.Table, dstID, err)
	}
	return nil
}

// insertRow writes an unmatched source row into the destination with its
// foreign keys already remapped. Private columns never cross stores; they
// stay at their defaults on the new row.
func (o *Orchestrator) insertRow(ent schema.Entity, row Row, common []string) (int64, error) {
	var cols []string
	var args []any
	for _, col := range common {
		v := row[col]
		if ent.IsPrivate(col) {
			if ent.Table != "users" || col != "sync_uuid" {
				continue
			}
			// Inserted users keep their sync id, or get a fresh one so
			// the same person links up across later merges.
			if s, ok := toString(v); !ok || s == "" {
				v = shared.GenerateSyncID()
			}
		}
		if v == nil {
			continue
		}
		cols = append(cols, col)
		args = append(args, v)
	}

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", ent.Table)
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			ent.Table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	}

	res, err := o.dest.Exec(query, args...)
	if err != nil {
		return 0, classifyConstraintError(ent.NaturalUnique(), err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id for %s: %w", ent.Table, err)
	}
	return id, nil
}

// linkUserSync backfills the destination user's sync_uuid when unset. An
// already-assigned id is never overwritten.
func (o *Orchestrator) linkUserSync(srcRow Row, dstID int64, commonSet map[string]bool, logger *log.Logger) {
	var current sql.NullString
	err := o.dest.QueryRow("SELECT sync_uuid FROM users WHERE id = ?", dstID).Scan(&current)
	if err != nil {
		// Destination predates the sync column and the backfill failed.
		logger.Debug("sync id lookup failed", "user", dstID, "error", err)
		return
	}
	if current.Valid && current.String != "" {
		return
	}

	val := ""
	if commonSet["sync_uuid"] {
		if s, ok := toString(srcRow["sync_uuid"]); ok && s != "" {
			val = s
		}
	}
	if val == "" {
		val = shared.GenerateSyncID()
	}

	if _, err := o.dest.Exec("UPDATE users SET sync_uuid = ? WHERE id = ?", val, dstID); err != nil {
		logger.Warn("failed to link user sync id", "user", dstID, "error", err)
	}
}

// tagSet reports whether a provenance column value marks the row as
// coming from the authoritative catalogue.
func tagSet(v any) bool {
	s, ok := toString(v)
	return ok && s != ""
}

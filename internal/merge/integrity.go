package merge

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/tbonnin/mediatheque/internal/shared"
)

// OpenSource opens a candidate store read-only and verifies it is healthy.
//
// Failures are classified as [shared.ErrStoreCorrupt], [shared.ErrStoreLocked]
// or [shared.ErrStoreUnreadable]; the caller skips the store and moves on.
// A bad candidate is never fatal to the run.
func OpenSource(path string) (*sql.DB, error) {
	db, err := shared.OpenReadOnly(path)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	var verdict string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&verdict); err != nil {
		db.Close()
		return nil, classifyStoreError(err)
	}
	if verdict != "ok" {
		db.Close()
		return nil, fmt.Errorf("%w: quick_check reported %q", shared.ErrStoreCorrupt, verdict)
	}

	return db, nil
}

// classifyStoreError folds a driver error into the store failure taxonomy.
func classifyStoreError(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", shared.ErrStoreLocked, err)
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return fmt.Errorf("%w: %v", shared.ErrStoreCorrupt, err)
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreUnreadable, err)
}

// classifyConstraintError folds an insert failure into the row failure
// taxonomy. A unique or primary-key violation on an entity whose natural
// key is store-enforced means the row already exists in the destination:
// expected, swallowed as a no-op. Anything else is unexpected and skips
// the row with a diagnostic.
func classifyConstraintError(naturalUnique bool, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		switch serr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			if naturalUnique {
				return fmt.Errorf("%w: %v", shared.ErrUniqueExpected, err)
			}
		}
		return fmt.Errorf("%w: %v", shared.ErrUniqueUnexpected, err)
	}
	return err
}

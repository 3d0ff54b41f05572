// package testing contains shared testing utilities
package testing

import (
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tbonnin/mediatheque/internal/shared"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// NewStore creates a fully migrated store file named <name>.db in dir and
// returns an open handle. The caller owns closing it.
func NewStore(t *testing.T, dir, name string) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(dir, name+".db"))
	if err != nil {
		t.Fatalf("failed to create store %s: %v", name, err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to migrate store %s: %v", name, err)
	}
	return db
}

// WriteGarbageStore writes a file that is not a SQLite database.
func WriteGarbageStore(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name+".db")
	if err := os.WriteFile(path, []byte("this is not a database, repeated until long enough to be sure"), 0644); err != nil {
		t.Fatalf("failed to write garbage store: %v", err)
	}
	return path
}

// MustExec runs a statement and fails the test on error.
func MustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()

	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec failed: %v\nquery: %s", err, query)
	}
}

// QueryInt scans a single integer result.
func QueryInt(t *testing.T, db *sql.DB, query string, args ...any) int64 {
	t.Helper()

	var n int64
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("query failed: %v\nquery: %s", err, query)
	}
	return n
}

// QueryString scans a single nullable text result; empty string when null.
func QueryString(t *testing.T, db *sql.DB, query string, args ...any) string {
	t.Helper()

	var s sql.NullString
	if err := db.QueryRow(query, args...).Scan(&s); err != nil {
		t.Fatalf("query failed: %v\nquery: %s", err, query)
	}
	return s.String
}

package merge

import (
	"fmt"

	"github.com/tbonnin/mediatheque/internal/schema"
	"github.com/tbonnin/mediatheque/internal/shared"
)

// IDMap tracks, per table, which destination row each source row resolved
// to during the current store's traversal. Child tables consult it to
// remap their parent references; it is rebuilt from scratch for every
// source store.
type IDMap struct {
	m map[string]map[int64]int64
}

// NewIDMap creates an empty id map.
func NewIDMap() *IDMap {
	return &IDMap{m: make(map[string]map[int64]int64)}
}

// Put records that source row src of table resolved to destination row dst.
func (m *IDMap) Put(table string, src, dst int64) {
	byTable, ok := m.m[table]
	if !ok {
		byTable = make(map[int64]int64)
		m.m[table] = byTable
	}
	byTable[src] = dst
}

// Get returns the destination id recorded for source row src of table.
func (m *IDMap) Get(table string, src int64) (int64, bool) {
	dst, ok := m.m[table][src]
	return dst, ok
}

// RemapParents substitutes destination-local ids into the row's foreign-key
// columns, in place. It must run before identity resolution and writing,
// so compound keys and written rows always carry valid destination
// references.
//
// A required parent with no mapping (unmatched, or its own merge step
// failed) returns [shared.ErrForeignKeyUnresolved] and the child row is
// discarded by the caller. Optional parents degrade to null.
func RemapParents(ent schema.Entity, row Row, common map[string]bool, ids *IDMap) error {
	for _, fk := range ent.Parents {
		if !common[fk.Column] {
			if fk.Required {
				return fmt.Errorf("%w: %s.%s missing from schema", shared.ErrForeignKeyUnresolved, ent.Table, fk.Column)
			}
			continue
		}

		src, ok := toInt64(row[fk.Column])
		if !ok {
			if fk.Required {
				return fmt.Errorf("%w: %s.%s is null", shared.ErrForeignKeyUnresolved, ent.Table, fk.Column)
			}
			row[fk.Column] = nil
			continue
		}

		dst, ok := ids.Get(fk.RefTable, src)
		if !ok {
			if fk.Required {
				return fmt.Errorf("%w: %s.%s -> %s[%d] has no destination row", shared.ErrForeignKeyUnresolved, ent.Table, fk.Column, fk.RefTable, src)
			}
			row[fk.Column] = nil
			continue
		}

		row[fk.Column] = dst
	}
	return nil
}

package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StoreExt is the file extension of per-user library stores.
const StoreExt = ".db"

// transientPrefix marks working copies written during imports and backups.
// They are never merge candidates.
const transientPrefix = "tmp_"

// LocateStores lists candidate source stores in dir: files carrying the
// store extension, minus the active user's own store and transient working
// copies. The result is sorted, so a run visits stores in a stable order.
func LocateStores(dir, activeUser string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read library directory: %w", err)
	}

	var stores []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), StoreExt) {
			continue
		}
		if strings.HasPrefix(name, transientPrefix) {
			continue
		}
		owner := strings.TrimSuffix(name, filepath.Ext(name))
		if strings.EqualFold(owner, activeUser) {
			continue
		}
		stores = append(stores, filepath.Join(dir, name))
	}

	sort.Strings(stores)
	return stores, nil
}

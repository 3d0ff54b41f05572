package merge

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
}

func TestLocateStores(t *testing.T) {
	t.Run("filters and sorts candidates", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "zoe.db")
		touch(t, dir, "bob.db")
		touch(t, dir, "alice.db")
		touch(t, dir, "tmp_bob.db")
		touch(t, dir, "notes.txt")
		touch(t, dir, "charlie.DB")
		if err := os.Mkdir(filepath.Join(dir, "backups.db"), 0755); err != nil {
			t.Fatalf("failed to create subdir: %v", err)
		}

		stores, err := LocateStores(dir, "alice")
		if err != nil {
			t.Fatalf("failed to locate stores: %v", err)
		}

		want := []string{
			filepath.Join(dir, "bob.db"),
			filepath.Join(dir, "charlie.DB"),
			filepath.Join(dir, "zoe.db"),
		}
		if len(stores) != len(want) {
			t.Fatalf("expected %v, got %v", want, stores)
		}
		for i := range want {
			if stores[i] != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], stores[i])
			}
		}
	})

	t.Run("active user exclusion is case-insensitive", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "Alice.db")
		touch(t, dir, "bob.db")

		stores, err := LocateStores(dir, "alice")
		if err != nil {
			t.Fatalf("failed to locate stores: %v", err)
		}
		if len(stores) != 1 || filepath.Base(stores[0]) != "bob.db" {
			t.Errorf("expected only bob.db, got %v", stores)
		}
	})

	t.Run("empty directory yields no candidates", func(t *testing.T) {
		stores, err := LocateStores(t.TempDir(), "alice")
		if err != nil {
			t.Fatalf("failed to locate stores: %v", err)
		}
		if len(stores) != 0 {
			t.Errorf("expected no stores, got %v", stores)
		}
	})

	t.Run("missing directory errors", func(t *testing.T) {
		if _, err := LocateStores(filepath.Join(t.TempDir(), "absent"), "alice"); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

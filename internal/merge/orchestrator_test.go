package merge

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/tbonnin/mediatheque/internal/shared"
	tu "github.com/tbonnin/mediatheque/internal/testing"
)

func runMerge(t *testing.T, dest *sql.DB, dir string, opts Options) *Summary {
	t.Helper()

	opts.Dir = dir
	opts.ActiveUser = "alice"
	opts.Logger = shared.NewLogger(io.Discard)
	return NewOrchestrator(dest, opts).Run()
}

// seedHousehold builds the canonical two-member fixture: alice's store with
// one owned tome of a series, and bob's store knowing the same series plus
// one more tome.
func seedHousehold(t *testing.T, dir string) *sql.DB {
	t.Helper()

	dest := tu.NewStore(t, dir, "alice")
	t.Cleanup(func() { dest.Close() })
	tu.MustExec(t, dest, "INSERT INTO users (nom) VALUES ('alice')")
	tu.MustExec(t, dest, "INSERT INTO series (titre, mal_id) VALUES ('One Piece', 13)")
	tu.MustExec(t, dest, "INSERT INTO tomes (serie_id, numero, isbn) VALUES (1, 1, '978-1')")
	tu.MustExec(t, dest, "INSERT INTO tome_ownership (tome_id, user_id) VALUES (1, 1)")

	src := tu.NewStore(t, dir, "bob")
	tu.MustExec(t, src, "INSERT INTO users (nom) VALUES ('alice')")
	tu.MustExec(t, src, "INSERT INTO users (nom) VALUES ('bob')")
	tu.MustExec(t, src, "INSERT INTO series (titre, mal_id) VALUES ('One Piece', 13)")
	tu.MustExec(t, src, "INSERT INTO tomes (serie_id, numero, isbn) VALUES (1, 1, '978-1')")
	tu.MustExec(t, src, "INSERT INTO tomes (serie_id, numero, isbn) VALUES (1, 2, '978-2')")
	tu.MustExec(t, src, "INSERT INTO tome_ownership (tome_id, user_id) VALUES (1, 2)")
	tu.MustExec(t, src, "INSERT INTO tome_ownership (tome_id, user_id) VALUES (2, 2)")
	src.Close()

	return dest
}

func TestRun(t *testing.T) {
	t.Run("folds a sibling store into the destination", func(t *testing.T) {
		dir := t.TempDir()
		dest := seedHousehold(t, dir)

		summary := runMerge(t, dest, dir, Options{})

		if !summary.Merged {
			t.Error("expected run to report merged")
		}
		if summary.Err != "" {
			t.Fatalf("unexpected run error: %s", summary.Err)
		}

		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM users"); n != 2 {
			t.Errorf("expected 2 users, got %d", n)
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM series"); n != 1 {
			t.Errorf("series must deduplicate on mal_id, got %d rows", n)
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM tomes"); n != 2 {
			t.Errorf("expected 2 tomes, got %d", n)
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM tome_ownership"); n != 3 {
			t.Errorf("expected 3 ownership rows, got %d", n)
		}

		// Bob's claim landed against the remapped destination ids.
		bobID := tu.QueryInt(t, dest, "SELECT id FROM users WHERE nom = 'bob'")
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM tome_ownership WHERE user_id = ?", bobID); n != 2 {
			t.Errorf("expected bob to own 2 tomes, got %d", n)
		}

		if summary.Inserted["users"] != 1 || summary.Inserted["tomes"] != 1 || summary.Inserted["tome_ownership"] != 2 {
			t.Errorf("unexpected insert counts: %v", summary.Inserted)
		}
	})

	t.Run("re-running with unchanged sources inserts nothing", func(t *testing.T) {
		dir := t.TempDir()
		dest := seedHousehold(t, dir)

		first := runMerge(t, dest, dir, Options{})
		if first.TotalInserted() == 0 {
			t.Fatal("fixture should produce inserts on the first run")
		}

		second := runMerge(t, dest, dir, Options{})
		if second.TotalInserted() != 0 {
			t.Errorf("expected idempotent re-run, inserted %v", second.Inserted)
		}
		if second.Merged {
			t.Error("a no-op run must not report merged")
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM tome_ownership"); n != 3 {
			t.Errorf("expected ownership rows unchanged, got %d", n)
		}
	})

	t.Run("partially-null compound identities stay idempotent", func(t *testing.T) {
		dir := t.TempDir()
		dest := tu.NewStore(t, dir, "alice")
		defer dest.Close()
		tu.MustExec(t, dest, "INSERT INTO users (nom) VALUES ('alice')")
		tu.MustExec(t, dest, "INSERT INTO subscriptions (nom) VALUES ('Netflix')")

		src := tu.NewStore(t, dir, "bob")
		tu.MustExec(t, src, "INSERT INTO subscriptions (nom) VALUES ('Netflix')")
		src.Close()

		for i := 0; i < 2; i++ {
			summary := runMerge(t, dest, dir, Options{})
			if summary.Inserted["subscriptions"] != 0 {
				t.Errorf("run %d: expected the NULL-site subscription to match, inserted %v", i+1, summary.Inserted)
			}
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM subscriptions"); n != 1 {
			t.Errorf("expected 1 subscription after repeated merges, got %d", n)
		}
	})

	t.Run("private columns never cross stores", func(t *testing.T) {
		dir := t.TempDir()
		dest := tu.NewStore(t, dir, "alice")
		defer dest.Close()
		tu.MustExec(t, dest, "INSERT INTO users (nom) VALUES ('alice')")
		tu.MustExec(t, dest, "INSERT INTO series (titre, mal_id, favori, cache) VALUES ('One Piece', 13, 0, 0)")

		src := tu.NewStore(t, dir, "bob")
		tu.MustExec(t, src, "INSERT INTO users (nom) VALUES ('bob')")
		tu.MustExec(t, src, "INSERT INTO series (titre, mal_id, favori, cache) VALUES ('One Piece', 13, 1, 1)")
		tu.MustExec(t, src, "INSERT INTO series (titre, mal_id, favori) VALUES ('Berserk', 2, 1)")
		tu.MustExec(t, src, "INSERT INTO series_user_data (serie_id, user_id, dernier_tome_lu) VALUES (1, 1, 42)")
		src.Close()

		runMerge(t, dest, dir, Options{Policy: PolicySource})

		if n := tu.QueryInt(t, dest, "SELECT favori FROM series WHERE mal_id = 13"); n != 0 {
			t.Error("matched row must keep the destination favori flag")
		}
		if n := tu.QueryInt(t, dest, "SELECT cache FROM series WHERE mal_id = 13"); n != 0 {
			t.Error("matched row must keep the destination cache flag")
		}
		if n := tu.QueryInt(t, dest, "SELECT favori FROM series WHERE mal_id = 2"); n != 0 {
			t.Error("inserted row must start with default favori")
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM series_user_data"); n != 0 {
			t.Error("per-user progress must never be merged")
		}
	})

	t.Run("rows without an identifiable parent are discarded", func(t *testing.T) {
		dir := t.TempDir()
		dest := tu.NewStore(t, dir, "alice")
		defer dest.Close()
		tu.MustExec(t, dest, "INSERT INTO users (nom) VALUES ('alice')")

		src := tu.NewStore(t, dir, "bob")
		tu.MustExec(t, src, "INSERT INTO users (nom) VALUES ('bob')")
		// A series with no title and no external id cannot be identified.
		tu.MustExec(t, src, "INSERT INTO series (statut) VALUES ('En cours')")
		tu.MustExec(t, src, "INSERT INTO tomes (serie_id, numero) VALUES (1, 1)")
		src.Close()

		summary := runMerge(t, dest, dir, Options{})

		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM series"); n != 0 {
			t.Errorf("expected the unidentifiable series to be skipped, got %d rows", n)
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM tomes"); n != 0 {
			t.Errorf("expected the orphaned tome to be discarded, got %d rows", n)
		}

		var skipped int
		for _, store := range summary.Stores {
			for _, tr := range store.Tables {
				skipped += tr.Skipped
			}
		}
		if skipped < 2 {
			t.Errorf("expected the series and its tome reported as skipped, got %d", skipped)
		}
	})

	t.Run("a corrupt candidate does not poison the run", func(t *testing.T) {
		dir := t.TempDir()
		dest := tu.NewStore(t, dir, "alice")
		defer dest.Close()
		tu.MustExec(t, dest, "INSERT INTO users (nom) VALUES ('alice')")

		tu.WriteGarbageStore(t, dir, "aaa")

		src := tu.NewStore(t, dir, "bob")
		tu.MustExec(t, src, "INSERT INTO users (nom) VALUES ('bob')")
		tu.MustExec(t, src, "INSERT INTO series (titre, mal_id) VALUES ('Akira', 47)")
		src.Close()

		summary := runMerge(t, dest, dir, Options{})

		if len(summary.Stores) != 2 {
			t.Fatalf("expected 2 store reports, got %d", len(summary.Stores))
		}
		if summary.Stores[0].Status != StoreSkipped {
			t.Errorf("expected the corrupt store skipped, got %s", summary.Stores[0].Status)
		}
		if summary.Stores[0].Reason == "" {
			t.Error("expected a skip reason")
		}
		if summary.Stores[1].Status != StoreMerged {
			t.Errorf("expected the healthy store merged, got %s", summary.Stores[1].Status)
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM series"); n != 1 {
			t.Errorf("expected the healthy store's series, got %d rows", n)
		}
	})

	t.Run("an active conflicting job defers the run", func(t *testing.T) {
		dir := t.TempDir()
		dest := seedHousehold(t, dir)

		summary := runMerge(t, dest, dir, Options{JobActive: func() bool { return true }})

		if !summary.Skipped {
			t.Fatal("expected the run to be deferred")
		}
		if summary.SkipReason == "" {
			t.Error("expected a skip reason")
		}
		if len(summary.Stores) != 0 {
			t.Error("a deferred run must not touch any store")
		}
		if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM users"); n != 1 {
			t.Errorf("expected destination untouched, got %d users", n)
		}
	})

	t.Run("nil destination fails the run without panicking", func(t *testing.T) {
		summary := runMerge(t, nil, t.TempDir(), Options{})
		if summary.Err == "" {
			t.Error("expected a run-level error")
		}
	})
}

func TestRunPolicies(t *testing.T) {
	seed := func(t *testing.T, destStmt, srcStmt string) (*sql.DB, string) {
		t.Helper()
		dir := t.TempDir()

		dest := tu.NewStore(t, dir, "alice")
		t.Cleanup(func() { dest.Close() })
		tu.MustExec(t, dest, "INSERT INTO users (nom) VALUES ('alice')")
		tu.MustExec(t, dest, destStmt)

		src := tu.NewStore(t, dir, "bob")
		tu.MustExec(t, src, srcStmt)
		src.Close()

		return dest, dir
	}

	t.Run("newest takes the later edit", func(t *testing.T) {
		dest, dir := seed(t,
			"INSERT INTO series (titre, mal_id, statut, updated_at) VALUES ('One Piece', 13, 'En cours', '2026-01-10 09:00:00')",
			"INSERT INTO series (titre, mal_id, statut, updated_at) VALUES ('One Piece', 13, 'Terminé', '2026-02-10 09:00:00')")

		runMerge(t, dest, dir, Options{Policy: PolicyNewest})

		if got := tu.QueryString(t, dest, "SELECT statut FROM series WHERE mal_id = 13"); got != "Terminé" {
			t.Errorf("expected the newer statut, got %q", got)
		}
	})

	t.Run("newest keeps the destination on older sources", func(t *testing.T) {
		dest, dir := seed(t,
			"INSERT INTO series (titre, mal_id, statut, updated_at) VALUES ('One Piece', 13, 'En cours', '2026-02-10 09:00:00')",
			"INSERT INTO series (titre, mal_id, statut, updated_at) VALUES ('One Piece', 13, 'Terminé', '2026-01-10 09:00:00')")

		runMerge(t, dest, dir, Options{Policy: PolicyNewest})

		if got := tu.QueryString(t, dest, "SELECT statut FROM series WHERE mal_id = 13"); got != "En cours" {
			t.Errorf("expected the destination statut, got %q", got)
		}
	})

	t.Run("current-user fills gaps without overwriting", func(t *testing.T) {
		dest, dir := seed(t,
			"INSERT INTO series (titre, mal_id, statut) VALUES ('One Piece', 13, 'En cours')",
			"INSERT INTO series (titre, mal_id, statut, editeur) VALUES ('One Piece', 13, 'Terminé', 'Glénat')")

		runMerge(t, dest, dir, Options{Policy: PolicyCurrentUser})

		if got := tu.QueryString(t, dest, "SELECT statut FROM series WHERE mal_id = 13"); got != "En cours" {
			t.Errorf("expected the destination statut kept, got %q", got)
		}
		if got := tu.QueryString(t, dest, "SELECT editeur FROM series WHERE mal_id = 13"); got != "Glénat" {
			t.Errorf("expected the null editeur filled from the source, got %q", got)
		}
	})

	t.Run("provenance tag beats the policy", func(t *testing.T) {
		dest, dir := seed(t,
			"INSERT INTO series (titre, mal_id, statut, source_tag) VALUES ('One Piece', 13, 'En cours', 'catalogue')",
			"INSERT INTO series (titre, mal_id, statut) VALUES ('One Piece', 13, 'Terminé')")

		runMerge(t, dest, dir, Options{Policy: PolicySource})

		if got := tu.QueryString(t, dest, "SELECT statut FROM series WHERE mal_id = 13"); got != "En cours" {
			t.Errorf("expected the tagged destination row to survive, got %q", got)
		}
	})
}

func TestRunSchemaDrift(t *testing.T) {
	dir := t.TempDir()
	dest := tu.NewStore(t, dir, "alice")
	defer dest.Close()
	tu.MustExec(t, dest, "INSERT INTO users (nom) VALUES ('alice')")

	// An old store: fewer columns, no animes table at all.
	src, err := shared.NewDatabase(filepath.Join(dir, "carol.db"))
	if err != nil {
		t.Fatalf("failed to create old store: %v", err)
	}
	tu.MustExec(t, src, "CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, nom TEXT NOT NULL UNIQUE)")
	tu.MustExec(t, src, "CREATE TABLE series (id INTEGER PRIMARY KEY AUTOINCREMENT, titre TEXT, mal_id INTEGER)")
	tu.MustExec(t, src, "INSERT INTO users (nom) VALUES ('carol')")
	tu.MustExec(t, src, "INSERT INTO series (titre, mal_id) VALUES ('Monster', 19)")
	src.Close()

	summary := runMerge(t, dest, dir, Options{})

	if len(summary.Stores) != 1 || summary.Stores[0].Status != StoreMerged {
		t.Fatalf("expected the old store to merge, got %+v", summary.Stores)
	}

	if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM series WHERE mal_id = 19"); n != 1 {
		t.Error("expected the series to merge through the common columns")
	}
	if n := tu.QueryInt(t, dest, "SELECT COUNT(*) FROM users WHERE nom = 'carol'"); n != 1 {
		t.Error("expected carol to be inserted")
	}

	var animes *TableReport
	for i, tr := range summary.Stores[0].Tables {
		if tr.Table == "animes" {
			animes = &summary.Stores[0].Tables[i]
		}
	}
	if animes == nil {
		t.Fatal("expected a report for the animes table")
	}
	if animes.Reason == "" || animes.Inserted != 0 {
		t.Errorf("expected the missing table skipped with a reason, got %+v", animes)
	}
}

func TestRunLinksUserSync(t *testing.T) {
	dir := t.TempDir()
	dest := tu.NewStore(t, dir, "alice")
	defer dest.Close()
	tu.MustExec(t, dest, "INSERT INTO users (nom) VALUES ('alice')")

	src := tu.NewStore(t, dir, "bob")
	tu.MustExec(t, src, "INSERT INTO users (nom, sync_uuid) VALUES ('alice', 'aaaa-1111')")
	tu.MustExec(t, src, "INSERT INTO users (nom, sync_uuid) VALUES ('bob', 'bbbb-2222')")
	src.Close()

	runMerge(t, dest, dir, Options{})

	t.Run("matched user adopts the source sync id", func(t *testing.T) {
		if got := tu.QueryString(t, dest, "SELECT sync_uuid FROM users WHERE nom = 'alice'"); got != "aaaa-1111" {
			t.Errorf("expected alice linked to aaaa-1111, got %q", got)
		}
	})

	t.Run("inserted user keeps its sync id", func(t *testing.T) {
		if got := tu.QueryString(t, dest, "SELECT sync_uuid FROM users WHERE nom = 'bob'"); got != "bbbb-2222" {
			t.Errorf("expected bob to keep bbbb-2222, got %q", got)
		}
	})

	t.Run("an assigned sync id is never overwritten", func(t *testing.T) {
		runMerge(t, dest, dir, Options{})
		if got := tu.QueryString(t, dest, "SELECT sync_uuid FROM users WHERE nom = 'alice'"); got != "aaaa-1111" {
			t.Errorf("expected alice's sync id unchanged, got %q", got)
		}
	})
}

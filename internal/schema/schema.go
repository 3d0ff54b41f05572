// package schema describes the library tables the merge engine is allowed
// to touch: identity-key chains, foreign keys, column-level merge policy
// and the dependency order between entity types.
//
// The engine never builds SQL from free-form introspection; it validates
// the live store against these descriptors and only ever references
// columns they declare.
package schema

// KeyKind discriminates the identity-key strategies of §identity resolution.
type KeyKind int

const (
	// KeyExternal matches on a single external catalogue id column.
	KeyExternal KeyKind = iota
	// KeyCompound matches on an exact tuple of columns. Foreign-key
	// columns in the tuple are compared after remapping to destination ids.
	KeyCompound
	// KeyTitleSet matches on any overlap between normalized title variant
	// sets. Last-resort fallback, linear over the destination table.
	KeyTitleSet
)

// IdentityKey is one step of an entity's ordered identity chain.
type IdentityKey struct {
	Kind    KeyKind
	Columns []string
}

// ForeignKey describes a parent reference carried by a child table.
type ForeignKey struct {
	Column   string
	RefTable string
	Required bool // row is discarded when the parent cannot be resolved
}

// Entity describes one mergeable table.
type Entity struct {
	Table      string
	Parents    []ForeignKey
	Identity   []IdentityKey // ordered, first hit wins
	TitleCols  []string      // inputs of the normalized title set
	Private    []string      // user-private columns, never merged
	Provenance string        // data-provenance tag column, "" when absent
	Unique     []string      // natural-key tuple enforced UNIQUE by the store
}

// NaturalUnique reports whether the store enforces a unique constraint on
// this entity's natural key. Insert collisions on such entities mean the
// row was already merged and are treated as a no-op.
func (e Entity) NaturalUnique() bool {
	return len(e.Unique) > 0
}

// metaColumns are bookkeeping columns never subject to conflict resolution.
var metaColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// IsMeta reports whether col is bookkeeping (id or timestamps).
func IsMeta(col string) bool {
	return metaColumns[col]
}

// IsPrivate reports whether col holds user-private state for this entity.
func (e Entity) IsPrivate(col string) bool {
	for _, p := range e.Private {
		if p == col {
			return true
		}
	}
	return false
}

// Parent returns the foreign key declared for col, if any.
func (e Entity) Parent(col string) (ForeignKey, bool) {
	for _, fk := range e.Parents {
		if fk.Column == col {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// Mergeable filters the live common columns down to those eligible for
// conflict resolution: no meta columns, no private columns, no foreign keys.
func (e Entity) Mergeable(common []string) []string {
	var out []string
	for _, col := range common {
		if IsMeta(col) || e.IsPrivate(col) {
			continue
		}
		if _, ok := e.Parent(col); ok {
			continue
		}
		out = append(out, col)
	}
	return out
}

// titleChain is the identity chain shared by title-bearing catalogue tables.
func titleChain(external ...string) []IdentityKey {
	var chain []IdentityKey
	for _, col := range external {
		chain = append(chain, IdentityKey{Kind: KeyExternal, Columns: []string{col}})
	}
	return append(chain, IdentityKey{Kind: KeyTitleSet})
}

var entities = []Entity{
	{
		Table:    "users",
		Identity: []IdentityKey{{Kind: KeyCompound, Columns: []string{"nom"}}},
		// sync_uuid has its own backfill rule and is handled outside the
		// generic column loop.
		Private: []string{"sync_uuid"},
		Unique:  []string{"nom"},
	},
	{
		Table:      "series",
		Identity:   titleChain("mal_id", "anilist_id"),
		TitleCols:  []string{"titre", "titre_alternatif", "titre_original"},
		Private:    []string{"favori", "cache"},
		Provenance: "source_tag",
	},
	{
		Table:   "tomes",
		Parents: []ForeignKey{{Column: "serie_id", RefTable: "series", Required: true}},
		Identity: []IdentityKey{
			{Kind: KeyCompound, Columns: []string{"serie_id", "numero"}},
			{Kind: KeyExternal, Columns: []string{"isbn"}},
		},
	},
	{
		Table:     "animes",
		Identity:  titleChain("mal_id", "anilist_id"),
		TitleCols: []string{"titre", "titre_alternatif", "titre_original"},
		Private:   []string{"favori", "cache"},
	},
	{
		Table:     "movies",
		Identity:  titleChain("tmdb_id"),
		TitleCols: []string{"titre", "titre_original"},
		Private:   []string{"vu", "note_perso"},
	},
	{
		Table:     "tv_shows",
		Identity:  titleChain("tmdb_id"),
		TitleCols: []string{"titre", "titre_original"},
		Private:   []string{"favori"},
	},
	{
		Table:    "tv_seasons",
		Parents:  []ForeignKey{{Column: "show_id", RefTable: "tv_shows", Required: true}},
		Identity: []IdentityKey{{Kind: KeyCompound, Columns: []string{"show_id", "numero"}}},
	},
	{
		Table: "tv_episodes",
		Parents: []ForeignKey{
			{Column: "season_id", RefTable: "tv_seasons", Required: true},
			{Column: "show_id", RefTable: "tv_shows", Required: false},
		},
		Identity: []IdentityKey{{Kind: KeyCompound, Columns: []string{"season_id", "numero"}}},
		Private:  []string{"vu"},
	},
	{
		Table:     "games",
		Identity:  titleChain("igdb_id"),
		TitleCols: []string{"titre"},
		Private:   []string{"note_perso"},
	},
	{
		Table: "books",
		Identity: []IdentityKey{
			{Kind: KeyExternal, Columns: []string{"isbn"}},
			{Kind: KeyCompound, Columns: []string{"titre", "auteur"}},
			{Kind: KeyTitleSet},
		},
		TitleCols: []string{"titre"},
		Private:   []string{"statut_lecture", "note_perso"},
	},
	{
		Table:    "subscriptions",
		Identity: []IdentityKey{{Kind: KeyCompound, Columns: []string{"nom", "site"}}},
	},
	{
		Table:    "purchase_sites",
		Identity: []IdentityKey{{Kind: KeyCompound, Columns: []string{"nom"}}},
		Unique:   []string{"nom"},
	},
	{
		Table:    "purchases",
		Parents:  []ForeignKey{{Column: "site_id", RefTable: "purchase_sites", Required: false}},
		Identity: []IdentityKey{{Kind: KeyCompound, Columns: []string{"site_id", "libelle", "date_achat"}}},
	},
	ownership("tome_ownership", "tome_id", "tomes"),
	ownership("game_ownership", "game_id", "games"),
	ownership("book_ownership", "book_id", "books"),
	ownership("subscription_ownership", "subscription_id", "subscriptions"),
	ownership("purchase_ownership", "purchase_id", "purchases"),
}

// ownership builds the descriptor shared by all (item, user) join tables.
func ownership(table, itemCol, itemTable string) Entity {
	return Entity{
		Table: table,
		Parents: []ForeignKey{
			{Column: itemCol, RefTable: itemTable, Required: true},
			{Column: "user_id", RefTable: "users", Required: true},
		},
		Identity: []IdentityKey{{Kind: KeyCompound, Columns: []string{itemCol, "user_id"}}},
		Unique:   []string{itemCol, "user_id"},
	}
}

// Entities returns the mergeable tables in dependency order: users first,
// then top-level catalogue tables, then their sub-entities, ownership
// joins last. Per-user progress tables are deliberately absent.
func Entities() []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}

// ByTable returns the descriptor for the named table.
func ByTable(table string) (Entity, bool) {
	for _, e := range entities {
		if e.Table == table {
			return e, true
		}
	}
	return Entity{}, false
}

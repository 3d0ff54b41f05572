package merge

// StoreStatus classifies how one candidate store fared.
type StoreStatus string

const (
	StoreMerged  StoreStatus = "merged"  // traversed, possibly with row/table skips
	StoreSkipped StoreStatus = "skipped" // rejected by the integrity gate
	StoreFailed  StoreStatus = "failed"  // aborted mid-traversal; later tables untouched
)

// TableReport accumulates per-table counts for one store.
type TableReport struct {
	Table    string `json:"table"`
	Inserted int    `json:"inserted"`
	Matched  int    `json:"matched"`
	Skipped  int    `json:"skipped,omitempty"` // rows discarded with a diagnostic
	Reason   string `json:"reason,omitempty"`  // set when the whole table was skipped
}

// StoreReport describes the outcome for one candidate store.
type StoreReport struct {
	Path   string        `json:"path"`
	Status StoreStatus   `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Tables []TableReport `json:"tables,omitempty"`
}

// Summary is the structured result of a merge run.
//
// Only net-new rows are counted: the product reports "what's new", so
// updates of matched rows are deliberately untracked.
type Summary struct {
	Merged     bool           `json:"merged"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skip_reason,omitempty"`
	Inserted   map[string]int `json:"inserted,omitempty"`
	Stores     []StoreReport  `json:"stores,omitempty"`
	Err        string         `json:"error,omitempty"`
}

// TotalInserted sums the per-table insert counts.
func (s *Summary) TotalInserted() int {
	total := 0
	for _, n := range s.Inserted {
		total += n
	}
	return total
}

func (s *Summary) addTable(tr TableReport) {
	if tr.Inserted > 0 {
		if s.Inserted == nil {
			s.Inserted = make(map[string]int)
		}
		s.Inserted[tr.Table] += tr.Inserted
	}
}

package tasks

// ProgressUpdate represents a progress event during a merge run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Run phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Run phase enumeration
type Phase int

const (
	Precondition Phase = iota
	OpenDestination
	Locate
	MergeStores
	Aggregate
)

func (p Phase) String() string {
	switch p {
	case Precondition:
		return "precondition"
	case OpenDestination:
		return "open_destination"
	case Locate:
		return "locate"
	case MergeStores:
		return "merge_stores"
	case Aggregate:
		return "aggregate"
	default:
		return ""
	}
}

// emit sends an update without requiring a listener: nil channels are
// ignored and an update nobody is ready to receive is dropped rather than
// blocking the run.
func emit(prog chan<- ProgressUpdate, u ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- u:
	default:
	}
}

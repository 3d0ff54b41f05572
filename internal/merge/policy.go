package merge

import "time"

// Policy selects the surviving value when a mergeable column differs
// between source and destination.
type Policy string

const (
	// PolicyCurrentUser keeps the destination value when non-null. Default.
	PolicyCurrentUser Policy = "current-user"
	// PolicySource prefers the incoming value when non-null.
	PolicySource Policy = "source"
	// PolicyNewest keeps the value whose row was updated more recently.
	PolicyNewest Policy = "newest"
	// PolicyOldest keeps the value whose row was updated least recently.
	PolicyOldest Policy = "oldest"
)

// ParsePolicy maps a configuration string onto a Policy. Unrecognized or
// empty input falls back to current-user.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case PolicySource, PolicyNewest, PolicyOldest, PolicyCurrentUser:
		return Policy(s)
	}
	return PolicyCurrentUser
}

// Conflict is one mergeable column seen from both sides.
type Conflict struct {
	Column        string
	Source        any
	Dest          any
	SourceUpdated time.Time // zero when the row has no usable timestamp
	DestUpdated   time.Time
	SourceTagged  bool // row carries the authoritative provenance tag
	DestTagged    bool
}

// Resolve picks the surviving value for one column.
//
// A provenance tag on exactly one side overrides the policy entirely:
// manually curated rows survive raw re-imports regardless of direction.
// Otherwise the active policy decides. Ties on timestamps keep the
// destination value, which keeps repeated runs from churning rows.
func (p Policy) Resolve(c Conflict) any {
	if c.SourceTagged != c.DestTagged {
		if c.SourceTagged {
			return c.Source
		}
		return c.Dest
	}

	switch p {
	case PolicySource:
		if c.Source != nil {
			return c.Source
		}
		return c.Dest

	case PolicyNewest:
		// Missing timestamps count as epoch 0.
		if c.SourceUpdated.After(c.DestUpdated) {
			return c.Source
		}
		return c.Dest

	case PolicyOldest:
		// Missing timestamps count as the end of time.
		switch {
		case c.SourceUpdated.IsZero():
			return c.Dest
		case c.DestUpdated.IsZero():
			return c.Source
		case c.SourceUpdated.Before(c.DestUpdated):
			return c.Source
		default:
			return c.Dest
		}

	default: // current-user
		if c.Dest != nil {
			return c.Dest
		}
		return c.Source
	}
}

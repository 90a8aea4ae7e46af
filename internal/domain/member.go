package domain

// Membership is a call participant snapshot as reported by the engine.
// Snapshots are never mutated; a membership change replaces the whole list.
type Membership struct {
	DisplayName string `json:"displayName"`
	PersonID    string `json:"personId"`
	State       string `json:"state"`
	IsSelf      bool   `json:"isSelf"`
}

// CloneMemberships copies ms so callers can hand the slice across goroutines.
// A nil input yields an empty, non-nil slice so JSON encodes it as [].
func CloneMemberships(ms []Membership) []Membership {
	out := make([]Membership, len(ms))
	copy(out, ms)
	return out
}

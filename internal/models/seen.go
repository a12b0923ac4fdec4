package models

// SeenSet tracks identifiers already captured. It is loaded once from the
// record store at startup and grows monotonically during a run; it is never
// persisted on its own, only reconstructed from stored records.
type SeenSet map[string]struct{}

func NewSeenSet() SeenSet {
	return make(SeenSet)
}

func (s SeenSet) Add(id string) {
	s[id] = struct{}{}
}

func (s SeenSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s SeenSet) Len() int {
	return len(s)
}

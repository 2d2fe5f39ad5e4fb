package models

// RefSet is an insertion-ordered set of record ids. It is stored as a plain
// array, so every mutation must go through Add and Remove to keep it free of
// duplicates.
type RefSet []string

// Contains reports whether id is a member.
func (s RefSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id unless it is already present. It reports whether the set changed.
func (s *RefSet) Add(id string) bool {
	if id == "" || s.Contains(id) {
		return false
	}
	*s = append(*s, id)
	return true
}

// Remove drops every element equal to id. It reports whether the set changed.
func (s *RefSet) Remove(id string) bool {
	out := (*s)[:0]
	removed := false
	for _, v := range *s {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	*s = out
	return removed
}

// Len returns the number of members.
func (s RefSet) Len() int { return len(s) }

// Clone returns an independent copy.
func (s RefSet) Clone() RefSet {
	if s == nil {
		return RefSet{}
	}
	out := make(RefSet, len(s))
	copy(out, s)
	return out
}

package chat

import "sort"

// RoleSet is an unordered set of role IDs.
//
// The zero value is not usable; construct with NewRoleSet. Mutating
// methods (Add, Discard, AddAll, RemoveAll) modify the receiver in
// place; Union and Diff allocate a new set and leave their operands
// untouched.
type RoleSet map[RoleID]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...RoleID) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Add inserts a role into the set.
func (s RoleSet) Add(r RoleID) { s[r] = struct{}{} }

// Discard removes a role from the set if present.
func (s RoleSet) Discard(r RoleID) { delete(s, r) }

// Contains reports whether the role is in the set.
func (s RoleSet) Contains(r RoleID) bool {
	_, ok := s[r]
	return ok
}

// AddAll inserts every role of o into the receiver.
func (s RoleSet) AddAll(o RoleSet) {
	for r := range o {
		s[r] = struct{}{}
	}
}

// RemoveAll removes every role of o from the receiver.
func (s RoleSet) RemoveAll(o RoleSet) {
	for r := range o {
		delete(s, r)
	}
}

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	c := make(RoleSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// Union returns a new set containing every role of s and o.
func (s RoleSet) Union(o RoleSet) RoleSet {
	c := s.Clone()
	c.AddAll(o)
	return c
}

// Diff returns a new set containing the roles of s not present in o.
func (s RoleSet) Diff(o RoleSet) RoleSet {
	c := s.Clone()
	c.RemoveAll(o)
	return c
}

// Equal reports whether both sets contain exactly the same roles.
func (s RoleSet) Equal(o RoleSet) bool {
	if len(s) != len(o) {
		return false
	}
	for r := range s {
		if !o.Contains(r) {
			return false
		}
	}
	return true
}

// Empty reports whether the set has no roles.
func (s RoleSet) Empty() bool { return len(s) == 0 }

// Sorted returns the roles in lexicographic order. Used wherever a
// deterministic rendering is needed (logs, traces, snapshots).
func (s RoleSet) Sorted() []RoleID {
	out := make([]RoleID, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

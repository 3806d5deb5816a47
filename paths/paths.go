// Package paths models locations inside a state tree as ordered key
// sequences and implements the matching rules used to decide which
// listeners a change reaches.
package paths

import "strings"

// Path is an ordered sequence of keys from the tree root. The empty path
// addresses the root itself.
type Path []string

// Parse splits a dot-joined path. An empty string yields the root path.
func Parse(value string) Path {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return Path(strings.Split(value, "."))
}

// String renders the path dot-joined, or "<root>" for the empty path.
func (p Path) String() string {
	if len(p) == 0 {
		return "<root>"
	}
	return strings.Join(p, ".")
}

// Clone returns an independent copy of p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Append returns a new path extended with keys. The receiver is never
// shared with the result.
func (p Path) Append(keys ...string) Path {
	out := make(Path, 0, len(p)+len(keys))
	out = append(out, p...)
	return append(out, keys...)
}

// Parent returns the path without its last key. The root has no parent and
// returns nil.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1].Clone()
}

// Last returns the final key, or "" for the root.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// HasPrefix reports whether prefix is equal to p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Key returns a collision free map key for p. Keys may contain dots, so the
// dotted form cannot be used for identity.
func (p Path) Key() string {
	return strings.Join(p, "\x00") + "\x00"
}

// Equal reports whether a and b hold the same keys in the same order.
func Equal(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ContainsExact reports whether set holds a path equal to p.
func ContainsExact(set []Path, p Path) bool {
	for _, member := range set {
		if Equal(member, p) {
			return true
		}
	}
	return false
}

// ContainsPathOrChildren reports whether set holds changed itself or a
// descendant of it. This is the default rule: a listener that read a.b.c
// cares about a write to a.b because the write replaced what it read.
func ContainsPathOrChildren(set []Path, changed Path) bool {
	for _, member := range set {
		if member.HasPrefix(changed) {
			return true
		}
	}
	return false
}

// ContainsPathOrParents reports whether set holds changed itself or an
// ancestor of it. Used by flipped sessions that observe a whole subtree.
func ContainsPathOrParents(set []Path, changed Path) bool {
	for _, member := range set {
		if changed.HasPrefix(member) {
			return true
		}
	}
	return false
}

// Set is an insertion ordered collection of distinct paths.
type Set struct {
	index map[string]struct{}
	items []Path
}

// NewSet builds a set holding the given paths.
func NewSet(items ...Path) *Set {
	s := &Set{index: make(map[string]struct{}, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add stores a copy of p and reports whether it was not yet present.
func (s *Set) Add(p Path) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	key := p.Key()
	if _, exists := s.index[key]; exists {
		return false
	}
	s.index[key] = struct{}{}
	s.items = append(s.items, p.Clone())
	return true
}

// Has reports whether p is a member.
func (s *Set) Has(p Path) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[p.Key()]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns the members in insertion order. The slice is a copy; the
// paths themselves must be treated as immutable.
func (s *Set) Items() []Path {
	if s == nil || len(s.items) == 0 {
		return nil
	}
	out := make([]Path, len(s.items))
	copy(out, s.items)
	return out
}

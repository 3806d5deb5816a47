// Package layering holds the tree helpers shared by the state store: deep
// cloning, path lookups, strict and forced nested writes, leaf enumeration
// and layer merging. Trees are map[string]any; a nested map[string]any is a
// group and every other value is an opaque leaf.
package layering

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-snapstate/paths"
)

// ErrUnsuitable reports that a path prefix does not resolve to a group.
var ErrUnsuitable = errors.New("layering: unsuitable tree")

// UnsuitableError names the write path and the first prefix that is not a
// group.
type UnsuitableError struct {
	Path paths.Path
	At   paths.Path
}

func (e *UnsuitableError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("layering: cannot write %s: %s is not a group", e.Path, e.At)
}

func (e *UnsuitableError) Unwrap() error {
	return ErrUnsuitable
}

// Admissible values are converted before they enter a tree.
type Admissible interface {
	AdmitIntoState() any
}

// IsGroup reports whether value is a nested group.
func IsGroup(value any) bool {
	_, ok := value.(map[string]any)
	return ok
}

// Obtain resolves path against tree. The root path returns tree itself.
func Obtain(tree map[string]any, path paths.Path) (any, bool) {
	if tree == nil {
		return nil, false
	}
	var current any = tree
	for _, key := range path {
		group, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = group[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// parentGroup returns the group holding the last key of path, or an
// UnsuitableError naming the first prefix that is missing or not a group.
func parentGroup(tree map[string]any, path paths.Path) (map[string]any, error) {
	group := tree
	for i, key := range path[:len(path)-1] {
		next, ok := group[key].(map[string]any)
		if !ok {
			return nil, &UnsuitableError{Path: path.Clone(), At: path[:i+1].Clone()}
		}
		group = next
	}
	return group, nil
}

// Attempt stores value at path, requiring every proper prefix to already be
// a group. The tree is left untouched on error.
func Attempt(tree map[string]any, path paths.Path, value any) error {
	if len(path) == 0 {
		return &UnsuitableError{Path: path, At: path}
	}
	group, err := parentGroup(tree, path)
	if err != nil {
		return err
	}
	group[path.Last()] = value
	return nil
}

// Blocking returns the shallowest proper prefix of path that is missing or
// not a group, with the value found there. A nil prefix means every parent
// of path already is a group.
func Blocking(tree map[string]any, path paths.Path) (paths.Path, any, bool) {
	if len(path) == 0 {
		return nil, nil, false
	}
	group := tree
	for i, key := range path[:len(path)-1] {
		value, ok := group[key]
		next, isGroup := value.(map[string]any)
		if !isGroup {
			return path[:i+1].Clone(), value, ok
		}
		group = next
	}
	return nil, nil, false
}

// ForceSet stores value at path, creating missing groups and replacing
// leaves that stand in the way.
func ForceSet(tree map[string]any, path paths.Path, value any) {
	if len(path) == 0 {
		return
	}
	group := tree
	for _, key := range path[:len(path)-1] {
		next, ok := group[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			group[key] = next
		}
		group = next
	}
	group[path.Last()] = value
}

// Remove deletes the key at path. Missing keys are not an error, but every
// proper prefix must be a group.
func Remove(tree map[string]any, path paths.Path) (bool, error) {
	if len(path) == 0 {
		return false, &UnsuitableError{Path: path, At: path}
	}
	group, err := parentGroup(tree, path)
	if err != nil {
		return false, err
	}
	if _, ok := group[path.Last()]; !ok {
		return false, nil
	}
	delete(group, path.Last())
	return true, nil
}

// Leaf is a value reached by walking groups, sorted by path.
type Leaf struct {
	Path  paths.Path
	Value any
}

// Leaves enumerates every non-group value of tree below prefix. Empty
// groups are reported as leaves so callers can recreate them.
func Leaves(tree map[string]any, prefix paths.Path) []Leaf {
	if tree == nil {
		return nil
	}
	if len(tree) == 0 {
		if len(prefix) == 0 {
			return nil
		}
		return []Leaf{{Path: prefix.Clone(), Value: map[string]any{}}}
	}
	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var leaves []Leaf
	for _, key := range keys {
		next := prefix.Append(key)
		if group, ok := tree[key].(map[string]any); ok {
			leaves = append(leaves, Leaves(group, next)...)
			continue
		}
		leaves = append(leaves, Leaf{Path: next, Value: tree[key]})
	}
	return leaves
}

package snapstate

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-snapstate/paths"
)

var (
	// ErrReadOnly is reported when a write reaches a readable view.
	ErrReadOnly = errors.New("snapstate: state is read-only")
	// ErrCircular is reported when state is written while a tracking
	// session records its reads or while a flush is running.
	ErrCircular = errors.New("snapstate: circular update")
	// ErrStructure is reported when a write path crosses a missing group or
	// a leaf.
	ErrStructure = errors.New("snapstate: unsuitable tree")
	// ErrListener is reported when a subscription, observer or reaction
	// panics.
	ErrListener = errors.New("snapstate: listener failed")
	// ErrInvalidTree is reported by Compose for values that are neither
	// states nor groups of states.
	ErrInvalidTree = errors.New("snapstate: invalid tree")
	// ErrClosed is reported by Wait and Track once the store is closed.
	ErrClosed = errors.New("snapstate: store closed")
)

// ReadOnlyError names the path of a rejected write.
type ReadOnlyError struct {
	Path paths.Path
}

func (e *ReadOnlyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("snapstate: state is read-only here, cannot set %s", e.Path)
}

func (e *ReadOnlyError) Unwrap() error {
	return ErrReadOnly
}

// Phase identifies which activity a circular write interrupted.
type Phase string

const (
	PhaseTracking Phase = "tracking"
	PhaseFlush    Phase = "flush"
)

// CircularError names the path a listener tried to write.
type CircularError struct {
	Path  paths.Path
	Phase Phase
}

func (e *CircularError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("snapstate: cannot set %s during %s, listeners must not write state", e.Path, e.Phase)
}

func (e *CircularError) Unwrap() error {
	return ErrCircular
}

// StructureError names the write path and the first prefix that is not a
// group.
type StructureError struct {
	Path paths.Path
	At   paths.Path
}

func (e *StructureError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("snapstate: cannot set %s, %s is not a group", e.Path, e.At)
}

func (e *StructureError) Unwrap() error {
	return ErrStructure
}

// ListenerError carries the value recovered from a panicking listener.
type ListenerError struct {
	Path      paths.Path
	Recovered any
}

func (e *ListenerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("snapstate: listener for %s panicked: %v", e.Path, e.Recovered)
}

// Unwrap exposes ErrListener and, when the listener panicked with an error,
// that error as well.
func (e *ListenerError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if err, ok := e.Recovered.(error); ok {
		return []error{ErrListener, err}
	}
	return []error{ErrListener}
}

// TreeError names a composite entry that is not a state.
type TreeError struct {
	Path  paths.Path
	Value any
}

func (e *TreeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("snapstate: invalid composite entry at %s: %T", e.Path, e.Value)
}

func (e *TreeError) Unwrap() error {
	return ErrInvalidTree
}

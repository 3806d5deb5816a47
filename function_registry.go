package snapstate

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrFunctionName is reported for empty, reserved or duplicate names.
	ErrFunctionName = errors.New("snapstate: invalid function name")
	// ErrUnknownFunction is reported when a rule calls an unregistered name.
	ErrUnknownFunction = errors.New("snapstate: unknown function")
)

// Function is a helper callable from rules, by name or through
// call(name, args...).
type Function func(args ...any) (any, error)

// FunctionRegistry holds the helpers shared by evaluators. Names are case
// insensitive and stored lower case.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: map[string]Function{}}
}

func functionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds fn under name. Names bound by the evaluators themselves
// (now, args, call) are refused, as are names already taken.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := functionKey(name)
	switch {
	case fn == nil:
		return fmt.Errorf("snapstate: function %q is nil", name)
	case key == "":
		return fmt.Errorf("%w: name is empty", ErrFunctionName)
	case isReservedName(key):
		return fmt.Errorf("%w: %q is reserved", ErrFunctionName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = map[string]Function{}
	}
	if _, taken := r.funcs[key]; taken {
		return fmt.Errorf("%w: %q is already registered", ErrFunctionName, name)
	}
	r.funcs[key] = fn
	return nil
}

// MustRegister is Register for setup code; it panics on error.
func (r *FunctionRegistry) MustRegister(name string, fn Function) *FunctionRegistry {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
	return r
}

// Clone copies the registry so evaluators can extend it independently.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{funcs: maps.Clone(r.funcs)}
}

func (r *FunctionRegistry) lookup(name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[functionKey(name)]
	return fn, ok
}

func (r *FunctionRegistry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return fn(args...)
}

// Names lists the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.funcs))
}

// dispatchCall implements the generic call(name, args...) binding.
func dispatchCall(r *FunctionRegistry, params []any) (any, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: call needs a function name", ErrUnknownFunction)
	}
	name, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: call name must be a string, got %T", ErrUnknownFunction, params[0])
	}
	return r.Call(name, params[1:]...)
}

// Package hydrate turns state trees into typed values and parses documents
// into state trees.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-snapstate/layering"
)

// Target names the subtree being decoded.
type Target struct {
	Store string
	Path  string
}

func (t Target) String() string {
	path := t.Path
	if path == "" {
		path = "<root>"
	}
	if t.Store == "" {
		return fmt.Sprintf("path %q", path)
	}
	return fmt.Sprintf("store %q path %q", t.Store, path)
}

// Stage identifies where decoding failed.
type Stage string

const (
	StageInput     Stage = "input"
	StageNormalize Stage = "normalize"
	StageDecode    Stage = "decode"
	StageValidate  Stage = "validate"
)

// DecodeError reports a failed decode of one subtree.
type DecodeError struct {
	Target Target
	Stage  Stage
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("hydrate: %s of %s failed: %v", e.Stage, e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Normalizer rewrites the tree before it is decoded. It receives a private
// copy it may mutate.
type Normalizer func(Target, map[string]any) (map[string]any, error)

// Validator checks the decoded value.
type Validator[T any] func(Target, *T) error

// Option configures a Decoder.
type Option[T any] func(*Decoder[T])

// Decoder converts state subtrees into T through their JSON form.
type Decoder[T any] struct {
	strict     bool
	numbers    bool
	normalize  []Normalizer
	validators []Validator[T]
}

// Strict rejects keys T does not declare.
func Strict[T any]() Option[T] {
	return func(d *Decoder[T]) { d.strict = true }
}

// Numbers keeps numbers bound to interface fields as json.Number.
func Numbers[T any]() Option[T] {
	return func(d *Decoder[T]) { d.numbers = true }
}

// Normalize appends fn to the normalizers, which run in order.
func Normalize[T any](fn Normalizer) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.normalize = append(d.normalize, fn)
		}
	}
}

// Validate appends fn to the validators, which run in order.
func Validate[T any](fn Validator[T]) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.validators = append(d.validators, fn)
		}
	}
}

func NewDecoder[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts tree into T. The caller's tree is never modified.
func (d *Decoder[T]) Decode(target Target, tree map[string]any) (T, error) {
	var zero T
	fail := func(stage Stage, err error) (T, error) {
		return zero, &DecodeError{Target: target, Stage: stage, Err: err}
	}
	if tree == nil {
		return fail(StageInput, fmt.Errorf("no group to decode"))
	}

	current := layering.Clone(tree)
	for _, fn := range d.normalize {
		next, err := fn(target, current)
		if err != nil {
			return fail(StageNormalize, err)
		}
		if next != nil {
			current = next
		}
	}

	payload, err := json.Marshal(current)
	if err != nil {
		return fail(StageDecode, err)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if d.numbers {
		dec.UseNumber()
	}
	var out T
	if err := dec.Decode(&out); err != nil {
		return fail(StageDecode, err)
	}

	for _, fn := range d.validators {
		if err := fn(target, &out); err != nil {
			return fail(StageValidate, err)
		}
	}
	return out, nil
}

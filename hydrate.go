package snapstate

import (
	"fmt"

	"github.com/goliatone/go-snapstate/internal/hydrate"
	"github.com/goliatone/go-snapstate/layering"
	"github.com/goliatone/go-snapstate/paths"
)

// DecodeOption adjusts Decode.
type DecodeOption[T any] func(*hydrate.Decoder[T])

// WithDecodeDefaults fills keys missing from the subtree with defaults
// before decoding. The tree itself is left alone.
func WithDecodeDefaults[T any](defaults map[string]any) DecodeOption[T] {
	return DecodeOption[T](hydrate.Normalize[T](func(_ hydrate.Target, tree map[string]any) (map[string]any, error) {
		return layering.MergeLayers(tree, defaults), nil
	}))
}

// WithDecodeValidation rejects decoded values for which fn fails.
func WithDecodeValidation[T any](fn func(*T) error) DecodeOption[T] {
	if fn == nil {
		return nil
	}
	return DecodeOption[T](hydrate.Validate[T](func(_ hydrate.Target, value *T) error {
		return fn(value)
	}))
}

// Decode converts the subtree behind r into T through its JSON form. The
// snapshot it takes is recorded, so decoding inside an observer tracks the
// whole subtree.
func Decode[T any](r *Readable, opts ...DecodeOption[T]) (T, error) {
	return decode[T](r, false, opts)
}

// DecodeStrict is Decode rejecting keys T does not declare.
func DecodeStrict[T any](r *Readable, opts ...DecodeOption[T]) (T, error) {
	return decode[T](r, true, opts)
}

func decode[T any](r *Readable, strict bool, opts []DecodeOption[T]) (T, error) {
	var zero T
	if r == nil {
		return zero, fmt.Errorf("%w: cannot decode a missing group", ErrStructure)
	}
	snapshot := r.Snapshot()
	if snapshot == nil {
		return zero, fmt.Errorf("%w: %s is not a group", ErrStructure, r.Path())
	}

	decoderOpts := make([]hydrate.Option[T], 0, len(opts)+1)
	if strict {
		decoderOpts = append(decoderOpts, hydrate.Strict[T]())
	}
	for _, opt := range opts {
		if opt != nil {
			decoderOpts = append(decoderOpts, hydrate.Option[T](opt))
		}
	}
	target := hydrate.Target{Store: r.store.Name(), Path: pathLabel(r.Path())}
	return hydrate.NewDecoder[T](decoderOpts...).Decode(target, snapshot)
}

func pathLabel(p paths.Path) string {
	if len(p) == 0 {
		return ""
	}
	return p.String()
}

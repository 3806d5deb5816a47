package hydrate

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type themeSettings struct {
	Mode    string `json:"mode"`
	Size    int    `json:"size"`
	Enabled bool   `json:"enabled"`
}

func TestDecoderDecodesTree(t *testing.T) {
	got, err := NewDecoder[themeSettings]().Decode(Target{Store: "prefs", Path: "theme"}, map[string]any{
		"mode":    "dark",
		"size":    12,
		"enabled": true,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := themeSettings{Mode: "dark", Size: 12, Enabled: true}
	if got != want {
		t.Fatalf("want %+v got %+v", want, got)
	}
}

func TestDecoderNormalizesThenValidates(t *testing.T) {
	var calls []string
	decoder := NewDecoder[themeSettings](
		Normalize[themeSettings](func(_ Target, tree map[string]any) (map[string]any, error) {
			calls = append(calls, "normalize")
			tree["mode"] = strings.ToUpper(tree["mode"].(string))
			return tree, nil
		}),
		Validate[themeSettings](func(_ Target, value *themeSettings) error {
			calls = append(calls, "validate")
			if value.Size <= 0 {
				return errors.New("size must be positive")
			}
			return nil
		}),
	)
	input := map[string]any{"mode": "dark", "size": 3}
	got, err := decoder.Decode(Target{Path: "theme"}, input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != "DARK" || strings.Join(calls, ",") != "normalize,validate" {
		t.Fatalf("unexpected result %+v calls %v", got, calls)
	}
	if input["mode"] != "dark" {
		t.Fatalf("normalizer mutated the caller tree")
	}

	_, err = decoder.Decode(Target{Path: "theme"}, map[string]any{"mode": "x"})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Stage != StageValidate {
		t.Fatalf("expected a validate-stage error, got %v", err)
	}
}

func TestDecoderErrorsNameTheTarget(t *testing.T) {
	_, err := NewDecoder[themeSettings](Strict[themeSettings]()).Decode(Target{Store: "prefs", Path: "theme"}, map[string]any{"unknown": 1})
	if err == nil || !strings.Contains(err.Error(), `store "prefs" path "theme"`) {
		t.Fatalf("expected error naming the target, got %v", err)
	}

	_, err = NewDecoder[themeSettings]().Decode(Target{}, nil)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Stage != StageInput || !strings.Contains(err.Error(), `path "<root>"`) {
		t.Fatalf("expected input error for the root, got %v", err)
	}

	boom := errors.New("boom")
	failing := NewDecoder[themeSettings](Normalize[themeSettings](func(Target, map[string]any) (map[string]any, error) { return nil, boom }))
	if _, err := failing.Decode(Target{}, map[string]any{}); !errors.Is(err, boom) {
		t.Fatalf("expected normalizer error, got %v", err)
	}
}

func TestDecoderNumbers(t *testing.T) {
	type loose struct {
		Value any `json:"value"`
	}
	got, err := NewDecoder[loose](Numbers[loose]()).Decode(Target{}, map[string]any{"value": 3})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := got.Value.(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", got.Value)
	}
}

func TestParseYAML(t *testing.T) {
	tree, err := ParseYAML([]byte("theme:\n  mode: dark\n  size: 12\nflags: [a, b]\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	theme, ok := tree["theme"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested group, got %T", tree["theme"])
	}
	if theme["mode"] != "dark" || theme["size"] != 12 {
		t.Fatalf("unexpected theme %+v", theme)
	}
	if _, ok := tree["flags"].([]any); !ok {
		t.Fatalf("expected list leaf, got %T", tree["flags"])
	}

	empty, err := ParseYAML(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty tree, got %v err=%v", empty, err)
	}

	if _, err := ParseYAML([]byte("- a\n- b\n")); !errors.Is(err, ErrNotMapping) {
		t.Fatalf("expected ErrNotMapping, got %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	tree, err := ParseJSON([]byte(`{"a":{"b":1}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tree["a"].(map[string]any)["b"] != float64(1) {
		t.Fatalf("unexpected tree %+v", tree)
	}
	if _, err := ParseJSON([]byte(`[1]`)); !errors.Is(err, ErrNotMapping) {
		t.Fatalf("expected ErrNotMapping, got %v", err)
	}
	if _, err := ParseJSON([]byte(`{`)); err == nil {
		t.Fatalf("expected syntax error")
	}
}

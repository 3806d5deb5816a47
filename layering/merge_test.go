package layering

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMergeLayersFromFixture(t *testing.T) {
	fx := loadLayeringFixture(t, "merge_layers.json")

	for _, tc := range fx.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			layers := make([]map[string]any, len(tc.Layers))
			for i := range tc.Layers {
				layers[i] = tc.Layers[i].Tree
			}

			got := MergeLayers(layers...)
			if !reflect.DeepEqual(tc.Expect, got) {
				t.Errorf("merged tree mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
		})
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	got := MergeLayers()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty tree, got %#v", got)
	}
}

func TestMergeLayersDoesNotAliasInputs(t *testing.T) {
	weak := map[string]any{"a": map[string]any{"b": 1}}
	merged := MergeLayers(map[string]any{}, weak)
	merged["a"].(map[string]any)["b"] = 2
	if weak["a"].(map[string]any)["b"] != 1 {
		t.Fatalf("merge mutated input layer")
	}
}

type layeringFixture struct {
	Description string                `json:"description"`
	Cases       []layeringFixtureCase `json:"cases"`
}

type layeringFixtureCase struct {
	Name   string                 `json:"name"`
	Layers []layeringFixtureLayer `json:"layers"`
	Expect map[string]any         `json:"expect"`
}

type layeringFixtureLayer struct {
	Label string         `json:"label"`
	Tree  map[string]any `json:"tree"`
}

func loadLayeringFixture(t *testing.T, name string) layeringFixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read layering fixture %q: %v", name, err)
	}
	var fx layeringFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal layering fixture %q: %v", name, err)
	}
	return fx
}

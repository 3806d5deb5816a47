package layering

// MergeLayers composes trees ordered from strongest to weakest, returning a
// new tree that keeps explicit values from stronger layers while filling
// any missing data from weaker ones. Groups merge key by key; any other
// value in a stronger layer replaces the weaker one wholesale. A nil value
// counts as unset.
func MergeLayers(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return map[string]any{}
	}

	merged := Clone(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeGroups(layers[i], merged)
	}
	return merged
}

func mergeGroups(strong, weak map[string]any) map[string]any {
	result := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		result[key] = CloneValue(value)
	}
	for key, value := range strong {
		existing, ok := result[key]
		if !ok {
			if value != nil {
				result[key] = CloneValue(value)
			}
			continue
		}
		result[key] = mergeValue(value, existing)
	}
	return result
}

func mergeValue(strong, weak any) any {
	if strong == nil {
		return weak
	}
	strongGroup, strongOK := strong.(map[string]any)
	weakGroup, weakOK := weak.(map[string]any)
	if strongOK && weakOK {
		return mergeGroups(strongGroup, weakGroup)
	}
	return CloneValue(strong)
}

// Clone deep copies the groups of tree. Leaves are shared by reference:
// slices, structs, pointers and functions are opaque to the tree. Values
// implementing Admissible are replaced by their admitted form.
func Clone(tree map[string]any) map[string]any {
	if tree == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = CloneValue(value)
	}
	return out
}

// CloneValue applies the admission rule to value and deep copies it when it
// is a group.
func CloneValue(value any) any {
	if admissible, ok := value.(Admissible); ok {
		value = admissible.AdmitIntoState()
	}
	if group, ok := value.(map[string]any); ok {
		return Clone(group)
	}
	return value
}

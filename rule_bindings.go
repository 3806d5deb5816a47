package snapstate

// lookupPath walks keys through r, recording each step. The walk stops at
// the first leaf; depth reports how many keys were consumed. A group at the
// end of the walk comes back as a snapshot, and found is false when a key
// is missing.
func lookupPath(r *Readable, keys []string) (value any, depth int, found bool) {
	current := r
	for i, key := range keys {
		next, ok := current.Lookup(key)
		if !ok {
			return nil, i + 1, false
		}
		view, isView := next.(*Readable)
		if !isView {
			return next, i + 1, true
		}
		current = view
	}
	return current.Snapshot(), len(keys), true
}

func isReserved(name string, registry *FunctionRegistry) bool {
	return isReservedName(name) || registry.Has(name)
}

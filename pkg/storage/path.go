package storage

// PropertyPath is a non-empty sequence of interned property ids
// identifying a nested position in a map-valued property. A
// single-element path addresses a top-level property; longer paths
// descend into nested PropertyValue maps.
//
// Property ids, not names, make up a path so that label-property index
// keys stay fixed-width and comparable without a name lookup on every
// scan step.
type PropertyPath []uint32

// Empty reports whether the path has no segments; callers must reject
// empty paths with ErrInvalidArgument before using them as an index key.
func (p PropertyPath) Empty() bool { return len(p) == 0 }

// ResolvePath walks into a PropertyValue by descending through nested
// maps, using propNames to turn each interned property id back into the
// map key it was stored under. Returns (NullValue(), false) if any
// segment is missing or the value at an intermediate segment isn't a map.
func ResolvePath(root PropertyValue, path PropertyPath, propNames func(uint32) (string, bool)) (PropertyValue, bool) {
	current := root
	for _, propID := range path {
		name, ok := propNames(propID)
		if !ok {
			return NullValue(), false
		}
		child, ok := current.Get(name)
		if !ok {
			return NullValue(), false
		}
		current = child
	}
	return current, true
}

package changeset

// relationRef extracts the bare reference string from a relation field
// value, which may be a bare ref (string) or a [ref, attrs] tuple.
func relationRef(v Value) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []Value:
		if len(t) == 0 {
			return "", false
		}
		ref, ok := t[0].(string)
		return ref, ok
	default:
		return "", false
	}
}

// relationAttrs extracts the attrs fieldset of a relation tuple; a bare ref
// has an empty (not nil) attrs fieldset, matching the "promote on first
// patch" rule from the glossary.
func relationAttrs(v Value) (Fieldset, bool) {
	switch t := v.(type) {
	case string:
		return Fieldset{}, true
	case []Value:
		if len(t) != 2 {
			return nil, false
		}
		attrs, ok := t[1].(map[string]Value)
		if !ok {
			if t[1] == nil {
				return Fieldset{}, true
			}
			return nil, false
		}
		return Fieldset(attrs), true
	default:
		return nil, false
	}
}

// makeRelationTuple rebuilds the [ref, attrs] wire form for a relation
// after its attrs have been patched.
func makeRelationTuple(ref string, attrs Fieldset) Value {
	m := make(map[string]Value, len(attrs))
	for k, v := range attrs {
		m[k] = v
	}
	return []Value{ref, m}
}

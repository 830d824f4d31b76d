package token

// HideSet is an immutable set of macro names attached to a token.
// A name in the set must not be re-expanded when the token is rescanned,
// which is what stops provable self-referential expansion.
//
// The zero value (nil) is the empty set. All operations return a new
// set and never mutate the receiver, so hide sets can be shared freely
// between tokens and between concurrently running drivers.
type HideSet struct {
	names map[string]struct{}
}

// Contains reports whether name is in the set
func (hs *HideSet) Contains(name string) bool {
	if hs == nil {
		return false
	}
	_, ok := hs.names[name]
	return ok
}

// Len returns the number of names in the set
func (hs *HideSet) Len() int {
	if hs == nil {
		return 0
	}
	return len(hs.names)
}

// With returns a new set containing the receiver's names plus name
func (hs *HideSet) With(name string) *HideSet {
	ret := &HideSet{names: make(map[string]struct{}, hs.Len()+1)}
	if hs != nil {
		for k := range hs.names {
			ret.names[k] = struct{}{}
		}
	}
	ret.names[name] = struct{}{}
	return ret
}

// Union returns a new set with the names of both sets
func (hs *HideSet) Union(other *HideSet) *HideSet {
	if hs.Len() == 0 {
		return other
	}
	if other.Len() == 0 {
		return hs
	}
	ret := &HideSet{names: make(map[string]struct{}, hs.Len()+other.Len())}
	for k := range hs.names {
		ret.names[k] = struct{}{}
	}
	for k := range other.names {
		ret.names[k] = struct{}{}
	}
	return ret
}

// Intersect returns a new set with the names present in both sets
func (hs *HideSet) Intersect(other *HideSet) *HideSet {
	if hs.Len() == 0 || other.Len() == 0 {
		return nil
	}
	ret := &HideSet{names: make(map[string]struct{})}
	for k := range hs.names {
		if other.Contains(k) {
			ret.names[k] = struct{}{}
		}
	}
	if len(ret.names) == 0 {
		return nil
	}
	return ret
}

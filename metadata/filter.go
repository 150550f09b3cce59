package metadata

// Filter is a single equality predicate over one metadata field.
type Filter struct {
	Key   string
	Value any
}

// Eq creates an equality filter.
func Eq(key string, value any) Filter {
	return Filter{Key: key, Value: normalizeValue(value)}
}

// Matches reports whether md satisfies the filter.
func (f Filter) Matches(md Metadata) bool {
	v, ok := md[f.Key]
	if !ok {
		return false
	}
	return term(f.Key, v) == term(f.Key, f.Value)
}

// FilterSet is a conjunction of filters. An empty set matches everything.
type FilterSet []Filter

// Matches reports whether md satisfies every filter in the set.
func (fs FilterSet) Matches(md Metadata) bool {
	for _, f := range fs {
		if !f.Matches(md) {
			return false
		}
	}
	return true
}

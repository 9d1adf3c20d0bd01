package util

/*
TransformSlice processes input slice s by calling the mapper callback for each
element and returning the slice of values returned by the callback.
*/
func TransformSlice[S ~[]E, E any, V any](s S, mapper func(E) V) []V {
	if s == nil {
		return nil
	}
	r := make([]V, len(s))
	for i, v := range s {
		r[i] = mapper(v)
	}
	return r
}

package randselect

// DefaultMaxPasses bounds the substitution loop. Each nesting level of
// <choose> inside an option costs one pass.
const DefaultMaxPasses = 8

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

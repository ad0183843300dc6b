package coherency

import "time"

const (
	// EdgeMaxAgeOff disables the max-age ceiling.
	EdgeMaxAgeOff time.Duration = -1

	DefaultEdgeMaxAge    = 5 * time.Minute
	DefaultValidationTTL = 6 * time.Hour
)

// Config holds the coordinator tunables.
type Config struct {
	// EdgeMaxAge caps the CDN max-age of randomized pages; 0 => DefaultEdgeMaxAge,
	// EdgeMaxAgeOff (any negative) => do not override.
	EdgeMaxAge time.Duration `yaml:"edge_max_age"`

	// KeepIfModifiedSince leaves the conditional-GET fast path alone for
	// randomized pages. The zero value suppresses it.
	KeepIfModifiedSince bool `yaml:"keep_if_modified_since"`

	// ValidationTTL is the fast-cache lifetime; 0 => DefaultValidationTTL.
	ValidationTTL time.Duration `yaml:"validation_ttl"`
}

func (c Config) edgeMaxAge() (time.Duration, bool) {
	switch {
	case c.EdgeMaxAge < 0:
		return 0, false
	case c.EdgeMaxAge == 0:
		return DefaultEdgeMaxAge, true
	default:
		return c.EdgeMaxAge, true
	}
}

func (c Config) validationTTL() time.Duration {
	if c.ValidationTTL <= 0 {
		return DefaultValidationTTL
	}
	return c.ValidationTTL
}

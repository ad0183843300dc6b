package randselect

import (
	"fmt"
	"math"
	mathrand "math/rand/v2"
)

// Entropy is the uniform random source a selection draws from.
// Float64 must return a value in [0, 1). *math/rand/v2.Rand satisfies it.
type Entropy interface {
	Float64() float64
}

type globalEntropy struct{}

func (globalEntropy) Float64() float64 { return mathrand.Float64() }

// DefaultEntropy returns the process-wide math/rand/v2 source.
// It is safe for concurrent use and keeps no per-call state.
func DefaultEntropy() Entropy { return globalEntropy{} }

// Option is one weighted alternative as extracted by the markup layer.
// Content must already be fully rendered.
type Option struct {
	Weight  float64
	Content string
}

// IntOption is the legacy integer-multiplicity form of Option.
type IntOption struct {
	Weight  int
	Content string
}

// ChoiceEntry is one step of a cumulative distribution.
type ChoiceEntry struct {
	Cumulative float64 `json:"w" cbor:"1,keyasint" msgpack:"w"`
	Content    string  `json:"c" cbor:"2,keyasint" msgpack:"c"`
}

// ChoiceSet is an immutable normalized distribution over rendered fragments.
// Cumulative weights are non-decreasing and the last one is exactly 1.
type ChoiceSet struct {
	Entries []ChoiceEntry `json:"e" cbor:"1,keyasint" msgpack:"e"`
}

// NewChoiceSet normalizes continuous weights into a ChoiceSet.
func NewChoiceSet(opts []Option) (ChoiceSet, error) {
	if len(opts) == 0 {
		return ChoiceSet{}, fmt.Errorf("%w: no options", ErrInvalidWeights)
	}
	total := 0.0
	for i, o := range opts {
		if math.IsNaN(o.Weight) || math.IsInf(o.Weight, 0) || o.Weight < 0 {
			return ChoiceSet{}, fmt.Errorf("%w: option %d has weight %v", ErrInvalidWeights, i, o.Weight)
		}
		total += o.Weight
	}
	// a sum of finite weights can still overflow
	if total == 0 || math.IsInf(total, 0) {
		return ChoiceSet{}, fmt.Errorf("%w: total weight %v", ErrInvalidWeights, total)
	}

	entries := make([]ChoiceEntry, len(opts))
	running := 0.0
	for i, o := range opts {
		running += o.Weight
		entries[i] = ChoiceEntry{Cumulative: running / total, Content: o.Content}
	}
	// rounding may leave the tail at 0.9999999999999999 or push a step above 1
	last := len(entries) - 1
	for i := range entries {
		if entries[i].Cumulative > 1 {
			entries[i].Cumulative = 1
		}
	}
	entries[last].Cumulative = 1
	return ChoiceSet{Entries: entries}, nil
}

// NewIntChoiceSet normalizes integer multiplicities into the same cumulative model
// NewChoiceSet produces. Negative weights are rejected.
func NewIntChoiceSet(opts []IntOption) (ChoiceSet, error) {
	fl := make([]Option, len(opts))
	for i, o := range opts {
		if o.Weight < 0 {
			return ChoiceSet{}, fmt.Errorf("%w: option %d has weight %d", ErrInvalidWeights, i, o.Weight)
		}
		fl[i] = Option{Weight: float64(o.Weight), Content: o.Content}
	}
	return NewChoiceSet(fl)
}

// Len returns the number of alternatives.
func (s ChoiceSet) Len() int { return len(s.Entries) }

// At returns the content and index of the first entry whose cumulative weight is
// >= u. Zero-width entries (weight 0) are skipped so they can never be shown.
// u is clamped into [0, 1]. An empty set yields ("", -1).
func (s ChoiceSet) At(u float64) (string, int) {
	if len(s.Entries) == 0 {
		return "", -1
	}
	if u < 0 || math.IsNaN(u) {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	prev := 0.0
	for i, e := range s.Entries {
		if e.Cumulative > prev && e.Cumulative >= u {
			return e.Content, i
		}
		prev = e.Cumulative
	}
	last := len(s.Entries) - 1
	return s.Entries[last].Content, last
}

// Pick draws one variate from rnd and selects an entry.
//
// The draw is mapped from [0,1) onto (0,1] so that u == 0 never lands on a
// leading zero-width interval.
func (s ChoiceSet) Pick(rnd Entropy) (string, int) {
	if rnd == nil {
		rnd = DefaultEntropy()
	}
	return s.At(1 - rnd.Float64())
}

// DrawInt applies the integer convention: subtract weights in order from r until
// the remainder is <= 0. r must be in [1, total].
//
// For r uniform on [1, T] this selects index i with probability w_i/T, the same
// distribution At gives for the normalized set, since
// r - sum(w_0..w_i) <= 0  <=>  sum(w_0..w_i)/T >= r/T.
func DrawInt(weights []int, r int) (int, error) {
	total, err := intTotal(weights)
	if err != nil {
		return -1, err
	}
	if r < 1 || r > total {
		return -1, fmt.Errorf("randselect: draw %d outside [1,%d]", r, total)
	}
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return i, nil
		}
	}
	return len(weights) - 1, nil
}

// PickInt draws r uniformly from [1, total] using rnd and applies DrawInt.
func PickInt(weights []int, rnd Entropy) (int, error) {
	total, err := intTotal(weights)
	if err != nil {
		return -1, err
	}
	if rnd == nil {
		rnd = DefaultEntropy()
	}
	r := 1 + int(rnd.Float64()*float64(total))
	if r > total {
		r = total
	}
	return DrawInt(weights, r)
}

func intTotal(weights []int) (int, error) {
	if len(weights) == 0 {
		return 0, fmt.Errorf("%w: no options", ErrInvalidWeights)
	}
	total := 0
	for i, w := range weights {
		if w < 0 {
			return 0, fmt.Errorf("%w: option %d has weight %d", ErrInvalidWeights, i, w)
		}
		if total > math.MaxInt-w {
			return 0, fmt.Errorf("%w: total weight overflows", ErrInvalidWeights)
		}
		total += w
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: total weight 0", ErrInvalidWeights)
	}
	return total, nil
}

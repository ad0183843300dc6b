package randselect

import "time"

// LocalID identifies a ChoiceSet within a single artifact. It is only unique per
// artifact; two artifacts may reuse the same id.
type LocalID string

// Metadata is the artifact-scoped bag stored next to the rendered text in the
// render cache. It is rebuilt on every render and restored with the text on a hit.
type Metadata struct {
	Choices map[LocalID]ChoiceSet `json:"choices,omitempty" cbor:"1,keyasint,omitempty" msgpack:"choices,omitempty"`

	// Randomized is the exact flag: true iff at least one set was registered.
	Randomized bool `json:"randomized,omitempty" cbor:"2,keyasint,omitempty" msgpack:"randomized,omitempty"`

	// Uncacheable marks a render that must not be stored (e.g. <choose uncached>).
	Uncacheable bool `json:"uncacheable,omitempty" cbor:"3,keyasint,omitempty" msgpack:"uncacheable,omitempty"`
}

// Register stores set under id and sets the Randomized flag.
// It reports false, leaving the bag untouched, if id is already taken.
func (m *Metadata) Register(id LocalID, set ChoiceSet) bool {
	if m.Choices == nil {
		m.Choices = make(map[LocalID]ChoiceSet)
	}
	if _, taken := m.Choices[id]; taken {
		return false
	}
	m.Choices[id] = set
	m.Randomized = true
	return true
}

// Lookup returns the set registered under id.
func (m *Metadata) Lookup(id LocalID) (ChoiceSet, bool) {
	if m == nil {
		return ChoiceSet{}, false
	}
	s, ok := m.Choices[id]
	return s, ok
}

// Len returns the number of registered sets.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Choices)
}

// Artifact is one rendered page body plus its metadata bag, as held by the
// render cache. Text still contains placeholder tokens.
type Artifact struct {
	Page       uint64    `json:"page" cbor:"1,keyasint" msgpack:"page"`
	Revision   uint64    `json:"rev" cbor:"2,keyasint" msgpack:"rev"`
	Text       string    `json:"text" cbor:"3,keyasint" msgpack:"text"`
	Meta       Metadata  `json:"meta" cbor:"4,keyasint" msgpack:"meta"`
	RenderedAt time.Time `json:"rendered_at" cbor:"5,keyasint" msgpack:"rendered_at"`
}

package randselect

import (
	"html"

	"github.com/google/uuid"
)

// The id value is wrapped in both quote kinds plus DEL, so it can never appear as
// a raw HTML5 attribute value produced by ordinary escaped content. An empty
// inline span adds no block boundary to the surrounding document.
const (
	tokenPrefix = "<span class=\"randselect\" data-randselect-id=\"'\x7f"
	tokenSuffix = "\x7f'\"></span>"

	maxIDLen = 64
)

// Token returns the placeholder markup for id.
func Token(id LocalID) string {
	return tokenPrefix + string(id) + tokenSuffix
}

// Marker embeds choice sets into an artifact and emits placeholder tokens.
// The zero value uses random UUIDs for ids.
type Marker struct {
	// NewID generates candidate ids; nil => uuid.NewString.
	// Ids must match [0-9A-Za-z-]{1,64}.
	NewID func() string

	// InvalidWeightsMessage is shown inside the error fragment; "" => default.
	InvalidWeightsMessage string
}

const defaultInvalidWeightsMessage = "Invalid weights for random selection."

// Embed registers set in meta under a fresh id and returns its token.
// meta.Randomized is set as a side effect.
func (mk Marker) Embed(meta *Metadata, set ChoiceSet) string {
	gen := mk.NewID
	if gen == nil {
		gen = uuid.NewString
	}
	// a custom generator gets one attempt; collisions fall through to uuids
	if id := LocalID(gen()); validID(string(id)) && meta.Register(id, set) {
		return Token(id)
	}
	for {
		id := LocalID(uuid.NewString())
		if meta.Register(id, set) {
			return Token(id)
		}
	}
}

// Choose normalizes opts and embeds them. Invalid weights yield the inline
// error fragment together with the error; the page render carries on.
func (mk Marker) Choose(meta *Metadata, opts []Option) (string, error) {
	set, err := NewChoiceSet(opts)
	if err != nil {
		return mk.ErrorFragment(), err
	}
	return mk.Embed(meta, set), nil
}

// ChooseInt is Choose for integer multiplicities.
func (mk Marker) ChooseInt(meta *Metadata, opts []IntOption) (string, error) {
	set, err := NewIntChoiceSet(opts)
	if err != nil {
		return mk.ErrorFragment(), err
	}
	return mk.Embed(meta, set), nil
}

// ErrorFragment is the inline markup rendered instead of a choice.
func (mk Marker) ErrorFragment() string {
	msg := coalesce(mk.InvalidWeightsMessage, defaultInvalidWeightsMessage)
	return `<strong class="error">` + html.EscapeString(msg) + `</strong>`
}

func validID(s string) bool {
	if len(s) == 0 || len(s) > maxIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-':
		default:
			return false
		}
	}
	return true
}

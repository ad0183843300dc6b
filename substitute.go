package randselect

import (
	"strings"
)

// node is one piece of rendered text: either literal markup or a deferred choice.
type node struct {
	text     string
	id       LocalID
	deferred bool
}

// parseNodes splits text into literal and deferred nodes. Anything that looks like
// a token prefix but does not form a well-formed token stays literal.
func parseNodes(text string) []node {
	var nodes []node
	rest := text
	lit := 0 // bytes of rest already known to be literal
	for {
		i := strings.Index(rest[lit:], tokenPrefix)
		if i < 0 {
			break
		}
		start := lit + i
		body := rest[start+len(tokenPrefix):]
		j := strings.Index(body, tokenSuffix)
		if j < 0 || !validID(body[:j]) {
			lit = start + 1
			continue
		}
		if start > 0 {
			nodes = append(nodes, node{text: rest[:start]})
		}
		nodes = append(nodes, node{id: LocalID(body[:j]), deferred: true})
		rest = body[j+len(tokenSuffix):]
		lit = 0
	}
	if rest != "" {
		nodes = append(nodes, node{text: rest})
	}
	return nodes
}

// HasTokens reports whether text still contains a placeholder token.
func HasTokens(text string) bool {
	for _, n := range parseNodes(text) {
		if n.deferred {
			return true
		}
	}
	return false
}

// TokenIDs returns the ids of all tokens in text, in order of appearance.
func TokenIDs(text string) []LocalID {
	var ids []LocalID
	for _, n := range parseNodes(text) {
		if n.deferred {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// Result describes one substitution run.
type Result struct {
	Text        string
	Passes      int // passes that performed at least one substitution
	Substituted int
	Dropped     int // dangling tokens plus tokens left at the bound
}

// pass resolves every deferred node in text once. Dangling ids are dropped and
// collected.
func pass(text string, meta *Metadata, rnd Entropy) (out string, substituted int, dangling []LocalID) {
	nodes := parseNodes(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, n := range nodes {
		if !n.deferred {
			b.WriteString(n.text)
			continue
		}
		set, ok := meta.Lookup(n.id)
		if !ok {
			dangling = append(dangling, n.id)
			continue
		}
		content, _ := set.Pick(rnd)
		b.WriteString(content)
		substituted++
	}
	return b.String(), substituted, dangling
}

// stripTokens removes every token from text. Removing a token joins its
// neighbors, which can form a new token, so it repeats until none is left.
func stripTokens(text string) (string, []LocalID) {
	var ids []LocalID
	for {
		var b strings.Builder
		found := false
		for _, n := range parseNodes(text) {
			if n.deferred {
				ids = append(ids, n.id)
				found = true
				continue
			}
			b.WriteString(n.text)
		}
		if !found {
			return text, ids
		}
		text = b.String()
	}
}

// Substitute resolves all placeholder tokens in text against meta, re-scanning
// until a pass neither substitutes nor drops a token, or maxPasses substituting
// passes have run. The returned text never contains a token. The error, if any,
// is a *TokenError wrapping ErrDanglingToken or ErrIterationBound; callers log it
// and still serve Text.
func Substitute(text string, meta *Metadata, rnd Entropy, maxPasses int) (Result, error) {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	if rnd == nil {
		rnd = DefaultEntropy()
	}
	res := Result{Text: text}
	var dangling []LocalID
	for {
		out, n, d := pass(res.Text, meta, rnd)
		res.Text = out
		dangling = append(dangling, d...)
		res.Dropped += len(d)
		if n == 0 {
			if len(d) == 0 {
				break
			}
			// a drop-only pass shrinks the text, so this terminates
			continue
		}
		res.Passes++
		res.Substituted += n
		if res.Passes >= maxPasses {
			// last pass may have produced more tokens; drop them
			stripped, left := stripTokens(res.Text)
			if len(left) == 0 {
				break
			}
			res.Text = stripped
			res.Dropped += len(left)
			return res, &TokenError{Err: ErrIterationBound, IDs: left, Passes: res.Passes}
		}
	}
	if len(dangling) > 0 {
		return res, &TokenError{Err: ErrDanglingToken, IDs: dangling, Passes: res.Passes}
	}
	return res, nil
}

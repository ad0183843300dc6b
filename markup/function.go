package markup

import (
	"strings"

	"github.com/unkn0wn-root/randselect"
)

// function expands the {{#choose:...}} call at the start of s.
func (st *renderState) function(s string, depth int) (string, int, bool) {
	body, n, ok := braceBody(s)
	if !ok {
		return "", 0, false
	}
	args := splitTop(body[len(funcPrefix)-2:], '|')

	opts := make([]randselect.Option, 0, len(args))
	for _, arg := range args {
		w, v := 1.0, arg
		if eq := indexTop(arg, '='); eq >= 0 {
			w = looseWeight(arg[:eq])
			v = strings.TrimSpace(arg[eq+1:])
		}
		opts = append(opts, randselect.Option{Weight: w, Content: st.expand(v, depth+1)})
	}
	return st.choose(opts), n, true
}

// braceBody returns the text between the outer {{ and its matching }}, and
// the length of the whole call.
func braceBody(s string) (string, int, bool) {
	depth := 0
	for i := 0; i+1 < len(s); i++ {
		switch {
		case s[i] == '{' && s[i+1] == '{':
			depth++
			i++
		case s[i] == '}' && s[i+1] == '}':
			depth--
			if depth == 0 {
				return s[2:i], i + 2, true
			}
			i++
		}
	}
	return "", 0, false
}

// splitTop splits s on sep outside {{ }}, [[ ]] and <choose> elements.
func splitTop(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); {
		if n := skipNested(s[i:]); n > 0 {
			i += n
			continue
		}
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
		i++
	}
	return append(parts, s[start:])
}

// indexTop is strings.IndexByte restricted to the top nesting level.
func indexTop(s string, c byte) int {
	for i := 0; i < len(s); {
		if n := skipNested(s[i:]); n > 0 {
			i += n
			continue
		}
		if s[i] == c {
			return i
		}
		i++
	}
	return -1
}

// skipNested returns the length of a balanced construct starting s, or 0.
func skipNested(s string) int {
	switch {
	case strings.HasPrefix(s, "{{"):
		if _, n, ok := braceBody(s); ok {
			return n
		}
	case strings.HasPrefix(s, "[["):
		if j := strings.Index(s, "]]"); j >= 0 {
			return j + 2
		}
	case hasTagPrefix(s, "choose"):
		if n := chooseLen(s); n > 0 {
			return n
		}
	}
	return 0
}

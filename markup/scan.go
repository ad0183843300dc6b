package markup

import (
	"math"
	"strconv"
	"strings"
)

type construct int

const (
	constructTag construct = iota + 1
	constructFunc
)

const funcPrefix = "{{#choose:"

// nextConstruct finds the earliest <choose> tag or {{#choose:}} call in s.
func nextConstruct(s string) (int, construct) {
	tag := -1
	for i := 0; i < len(s); {
		k := strings.Index(s[i:], "<choose")
		if k < 0 {
			break
		}
		if hasTagPrefix(s[i+k:], "choose") {
			tag = i + k
			break
		}
		i += k + 1
	}
	fn := strings.Index(s, funcPrefix)
	switch {
	case tag < 0 && fn < 0:
		return -1, 0
	case fn < 0 || (tag >= 0 && tag < fn):
		return tag, constructTag
	default:
		return fn, constructFunc
	}
}

// hasTagPrefix reports whether s opens a tag called name.
func hasTagPrefix(s, name string) bool {
	if len(s) < len(name)+1 || s[0] != '<' || !strings.EqualFold(s[1:len(name)+1], name) {
		return false
	}
	if len(s) == len(name)+1 {
		return false
	}
	switch s[len(name)+1] {
	case ' ', '\t', '\r', '\n', '>', '/':
		return true
	}
	return false
}

// openTagEnd scans the opening tag at the start of s. It returns the offset
// just past '>', the raw attribute text and whether the tag is self-closing.
func openTagEnd(s string) (end int, attrs string, self bool, ok bool) {
	nameEnd := strings.IndexAny(s, " \t\r\n>/")
	if nameEnd < 0 {
		return 0, "", false, false
	}
	var quote byte
	for i := nameEnd; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			raw := s[nameEnd:i]
			if strings.HasSuffix(raw, "/") {
				return i + 1, raw[:len(raw)-1], true, true
			}
			return i + 1, raw, false, true
		}
	}
	return 0, "", false, false
}

// chooseLen returns the length of the <choose> element at the start of s, or
// -1 if it is not closed.
func chooseLen(s string) int {
	end, _, self, ok := openTagEnd(s)
	if !ok {
		return -1
	}
	if self {
		return end
	}
	j := findClose(s[end:], "</choose>")
	if j < 0 {
		return -1
	}
	return end + j + len("</choose>")
}

// findClose returns the offset of closeTag in s, skipping over nested
// <choose> elements.
func findClose(s, closeTag string) int {
	for i := 0; i < len(s); {
		k := strings.IndexByte(s[i:], '<')
		if k < 0 {
			return -1
		}
		i += k
		if len(s)-i >= len(closeTag) && strings.EqualFold(s[i:i+len(closeTag)], closeTag) {
			return i
		}
		if hasTagPrefix(s[i:], "choose") {
			if n := chooseLen(s[i:]); n > 0 {
				i += n
				continue
			}
		}
		i++
	}
	return -1
}

// parseAttrs reads name[=value] pairs. Names are case-insensitive; a bare
// name maps to "".
func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	i := 0
	for i < len(s) {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		start := i
		for i < len(s) && !isSpace(s[i]) && s[i] != '=' {
			i++
		}
		if start == i {
			i++
			continue
		}
		name := strings.ToLower(s[start:i])
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) || s[i] != '=' {
			attrs[name] = ""
			continue
		}
		i++
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		var val string
		if i < len(s) && (s[i] == '"' || s[i] == '\'') {
			q := s[i]
			j := strings.IndexByte(s[i+1:], q)
			if j < 0 {
				val, i = s[i+1:], len(s)
			} else {
				val, i = s[i+1:i+1+j], i+j+2
			}
		} else {
			start := i
			for i < len(s) && !isSpace(s[i]) {
				i++
			}
			val = s[start:i]
		}
		attrs[name] = val
	}
	return attrs
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

// looseWeight reads the longest numeric prefix of s as an absolute value.
// Anything unparsable is 0; overflow yields +Inf.
func looseWeight(s string) float64 {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil && !math.IsInf(f, 0) {
		return 0
	}
	return math.Abs(f)
}

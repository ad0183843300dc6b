package markup

import (
	"strings"

	"github.com/unkn0wn-root/randselect"
)

type tagOption struct {
	weight  float64
	content string
}

// tag expands the <choose> element at the start of s and returns the output
// and the number of bytes consumed.
func (st *renderState) tag(s string, depth int) (string, int, bool) {
	n := chooseLen(s)
	if n < 0 {
		return "", 0, false
	}
	end, rawAttrs, self, _ := openTagEnd(s)
	attrs := parseAttrs(rawAttrs)
	var body string
	if !self {
		body = s[end : n-len("</choose>")]
	}

	if _, ok := attrs["uncached"]; ok {
		st.meta.Uncacheable = true
	}

	options, tmpl, hasTmpl := parseChooseBody(body)
	before, after := attrs["before"], attrs["after"]

	opts := make([]randselect.Option, 0, len(options))
	for _, o := range options {
		content := o.content
		if hasTmpl {
			content = st.wrapTemplate(tmpl, content)
		}
		content = before + content + after
		opts = append(opts, randselect.Option{Weight: o.weight, Content: st.expand(content, depth+1)})
	}
	return st.choose(opts), n, true
}

// parseChooseBody collects the top-level <option> elements and the first
// <choicetemplate> of a <choose> body. Nested <choose> elements are skipped.
func parseChooseBody(body string) (opts []tagOption, tmpl string, hasTmpl bool) {
	for i := 0; i < len(body); {
		k := strings.IndexByte(body[i:], '<')
		if k < 0 {
			break
		}
		i += k
		rest := body[i:]
		switch {
		case hasTagPrefix(rest, "choose"):
			if n := chooseLen(rest); n > 0 {
				i += n
				continue
			}
		case hasTagPrefix(rest, "option"):
			if content, attrs, n, ok := element(rest, "</option>"); ok {
				w := 1.0
				if v, ok := attrs["weight"]; ok {
					w = looseWeight(v)
				}
				opts = append(opts, tagOption{weight: w, content: content})
				i += n
				continue
			}
		case hasTagPrefix(rest, "choicetemplate"):
			if content, _, n, ok := element(rest, "</choicetemplate>"); ok {
				if !hasTmpl {
					tmpl, hasTmpl = strings.TrimSpace(content), true
				}
				i += n
				continue
			}
		}
		i++
	}
	return opts, tmpl, hasTmpl
}

// element splits <name attrs>content</name> at the start of s.
func element(s, closeTag string) (content string, attrs map[string]string, n int, ok bool) {
	end, raw, self, ok := openTagEnd(s)
	if !ok {
		return "", nil, 0, false
	}
	attrs = parseAttrs(raw)
	if self {
		return "", attrs, end, true
	}
	j := findClose(s[end:], closeTag)
	if j < 0 {
		return "", nil, 0, false
	}
	return s[end : end+j], attrs, end + j + len(closeTag), true
}

// Package markup expands randomized-choice markup in page source into
// placeholder tokens registered with an artifact's metadata bag.
//
// Two forms are recognized:
//
//	<choose before="[" after="]" uncached>
//	  <option weight="3">common</option>
//	  <option>rare</option>
//	  <choicetemplate>Box</choicetemplate>
//	</choose>
//
//	{{#choose:common|3=weighted|rare}}
//
// A missing weight counts as 1. A weight is read like a loose number: the
// longest numeric prefix, absolute value, anything else 0. Option content is
// expanded recursively, so nested choices become nested tokens that the
// substitution pass resolves on later passes.
package markup

import (
	"errors"
	"strings"

	"github.com/unkn0wn-root/randselect"
)

const defaultMaxDepth = 40

// ErrTooDeep reports markup (usually a self-including template) nested past
// the configured depth. The offending fragment is left unexpanded.
var ErrTooDeep = errors.New("markup: choice nesting too deep")

// Templates expands {{name|arg}} for <choicetemplate>. The result is expanded
// again, so a template may itself contain choices.
type Templates interface {
	Expand(name, arg string) (string, error)
}

// Options configure a Renderer. Engine is required.
type Options struct {
	Engine    *randselect.Engine
	Templates Templates         // nil => {{name|arg}} is emitted literally
	MaxDepth  int               // 0 => 40
	Logger    randselect.Logger // if nil, NopLogger is used
}

type Renderer struct {
	engine    *randselect.Engine
	templates Templates
	maxDepth  int
	log       randselect.Logger
}

func New(opts Options) (*Renderer, error) {
	if opts.Engine == nil {
		return nil, errors.New("markup: engine is required")
	}
	r := &Renderer{
		engine:    opts.Engine,
		templates: opts.Templates,
		maxDepth:  opts.MaxDepth,
		log:       opts.Logger,
	}
	if r.maxDepth <= 0 {
		r.maxDepth = defaultMaxDepth
	}
	if r.log == nil {
		r.log = randselect.NopLogger{}
	}
	return r, nil
}

// Render expands every choice in src for page, registering choice sets in meta.
// Invalid weights render an inline error fragment and are not an error; the
// only error is ErrTooDeep, returned alongside the best-effort output.
// DEL bytes are removed from src so author text cannot spell a placeholder.
func (r *Renderer) Render(page uint64, src string, meta *randselect.Metadata) (string, error) {
	st := &renderState{r: r, page: page, meta: meta}
	out := st.expand(strings.ReplaceAll(src, "\x7f", ""), 0)
	return out, st.err
}

type renderState struct {
	r    *Renderer
	page uint64
	meta *randselect.Metadata
	err  error
}

func (st *renderState) expand(src string, depth int) string {
	if depth > st.r.maxDepth {
		if st.err == nil {
			st.err = ErrTooDeep
			st.r.log.Warn("choice nesting too deep", randselect.Fields{"page": st.page, "depth": depth})
		}
		return src
	}
	var b strings.Builder
	rest := src
	for {
		i, kind := nextConstruct(rest)
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:i])
		rest = rest[i:]

		var (
			out  string
			n    int
			okay bool
		)
		switch kind {
		case constructTag:
			out, n, okay = st.tag(rest, depth)
		case constructFunc:
			out, n, okay = st.function(rest, depth)
		}
		if !okay {
			// not well formed: emit the opener literally and move on
			b.WriteByte(rest[0])
			rest = rest[1:]
			continue
		}
		b.WriteString(out)
		rest = rest[n:]
	}
}

func (st *renderState) choose(opts []randselect.Option) string {
	return st.r.engine.Choose(st.page, st.meta, opts)
}

// wrapTemplate applies <choicetemplate> to one option's content.
func (st *renderState) wrapTemplate(name, content string) string {
	if st.r.templates == nil {
		return "{{" + name + "|" + content + "}}"
	}
	out, err := st.r.templates.Expand(name, content)
	if err != nil {
		st.r.log.Warn("choice template expansion failed", randselect.Fields{"page": st.page, "template": name, "err": err})
		return "{{" + name + "|" + content + "}}"
	}
	return out
}

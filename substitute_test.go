package randselect

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func mustSet(t *testing.T, opts ...Option) ChoiceSet {
	t.Helper()
	s, err := NewChoiceSet(opts)
	if err != nil {
		t.Fatalf("NewChoiceSet: %v", err)
	}
	return s
}

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// ==============================
// Marker embedding
// ==============================

func TestEmbedRegistersAndFlags(t *testing.T) {
	meta := &Metadata{}
	mk := Marker{NewID: counterIDs()}
	tok := mk.Embed(meta, mustSet(t, Option{Weight: 1, Content: "A"}))

	if !meta.Randomized {
		t.Fatalf("Randomized not set after Embed")
	}
	if _, ok := meta.Lookup("id-1"); meta.Len() != 1 || !ok {
		t.Fatalf("registry: len=%d lookup(id-1)=%v", meta.Len(), ok)
	}
	if tok != Token("id-1") {
		t.Fatalf("token: got %q", tok)
	}
	if ids := TokenIDs("before " + tok + " after"); len(ids) != 1 || ids[0] != "id-1" {
		t.Fatalf("TokenIDs: %v", ids)
	}
}

func TestEmbedNeverCollidesWithinArtifact(t *testing.T) {
	meta := &Metadata{}
	mk := Marker{NewID: func() string { return "same" }}
	set := mustSet(t, Option{Weight: 1, Content: "A"})
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok := mk.Embed(meta, set)
		if seen[tok] {
			t.Fatalf("duplicate token at %d: %q", i, tok)
		}
		seen[tok] = true
	}
	if meta.Len() != 50 {
		t.Fatalf("expected 50 sets, got %d", meta.Len())
	}
}

func TestEmbedRejectsUnsafeIDs(t *testing.T) {
	meta := &Metadata{}
	mk := Marker{NewID: func() string { return "bad\x7f'\"id" }}
	tok := mk.Embed(meta, mustSet(t, Option{Weight: 1, Content: "A"}))
	ids := TokenIDs(tok)
	if len(ids) != 1 || strings.ContainsAny(string(ids[0]), "\x7f'\"") {
		t.Fatalf("unsafe id leaked into token: %q", tok)
	}
}

func TestTokenIsInertMarkup(t *testing.T) {
	tok := Token("abc")
	if !strings.HasPrefix(tok, "<span ") || !strings.HasSuffix(tok, "></span>") {
		t.Fatalf("token must be an empty inline span: %q", tok)
	}
	// the attribute value carries both quote kinds: not producible by escaped content
	start := strings.Index(tok, `data-randselect-id="`) + len(`data-randselect-id="`)
	val := tok[start : strings.LastIndex(tok, `"`)]
	if !strings.Contains(val, "'") || !strings.Contains(val, "\x7f") {
		t.Fatalf("attribute value lacks guard characters: %q", val)
	}
}

func TestChooseInvalidWeightsFragment(t *testing.T) {
	meta := &Metadata{}
	mk := Marker{InvalidWeightsMessage: "bad <weights>"}
	out, err := mk.Choose(meta, []Option{{Weight: 0, Content: "A"}})
	if !errors.Is(err, ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
	if out != `<strong class="error">bad &lt;weights&gt;</strong>` {
		t.Fatalf("fragment: %q", out)
	}
	if meta.Randomized || meta.Len() != 0 {
		t.Fatalf("invalid choice must not register or flag")
	}
}

// ==============================
// Substitution pass
// ==============================

func TestParseNodesKeepsMalformedLiteral(t *testing.T) {
	half := tokenPrefix + "abc" // no suffix
	bad := tokenPrefix + "a b" + tokenSuffix
	text := "x" + half + "y" + bad + Token("ok") + "z"
	nodes := parseNodes(text)
	var deferred []LocalID
	var lit strings.Builder
	for _, n := range nodes {
		if n.deferred {
			deferred = append(deferred, n.id)
		} else {
			lit.WriteString(n.text)
		}
	}
	if len(deferred) != 1 || deferred[0] != "ok" {
		t.Fatalf("deferred: %v", deferred)
	}
	if lit.String() != "x"+half+"y"+bad+"z" {
		t.Fatalf("literal text altered: %q", lit.String())
	}
}

func TestSubstituteResolvesAll(t *testing.T) {
	meta := &Metadata{}
	mk := Marker{NewID: counterIDs()}
	t1 := mk.Embed(meta, mustSet(t, Option{Weight: 1, Content: "A"}))
	t2 := mk.Embed(meta, mustSet(t, Option{Weight: 1, Content: "B"}))

	res, err := Substitute("<p>"+t1+"|"+t2+"</p>", meta, seeded(1), 0)
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if res.Text != "<p>A|B</p>" {
		t.Fatalf("text: %q", res.Text)
	}
	if res.Substituted != 2 || res.Passes != 1 || res.Dropped != 0 {
		t.Fatalf("stats: %+v", res)
	}
}

func TestSubstituteNested(t *testing.T) {
	meta := &Metadata{}
	mk := Marker{NewID: counterIDs()}
	inner := mk.Embed(meta, mustSet(t, Option{Weight: 1, Content: "deep"}))
	outer := mk.Embed(meta, mustSet(t, Option{Weight: 1, Content: "[" + inner + "]"}))

	res, err := Substitute(outer, meta, seeded(1), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "[deep]" || res.Passes != 2 {
		t.Fatalf("nested: %+v", res)
	}
}

func TestSubstituteDanglingDropped(t *testing.T) {
	meta := &Metadata{}
	res, err := Substitute("a"+Token("missing")+"b", meta, seeded(1), 0)
	if !errors.Is(err, ErrDanglingToken) {
		t.Fatalf("expected ErrDanglingToken, got %v", err)
	}
	var te *TokenError
	if !errors.As(err, &te) || len(te.IDs) != 1 || te.IDs[0] != "missing" {
		t.Fatalf("TokenError: %+v", te)
	}
	if res.Text != "ab" || res.Dropped != 1 {
		t.Fatalf("result: %+v", res)
	}
}

func TestSubstituteDanglingDropCannotFormToken(t *testing.T) {
	// removing the dangling token in the middle joins "<span" with the rest of a
	// second, well-formed token
	inner := Token("abc")
	text := inner[:6] + Token("missing") + inner[6:]
	res, err := Substitute(text, &Metadata{}, seeded(1), 0)
	if !errors.Is(err, ErrDanglingToken) {
		t.Fatalf("expected ErrDanglingToken, got %v", err)
	}
	if HasTokens(res.Text) {
		t.Fatalf("token survived: %q", res.Text)
	}
	if res.Text != "" || res.Dropped != 2 {
		t.Fatalf("result: %+v", res)
	}
}

func TestSubstituteDanglingDropRevealsRegisteredToken(t *testing.T) {
	meta := &Metadata{}
	meta.Register("abc", mustSet(t, Option{Weight: 1, Content: "A"}))
	inner := Token("abc")
	res, err := Substitute("x"+inner[:6]+Token("missing")+inner[6:]+"y", meta, seeded(1), 0)
	if !errors.Is(err, ErrDanglingToken) {
		t.Fatalf("expected ErrDanglingToken, got %v", err)
	}
	if res.Text != "xAy" || res.Substituted != 1 || res.Dropped != 1 {
		t.Fatalf("result: %+v", res)
	}
}

func TestStripTokensRepeatsUntilClean(t *testing.T) {
	inner := Token("abc")
	out, ids := stripTokens("a" + inner[:6] + Token("x1") + inner[6:] + "b")
	if out != "ab" || len(ids) != 2 || ids[0] != "x1" || ids[1] != "abc" {
		t.Fatalf("stripTokens = %q %v", out, ids)
	}
}

func TestSubstituteSelfRegeneratingTokenBounded(t *testing.T) {
	meta := &Metadata{}
	// a set whose only content is its own token
	meta.Register("loop", mustSet(t, Option{Weight: 1, Content: "x" + Token("loop")}))

	res, err := Substitute(Token("loop"), meta, seeded(1), 5)
	if !errors.Is(err, ErrIterationBound) {
		t.Fatalf("expected ErrIterationBound, got %v", err)
	}
	if res.Passes != 5 {
		t.Fatalf("passes: got %d want 5", res.Passes)
	}
	if HasTokens(res.Text) {
		t.Fatalf("token survived the bound: %q", res.Text)
	}
	if res.Text != "xxxxx" {
		t.Fatalf("text: %q", res.Text)
	}
}

func TestSubstituteExactlyAtBoundIsNotAnError(t *testing.T) {
	meta := &Metadata{}
	mk := Marker{NewID: counterIDs()}
	inner := mk.Embed(meta, mustSet(t, Option{Weight: 1, Content: "in"}))
	outer := mk.Embed(meta, mustSet(t, Option{Weight: 1, Content: inner}))
	res, err := Substitute(outer, meta, seeded(1), 2)
	if err != nil {
		t.Fatalf("two levels with bound 2: %v", err)
	}
	if res.Text != "in" {
		t.Fatalf("text: %q", res.Text)
	}
}

func TestSubstitutePlainTextUntouched(t *testing.T) {
	res, err := Substitute("<p>plain</p>", nil, nil, 0)
	if err != nil || res.Text != "<p>plain</p>" || res.Passes != 0 {
		t.Fatalf("plain: res=%+v err=%v", res, err)
	}
}

// ==============================
// Engine
// ==============================

type recHooks struct {
	NopHooks
	invalid  int
	dangling int
	bound    int
}

func (h *recHooks) InvalidWeights(uint64, error)    { h.invalid++ }
func (h *recHooks) DanglingToken(_ uint64, n int)   { h.dangling += n }
func (h *recHooks) IterationBound(uint64, int, int) { h.bound++ }

func TestEngineViewsDifferButArtifactStable(t *testing.T) {
	eng := New(Options{})
	meta := &Metadata{}
	opts := make([]Option, 10)
	for i := range opts {
		opts[i] = Option{Weight: 1, Content: fmt.Sprintf("choice-%d", i)}
	}
	tok := eng.Choose(1, meta, opts)
	art := Artifact{Page: 1, Text: "<div>" + tok + "</div>", Meta: *meta}
	before := art.Text

	seen := map[string]bool{}
	for seed := uint64(0); seed < 20; seed++ {
		res := eng.Resolve(&art, seeded(seed))
		if HasTokens(res.Text) {
			t.Fatalf("token leaked into view: %q", res.Text)
		}
		seen[res.Text] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected different views across random streams, got %v", seen)
	}
	if art.Text != before {
		t.Fatalf("artifact text mutated by Resolve")
	}
}

func TestEngineReportsProblems(t *testing.T) {
	h := &recHooks{}
	eng := New(Options{Hooks: h, MaxPasses: 3})
	meta := &Metadata{}

	if out := eng.Choose(7, meta, nil); !strings.Contains(out, `class="error"`) {
		t.Fatalf("expected error fragment, got %q", out)
	}
	if h.invalid != 1 {
		t.Fatalf("InvalidWeights hook: %d", h.invalid)
	}

	art := Artifact{Page: 7, Text: Token("gone"), Meta: Metadata{Randomized: true}}
	if res := eng.Resolve(&art, nil); res.Text != "" {
		t.Fatalf("dangling not dropped: %q", res.Text)
	}
	if h.dangling != 1 {
		t.Fatalf("DanglingToken hook: %d", h.dangling)
	}

	art.Meta.Register("self", mustSet(t, Option{Weight: 1, Content: Token("self")}))
	art.Text = Token("self")
	if res := eng.Resolve(&art, nil); HasTokens(res.Text) {
		t.Fatalf("bound exceeded but token survived")
	}
	if h.bound != 1 {
		t.Fatalf("IterationBound hook: %d", h.bound)
	}
}

func TestEngineSkipsUnrandomized(t *testing.T) {
	eng := New(Options{})
	art := Artifact{Text: "<p>static</p>"}
	res := eng.Resolve(&art, nil)
	if res.Text != art.Text || res.Passes != 0 {
		t.Fatalf("unrandomized artifact changed: %+v", res)
	}
	if art.Meta.Randomized {
		t.Fatalf("flag set on a page without choices")
	}
}

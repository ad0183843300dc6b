package codec

import (
	"testing"
	"time"

	"github.com/unkn0wn-root/randselect"
)

func sampleArtifact(t *testing.T) randselect.Artifact {
	t.Helper()
	meta := randselect.Metadata{}
	set, err := randselect.NewChoiceSet([]randselect.Option{{Weight: 1, Content: "<b>A</b>"}, {Weight: 3, Content: "B"}})
	if err != nil {
		t.Fatal(err)
	}
	meta.Register("k1", set)
	return randselect.Artifact{
		Page:       12,
		Revision:   3,
		Text:       "<p>" + randselect.Token("k1") + "</p>",
		Meta:       meta,
		RenderedAt: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
	}
}

// the metadata bag must come back intact or a cache hit yields dangling tokens
func TestArtifactSurvivesEveryCodec(t *testing.T) {
	in := sampleArtifact(t)
	codecs := map[string]Codec[randselect.Artifact]{
		"cbor":     MustCBOR[randselect.Artifact](CBOROptions{}),
		"cbor-det": MustCBOR[randselect.Artifact](CBOROptions{Deterministic: true}),
		"msgpack":  Msgpack[randselect.Artifact]{},
		"json":     JSON[randselect.Artifact]{},
	}
	for name, cd := range codecs {
		b, err := cd.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := cd.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if out.Text != in.Text || out.Page != in.Page || out.Revision != in.Revision {
			t.Fatalf("%s: header fields differ: %+v", name, out)
		}
		if !out.RenderedAt.Equal(in.RenderedAt) {
			t.Fatalf("%s: rendered_at %v want %v", name, out.RenderedAt, in.RenderedAt)
		}
		if !out.Meta.Randomized {
			t.Fatalf("%s: Randomized lost", name)
		}
		set, ok := out.Meta.Lookup("k1")
		if !ok || set.Len() != 2 {
			t.Fatalf("%s: choice set lost: ok=%v set=%+v", name, ok, set)
		}
		if got, _ := set.At(0.9); got != "B" {
			t.Fatalf("%s: decoded set selects %q for u=0.9", name, got)
		}
	}
}

func TestCBORDeterministicStable(t *testing.T) {
	cd := MustCBOR[randselect.Artifact](CBOROptions{Deterministic: true})
	a := sampleArtifact(t)
	set, _ := a.Meta.Lookup("k1")
	a.Meta.Register("k0", set)
	a.Meta.Register("k2", set)
	first, err := cd.Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		b, _ := cd.Encode(a)
		if string(b) != string(first) {
			t.Fatalf("deterministic encoding differs on run %d", i)
		}
	}
}

func TestProtoBool(t *testing.T) {
	for _, v := range []bool{true, false} {
		b, err := ProtoBool{}.Encode(v)
		if err != nil {
			t.Fatal(err)
		}
		got, err := ProtoBool{}.Decode(b)
		if err != nil || got != v {
			t.Fatalf("ProtoBool %v: got %v err=%v", v, got, err)
		}
	}
	if _, err := (ProtoBool{}).Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatalf("expected error on garbage")
	}
}

func TestLimitCodec(t *testing.T) {
	lc := LimitCodec[string]{Inner: JSON[string]{}, MaxDecode: 8}
	b, _ := lc.Encode("this is long")
	if _, err := lc.Decode(b); err == nil {
		t.Fatalf("expected size error for %d bytes", len(b))
	}
	b, _ = lc.Encode("ok")
	if got, err := lc.Decode(b); err != nil || got != "ok" {
		t.Fatalf("small payload: got %q err=%v", got, err)
	}
}

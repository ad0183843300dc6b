package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/randselect/coherency"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "randselect.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeFile(t, `
namespace: wiki:test
log:
  backend: logrus
  level: debug
render_cache:
  codec: msgpack
coherency:
  edge_max_age: 2m
  keep_if_modified_since: true
  validation_ttl: 1h
substitution:
  max_passes: 4
store:
  driver: memory
pages:
  - id: 1
    title: Main
    source: "<choose><option>A</option></choose>"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := coherency.Config{EdgeMaxAge: 2 * time.Minute, KeepIfModifiedSince: true, ValidationTTL: time.Hour}
	if cfg.Coherency != want {
		t.Fatalf("coherency = %+v", cfg.Coherency)
	}
	if cfg.RenderCache.Codec != "msgpack" || cfg.RenderCache.Provider != "ristretto" {
		t.Fatalf("render cache = %+v", cfg.RenderCache)
	}
	if cfg.Log.Backend != "logrus" || cfg.Substitution.MaxPasses != 4 || cfg.Store.Driver != "memory" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Pages) != 1 || cfg.Pages[0].Title != "Main" {
		t.Fatalf("pages = %+v", cfg.Pages)
	}
	if cfg.CDNMaxAge != time.Hour {
		t.Fatalf("default cdn_max_age lost: %v", cfg.CDNMaxAge)
	}
}

func TestEdgeMaxAgeOff(t *testing.T) {
	cfg, err := Load(writeFile(t, "coherency:\n  edge_max_age: -1ns\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Coherency.EdgeMaxAge != coherency.EdgeMaxAgeOff {
		t.Fatalf("edge_max_age = %v", cfg.Coherency.EdgeMaxAge)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	p := writeFile(t, `
log: {backend: printf}
render_cache: {provider: memcached, genstore: redis}
store: {driver: postgres}
pages: [{title: untitled}]
`)
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"log.backend", "render_cache.provider", "redis.addr", "store.driver", "pages[0]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

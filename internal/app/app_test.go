package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/randselect/coherency"
	"github.com/unkn0wn-root/randselect/config"
	"github.com/unkn0wn-root/randselect/server"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RenderCache.Provider = "bigcache"
	cfg.RenderCache.MaxSizeMB = 8
	cfg.Store = config.StoreConfig{Driver: "memory"}
	cfg.Hooks.AsyncQueue = 16
	cfg.Pages = []config.PageSeed{
		{ID: 1, Title: "Plain", Source: "<p>hello</p>"},
		{ID: 2, Title: "Random", Source: `{{#choose:left|right}}`},
	}
	return cfg
}

func TestBuildServesSeedPages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	a, err := Build(ctx, testConfig(), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close(ctx)

	router := server.NewRouter(a.Handlers)
	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	if w := get("/wiki/1"); w.Code != http.StatusOK || w.Body.String() != "<p>hello</p>" {
		t.Fatalf("plain = %d %q", w.Code, w.Body.String())
	}
	for i := 0; i < 3; i++ {
		w := get("/wiki/2")
		if b := w.Body.String(); b != "left" && b != "right" {
			t.Fatalf("random view %d = %q", i, b)
		}
		if w.Header().Get(coherency.HeaderName) != "1" {
			t.Fatalf("random view %d not marked", i)
		}
	}
	if w := get("/metrics"); !strings.Contains(w.Body.String(), "randselect_") {
		t.Fatalf("metrics missing randselect series")
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RenderCache.Codec = "xml"
	if _, err := Build(context.Background(), cfg, Options{}); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestBuildSQLiteStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Store = config.StoreConfig{Driver: "sqlite", DSN: "file:" + t.TempDir() + "/props.db"}
	a, err := Build(ctx, cfg, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

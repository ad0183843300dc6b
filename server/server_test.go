package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/randselect"
	"github.com/unkn0wn-root/randselect/coherency"
	"github.com/unkn0wn-root/randselect/flagcache"
	promhooks "github.com/unkn0wn-root/randselect/hooks/prom"
	"github.com/unkn0wn-root/randselect/markup"
	"github.com/unkn0wn-root/randselect/pageview"
	"github.com/unkn0wn-root/randselect/propstore"
	"github.com/unkn0wn-root/randselect/provider/ristretto"
	"github.com/unkn0wn-root/randselect/rendercache"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// syncProvider waits for ristretto's buffered writes so reads see them.
type syncProvider struct{ *ristretto.Provider }

func (p syncProvider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	ok, err := p.Provider.Set(ctx, key, value, cost, ttl)
	p.Provider.Wait()
	return ok, err
}

func setupTestRouter(t *testing.T) (*gin.Engine, *pageview.MemorySource) {
	t.Helper()
	ctx := context.Background()

	rp, err := ristretto.New(ristretto.Config{NumCounters: 1e4, MaxCost: 1 << 24, BufferItems: 64})
	if err != nil {
		t.Fatalf("ristretto: %v", err)
	}
	prov := syncProvider{rp}

	reg := prometheus.NewRegistry()
	hooks := promhooks.New(reg)

	renders, err := rendercache.New(rendercache.Options{Namespace: "srv", Provider: prov, Hooks: hooks})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = renders.Close(ctx) }) // closes the shared provider
	flags, err := flagcache.New(flagcache.Options{Namespace: "srv", Provider: prov})
	if err != nil {
		t.Fatal(err)
	}
	coord, err := coherency.New(coherency.Options{Cache: flags, Store: propstore.NewMemory(), Hooks: hooks})
	if err != nil {
		t.Fatal(err)
	}
	eng := randselect.New(randselect.Options{Hooks: hooks})
	rend, err := markup.New(markup.Options{Engine: eng})
	if err != nil {
		t.Fatal(err)
	}
	src := pageview.NewMemorySource()
	svc, err := pageview.New(pageview.Options{Engine: eng, Renderer: rend, Renders: renders, Coordinator: coord, Pages: src})
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHandlers(Options{Service: svc, Editor: src, Gatherer: reg})
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(h), src
}

func do(router *gin.Engine, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t)
	w := do(router, "GET", "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPlainPageConditionalGet(t *testing.T) {
	router, src := setupTestRouter(t)
	src.Save(1, "Plain", "<p>hello</p>")

	w := do(router, "GET", "/wiki/1", nil, nil)
	if w.Code != http.StatusOK || w.Body.String() != "<p>hello</p>" {
		t.Fatalf("GET = %d %q", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "s-maxage=3600, must-revalidate, max-age=0" {
		t.Fatalf("Cache-Control = %q", cc)
	}
	if w.Header().Get(coherency.HeaderName) != "" {
		t.Fatalf("plain page marked randomized")
	}
	lm := w.Header().Get("Last-Modified")
	if lm == "" {
		t.Fatalf("no Last-Modified")
	}

	w = do(router, "GET", "/wiki/1", nil, map[string]string{"If-Modified-Since": lm})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional GET = %d, want 304", w.Code)
	}
}

func TestEditToRandomizedPage(t *testing.T) {
	router, src := setupTestRouter(t)
	src.Save(2, "Page", "<p>static</p>")
	w := do(router, "GET", "/wiki/2", nil, nil)
	lm := w.Header().Get("Last-Modified")
	// Last-Modified has one-second resolution
	time.Sleep(1100 * time.Millisecond)

	body, _ := json.Marshal(EditRequest{Title: "Page", Source: `<choose><option>A</option><option>B</option></choose>`})
	w = do(router, "PUT", "/wiki/2", bytes.NewReader(body), map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT = %d %s", w.Code, w.Body.String())
	}
	var er EditResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Revision != 2 {
		t.Fatalf("edit response = %+v err=%v", er, err)
	}

	for i := 0; i < 3; i++ {
		w = do(router, "GET", "/wiki/2", nil, map[string]string{"If-Modified-Since": lm})
		if w.Code != http.StatusOK {
			t.Fatalf("view %d = %d, want 200", i, w.Code)
		}
		if b := w.Body.String(); b != "A" && b != "B" {
			t.Fatalf("view %d body = %q", i, b)
		}
		if w.Header().Get(coherency.HeaderName) != "1" {
			t.Fatalf("view %d not marked", i)
		}
		if cc := w.Header().Get("Cache-Control"); !strings.HasPrefix(cc, "s-maxage=300,") {
			t.Fatalf("view %d Cache-Control = %q", i, cc)
		}
	}
}

func TestBadRequests(t *testing.T) {
	router, src := setupTestRouter(t)
	src.Save(1, "Plain", "x")

	cases := []struct {
		method, path string
		want         int
	}{
		{"GET", "/wiki/abc", http.StatusBadRequest},
		{"GET", "/wiki/0", http.StatusBadRequest},
		{"GET", "/wiki/99", http.StatusNotFound},
		{"GET", "/wiki/1?action=edit", http.StatusBadRequest},
		{"GET", "/wiki/1?oldid=x", http.StatusBadRequest},
		{"GET", "/wiki/1?oldid=5", http.StatusNotFound},
		{"POST", "/wiki/99/purge", http.StatusNotFound},
		{"PUT", "/wiki/1", http.StatusBadRequest}, // no body
	}
	for _, tc := range cases {
		if w := do(router, tc.method, tc.path, nil, nil); w.Code != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}
}

func TestPurgeAndMetrics(t *testing.T) {
	router, src := setupTestRouter(t)
	src.Save(3, "Page", `{{#choose:0=a|0=b}}`)

	if w := do(router, "GET", "/wiki/3", nil, nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `class="error"`) {
		t.Fatalf("invalid weights view = %d %q", w.Code, w.Body.String())
	}
	if w := do(router, "POST", "/wiki/3/purge", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("purge = %d", w.Code)
	}

	w := do(router, "GET", "/metrics", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "randselect_invalid_weights_total 1") {
		t.Fatalf("metrics = %d\n%s", w.Code, w.Body.String())
	}
}

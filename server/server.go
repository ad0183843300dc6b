// Package server exposes page views over HTTP with gin.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unkn0wn-root/randselect"
	"github.com/unkn0wn-root/randselect/pageview"
)

const defaultCDNMaxAge = time.Hour

// Editor stores new page revisions. pageview.MemorySource implements it.
type Editor interface {
	Save(id uint64, title, source string) pageview.Page
	Touch(id uint64) error
}

// Options configure the handlers. Service is required; without an Editor the
// edit and purge routes are not registered.
type Options struct {
	Service   *pageview.Service
	Editor    Editor
	Logger    randselect.Logger   // if nil, NopLogger is used
	Gatherer  prometheus.Gatherer // nil => prometheus.DefaultGatherer
	CDNMaxAge time.Duration       // default shared-cache lifetime; 0 => 1h
}

type Handlers struct {
	svc       *pageview.Service
	editor    Editor
	log       randselect.Logger
	gatherer  prometheus.Gatherer
	cdnMaxAge time.Duration
}

func NewHandlers(opts Options) (*Handlers, error) {
	if opts.Service == nil {
		return nil, errors.New("server: service is required")
	}
	h := &Handlers{
		svc:       opts.Service,
		editor:    opts.Editor,
		log:       opts.Logger,
		gatherer:  opts.Gatherer,
		cdnMaxAge: opts.CDNMaxAge,
	}
	if h.log == nil {
		h.log = randselect.NopLogger{}
	}
	if h.gatherer == nil {
		h.gatherer = prometheus.DefaultGatherer
	}
	if h.cdnMaxAge <= 0 {
		h.cdnMaxAge = defaultCDNMaxAge
	}
	return h, nil
}

// NewRouter returns a gin engine with every route registered.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.accessLog)
	RegisterRoutes(router, h)
	return router
}

func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.GET("/healthz", h.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	r.GET("/wiki/:id", h.HandleView)
	if h.editor != nil {
		r.PUT("/wiki/:id", h.HandleEdit)
		r.POST("/wiki/:id/purge", h.HandlePurge)
	}
}

func (h *Handlers) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.log.Debug("http request", randselect.Fields{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"elapsed": time.Since(start),
	})
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// edgeResponse collects the coordinator's header and max-age adjustments.
type edgeResponse struct {
	c      *gin.Context
	maxAge time.Duration
}

func (r *edgeResponse) SetHeader(name, value string) { r.c.Header(name, value) }

func (r *edgeResponse) LowerCDNMaxAge(d time.Duration) {
	if d < r.maxAge {
		r.maxAge = d
	}
}

func (h *Handlers) HandleView(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	req := pageview.Request{Page: id, Action: c.Query("action")}
	if req.Action != "" && req.Action != "view" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported action"})
		return
	}
	if v := c.Query("oldid"); v != "" {
		rev, err := strconv.ParseUint(v, 10, 64)
		if err != nil || rev == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oldid"})
			return
		}
		req.OldID = rev
	}
	if lang := c.Query("lang"); lang != "" {
		req.Variant = map[string]string{"lang": lang}
	}
	if ims := c.GetHeader("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			req.IfModifiedSince = t
		}
	}

	resp := &edgeResponse{c: c, maxAge: h.cdnMaxAge}
	view, err := h.svc.View(c.Request.Context(), req, resp)
	switch {
	case errors.Is(err, pageview.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	case err != nil:
		h.log.Error("page view failed", randselect.Fields{"page": id, "err": err})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !view.LastModified.IsZero() {
		c.Header("Last-Modified", view.LastModified.UTC().Format(http.TimeFormat))
	}
	if view.NotModified {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Cache-Control", "s-maxage="+strconv.Itoa(int(resp.maxAge/time.Second))+", must-revalidate, max-age=0")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(view.Body))
}

type EditRequest struct {
	Title  string `json:"title"`
	Source string `json:"source" binding:"required"`
}

type EditResponse struct {
	Page     uint64 `json:"page"`
	Revision uint64 `json:"revision"`
}

func (h *Handlers) HandleEdit(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	var body EditRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pg := h.editor.Save(id, body.Title, body.Source)
	h.purge(c, id)
	c.JSON(http.StatusOK, EditResponse{Page: pg.ID, Revision: pg.Revision})
}

func (h *Handlers) HandlePurge(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	if err := h.editor.Touch(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	h.purge(c, id)
	c.Status(http.StatusNoContent)
}

// purge failures are logged; the next render still publishes the right flag.
func (h *Handlers) purge(c *gin.Context, id uint64) {
	if err := h.svc.Purge(c.Request.Context(), id); err != nil {
		h.log.Warn("render cache purge failed", randselect.Fields{"page": id, "err": err})
	}
}

func pageID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page id"})
		return 0, false
	}
	return id, true
}

// Package coherency keeps the edge cache and conditional-GET validation consistent
// with pages whose body is randomized per view.
//
// The exact Randomized flag lives in the artifact metadata and is only known
// after the artifact is loaded. The If-Modified-Since decision has to be made
// before that, so it reads an approximate copy: a short-TTL ValidationCache
// backed by a durable PropertyStore. The approximate copy is corrected by
// read-repair whenever a render or a finished view observes a disagreement.
package coherency

import (
	"context"
	"time"
)

// PageID is the stable identity of a page (not of a revision).
type PageID uint64

// LastModifiedKey is the entry LastModified adds to the times map.
const LastModifiedKey = "randselect"

// HeaderName is set to "1" on responses for randomized article views.
const HeaderName = "X-RandSelect"

// ValidationCache is the fast approximate store of "page uses randomization".
// Implementations must be safe for concurrent use and give atomic get/set/delete.
type ValidationCache interface {
	// GetOrCompute returns the cached flag, or calls compute on a miss and
	// stores its result with ttl. hit reports whether compute was skipped.
	GetOrCompute(ctx context.Context, page PageID, ttl time.Duration,
		compute func(context.Context) (bool, error)) (v bool, hit bool, err error)

	// Peek returns the cached flag without populating.
	Peek(ctx context.Context, page PageID) (v bool, ok bool, err error)

	// Delete removes the entry (best-effort). Missing keys are not an error.
	Delete(ctx context.Context, page PageID) error
}

// PropertyStore is the durable per-page record of randomization at last render.
type PropertyStore interface {
	// Randomized reports the recorded flag; a page never rendered reports false.
	Randomized(ctx context.Context, page PageID) (bool, error)
	// SetRandomized records the flag of the latest render (idempotent overwrite).
	SetRandomized(ctx context.Context, page PageID, randomized bool) error
}

// Response is the slice of the HTTP response layer the coordinator drives.
type Response interface {
	SetHeader(name, value string)
	// LowerCDNMaxAge caps the shared-cache max-age; it never raises it.
	LowerCDNMaxAge(d time.Duration)
}

// Request describes the incoming page request.
type Request struct {
	Page   PageID
	Action string // "" or "view" for a page view
	OldID  string // non-empty when pinned to an older revision
	// Article is true when the response renders the page body (not a special page,
	// redirect or error).
	Article bool
}

// IsView reports whether the request is a view action.
func (r Request) IsView() bool { return r.Action == "" || r.Action == "view" }

// IsPrimaryView reports a view of the current revision.
func (r Request) IsPrimaryView() bool { return r.IsView() && r.OldID == "" }

// Observation records what the fast path believed for one request; it is carried
// from LastModified to AdjustEdgeCache so the belief can be checked against the
// exact flag.
type Observation struct {
	Checked bool // false => LastModified bypassed this request
	Approx  bool
}

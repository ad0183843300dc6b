package rendercache

import (
	"fmt"
)

// InvalidateError reports a partially failed Invalidate. A failed bump is the
// serious half: older variants of the page stay readable until their TTL.
type InvalidateError struct {
	Page    uint64
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate page %d failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Page, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate page %d: gen bump failed: %v", e.Page, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate page %d: delete failed: %v", e.Page, e.DelErr)
	default:
		return fmt.Sprintf("invalidate page %d: unknown error", e.Page)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}

package coordinator

import "errors"

// ErrNotReady is returned by FirstRefresh when the initial fetch fails,
// so the host can retry setup instead of treating it as fatal.
var ErrNotReady = errors.New("coordinator: not ready")

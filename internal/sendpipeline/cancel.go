package sendpipeline

import "sync"

// CancelToken lets a caller abort a send between sub-steps, before
// broadcast; once the pipeline reaches BROADCASTING, cancellation becomes
// a no-op (spec.md §5: "cancellation is a no-op" after the tx is public).
type CancelToken struct {
	mu        sync.Mutex
	ch        chan struct{}
	cancelled bool
}

// NewCancelToken returns a fresh, uncancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel marks the token cancelled. Safe to call more than once.
func (t *CancelToken) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		t.cancelled = true
		close(t.ch)
	}
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

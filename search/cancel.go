package search

import "sync"

// CancelToken lets a caller abandon a running search. Cancelling makes the
// orchestrator return immediately with whatever has been collected so far.
// A nil token is never cancelled.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken creates an active token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel marks the token as cancelled. It is safe to call more than once.
func (t *CancelToken) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation. It is nil for a nil token.
func (t *CancelToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

package task

import "sync"

// CancelToken is a one-shot cooperative cancellation signal. Task bodies
// poll Cancelled, select on Done, or register a callback; the manager fires
// the token when a cancel request arrives. Cancellation is cooperative: the
// manager never forcibly kills an in-flight execution.
type CancelToken struct {
	mu        sync.Mutex
	requested bool
	reason    string
	done      chan struct{}
	callbacks []func(reason string)
}

// NewCancelToken returns a token in the "not requested" state.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel fires the token. Subsequent calls are no-ops; the first reason wins.
func (t *CancelToken) Cancel(reason string) {
	t.mu.Lock()
	if t.requested {
		t.mu.Unlock()
		return
	}
	t.requested = true
	t.reason = reason
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	// Callbacks run outside the lock so they may inspect the token.
	for _, fn := range callbacks {
		fn(reason)
	}
}

// Cancelled reports whether cancellation has been requested.
func (t *CancelToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

// Reason returns the reason passed to the first Cancel call.
func (t *CancelToken) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Done returns a channel closed when cancellation is requested.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}

// OnCancel registers a callback fired on cancellation. If the token has
// already fired, the callback runs immediately.
func (t *CancelToken) OnCancel(fn func(reason string)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	if t.requested {
		reason := t.reason
		t.mu.Unlock()
		fn(reason)
		return
	}
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}

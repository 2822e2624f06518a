// Package promise provides a single-assignment completion primitive used
// to correlate outgoing protocol requests with their eventual responses.
//
// A promise starts Open and transitions exactly once to Resolved or
// Rejected. Settlement is strict: settling a terminal promise returns
// ErrAlreadySettled and leaves the observed value unchanged. Continuations
// attached with Then run in registration order once the promise settles;
// continuations attached after settlement run immediately.
package promise

import (
	"errors"
	"sync"
)

// Status is the lifecycle state of a promise.
type Status int

const (
	Open Status = iota
	Resolved
	Rejected
)

// ErrAlreadySettled is returned by Resolve/Reject on a terminal promise.
var ErrAlreadySettled = errors.New("promise: already resolved or rejected")

// Callback consumes the settled value of a promise. Returning an error
// rejects the downstream promise; returning a *Promise chains it into the
// downstream promise; any other value resolves the downstream promise.
type Callback func(value any) (any, error)

type continuation struct {
	child     *Promise
	onSuccess Callback
	onError   Callback
}

// Promise is a one-shot container for an asynchronous result. It is safe
// for concurrent use; callbacks run on the goroutine that settles the
// promise (or the one calling Then, when already settled).
type Promise struct {
	mu       sync.Mutex
	status   Status
	value    any
	children []continuation
}

// New returns an open promise.
func New() *Promise {
	return &Promise{}
}

// When returns a promise already resolved with value. If value is itself
// a promise it is returned unchanged.
func When(value any) *Promise {
	if p, ok := value.(*Promise); ok {
		return p
	}
	p := New()
	_ = p.settle(Resolved, value)
	return p
}

// Failed returns a promise already rejected with reason. If reason is
// itself a promise it is returned unchanged.
func Failed(reason any) *Promise {
	if p, ok := reason.(*Promise); ok {
		return p
	}
	p := New()
	_ = p.settle(Rejected, reason)
	return p
}

// Resolve transitions the promise to Resolved and runs pending
// continuations with value.
func (p *Promise) Resolve(value any) error {
	return p.settle(Resolved, value)
}

// Reject transitions the promise to Rejected and runs pending
// continuations with reason.
func (p *Promise) Reject(reason any) error {
	return p.settle(Rejected, reason)
}

// Status reports the current lifecycle state.
func (p *Promise) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Value returns the settled value and whether the promise is terminal.
func (p *Promise) Value() (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.status != Open
}

func (p *Promise) settle(status Status, value any) error {
	p.mu.Lock()
	if p.status != Open {
		p.mu.Unlock()
		return ErrAlreadySettled
	}
	p.status = status
	p.value = value
	pending := p.children
	p.children = nil
	p.mu.Unlock()

	for _, c := range pending {
		c.run(status, value)
	}
	return nil
}

// Then registers continuations and returns a promise settled by their
// outcome. A nil onSuccess passes the value through; a nil onError passes
// the rejection through. If the receiver is already terminal the matching
// continuation runs before Then returns.
func (p *Promise) Then(onSuccess, onError Callback) *Promise {
	c := continuation{child: New(), onSuccess: onSuccess, onError: onError}

	p.mu.Lock()
	if p.status == Open {
		p.children = append(p.children, c)
		p.mu.Unlock()
		return c.child
	}
	status, value := p.status, p.value
	p.mu.Unlock()

	c.run(status, value)
	return c.child
}

// Catch registers only an error continuation.
func (p *Promise) Catch(onError Callback) *Promise {
	return p.Then(nil, onError)
}

func (c continuation) run(status Status, value any) {
	var cb Callback
	if status == Resolved {
		cb = c.onSuccess
		if cb == nil {
			_ = c.child.Resolve(value)
			return
		}
	} else {
		cb = c.onError
		if cb == nil {
			_ = c.child.Reject(value)
			return
		}
	}

	result, err := cb(value)
	if err != nil {
		_ = c.child.Reject(err)
		return
	}
	if chained, ok := result.(*Promise); ok {
		// Flatten: the child settles however the returned promise does.
		chained.Then(
			func(v any) (any, error) { _ = c.child.Resolve(v); return nil, nil },
			func(r any) (any, error) { _ = c.child.Reject(r); return nil, nil },
		)
		return
	}
	_ = c.child.Resolve(result)
}

// All returns a promise that resolves with every input's value in input
// order once all inputs resolve, or rejects with the first rejection
// reason observed.
func All(promises ...*Promise) *Promise {
	result := New()
	if len(promises) == 0 {
		_ = result.Resolve([]any{})
		return result
	}

	var mu sync.Mutex
	remaining := len(promises)
	values := make([]any, len(promises))

	for i, p := range promises {
		i := i
		p.Then(
			func(v any) (any, error) {
				mu.Lock()
				values[i] = v
				remaining--
				done := remaining == 0
				mu.Unlock()
				if done {
					_ = result.Resolve(values)
				}
				return nil, nil
			},
			func(r any) (any, error) {
				_ = result.Reject(r)
				return nil, nil
			},
		)
	}
	return result
}

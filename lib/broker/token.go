package broker

import (
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("broker")

// --------------------------------------------------------------------------
// Continuation
// --------------------------------------------------------------------------

// Continuation is a callback registered on a token to run exactly once when
// the token resolves. It is invoked with the final terminal Response by the
// goroutine that calls Resolve. There is no way to unregister a continuation
// (removal would race with a concurrent resolve) - a consumer that loses
// interest must make its callback a safe no-op instead.
type Continuation func(resp *Response)

// --------------------------------------------------------------------------
// Request Token
// --------------------------------------------------------------------------

// Token identifies one in-flight-or-resolved lookup for one key. It is
// shared between the backend (which resolves it exactly once) and every
// consumer that holds the handle or registered a continuation.
//
// A token is reference counted: it is created with one reference owned by
// the producer, every additional holder calls Retain, and the token's
// storage is torn down when the last holder calls Release. Resolution is a
// one-shot transition from non-terminal to terminal and must happen at most
// once; a second Resolve is rejected as a fault and does not alter the
// stored Response.
//
// Thread-safety: all methods are safe for concurrent use. The terminal flag,
// the response slot and the continuation list are only ever touched under
// the token's mutex; this single critical section is what makes GetOrBind
// race-free against a concurrent Resolve.
type Token struct {
	id      uint64
	onFinal func(*Token)

	mu       sync.Mutex
	resolved bool
	resp     *Response
	pending  []Continuation
	refs     int64
}

// NewToken creates a token for a lookup that cannot be answered
// synchronously. The token starts unresolved with an empty continuation list
// and a reference count of one (owned by the producer). The optional onFinal
// hook fires once, after the last reference is released.
func NewToken(id uint64, onFinal func(*Token)) *Token {
	metricTokensCreated.Inc()
	return &Token{
		id:      id,
		onFinal: onFinal,
		refs:    1,
	}
}

// ID returns the unique identifier of the token. It is cheap to copy and
// remains valid after the token itself has been released.
func (t *Token) ID() uint64 {
	return t.id
}

// Resolve publishes a terminal Response into the token, marks it resolved
// and drains the continuation list, invoking every stored callback exactly
// once with the response. The invocation order of multiple continuations is
// unspecified. Callbacks run on the calling goroutine, outside the token's
// critical section, so they may safely call GetOrBind or Peek.
//
// Resolve must be called at most once per token. A second call returns an
// ErrCodeAlreadyResolved fault and leaves the stored Response untouched.
func (t *Token) Resolve(resp *Response) error {
	if resp == nil || !resp.State().Terminal() {
		return NewError(ErrCodeInvalidArgument, "resolve requires a terminal response")
	}
	if err := resp.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	if t.refs <= 0 {
		t.mu.Unlock()
		return NewError(ErrCodeReleased, "resolve on a released token")
	}
	if t.resolved {
		t.mu.Unlock()
		plog.Errorf("double resolve on token %d rejected", t.id)
		return NewError(ErrCodeAlreadyResolved, "token is already resolved")
	}
	t.resolved = true
	t.resp = resp
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	resolveCounter(resp.State()).Inc()

	for _, cb := range pending {
		metricContinuationsRun.Inc()
		cb(resp)
	}
	return nil
}

// GetOrBind is the race-free check-and-register operation. It either
// delivers the already-resolved Response synchronously or registers the
// callback to be invoked exactly once, later, by the goroutine that resolves
// the token:
//
//   - resp != nil, delivered == true: the token was already terminal; cb
//     will never be invoked and the caller can skip any suspension step.
//   - delivered == false, err == nil: cb was registered and is guaranteed
//     to be invoked exactly once with the final Response.
//   - err != nil: the call itself faulted (nil callback, released token);
//     cb was not registered and will never be invoked.
//
// The read of the terminal flag and the mutation of the continuation list
// happen under one critical section, so a resolution racing with the
// registration can never be missed.
func (t *Token) GetOrBind(cb Continuation) (resp *Response, delivered bool, err error) {
	if cb == nil {
		return nil, false, NewError(ErrCodeInvalidArgument, "callback must not be nil")
	}

	t.mu.Lock()
	if t.refs <= 0 {
		t.mu.Unlock()
		return nil, false, NewError(ErrCodeReleased, "bind on a released token")
	}
	if t.resolved {
		resp = t.resp
		t.mu.Unlock()
		metricDelivered.Inc()
		return resp, true, nil
	}
	t.pending = append(t.pending, cb)
	t.mu.Unlock()

	metricRegistered.Inc()
	return nil, false, nil
}

// Peek reads the current state of the token without ever registering a
// continuation. The boolean return value indicates whether the token has
// resolved. Once terminal, repeated Peek calls return the identical
// Response snapshot. Like GetOrBind, peeking a fully released token is a
// fault and reports ErrCodeReleased instead of looking merely unresolved.
func (t *Token) Peek() (resp *Response, resolved bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refs <= 0 {
		return nil, false, NewError(ErrCodeReleased, "peek on a released token")
	}
	if !t.resolved {
		return nil, false, nil
	}
	return t.resp, true, nil
}

// Retain increments the reference count on behalf of an additional holder.
func (t *Token) Retain() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refs <= 0 {
		plog.Panicf("retain on released token %d", t.id)
	}
	t.refs++
}

// Release drops one reference. When the count reaches zero the token's
// storage is destroyed and the onFinal hook fires. Releasing the last
// reference while continuations are still pending is a defect (it cannot
// happen under correct use of the bind protocol) and panics loudly rather
// than silently dropping the exactly-once guarantee.
func (t *Token) Release() {
	t.mu.Lock()

	if t.refs <= 0 {
		t.mu.Unlock()
		plog.Panicf("release on already released token %d", t.id)
		return
	}
	t.refs--
	if t.refs > 0 {
		t.mu.Unlock()
		return
	}
	if len(t.pending) > 0 {
		n := len(t.pending)
		t.mu.Unlock()
		plog.Panicf("token %d released with %d pending continuations", t.id, n)
		return
	}

	// last holder is gone, tear down storage
	t.resp = nil
	onFinal := t.onFinal
	t.onFinal = nil
	t.mu.Unlock()

	if onFinal != nil {
		onFinal(t)
	}
}

package broker

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// TestResolveOnce verifies the exactly-once resolution contract: a second
// resolve is rejected as a fault and does not alter the stored response
func TestResolveOnce(t *testing.T) {
	token := NewToken(1, nil)
	defer token.Release()

	first := NewComplete(nil, []byte("v1"))
	if err := token.Resolve(first); err != nil {
		t.Fatalf("First resolve failed: %v", err)
	}

	err := token.Resolve(NewComplete(nil, []byte("v2")))
	if err == nil {
		t.Fatal("Second resolve should be rejected")
	}
	if code, ok := CodeOf(err); !ok || code != ErrCodeAlreadyResolved {
		t.Errorf("Expected AlreadyResolved fault, got %v", err)
	}

	// the stored response must be unchanged
	resp, resolved, err := token.Peek()
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if !resolved {
		t.Fatal("Token should be resolved")
	}
	if !bytes.Equal(resp.Data(), []byte("v1")) {
		t.Errorf("Stored response changed after rejected resolve: %q", resp.Data())
	}
}

// TestResolveRequiresTerminalState verifies the resolve precondition
func TestResolveRequiresTerminalState(t *testing.T) {
	token := NewToken(1, nil)
	defer token.Release()

	other := NewToken(2, nil)
	defer other.Release()

	err := token.Resolve(NewInProgress(nil, other))
	if err == nil {
		t.Fatal("Resolving with a non-terminal response should fail")
	}
	if code, _ := CodeOf(err); code != ErrCodeInvalidArgument {
		t.Errorf("Expected InvalidArgument fault, got %v", err)
	}

	if err := token.Resolve(nil); err == nil {
		t.Fatal("Resolving with a nil response should fail")
	}

	// the token must still be resolvable
	if err := token.Resolve(NewNone()); err != nil {
		t.Errorf("Resolve after rejected attempts failed: %v", err)
	}
}

// TestBindBeforeResolve covers registration before resolution: the callback
// fires exactly once with the final response
func TestBindBeforeResolve(t *testing.T) {
	token := NewToken(1, nil)
	defer token.Release()

	var calls atomic.Int64
	var got *Response

	resp, delivered, err := token.GetOrBind(func(r *Response) {
		calls.Add(1)
		got = r
	})
	if err != nil {
		t.Fatalf("GetOrBind failed: %v", err)
	}
	if delivered || resp != nil {
		t.Fatal("GetOrBind on a pending token should register, not deliver")
	}
	if calls.Load() != 0 {
		t.Fatal("Callback must not fire before resolution")
	}

	final := NewComplete(nil, []byte("value"))
	if err := token.Resolve(final); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("Callback should fire exactly once, fired %d times", calls.Load())
	}
	if got != final {
		t.Error("Callback should receive the final response snapshot")
	}
}

// TestBindAfterResolve covers registration after resolution: the response is
// delivered synchronously and the callback never fires
func TestBindAfterResolve(t *testing.T) {
	token := NewToken(1, nil)
	defer token.Release()

	final := NewComplete(nil, []byte("value"))
	if err := token.Resolve(final); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	var calls atomic.Int64
	resp, delivered, err := token.GetOrBind(func(*Response) {
		calls.Add(1)
	})
	if err != nil {
		t.Fatalf("GetOrBind failed: %v", err)
	}
	if !delivered {
		t.Fatal("GetOrBind on a resolved token should deliver synchronously")
	}
	if resp != final {
		t.Error("Delivered response should be the resolved snapshot")
	}
	if calls.Load() != 0 {
		t.Error("Callback must not fire separately after synchronous delivery")
	}
}

// TestMultipleWaiters verifies that two consumers registered on the same
// pending token each observe exactly one invocation with the same response
func TestMultipleWaiters(t *testing.T) {
	token := NewToken(1, nil)
	defer token.Release()

	const numWaiters = 2
	var calls [numWaiters]atomic.Int64
	var responses [numWaiters]*Response

	for i := 0; i < numWaiters; i++ {
		i := i
		_, delivered, err := token.GetOrBind(func(r *Response) {
			calls[i].Add(1)
			responses[i] = r
		})
		if err != nil || delivered {
			t.Fatalf("Registration %d failed: delivered=%t err=%v", i, delivered, err)
		}
	}

	final := NewComplete(nil, []byte("value"))
	if err := token.Resolve(final); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	for i := 0; i < numWaiters; i++ {
		if calls[i].Load() != 1 {
			t.Errorf("Waiter %d fired %d times, expected exactly once", i, calls[i].Load())
		}
		if responses[i] != final {
			t.Errorf("Waiter %d received a different response", i)
		}
	}
}

// TestGetOrBindNilCallback verifies the fault branch of the protocol
func TestGetOrBindNilCallback(t *testing.T) {
	token := NewToken(1, nil)
	defer token.Release()

	_, _, err := token.GetOrBind(nil)
	if err == nil {
		t.Fatal("GetOrBind with a nil callback should fault")
	}
	if code, _ := CodeOf(err); code != ErrCodeInvalidArgument {
		t.Errorf("Expected InvalidArgument fault, got %v", err)
	}
}

// TestPeekIdempotent verifies that terminal reads are idempotent and never
// register a continuation
func TestPeekIdempotent(t *testing.T) {
	token := NewToken(1, nil)
	defer token.Release()

	if _, resolved, err := token.Peek(); err != nil || resolved {
		t.Fatalf("Peek on a pending token should report unresolved (resolved=%t, err=%v)", resolved, err)
	}

	final := NewComplete([]byte("h"), []byte("v"))
	if err := token.Resolve(final); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		resp, resolved, err := token.Peek()
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		if !resolved {
			t.Fatal("Peek should report resolved")
		}
		if resp != final {
			t.Error("Peek should return the identical snapshot on every call")
		}
	}
}

// TestPeekReleasedToken verifies that peeking a fully released token is a
// fault rather than looking merely unresolved
func TestPeekReleasedToken(t *testing.T) {
	token := NewToken(1, nil)
	if err := token.Resolve(NewNone()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	token.Release()

	resp, resolved, err := token.Peek()
	if resp != nil || resolved {
		t.Fatalf("Peek on a released token returned a response (resolved=%t)", resolved)
	}
	if code, ok := CodeOf(err); !ok || code != ErrCodeReleased {
		t.Errorf("Expected Released fault, got %v", err)
	}
}

// TestRefCounting verifies retain/release lifetime management and the
// onFinal hook
func TestRefCounting(t *testing.T) {
	var finalized atomic.Int64
	token := NewToken(42, func(tk *Token) {
		if tk.ID() != 42 {
			t.Errorf("onFinal received wrong token id %d", tk.ID())
		}
		finalized.Add(1)
	})

	token.Retain() // consumer reference

	if err := token.Resolve(NewNone()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	token.Release() // producer drops
	if finalized.Load() != 0 {
		t.Fatal("onFinal must not fire while references remain")
	}

	token.Release() // last consumer drops
	if finalized.Load() != 1 {
		t.Fatalf("onFinal should fire exactly once, fired %d times", finalized.Load())
	}

	// any use after the final release is a fault
	if _, _, err := token.GetOrBind(func(*Response) {}); err == nil {
		t.Fatal("GetOrBind on a released token should fault")
	} else if code, _ := CodeOf(err); code != ErrCodeReleased {
		t.Errorf("Expected Released fault, got %v", err)
	}

	if err := token.Resolve(NewNone()); err == nil {
		t.Fatal("Resolve on a released token should fault")
	}
}

// TestReleaseWithPendingContinuationsPanics verifies that destroying a token
// with a non-empty pending list is treated as an unrecoverable defect
func TestReleaseWithPendingContinuationsPanics(t *testing.T) {
	token := NewToken(1, nil)

	if _, delivered, err := token.GetOrBind(func(*Response) {}); err != nil || delivered {
		t.Fatalf("Registration failed: delivered=%t err=%v", delivered, err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Releasing the last reference with pending continuations should panic")
		}
	}()
	token.Release()
}

// TestNoMissedDelivery races GetOrBind against Resolve on many tokens and
// checks that every registration is followed by exactly one invocation and
// every delivered response is the final one - never neither, never both
func TestNoMissedDelivery(t *testing.T) {
	const rounds = 1000

	for i := 0; i < rounds; i++ {
		token := NewToken(uint64(i), nil)
		final := NewComplete(nil, []byte("v"))

		var calls atomic.Int64
		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			if err := token.Resolve(final); err != nil {
				t.Errorf("Resolve failed: %v", err)
			}
		}()

		go func() {
			defer wg.Done()
			resp, delivered, err := token.GetOrBind(func(r *Response) {
				if r != final {
					t.Error("Callback received a non-final response")
				}
				calls.Add(1)
			})
			if err != nil {
				t.Errorf("GetOrBind failed: %v", err)
				return
			}
			if delivered {
				if resp != final {
					t.Error("Delivered a non-final response")
				}
				calls.Add(1)
			}
		}()

		wg.Wait()

		// exactly one of: synchronous delivery or asynchronous invocation
		if calls.Load() != 1 {
			t.Fatalf("Round %d: expected exactly one delivery, got %d", i, calls.Load())
		}
		token.Release()
	}
}

// TestConcurrentWaiters registers many goroutines on one token concurrently
// with the resolving goroutine
func TestConcurrentWaiters(t *testing.T) {
	const numWaiters = 64

	token := NewToken(1, nil)
	defer token.Release()

	final := NewFailed(nil, errors.New("backend down"))

	var calls atomic.Int64
	var wg sync.WaitGroup
	wg.Add(numWaiters + 1)

	for i := 0; i < numWaiters; i++ {
		go func() {
			defer wg.Done()
			resp, delivered, err := token.GetOrBind(func(*Response) {
				calls.Add(1)
			})
			if err != nil {
				t.Errorf("GetOrBind failed: %v", err)
				return
			}
			if delivered {
				if resp.State() != StateError {
					t.Errorf("Expected Error state, got %s", resp.State())
				}
				calls.Add(1)
			}
		}()
	}

	go func() {
		defer wg.Done()
		if err := token.Resolve(final); err != nil {
			t.Errorf("Resolve failed: %v", err)
		}
	}()

	wg.Wait()

	if calls.Load() != numWaiters {
		t.Errorf("Expected %d deliveries, got %d", numWaiters, calls.Load())
	}
}

// Package broker implements the concurrency coordination primitive that
// connects a cache backend to asynchronous consumers: the response state
// machine, the in-flight request token, and the race-free register-or-deliver
// binding protocol.
//
// The package focuses on:
//   - Immutable Response snapshots with a strict state/data correspondence
//   - Reference-counted request tokens with one-shot resolution
//   - The GetOrBind check-and-register operation with an exactly-once
//     delivery guarantee for every registered continuation
//   - A structured fault taxonomy separated from backend fetch failures
//
// Key Components:
//
//   - State: The four lookup states None, Complete, InProgress and Error.
//     All states except InProgress are terminal - a Response in a terminal
//     state never changes again.
//
//   - Response: An immutable snapshot of the outcome of a lookup, carrying
//     optional header and data buffers, a fetch error, or (while the fetch
//     is ongoing) the request Token. Consumers never construct Responses.
//
//   - Token: The handle to one in-flight-or-resolved lookup. The backend
//     resolves it exactly once from whatever worker completes the fetch;
//     consumers attach continuations with GetOrBind or read the current
//     state with Peek. Tokens are reference counted via Retain/Release.
//
//   - Error System: Typed faults (Error with an ErrCode) are surfaced
//     synchronously to the misusing caller - a double resolve or the use of
//     a released token is never silently absorbed. Backend failures are not
//     faults: they are delivered as StateError Responses through the normal
//     resolution path.
//
// Concurrency Model:
//
//	The broker is thread-agnostic and never blocks a goroutine itself.
//	Resolve may be called from any worker goroutine, GetOrBind from any
//	number of consumer goroutines. The token's mutex serializes the only
//	shared mutable state (terminal flag, response slot, continuation list);
//	Response reads after resolution need no synchronization because the
//	record is immutable once published. Any higher-level suspend/resume
//	mechanism (channel send, promise, event loop) is a thin adapter built
//	on top of GetOrBind, outside this package's scope.
package broker

package cachers

import (
	"io"

	"github.com/cachersdb/cachers/lib/broker"
	"github.com/cachersdb/cachers/lib/cache"
)

// IDatabase is the public surface of a cachers database handle. It couples a
// synchronous cache engine with an asynchronous fetch pool so callers always
// get an immediate answer: a cached value, a definitive absence, or a token
// they can bind a continuation to.
//
// Thread-safety: all methods are safe for concurrent use.
type IDatabase interface {

	// --------------------------------------------------------------------------
	// Lookup
	// --------------------------------------------------------------------------

	// Get consults the cache for key and returns one of:
	//   - a StateComplete response carrying the cached header and value
	//   - a StateNone response if the key is known to have no value
	//   - a StateInProgress response carrying a token when the key missed and
	//     a backend fetch was started (or is already running for this key)
	//
	// On StateInProgress the returned token holds one reference owned by the
	// caller; the caller must Release it when done. Concurrent misses on the
	// same key share one token, so the backend is asked at most once.
	//
	// Error conditions:
	//   - returns an ErrCodeInvalidArgument fault for an empty key
	//   - returns an ErrCodeEmpty fault on a miss when no backend fetcher is
	//     configured
	//   - returns an ErrCodeClosed fault after Close
	Get(key []byte) (*broker.Response, error)

	// --------------------------------------------------------------------------
	// Direct Cache Manipulation
	// --------------------------------------------------------------------------

	// Put stores a value for key directly, bypassing the fetch path. Useful
	// for warming the cache or writing through after a mutation.
	//
	// Error conditions:
	//   - returns an ErrCodeInvalidArgument fault for an empty key
	//   - returns an ErrCodeClosed fault after Close
	Put(key, header, value []byte) error

	// Delete removes the cached entry for key, positive or negative. A later
	// Get misses and may trigger a fresh fetch.
	//
	// Error conditions: as in Put.
	Delete(key []byte) error

	// --------------------------------------------------------------------------
	// Introspection
	// --------------------------------------------------------------------------

	// Token returns the live token with the given id, if any. Tokens leave
	// the registry once their last reference is released.
	Token(id uint64) (*broker.Token, bool)

	// GetEngineInfo returns information about the underlying storage engine.
	GetEngineInfo() cache.EngineInfo

	// WriteMetrics writes all collected metrics in Prometheus text format.
	WriteMetrics(w io.Writer)

	// --------------------------------------------------------------------------
	// Lifecycle
	// --------------------------------------------------------------------------

	// Close shuts the database down: the fetch pool drains (every
	// outstanding token still resolves), then the engine releases its
	// resources. Close is idempotent.
	Close() error
}

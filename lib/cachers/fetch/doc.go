// Package fetch runs backend lookups for cache misses on a bounded worker
// pool. Each submitted job carries the token that consumers of the miss are
// waiting on; the pool resolves it exactly once with the fetch outcome
// (value, definitive absence, or failure).
//
// Thread-safety: all exported methods of Pool are safe for concurrent use.
package fetch

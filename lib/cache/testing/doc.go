// Package testing provides a reusable test and benchmark suite for
// cache.Engine implementations. Engine packages invoke RunEngineTests and
// RunEngineBenchmarks with a factory for their implementation; the suite
// exercises the full interface contract (store/lookup semantics, negative
// caching, overwrites, TTL expiry, deletion, concurrent usage and metadata
// reporting) and skips tests for features the implementation does not
// advertise.
package testing

// Package aspen implements a high-performance, sharded in-memory cache
// engine satisfying the cache.Engine interface.
//
// Architecture:
//
//   - Sharding: keys are hashed with a seeded FNV-1a hash and distributed
//     across independent shards (by default one per CPU core). Each shard
//     owns its own concurrent map, expiry schedule and event queue, so
//     shards never contend with each other.
//
//   - TTL and Garbage Collection: entries can carry a wall-clock expiry
//     deadline. Readers treat expired entries as misses immediately; the
//     actual removal happens asynchronously in one GC goroutine per shard.
//     Writers notify the GC of new deadlines through an unbounded MPSC
//     queue, and the GC maintains a heap-based expiry schedule that it
//     drains on a fixed interval, double-checking every candidate against
//     the live map before removal.
//
//   - Negative Caching: StoreNegative records that a key has no value and
//     none will arrive. Lookups answer such keys with LookupNegative (not a
//     miss), which the broker layer maps to a terminal None response
//     instead of triggering another backend fetch.
//
// All read and write operations are safe for concurrent use. Returned
// buffers are copies; the engine never hands out references to its internal
// storage.
package aspen

// Package cache provides a standardized interface for cache storage engine
// implementations. It defines the Engine interface that allows for consistent
// interaction with various in-memory backends while abstracting implementation
// details.
//
// The package focuses on:
//   - A unified interface for cache operations (Store, Lookup, Has, Delete)
//   - Negative caching: recording keys that are known to have no value
//   - Feature discovery through capability flags
//   - Standardized metadata reporting
//
// Key Components:
//
//   - Engine Interface: The core interface that all engine implementations
//     must satisfy. Lookups classify their outcome as a hit, a negative hit
//     or a miss - the three answers the asynchronous broker layer needs to
//     decide between returning a terminal response and starting a fetch.
//
//   - Feature Flags: The Feature type defines capability flags that
//     implementations can advertise through the SupportsFeature method.
//
//   - Engine Information: The EngineInfo structure provides standardized
//     reporting on engine state, including size statistics, implementation
//     type and implementation-specific metadata. Note: size statistics are
//     estimates since a precise calculation can be expensive.
//
// The included aspen engine (lib/cache/engines/aspen) is a sharded in-memory
// implementation with wall-clock TTL expiry and background garbage
// collection. The suite in lib/cache/testing exercises any Engine
// implementation against the interface contract.
package cache

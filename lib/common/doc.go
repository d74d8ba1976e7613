// Package common provides configuration structures and logging utilities shared
// across the cachers system.
//
// The package focuses on:
//   - Configuration of the database handle, storage engine and fetch pool
//   - A custom logging implementation with consistent formatting
//
// Key Components:
//
//   - DatabaseConfig: Comprehensive configuration for a database handle,
//     including engine sharding, garbage collection interval, fetch worker
//     pool sizing and logging. DefaultDatabaseConfig provides sensible
//     defaults for single-process deployments.
//
//   - Logger: Custom logging implementation built on the dragonboat logging
//     facade. CreateLogger acts as the logger factory and InitLoggers wires
//     it up for all packages of this module ("broker", "cachers", "fetch",
//     "engine") with a configurable level.
package common

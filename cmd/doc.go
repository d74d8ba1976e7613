// Package cmd implements the command-line interface of cachers. The library
// is meant to be embedded, so the CLI is intentionally small: a version
// command and an in-process benchmark of the cache and fetch path.
//
// The package is organized into subpackages:
//
//   - bench: In-process benchmark of the database façade
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See cachers -help for a list of all commands.
package cmd

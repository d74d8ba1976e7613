// Package cachers provides the database façade of the lookup broker. A
// handle combines three collaborators: a synchronous cache engine (lib/cache),
// a bounded worker pool that runs backend fetches (lib/cachers/fetch), and
// the response/token machinery that lets consumers wait for in-flight
// fetches without polling (lib/broker).
//
// The central guarantee is that a miss costs the backend at most one fetch
// no matter how many consumers ask for the key concurrently: they all share
// one token, and each of them either receives the resolved response directly
// or has its continuation invoked exactly once.
package cachers

package fetch

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cachersdb/cachers/lib/broker"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var plog = logger.GetLogger("fetch")

// --------------------------------------------------------------------------
// Backend Boundary
// --------------------------------------------------------------------------

// Fetcher is the backend collaborator that produces values for keys. It is
// called from pool worker goroutines, so it must be safe for concurrent use.
//
// The return values are interpreted as follows:
//   - err != nil: the fetch failed terminally
//   - err == nil and both buffers nil: no value is associated with the key
//     and none will arrive
//   - otherwise: the value (and optional header) was fetched
type Fetcher func(ctx context.Context, key string) (header, value []byte, err error)

// Result carries the raw outcome of one fetch to the pool owner before the
// token resolves, so the owner can populate its cache first.
type Result struct {
	Key    string
	Header []byte
	Value  []byte
	Err    error
}

// job pairs a key with the token its fetch will resolve
type job struct {
	key   string
	token *broker.Token
}

// --------------------------------------------------------------------------
// Worker Pool
// --------------------------------------------------------------------------

// Pool runs backend fetches on a fixed set of worker goroutines and resolves
// each job's token exactly once with the terminal outcome. A fixed pool
// avoids spawning one goroutine per miss under load.
//
// Ownership: a successfully submitted job transfers the producer reference
// of its token to the pool; the pool releases it after resolution. If Submit
// fails, the reference stays with the caller.
type Pool struct {
	fetcher  Fetcher
	onResult func(Result)
	timeout  time.Duration

	jobs     chan job
	stopCh   chan struct{}
	closed   atomic.Bool
	submitMu sync.RWMutex
	group    *errgroup.Group
}

// NewPool creates a pool with the given number of workers and queue depth.
// The onResult hook (optional) is invoked with the raw fetch outcome before
// the token resolves.
func NewPool(workers, queueDepth int, timeout time.Duration, fetcher Fetcher, onResult func(Result)) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueDepth <= 0 {
		queueDepth = workers * 2
	}

	p := &Pool{
		fetcher:  fetcher,
		onResult: onResult,
		timeout:  timeout,
		jobs:     make(chan job, queueDepth),
		stopCh:   make(chan struct{}),
		group:    &errgroup.Group{},
	}

	for i := 0; i < workers; i++ {
		p.group.Go(p.worker)
	}

	return p
}

// worker drains the job channel until it is closed. Jobs still queued at
// close time are executed, so every accepted token resolves before Close
// returns.
func (p *Pool) worker() error {
	for j := range p.jobs {
		p.run(j)
	}
	return nil
}

// run executes one fetch and resolves the job's token with the terminal
// outcome
func (p *Pool) run(j job) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	header, value, err := p.fetcher(ctx, j.key)

	var resp *broker.Response
	switch {
	case err != nil:
		resp = broker.NewFailed(header, err)
	case header == nil && value == nil:
		resp = broker.NewNone()
	default:
		resp = broker.NewComplete(header, value)
	}

	if p.onResult != nil {
		p.onResult(Result{Key: j.key, Header: header, Value: value, Err: err})
	}

	if rerr := j.token.Resolve(resp); rerr != nil {
		// a failed resolve breaks the exactly-once contract upstream
		plog.Errorf("resolve of token %d for key %q failed: %v", j.token.ID(), j.key, rerr)
	}

	// drop the producer reference the pool took over on Submit
	j.token.Release()
}

// Submit enqueues a fetch for key that will resolve token. The call blocks
// while the queue is full (backpressure) and honors context cancellation.
//
// Error conditions:
//   - returns an ErrCodeClosed fault if the pool is closed
//   - returns the context error if ctx is cancelled before enqueueing
func (p *Pool) Submit(ctx context.Context, key string, token *broker.Token) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return broker.NewError(broker.ErrCodeClosed, "fetch pool is closed")
	}

	select {
	case p.jobs <- job{key: key, token: token}:
		return nil
	case <-p.stopCh:
		return broker.NewError(broker.ErrCodeClosed, "fetch pool is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the pool down gracefully: no new submissions are accepted,
// already queued fetches still run and resolve their tokens, and Close
// returns once all workers have exited.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.submitMu.Lock()
	close(p.stopCh)
	close(p.jobs)
	p.submitMu.Unlock()

	_ = p.group.Wait()
}

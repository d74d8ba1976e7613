package cachers

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/cachersdb/cachers/lib/broker"
	"github.com/cachersdb/cachers/lib/cache"
	"github.com/cachersdb/cachers/lib/cachers/fetch"
	"github.com/cachersdb/cachers/lib/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var plog = logger.GetLogger("cachers")

// requiredFeatures lists what the façade itself needs from an engine. The
// negative-caching and TTL features are only required when a fetcher is
// configured, since only fetch results use them.
const requiredFeatures = cache.FeatureStore | cache.FeatureLookup | cache.FeatureDelete

const fetchFeatures = cache.FeatureStoreNegative | cache.FeatureTTL

// --------------------------------------------------------------------------
// Database Implementation
// --------------------------------------------------------------------------

type databaseImpl struct {
	cfg    *common.DatabaseConfig
	engine cache.Engine

	// fetch path, nil when opened without a fetcher
	pool *fetch.Pool

	// inflight maps keys with a running fetch to the shared token all
	// concurrent consumers of that miss receive
	inflight *xsync.MapOf[string, *broker.Token]

	// tokens indexes live tokens by id for out-of-band introspection
	tokens *xsync.MapOf[uint64, *broker.Token]

	nextTokenID atomic.Uint64
	closed      atomic.Bool
}

// Open creates a database handle backed by the engine the factory produces.
// A nil fetcher disables the asynchronous fetch path: misses then report an
// ErrCodeEmpty fault instead of returning a token. A nil cfg falls back to
// common.DefaultDatabaseConfig.
//
// Error conditions:
//   - returns an ErrCodeInvalidArgument fault if factory is nil
//   - returns an ErrCodeNotImplemented fault if the engine lacks a feature
//     the façade depends on
func Open(factory cache.EngineFactory, fetcher fetch.Fetcher, cfg *common.DatabaseConfig) (IDatabase, error) {
	if factory == nil {
		return nil, broker.NewError(broker.ErrCodeInvalidArgument, "engine factory must not be nil")
	}
	if cfg == nil {
		cfg = common.DefaultDatabaseConfig()
	}

	engine := factory()

	need := requiredFeatures
	if fetcher != nil {
		need |= fetchFeatures
	}
	if !engine.SupportsFeature(need) {
		_ = engine.Close()
		return nil, broker.NewError(broker.ErrCodeNotImplemented, "engine does not support the required features")
	}

	db := &databaseImpl{
		cfg:      cfg,
		engine:   engine,
		inflight: xsync.NewMapOf[string, *broker.Token](),
		tokens:   xsync.NewMapOf[uint64, *broker.Token](),
	}

	if fetcher != nil {
		db.pool = fetch.NewPool(cfg.FetchWorkers, cfg.FetchQueueDepth, cfg.FetchTimeout, fetcher, db.storeResult)
	}

	plog.Infof("database opened (engine=%s, fetch=%t, workers=%d)",
		engine.GetInfo().EngineType, fetcher != nil, cfg.FetchWorkers)

	return db, nil
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

func (db *databaseImpl) Get(key []byte) (*broker.Response, error) {
	if db.closed.Load() {
		return nil, broker.NewError(broker.ErrCodeClosed, "database is closed")
	}
	if len(key) == 0 {
		return nil, broker.NewError(broker.ErrCodeInvalidArgument, "key must not be empty")
	}

	metricGets.Inc()
	k := string(key)

	header, value, res := db.engine.Lookup(k)
	switch res {
	case cache.LookupHit:
		metricHits.Inc()
		return broker.NewComplete(header, value), nil
	case cache.LookupNegative:
		metricNegatives.Inc()
		return broker.NewNone(), nil
	}

	// miss
	metricMisses.Inc()
	if db.pool == nil {
		return nil, broker.NewError(broker.ErrCodeEmpty, "no value cached and no fetcher configured")
	}

	token, created := db.joinOrStartFetch(k)
	if created {
		if err := db.pool.Submit(context.Background(), k, token); err != nil {
			// consumers may already have joined the token, so it must still
			// resolve exactly once before the producer reference drops
			db.inflight.Delete(k)
			if rerr := token.Resolve(broker.NewFailed(nil, err)); rerr != nil {
				plog.Errorf("resolve of token %d after failed submit: %v", token.ID(), rerr)
			}
			token.Release() // caller reference
			token.Release() // producer reference the pool never took
			return nil, err
		}
	}

	return broker.NewInProgress(key, token), nil
}

// joinOrStartFetch returns the shared token for a missed key, creating it if
// this consumer is the first. The caller reference is taken inside the map's
// per-key critical section: the producer reference is only released after
// the key leaves the map, so a token loaded here is never already destroyed.
func (db *databaseImpl) joinOrStartFetch(k string) (token *broker.Token, created bool) {
	db.inflight.Compute(k, func(old *broker.Token, loaded bool) (*broker.Token, bool) {
		if loaded {
			token = old
			token.Retain()
			return old, false
		}

		id := db.nextTokenID.Add(1)
		token = broker.NewToken(id, db.dropToken)
		token.Retain() // caller reference on top of the producer's
		created = true

		db.tokens.Store(id, token)
		return token, false
	})
	return token, created
}

// storeResult runs on a pool worker before the token resolves. It populates
// the engine and removes the key from the in-flight map, so consumers
// arriving afterwards hit the cache (or start a fresh fetch) instead of
// joining an already resolved token.
func (db *databaseImpl) storeResult(res fetch.Result) {
	switch {
	case res.Err != nil:
		// failures are not cached, the next miss retries the backend
	case res.Header == nil && res.Value == nil:
		db.engine.StoreNegative(res.Key, db.cfg.NegativeTTL)
	default:
		db.engine.Store(res.Key, res.Header, res.Value, db.cfg.ResultTTL)
	}

	db.inflight.Delete(res.Key)
}

// dropToken is the onFinal hook of every token the database creates
func (db *databaseImpl) dropToken(t *broker.Token) {
	db.tokens.Delete(t.ID())
}

// --------------------------------------------------------------------------
// Direct Cache Manipulation
// --------------------------------------------------------------------------

func (db *databaseImpl) Put(key, header, value []byte) error {
	if db.closed.Load() {
		return broker.NewError(broker.ErrCodeClosed, "database is closed")
	}
	if len(key) == 0 {
		return broker.NewError(broker.ErrCodeInvalidArgument, "key must not be empty")
	}

	db.engine.Store(string(key), header, value, db.cfg.ResultTTL)
	return nil
}

func (db *databaseImpl) Delete(key []byte) error {
	if db.closed.Load() {
		return broker.NewError(broker.ErrCodeClosed, "database is closed")
	}
	if len(key) == 0 {
		return broker.NewError(broker.ErrCodeInvalidArgument, "key must not be empty")
	}

	db.engine.Delete(string(key))
	return nil
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

func (db *databaseImpl) Token(id uint64) (*broker.Token, bool) {
	return db.tokens.Load(id)
}

func (db *databaseImpl) GetEngineInfo() cache.EngineInfo {
	return db.engine.GetInfo()
}

func (db *databaseImpl) WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (db *databaseImpl) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	// drain first: every in-flight token resolves before the engine goes
	// away, so no continuation ever observes a half-closed database
	if db.pool != nil {
		db.pool.Close()
	}

	err := db.engine.Close()
	plog.Infof("database closed")
	return err
}

package cache

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplAspen Implementation = "aspen"
)

// Feature represents engine features as bit flags
type Feature uint64

const (
	FeatureStore          Feature = 1 << iota // Support for Store operations
	FeatureStoreNegative                      // Support for negative caching
	FeatureLookup                             // Support for Lookup operations
	FeatureDelete                             // Support for Delete operations
	FeatureHas                                // Support for Has operations
	FeatureTTL                                // Support for per-entry time to live
	FeatureGarbageCollect                     // Support for background expiry collection
)

func (f Feature) String() string {
	switch f {
	case FeatureStore:
		return "Store"
	case FeatureStoreNegative:
		return "StoreNegative"
	case FeatureLookup:
		return "Lookup"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureTTL:
		return "TTL"
	case FeatureGarbageCollect:
		return "GarbageCollect"
	default:
		return "Unknown"
	}
}

// LookupResult classifies the outcome of an engine lookup.
type LookupResult uint8

const (
	// LookupMiss means the key is unknown to the engine - the caller may
	// trigger a backend fetch.
	LookupMiss LookupResult = iota
	// LookupHit means a cached value was found.
	LookupHit
	// LookupNegative means the engine knows that no value exists for the
	// key and none will arrive.
	LookupNegative
)

func (r LookupResult) String() string {
	switch r {
	case LookupMiss:
		return "Miss"
	case LookupHit:
		return "Hit"
	case LookupNegative:
		return "Negative"
	default:
		return "Unknown"
	}
}

type EngineInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	EngineType        Implementation `json:"engine_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// Engine defines the interface for cache storage engine implementations.
// It stores opaque header/value buffer pairs under string keys and answers
// lookups with a hit, a negative hit (known to never arrive) or a miss.
// Implementations can vary in their feature support, which can be queried
// with SupportsFeature.
//
// The engine is a synchronous collaborator: it never blocks on a backend.
// Asynchronous population of the cache is the job of the fetch pool layered
// on top.
type Engine interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Store inserts or updates the cached value for a key. If the key
	// already exists, the old entry is overwritten (a previous negative
	// entry included). The ttlSeconds parameter sets the entry's time to
	// live; zero means the entry never expires.
	Store(key string, header, value []byte, ttlSeconds uint64)

	// StoreNegative records that no value is associated with the key and
	// none will arrive. Subsequent lookups return LookupNegative until the
	// entry expires or is deleted. The ttlSeconds parameter behaves as in
	// Store.
	StoreNegative(key string, ttlSeconds uint64)

	// Delete removes the entry for a key. The key is not findable anymore.
	Delete(key string)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Lookup retrieves the cached entry for a key. On LookupHit the header
	// and value are returned as copies that are safe to use and modify.
	// On LookupNegative and LookupMiss both buffers are nil.
	Lookup(key string) (header, value []byte, res LookupResult)

	// Has checks whether a key exists in the engine (positive or negative
	// entry).
	Has(key string) bool

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the engine implementation supports the
	// specified feature. Multiple features can be checked at once using the
	// bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the engine.
	GetInfo() (info EngineInfo)

	// Close stops background work and releases the engine's resources.
	Close() (err error)
}

// EngineFactory is a function type that creates a new engine. It is used to
// abstract the creation of the engine from the database façade.
type EngineFactory func() Engine

package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cachersdb/cachers/lib/cache"
)

// EngineFactory is a function that creates a new instance of an Engine
// implementation
type EngineFactory func() cache.Engine

// RunEngineTests runs a comprehensive test suite for an Engine implementation.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Store&Lookup", func(t *testing.T) {
			testStoreLookup(t, factory())
		})

		t.Run("NegativeCaching", func(t *testing.T) {
			testNegativeCaching(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory())
		})

		t.Run("TTLExpiry", func(t *testing.T) {
			testTTLExpiry(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentUsage", func(t *testing.T) {
			testConcurrentUsage(t, factory())
		})

		t.Run("GetInfo", func(t *testing.T) {
			testGetInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the engine supports the specified feature.
// Skip the test if it is not supported.
func requireFeature(t testing.TB, engine cache.Engine, feature cache.Feature) {
	if !engine.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testStoreLookup(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStore)
	requireFeature(t, engine, cache.FeatureLookup)

	testKey := "test-key"
	testHeader := []byte("test-header")
	testValue := []byte("test-value")

	if _, _, res := engine.Lookup(testKey); res != cache.LookupMiss {
		t.Errorf("Expected miss for unknown key, got %s", res)
	}

	engine.Store(testKey, testHeader, testValue, 0)

	header, value, res := engine.Lookup(testKey)
	if res != cache.LookupHit {
		t.Fatalf("Expected hit after Store, got %s", res)
	}
	if !bytes.Equal(header, testHeader) {
		t.Errorf("Expected header %s, got %s", testHeader, header)
	}
	if !bytes.Equal(value, testValue) {
		t.Errorf("Expected value %s, got %s", testValue, value)
	}

	// the engine must return copies, not views into its own storage
	value[0] = 'X'
	_, value2, _ := engine.Lookup(testKey)
	if !bytes.Equal(value2, testValue) {
		t.Error("Mutating a returned buffer must not affect the stored entry")
	}
}

func testNegativeCaching(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStoreNegative)
	requireFeature(t, engine, cache.FeatureLookup)

	testKey := "absent-key"

	engine.StoreNegative(testKey, 0)

	header, value, res := engine.Lookup(testKey)
	if res != cache.LookupNegative {
		t.Fatalf("Expected negative hit, got %s", res)
	}
	if header != nil || value != nil {
		t.Error("Negative lookup must not return buffers")
	}

	// a later Store overwrites the negative entry
	engine.Store(testKey, nil, []byte("arrived"), 0)
	_, value, res = engine.Lookup(testKey)
	if res != cache.LookupHit {
		t.Fatalf("Expected hit after overwriting negative entry, got %s", res)
	}
	if !bytes.Equal(value, []byte("arrived")) {
		t.Errorf("Expected value 'arrived', got %s", value)
	}
}

func testDelete(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStore)
	requireFeature(t, engine, cache.FeatureDelete)
	requireFeature(t, engine, cache.FeatureLookup)

	testKey := "delete-key"

	engine.Store(testKey, nil, []byte("value"), 0)
	engine.Delete(testKey)

	if _, _, res := engine.Lookup(testKey); res != cache.LookupMiss {
		t.Errorf("Expected miss after Delete, got %s", res)
	}

	// deleting a nonexistent key must not create one
	engine.Delete("never-existed")
	if engine.Has("never-existed") {
		t.Error("Delete must not create entries")
	}
}

func testHas(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStore)
	requireFeature(t, engine, cache.FeatureHas)

	if engine.Has("has-key") {
		t.Error("Has should be false for unknown key")
	}

	engine.Store("has-key", nil, []byte("v"), 0)
	if !engine.Has("has-key") {
		t.Error("Has should be true after Store")
	}

	if engine.SupportsFeature(cache.FeatureStoreNegative) {
		engine.StoreNegative("neg-key", 0)
		if !engine.Has("neg-key") {
			t.Error("Has should be true for negative entries")
		}
	}
}

func testOverwrite(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStore)
	requireFeature(t, engine, cache.FeatureLookup)

	testKey := "overwrite-key"

	engine.Store(testKey, []byte("h1"), []byte("v1"), 0)
	engine.Store(testKey, []byte("h2"), []byte("v2"), 0)

	header, value, res := engine.Lookup(testKey)
	if res != cache.LookupHit {
		t.Fatalf("Expected hit, got %s", res)
	}
	if !bytes.Equal(header, []byte("h2")) || !bytes.Equal(value, []byte("v2")) {
		t.Errorf("Expected overwritten entry (h2,v2), got (%s,%s)", header, value)
	}
}

func testTTLExpiry(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStore)
	requireFeature(t, engine, cache.FeatureTTL)
	requireFeature(t, engine, cache.FeatureLookup)

	engine.Store("expiring", nil, []byte("v"), 1)
	engine.Store("lasting", nil, []byte("v"), 0)

	if _, _, res := engine.Lookup("expiring"); res != cache.LookupHit {
		t.Fatalf("Entry should be readable before expiry, got %s", res)
	}

	// wait until the deadline has safely passed
	time.Sleep(2100 * time.Millisecond)

	if _, _, res := engine.Lookup("expiring"); res != cache.LookupMiss {
		t.Errorf("Expected miss after expiry, got %s", res)
	}
	if _, _, res := engine.Lookup("lasting"); res != cache.LookupHit {
		t.Errorf("Entry without TTL should not expire, got %s", res)
	}
}

func testEdgeCases(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStore)
	requireFeature(t, engine, cache.FeatureLookup)

	// empty value is a valid cached value
	engine.Store("empty-value", nil, []byte{}, 0)
	_, value, res := engine.Lookup("empty-value")
	if res != cache.LookupHit {
		t.Errorf("Expected hit for empty value, got %s", res)
	}
	if value == nil || len(value) != 0 {
		t.Errorf("Expected empty value, got %v", value)
	}

	// large values survive the round trip
	large := make([]byte, 1<<20)
	for i := range large {
		large[i] = byte(i)
	}
	engine.Store("large-value", nil, large, 0)
	_, value, res = engine.Lookup("large-value")
	if res != cache.LookupHit || !bytes.Equal(value, large) {
		t.Error("Large value did not survive the round trip")
	}

	// keys are byte-exact
	engine.Store("case-Key", nil, []byte("a"), 0)
	if _, _, res := engine.Lookup("case-key"); res != cache.LookupMiss {
		t.Errorf("Keys must be byte-exact, got %s", res)
	}
}

func testConcurrentUsage(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStore)
	requireFeature(t, engine, cache.FeatureLookup)
	requireFeature(t, engine, cache.FeatureDelete)

	const numWorkers = 8
	const opsPerWorker = 500

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", w, i%20)
				switch i % 4 {
				case 0, 1:
					engine.Store(key, nil, []byte(key), 0)
				case 2:
					if _, value, res := engine.Lookup(key); res == cache.LookupHit {
						if !bytes.Equal(value, []byte(key)) {
							t.Errorf("Read torn value for %s", key)
						}
					}
				case 3:
					engine.Delete(key)
				}
			}
		}(w)
	}

	wg.Wait()
}

func testGetInfo(t *testing.T, engine cache.Engine) {
	defer engine.Close()

	requireFeature(t, engine, cache.FeatureStore)

	for i := 0; i < 100; i++ {
		engine.Store(fmt.Sprintf("info-key-%d", i), nil, bytes.Repeat([]byte("x"), 128), 0)
	}

	info := engine.GetInfo()
	if info.EngineType == "" {
		t.Error("EngineInfo should name the implementation")
	}
	if len(info.SupportedFeatures) == 0 {
		t.Error("EngineInfo should list supported features")
	}
	if info.SizeBytes <= 0 {
		t.Error("EngineInfo should estimate a positive entry size")
	}
}

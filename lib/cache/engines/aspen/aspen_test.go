package aspen

import (
	"testing"

	"github.com/cachersdb/cachers/lib/cache"
	cachetesting "github.com/cachersdb/cachers/lib/cache/testing"
)

func Test(t *testing.T) {
	cachetesting.RunEngineTests(t, "AspenEngine", func() cache.Engine {
		return NewAspenEngine(nil)
	})
}

func Benchmark(b *testing.B) {
	cachetesting.RunEngineBenchmarks(b, "AspenEngine", func() cache.Engine {
		return NewAspenEngine(nil)
	})
}

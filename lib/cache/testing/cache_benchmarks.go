package testing

import (
	"fmt"
	"testing"
)

// RunEngineBenchmarks runs a benchmark suite for an Engine implementation.
func RunEngineBenchmarks(b *testing.B, name string, factory EngineFactory) {
	b.Run(name, func(b *testing.B) {
		value := make([]byte, 128)

		b.Run("Store", func(b *testing.B) {
			engine := factory()
			defer engine.Close()

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					engine.Store(fmt.Sprintf("bench-key-%d", i%1024), nil, value, 0)
					i++
				}
			})
		})

		b.Run("StoreWithTTL", func(b *testing.B) {
			engine := factory()
			defer engine.Close()

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					engine.Store(fmt.Sprintf("bench-key-%d", i%1024), nil, value, 60)
					i++
				}
			})
		})

		b.Run("Lookup", func(b *testing.B) {
			engine := factory()
			defer engine.Close()

			for i := 0; i < 1024; i++ {
				engine.Store(fmt.Sprintf("bench-key-%d", i), nil, value, 0)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					engine.Lookup(fmt.Sprintf("bench-key-%d", i%1024))
					i++
				}
			})
		})

		b.Run("LookupMiss", func(b *testing.B) {
			engine := factory()
			defer engine.Close()

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					engine.Lookup(fmt.Sprintf("missing-key-%d", i))
					i++
				}
			})
		})

		b.Run("MixedUsage", func(b *testing.B) {
			engine := factory()
			defer engine.Close()

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					key := fmt.Sprintf("bench-key-%d", i%1024)
					switch i % 4 {
					case 0:
						engine.Store(key, nil, value, 0)
					case 3:
						engine.Delete(key)
					default:
						engine.Lookup(key)
					}
					i++
				}
			})
		})
	})
}

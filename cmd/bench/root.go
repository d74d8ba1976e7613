package bench

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cachersdb/cachers/cmd/util"
	"github.com/cachersdb/cachers/lib/broker"
	"github.com/cachersdb/cachers/lib/cache"
	"github.com/cachersdb/cachers/lib/cache/engines/aspen"
	"github.com/cachersdb/cachers/lib/cachers"
	"github.com/cachersdb/cachers/lib/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	BenchCmd = &cobra.Command{
		Use:   "bench",
		Short: "In-process benchmark of the cache and fetch path",
		Long: util.WrapString("Runs a load generator against an in-process database handle backed by the aspen " +
			"engine and a synthetic backend with configurable latency. Measures put, cached get, miss-and-wait, " +
			"coalesced get, delete and a mixed workload, reporting throughput plus p50/p99 latencies. " +
			"Results can optionally be exported as CSV."),
		RunE:    run,
		PreRunE: processBenchConfig,
	}

	benchKeyPrefix      = "__bench"
	benchValueSizeKB    = 1
	benchNumThreads     = 10
	benchKeySpread      = 100
	benchFetchLatencyUs = 100
	benchSkip           = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	BenchCmd.PersistentFlags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get-hit)"))
	key = "threads"
	BenchCmd.PersistentFlags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "value-size"
	BenchCmd.PersistentFlags().Int(key, 1, util.WrapString("Size of stored values (in KB)"))
	key = "keys"
	BenchCmd.PersistentFlags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "fetch-latency"
	BenchCmd.PersistentFlags().Int(key, 100, util.WrapString("Simulated backend latency per fetch (in microseconds)"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))

	util.SetupDatabaseFlags(BenchCmd)
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	util.InitConfig()
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	benchValueSizeKB = viper.GetInt("value-size")
	benchKeySpread = viper.GetInt("keys")
	benchNumThreads = viper.GetInt("threads")
	benchFetchLatencyUs = viper.GetInt("fetch-latency")
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("In-process benchmark of the cachers database")

	conf := util.GetDatabaseConfig()
	common.InitLoggers(conf.LogLevel)

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d\n", benchNumThreads)
	fmt.Println()

	// synthetic backend: every key resolves to a fixed-size value after the
	// configured latency
	value := make([]byte, benchValueSizeKB*1024)
	latency := time.Duration(benchFetchLatencyUs) * time.Microsecond
	fetcher := func(ctx context.Context, key string) ([]byte, []byte, error) {
		if latency > 0 {
			time.Sleep(latency)
		}
		return nil, value, nil
	}

	factory := func() cache.Engine {
		return aspen.NewAspenEngine(&aspen.Options{
			NumShards:  conf.EngineShards,
			GCInterval: conf.GCInterval,
		})
	}

	db, err := cachers.Open(factory, fetcher, conf)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("starting benchmarks...")

	// per-benchmark latency timers for the percentile report
	registry := gometrics.NewRegistry()
	results := make(map[string]testing.BenchmarkResult)

	putResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("put") {
			return
		}

		// prepare keys
		getKey, iter := getKeys("put")

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if err := db.Delete([]byte(k)); err != nil {
					log.Printf("(put) - error deleting key: %v\n", err)
				}
			})
		})

		timer := gometrics.GetOrRegisterTimer("put", registry)
		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := db.Put([]byte(getKey(counter)), nil, value); err != nil {
					log.Printf("(put) - error storing key: %v\n", err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	results["put"] = putResult
	printResult("put", putResult, registry)

	getHitResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get-hit") {
			return
		}

		// prepare keys
		getKey, iter := getKeys("get-hit")

		// warm the cache
		iter(func(k string) {
			if err := db.Put([]byte(k), nil, value); err != nil {
				log.Printf("(get-hit) - error storing key: %v\n", err)
			}
		})

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if err := db.Delete([]byte(k)); err != nil {
					log.Printf("(get-hit) - error deleting key: %v\n", err)
				}
			})
		})

		timer := gometrics.GetOrRegisterTimer("get-hit", registry)
		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				resp, err := db.Get([]byte(getKey(counter)))
				if err != nil {
					log.Printf("(get-hit) - error getting key: %v\n", err)
				} else if resp.State() != broker.StateComplete {
					log.Printf("(get-hit) - unexpected state %s\n", resp.State())
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	results["get-hit"] = getHitResult
	printResult("get-hit", getHitResult, registry)

	getMissResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get-miss") {
			return
		}

		timer := gometrics.GetOrRegisterTimer("get-miss", registry)
		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				// a fresh key per iteration forces the fetch path
				key := fmt.Sprintf("%s/miss-%d-%d", benchKeyPrefix, time.Now().UnixNano(), counter)

				start := time.Now()
				resp, err := db.Get([]byte(key))
				if err != nil {
					log.Printf("(get-miss) - error getting key: %v\n", err)
					continue
				}
				if resp.State() == broker.StateInProgress {
					token := resp.Token()
					waitForToken(token)
					token.Release()
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	results["get-miss"] = getMissResult
	printResult("get-miss", getMissResult, registry)

	coalescedResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get-coalesced") {
			return
		}

		// a slow shared key per run: all threads pile onto one fetch
		timer := gometrics.GetOrRegisterTimer("get-coalesced", registry)
		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				key := fmt.Sprintf("%s/shared-%d", benchKeyPrefix, counter%benchKeySpread)

				start := time.Now()
				resp, err := db.Get([]byte(key))
				if err != nil {
					log.Printf("(get-coalesced) - error getting key: %v\n", err)
					continue
				}
				if resp.State() == broker.StateInProgress {
					token := resp.Token()
					waitForToken(token)
					token.Release()
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	results["get-coalesced"] = coalescedResult
	printResult("get-coalesced", coalescedResult, registry)

	deleteResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("delete") {
			return
		}

		// prepare keys
		getKey, iter := getKeys("delete")

		iter(func(k string) {
			if err := db.Put([]byte(k), nil, value); err != nil {
				log.Printf("(delete) - error storing key: %v\n", err)
			}
		})

		timer := gometrics.GetOrRegisterTimer("delete", registry)
		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := db.Delete([]byte(getKey(counter))); err != nil {
					log.Printf("(delete) - error deleting key: %v\n", err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	results["delete"] = deleteResult
	printResult("delete", deleteResult, registry)

	mixedResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("mixed") {
			return
		}

		// prepare keys
		getKey, iter := getKeys("mixed")

		iter(func(k string) {
			if err := db.Put([]byte(k), nil, value); err != nil {
				log.Printf("(mixed) - error storing key: %v\n", err)
			}
		})

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if err := db.Delete([]byte(k)); err != nil {
					log.Printf("(mixed) - error deleting key: %v\n", err)
				}
			})
		})

		timer := gometrics.GetOrRegisterTimer("mixed", registry)
		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				key := []byte(getKey(counter))

				start := time.Now()
				var err error
				switch counter % 3 {
				case 0: // put
					err = db.Put(key, nil, value)
				case 1: // get
					var resp *broker.Response
					resp, err = db.Get(key)
					if err == nil && resp.State() == broker.StateInProgress {
						token := resp.Token()
						waitForToken(token)
						token.Release()
					}
				case 2: // delete
					err = db.Delete(key)
				}
				if err != nil {
					log.Printf("(mixed) - error performing operation %d: %v\n", counter%3, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	results["mixed"] = mixedResult
	printResult("mixed", mixedResult, registry)

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, registry); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range benchSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// waitForToken blocks until the token resolves
func waitForToken(token *broker.Token) {
	done := make(chan struct{})
	if _, delivered, err := token.GetOrBind(func(*broker.Response) {
		close(done)
	}); err != nil || delivered {
		return
	}
	<-done
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, benchKeySpread)
	for i := 0; i < benchKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", benchKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%benchKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way,
// including the latency percentiles recorded by its timer
func printResult(test string, result testing.BenchmarkResult, registry gometrics.Registry) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)

	if timer := registry.Get(test); timer != nil {
		snap := timer.(gometrics.Timer).Snapshot()
		ps := snap.Percentiles([]float64{0.5, 0.99})
		fmt.Printf("\tp50=%s p99=%s", time.Duration(ps[0]), time.Duration(ps[1]))
	}
	fmt.Println()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, registry gometrics.Registry) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Skipped",
		"Threads", "ValueSizeKB", "KeysCount", "FetchLatencyUs",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string
		var p50, p99 time.Duration

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		if timer := registry.Get(test); timer != nil {
			snap := timer.(gometrics.Timer).Snapshot()
			ps := snap.Percentiles([]float64{0.5, 0.99})
			p50 = time.Duration(ps[0])
			p99 = time.Duration(ps[1])
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			p50.String(),
			p99.String(),
			skipped,
			strconv.Itoa(benchNumThreads),
			strconv.Itoa(benchValueSizeKB),
			strconv.Itoa(benchKeySpread),
			strconv.Itoa(benchFetchLatencyUs),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}

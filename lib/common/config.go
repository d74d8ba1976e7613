package common

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Database configuration struct
// --------------------------------------------------------------------------

// DatabaseConfig holds all configuration parameters for a cachers database
// handle: the storage engine, the fetch worker pool and logging.
type DatabaseConfig struct {
	// Engine parameters
	EngineShards int
	GCInterval   time.Duration

	// Fetch pool parameters
	FetchWorkers    int
	FetchQueueDepth int
	FetchTimeout    time.Duration

	// Lifetime of fetched entries in the cache, in seconds. Zero means the
	// entry never expires. Negative entries record definitive absence and
	// usually get a shorter lifetime.
	ResultTTL   uint64
	NegativeTTL uint64

	// Logging configuration
	LogLevel string
}

// DefaultDatabaseConfig returns a config suitable for most single-process
// deployments.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		EngineShards:    runtime.NumCPU(),
		GCInterval:      100 * time.Millisecond,
		FetchWorkers:    runtime.NumCPU(),
		FetchQueueDepth: 1024,
		FetchTimeout:    5 * time.Second,
		ResultTTL:       0,
		NegativeTTL:     60,
		LogLevel:        "info",
	}
}

// String returns a formatted string representation of the configuration
func (c *DatabaseConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Engine settings
	addSection("Engine")
	addField("Shards", fmt.Sprintf("%d", c.EngineShards))
	addField("GC Interval", c.GCInterval.String())

	// Fetch pool settings
	addSection("Fetch Pool")
	addField("Workers", fmt.Sprintf("%d", c.FetchWorkers))
	addField("Queue Depth", fmt.Sprintf("%d", c.FetchQueueDepth))
	addField("Fetch Timeout", c.FetchTimeout.String())
	addField("Result TTL", fmt.Sprintf("%ds", c.ResultTTL))
	addField("Negative TTL", fmt.Sprintf("%ds", c.NegativeTTL))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

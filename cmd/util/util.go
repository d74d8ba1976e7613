package util

import (
	"strings"
	"time"

	"github.com/cachersdb/cachers/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupDatabaseFlags adds the database configuration flags to a command
func SetupDatabaseFlags(cmd *cobra.Command) {
	key := "engine-shards"
	cmd.PersistentFlags().Int(key, 0, WrapString("Number of engine shards (0 = one per CPU)"))

	key = "gc-interval"
	cmd.PersistentFlags().Int(key, 100, WrapString("Interval between garbage collection runs (in milliseconds)"))

	key = "fetch-workers"
	cmd.PersistentFlags().Int(key, 0, WrapString("Number of fetch pool workers (0 = one per CPU)"))

	key = "fetch-queue-depth"
	cmd.PersistentFlags().Int(key, 1024, WrapString("Capacity of the fetch job queue"))

	key = "fetch-timeout"
	cmd.PersistentFlags().Int(key, 5, WrapString("Timeout for a single backend fetch (in seconds)"))

	key = "result-ttl"
	cmd.PersistentFlags().Int(key, 0, WrapString("Lifetime of fetched values in the cache (in seconds, 0 = never expires)"))

	key = "negative-ttl"
	cmd.PersistentFlags().Int(key, 60, WrapString("Lifetime of cached absence entries (in seconds)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("cachers")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetDatabaseConfig reads the database configuration from viper
func GetDatabaseConfig() *common.DatabaseConfig {
	conf := common.DefaultDatabaseConfig()

	if v := viper.GetInt("engine-shards"); v > 0 {
		conf.EngineShards = v
	}
	if v := viper.GetInt("gc-interval"); v > 0 {
		conf.GCInterval = time.Duration(v) * time.Millisecond
	}
	if v := viper.GetInt("fetch-workers"); v > 0 {
		conf.FetchWorkers = v
	}
	if v := viper.GetInt("fetch-queue-depth"); v > 0 {
		conf.FetchQueueDepth = v
	}
	if v := viper.GetInt("fetch-timeout"); v > 0 {
		conf.FetchTimeout = time.Duration(v) * time.Second
	}
	conf.ResultTTL = uint64(viper.GetInt("result-ttl"))
	if v := viper.GetInt("negative-ttl"); v > 0 {
		conf.NegativeTTL = uint64(v)
	}
	if v := viper.GetString("log-level"); v != "" {
		conf.LogLevel = v
	}

	return conf
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

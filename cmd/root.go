package cmd

import (
	"fmt"
	"os"

	"github.com/cachersdb/cachers/cmd/bench"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "cachers",
		Short: "asynchronous lookup broker for key-value caches",
		Long: fmt.Sprintf(`cachers (v%s)

An embeddable cache front written in Go. Lookups answer immediately with a
cached value, a definitive absence, or a token that resolves exactly once
when the asynchronous backend fetch completes. Concurrent misses on the same
key share a single fetch.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cachers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cachers v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cuemby/osbench/pkg/config"
	"github.com/cuemby/osbench/pkg/log"
	"github.com/cuemby/osbench/pkg/supervisor"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const defaultConfigPath = "bench.conf"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "osbench [test-case | config-path]",
	Short: "Multi-tenant object-storage load generator",
	Long: `osbench drives object-storage workloads (upload, download, delete,
list, multipart, resumable) against an S3-compatible endpoint with many
concurrent workers, verifies payloads against a deterministic byte pattern,
and writes aggregate and per-request results under logs/.

The single optional argument is either a numeric test case overriding the
configuration's TestCase, or a path to an alternate configuration file.`,
	Version:       Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := defaultConfigPath
		testCase := -1
		if len(args) == 1 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				testCase = n
			} else {
				configPath = args[0]
			}
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if testCase >= 0 {
			config.ApplyTestCaseOverride(cfg, testCase)
		}

		log.Init(log.Config{Level: log.ParseLevel(cfg.LogLevel)})

		sup, err := supervisor.New(cfg)
		if err != nil {
			return err
		}
		return sup.Run(context.Background())
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"osbench version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
}

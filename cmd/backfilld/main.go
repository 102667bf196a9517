package main

import (
	"fmt"
	"os"

	"github.com/cuemby/backfill/pkg/config"
	"github.com/cuemby/backfill/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "backfilld",
	Short: "Backfill scheduling plugin host",
	Long: `backfilld hosts the backfill scheduling plugin outside of the
workload manager: it runs the backfill agent, serves metrics and health
endpoints, and computes initial job priorities through the embedded
predictor.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"backfilld version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log in JSON format")
	rootCmd.PersistentFlags().StringSlice("search-path", nil, "Predictor module search path (repeatable)")
	rootCmd.PersistentFlags().String("module", "", "Predictor module")
	rootCmd.PersistentFlags().String("function", "", "Predictor function")
	rootCmd.PersistentFlags().Duration("predictor-timeout", 0, "Per-call predictor timeout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(priorityCmd)
}

// loadConfig reads the configuration file, applies flag overrides and
// initializes logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		cfg.Log.Level = log.Level(level)
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("search-path") {
		cfg.Predictor.SearchPaths, _ = flags.GetStringSlice("search-path")
	}
	if flags.Changed("module") {
		cfg.Predictor.Module, _ = flags.GetString("module")
	}
	if flags.Changed("function") {
		cfg.Predictor.Function, _ = flags.GetString("function")
	}
	if flags.Changed("predictor-timeout") {
		cfg.Predictor.Timeout, _ = flags.GetDuration("predictor-timeout")
	}
	if flags.Lookup("interval") != nil && flags.Changed("interval") {
		cfg.Backfill.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Lookup("metrics-addr") != nil && flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:      cfg.Log.Level,
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})

	return cfg, nil
}

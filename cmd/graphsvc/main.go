package main

import (
	"context"
	"fmt"
	"os"

	"github.com/graphkg/service/internal/config"
	"github.com/graphkg/service/internal/logging"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graphsvc",
	Short: "Knowledge graph service: tasks, events, duplicate detection, and semantic search",
	Long: `graphsvc is the knowledge-graph backend for epics, sprints, tasks,
and documents. It serves the graph read/write surface, the dead-letter
queue, and the event stream, and provides migration and cleanup
maintenance commands.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := logging.INFO
		if verbose {
			logLevel = logging.DEBUG
		}
		if err := logging.Initialize(logging.Config{
			Level:      logLevel,
			JSONFormat: !verbose,
			AddSource:  verbose,
		}); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logging.Warn("failed to load config, using defaults", "error", err)
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.yaml in . or ./config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose, human-readable logging")

	rootCmd.SetVersionTemplate(`graphsvc {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func bgContext() context.Context {
	return context.Background()
}

// Package cmd provides the CLI commands for dtrag-query, a thin demo
// binary that wires the retrieval core together over fixture data for
// manual smoke-testing.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dtrag/retrieval-core/internal/logging"
	"github.com/dtrag/retrieval-core/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for dtrag-query.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dtrag-query",
		Short:   "Demo CLI over the dynamic-taxonomy retrieval core",
		Version: version.Version,
		Long: `dtrag-query wires the lexical and vector retrievers, the filter
compiler, the fusion engine, and the reranker into a single search
command over a small set of fixture documents.

It exists for manual smoke-testing, not as a production ingestion or
serving surface.`,
	}
	cmd.SetVersionTemplate("dtrag-query version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.dtrag/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// Package cmd provides the CLI commands for codewiki.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codewiki-dev/codewiki/internal/logging"
	"github.com/codewiki-dev/codewiki/internal/profiling"
	"github.com/codewiki-dev/codewiki/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()

	profileCPU     string
	profileHeap    string
	profiler       = profiling.NewProfiler()
	stopCPUProfile func()
)

// NewRootCmd creates the root command for the codewiki CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "codewiki",
		Short:   "Local-first code understanding and wiki generation",
		Long:    `codewiki indexes a codebase into a local hybrid search index and answers questions about it, grounding every answer in the code it actually retrieved.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("codewiki version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.codewiki/logs/")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write a CPU profile to the given path (for performance debugging)")
	_ = cmd.PersistentFlags().MarkHidden("profile-cpu")
	cmd.PersistentFlags().StringVar(&profileHeap, "profile-heap", "", "Write a heap snapshot to the given path after the command finishes")
	_ = cmd.PersistentFlags().MarkHidden("profile-heap")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if profileCPU != "" {
		cleanup, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start cpu profile: %w", err)
		}
		stopCPUProfile = cleanup
	}

	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if stopCPUProfile != nil {
		stopCPUProfile()
		stopCPUProfile = nil
	}
	if profileHeap != "" {
		if err := profiler.WriteHeap(profileHeap); err != nil {
			slog.Warn("failed to write heap profile", slog.String("error", err.Error()))
		}
	}
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

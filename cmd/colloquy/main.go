package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/colloquy/pkg/logger"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "colloquy",
		Short: "Colloquy — multi-agent review chat client",
		Long: "Colloquy sends a question to a colloquy server, where an executor model answers it\n" +
			"and a panel of reviewer agents critiques the answer until they are satisfied.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewCLI(logLevel)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			logger.SetGlobal(log)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newReplayCmd())
	cmd.AddCommand(newAgentsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "colloquy %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}

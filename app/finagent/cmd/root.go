package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ramonkaushik/finagent/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "finagent",
	Short: "Financial research agent backend",
	Long: `Finagent answers financial research questions by driving a bounded
tool-calling loop between a language model and a set of market data tools,
streaming progress and the final answer to clients over server-sent events.`,
	PersistentPreRun: loadRootConfig,
}

var cfg config.Config

func Execute() error {
	return rootCmd.Execute()
}

func loadRootConfig(_ *cobra.Command, _ []string) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg = config.Load()
}

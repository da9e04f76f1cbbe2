package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramonkaushik/finagent/internal/research"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single research question from the command line",
	Long: `Runs one research request without the HTTP server and prints the answer
to stdout. Progress notices go to stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := setupContext()

	question := strings.Join(args, " ")
	agent := buildAgent(cfg)

	_, err := agent.Research(ctx, question, func(event research.Event) {
		switch event.Type {
		case research.EventMessage:
			fmt.Println(event.Content)
		default:
			fmt.Fprintln(os.Stderr, event.Content)
		}
	})
	return err
}

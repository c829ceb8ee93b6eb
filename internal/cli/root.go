// Package cli implements kbctl, the knowledge-base and triage admin tool.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// Execute runs kbctl.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kbctl",
		Short:         "Manage the concierge knowledge base and unanswered questions",
		Long:          "kbctl edits the passage corpus and triages questions the concierge could not answer, using the same configuration as the API server.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp(context.Background())
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		app.Close()
	}

	rootCmd.AddCommand(
		newKBCmd(app),
		newQuestionsCmd(app),
		newEventsCmd(app),
	)

	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

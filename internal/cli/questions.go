package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/portfolio-ai/concierge/internal/tracker"
)

func newQuestionsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Triage questions the concierge could not answer",
	}

	cmd.AddCommand(
		newQuestionsListCmd(app),
		newQuestionsAnswerCmd(app),
		newQuestionsIgnoreCmd(app),
		newQuestionsStatsCmd(app),
		newQuestionsRecentCmd(app),
	)

	return cmd
}

func newQuestionsListCmd(app *app) *cobra.Command {
	var all, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending unanswered questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			qs, err := app.admin.ListUnanswered(cmd.Context(), all)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), qs)
			}
			out := cmd.OutOrStdout()
			for _, q := range qs {
				if _, err := fmt.Fprintf(out, "%s\t%s\tx%d\t%s\t%s\n",
					q.ID, q.Status, q.AskCount, q.LastAsked.Format(time.RFC3339), q.Question); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(out, "questions: %d\n", len(qs))
			return err
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include answered and ignored questions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newQuestionsAnswerCmd(app *app) *cobra.Command {
	var answer string
	var addToKB bool

	cmd := &cobra.Command{
		Use:   "answer <id>",
		Short: "Record an answer for a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.admin.MarkAnswered(cmd.Context(), args[0], answer, addToKB)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "Answered %s: %s\n", result.Question.ID, result.Question.Question); err != nil {
				return err
			}
			if addToKB {
				_, err = fmt.Fprintf(out, "Added %d passage(s) to the knowledge base\n", result.ChunksAdded)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&answer, "answer", "", "answer text")
	cmd.Flags().BoolVar(&addToKB, "add-to-kb", false, "also add the answer to the corpus")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newQuestionsIgnoreCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <id>",
		Short: "Drop a question from the pending queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := app.admin.MarkIgnored(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Ignored %s: %s\n", q.ID, q.Question)
			return err
		},
	}
}

func newQuestionsStatsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the question log and triage queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := app.admin.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "total: %d\npending: %d\nanswered: %d\nignored: %d\n",
				stats.TotalQuestions, stats.Pending, stats.Answered, stats.Ignored)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newQuestionsRecentCmd(app *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the newest question log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := app.admin.RecentQuestions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", tracker.DefaultRecentLimit, "number of entries")
	return cmd
}

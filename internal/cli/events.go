package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/portfolio-ai/concierge/internal/model"
)

var errEventsDisabled = errors.New("event stream is disabled; set NATS_ENABLED=true")

func newEventsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read the question event stream",
	}

	cmd.AddCommand(newEventsTailCmd(app))
	return cmd
}

func newEventsTailCmd(app *app) *cobra.Command {
	var eventType string
	var after uint64
	var limit int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print question events after a stream sequence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.events == nil {
				return errEventsDisabled
			}
			events, last, err := app.events.ReadEvents(cmd.Context(), model.EventType(eventType), after, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ev := range events {
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
					ev.CreatedAt.Format(time.RFC3339), ev.Type, ev.QuestionID, ev.Question); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(out, "last sequence: %d\n", last)
			return err
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "event type: logged, unanswered, answered or ignored (default all)")
	cmd.Flags().Uint64Var(&after, "after", 0, "stream sequence to start after")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to print")
	return cmd
}

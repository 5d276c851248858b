package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/infra/storage"
)

var (
	eventsProject string
	eventsType    string
	eventsLimit   int
	eventsJSON    bool
)

var eventsCmd = &cobra.Command{
	Use:          "events",
	Short:        "List audit events, newest first",
	SilenceUsage: true,
	RunE:         runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsProject, "project", "", "filter by project id")
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "filter by event type")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", storage.DefaultQueryLimit, "maximum number of events")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "print events as JSON")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	hub, err := openHub(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer hub.Close(ctx)

	events, err := hub.QueryEvents(ctx, storage.EventFilter{
		ProjectID: eventsProject,
		EventType: domain.EventType(eventsType),
		Limit:     eventsLimit,
	})
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}

	if eventsJSON {
		return writeJSON(cmd.OutOrStdout(), events)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tTYPE\tSTATUS\tSOURCE\tPROJECT")
	for _, ev := range events {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			ev.ID,
			ev.CreatedAt.Format(time.RFC3339),
			ev.EventType,
			ev.Status,
			ev.DetectedFrom,
			ev.ProjectID,
		)
	}
	return w.Flush()
}

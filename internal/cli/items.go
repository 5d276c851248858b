package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vietddude/relihub/internal/core/domain"
)

var (
	itemID     string
	itemTitle  string
	itemStatus string
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage tracked work items",
}

var itemsAddCmd = &cobra.Command{
	Use:          "add",
	Short:        "Add or replace a work item",
	SilenceUsage: true,
	RunE:         runItemsAdd,
}

var itemsListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List work items in a status",
	SilenceUsage: true,
	RunE:         runItemsList,
}

func init() {
	itemsAddCmd.Flags().StringVar(&itemID, "id", "", "item id (generated when empty)")
	itemsAddCmd.Flags().StringVar(&itemTitle, "title", "", "item title")
	itemsAddCmd.Flags().StringVar(&itemStatus, "status", string(domain.WorkItemInProgress), "item status")
	_ = itemsAddCmd.MarkFlagRequired("title")

	itemsListCmd.Flags().StringVar(&itemStatus, "status", string(domain.WorkItemInProgress), "status to list")

	itemsCmd.AddCommand(itemsAddCmd, itemsListCmd)
	rootCmd.AddCommand(itemsCmd)
}

func runItemsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	hub, err := openHub(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer hub.Close(ctx)

	id := itemID
	if id == "" {
		id = uuid.NewString()
	}
	item := &domain.WorkItem{
		ID:        id,
		Title:     itemTitle,
		Status:    domain.WorkItemStatus(itemStatus),
		CreatedAt: time.Now().UTC(),
	}
	if err := hub.Items().Save(ctx, item); err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
	return err
}

func runItemsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	hub, err := openHub(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer hub.Close(ctx)

	items, err := hub.Items().ListItems(ctx, domain.WorkItemStatus(itemStatus))
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tTITLE")
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.Status, it.CreatedAt.Format(time.RFC3339), it.Title)
	}
	return w.Flush()
}

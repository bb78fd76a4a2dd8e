package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/relay-stack/cli/pkg/output"
	"github.com/telhawk-systems/relay-stack/common/models"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Read delivered events from the sink",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List delivered events",
	Long:  "List events stored by the sink in the order they were first delivered",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		sink, err := sinkClient(cmd)
		if err != nil {
			return err
		}
		list, err := sink.ListEvents(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		return output.Print(outputFormat(cmd), list, func() *output.Table {
			return eventTable(list.Events...)
		})
	},
}

var eventsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get a delivered event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := sinkClient(cmd)
		if err != nil {
			return err
		}
		event, err := sink.GetEvent(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get event: %w", err)
		}

		return output.Print(outputFormat(cmd), event, func() *output.Table {
			return eventTable(*event)
		})
	},
}

func eventTable(events ...models.EnhancedEvent) *output.Table {
	table := output.NewTable([]string{"ID", "Name", "Brand", "Timestamp", "Body"})
	for _, e := range events {
		table.AddRow([]string{e.ID, e.Name, e.Brand, e.Timestamp, output.Truncate(e.Body, 50)})
	}
	return table
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsGetCmd)

	eventsListCmd.Flags().IntP("limit", "l", 0, "maximum events to return (0 for all)")
}

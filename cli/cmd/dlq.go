package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/relay-stack/cli/pkg/output"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the bridge dead-letter queue",
	Long:  "List or purge deliveries that exhausted their retry attempts",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		bridge, err := operatorBridgeClient(cmd)
		if err != nil {
			return err
		}
		list, err := bridge.ListDeadLetters(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to list dead letters: %w", err)
		}

		return output.Print(outputFormat(cmd), list, func() *output.Table {
			table := output.NewTable([]string{"Failed At", "Event", "Name", "Attempts", "Reason", "Error"})
			for _, d := range list.Events {
				table.AddRow([]string{
					d.Timestamp.Format(time.RFC3339),
					d.Event.ID,
					d.Event.Name,
					strconv.Itoa(d.Attempts),
					d.Reason,
					output.Truncate(d.Error, 60),
				})
			}
			return table
		})
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every dead letter",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("yes")
		if !confirm {
			return fmt.Errorf("purge deletes all dead letters; re-run with --yes to confirm")
		}

		bridge, err := operatorBridgeClient(cmd)
		if err != nil {
			return err
		}
		if err := bridge.PurgeDeadLetters(cmd.Context()); err != nil {
			return fmt.Errorf("failed to purge dead letters: %w", err)
		}
		output.Success("Dead letters purged")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqPurgeCmd)

	dlqListCmd.Flags().IntP("limit", "l", 100, "maximum dead letters to return")
	dlqPurgeCmd.Flags().BoolP("yes", "y", false, "confirm the purge")
}

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/relay-stack/cli/pkg/output"
)

var statusCmd = &cobra.Command{
	Use:   "status [event-id]",
	Short: "Show delivery status of an event",
	Long:  "Query the bridge for the latest delivery state of an event it accepted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := producerClient(cmd)
		if err != nil {
			return err
		}
		status, err := bridge.Status(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		return output.Print(outputFormat(cmd), status, func() *output.Table {
			table := output.NewTable([]string{"Event", "Job", "Status", "Attempts", "Updated", "Last Error"})
			table.AddRow([]string{
				status.EventID,
				status.JobID,
				status.Status,
				strconv.Itoa(status.Attempts),
				status.UpdatedAt.Format(time.RFC3339),
				output.Truncate(status.LastError, 60),
			})
			return table
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

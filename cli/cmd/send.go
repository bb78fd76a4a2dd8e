package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/relay-stack/cli/pkg/output"
	"github.com/telhawk-systems/relay-stack/common/models"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one event",
	Long:  "Send a single event to the bridge with a producer token",
	Example: `  relayctl send --name UserRegistered --body "alice signed up"
  relayctl send --id 7f9c... --name OrderPlaced --body "2 x widget" --timestamp 2025-01-01T00:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		body, _ := cmd.Flags().GetString("body")
		timestamp, _ := cmd.Flags().GetString("timestamp")

		if id == "" {
			id = uuid.New().String()
		}
		if timestamp == "" {
			timestamp = time.Now().UTC().Format(time.RFC3339)
		}
		event := models.Event{ID: id, Name: name, Body: body, Timestamp: timestamp}

		bridge, err := producerClient(cmd)
		if err != nil {
			return err
		}
		ack, err := bridge.SendEvent(cmd.Context(), event)
		if err != nil {
			return fmt.Errorf("failed to send event: %w", err)
		}

		format := outputFormat(cmd)
		if format != output.FormatTable {
			return output.Print(format, ack, nil)
		}
		output.Success("%s: %s", ack.Message, ack.EventID)
		output.Info("Accepted at %s", ack.Timestamp)
		output.Info("Track delivery with: relayctl status %s", ack.EventID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().String("id", "", "event id (default: random UUID)")
	sendCmd.Flags().StringP("name", "n", "", "event name")
	sendCmd.Flags().StringP("body", "b", "", "event body")
	sendCmd.Flags().String("timestamp", "", "event timestamp (default: now, RFC 3339)")
	if err := sendCmd.MarkFlagRequired("name"); err != nil {
		panic(fmt.Sprintf("failed to mark name as required: %v", err))
	}
	if err := sendCmd.MarkFlagRequired("body"); err != nil {
		panic(fmt.Sprintf("failed to mark body as required: %v", err))
	}
}

package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/relay-stack/cli/internal/producer"
	"github.com/telhawk-systems/relay-stack/cli/pkg/output"
	"github.com/telhawk-systems/relay-stack/common/logging"
)

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Simulate a producer",
	Long: `Generate random events and send them to the bridge at a steady pace.

Each event gets a UUID id, a business event name, a generated body and the
current time. Rejected events are counted, not retried.`,
	Example: `  relayctl produce --count 50 --interval 300ms
  relayctl produce --count 1000 --interval 0 --concurrency 16`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		interval, _ := cmd.Flags().GetDuration("interval")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		seed, _ := cmd.Flags().GetInt64("seed")
		logLevel, _ := cmd.Flags().GetString("log-level")

		if count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}

		bridge, err := producerClient(cmd)
		if err != nil {
			return err
		}

		logger := logging.NewWithWriter(os.Stderr, logging.ParseLevel(logLevel), "text")
		runner := producer.NewRunner(producer.Config{
			Count:       count,
			Interval:    interval,
			Concurrency: concurrency,
			Seed:        seed,
		}, bridge, logger.Logger)

		output.Info("Producing %d events to %s (interval %s, concurrency %d)",
			count, target(cmd).BridgeURL, interval, concurrency)
		summary, runErr := runner.Run(cmd.Context())

		format := outputFormat(cmd)
		if err := output.Print(format, summary, func() *output.Table { return summaryTable(summary) }); err != nil {
			return err
		}
		if runErr != nil {
			return fmt.Errorf("interrupted after %d events: %w", summary.Sent, runErr)
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d events were rejected", summary.Failed, summary.Sent)
		}
		return nil
	},
}

func summaryTable(s producer.Summary) *output.Table {
	table := output.NewTable([]string{"Sent", "Accepted", "Failed", "Elapsed"})
	table.AddRow([]string{
		strconv.Itoa(s.Sent),
		strconv.Itoa(s.Accepted),
		strconv.Itoa(s.Failed),
		s.Elapsed.Round(time.Millisecond).String(),
	})
	if len(s.ByStatus) > 0 {
		statuses := make([]int, 0, len(s.ByStatus))
		for status := range s.ByStatus {
			statuses = append(statuses, status)
		}
		sort.Ints(statuses)
		for _, status := range statuses {
			label := "transport error"
			if status != 0 {
				label = "HTTP " + strconv.Itoa(status)
			}
			table.AddRow([]string{"", "", fmt.Sprintf("%d (%s)", s.ByStatus[status], label), ""})
		}
	}
	return table
}

func init() {
	rootCmd.AddCommand(produceCmd)

	produceCmd.Flags().IntP("count", "c", 50, "number of events to send")
	produceCmd.Flags().Duration("interval", 300*time.Millisecond, "time between sends (0 sends as fast as allowed)")
	produceCmd.Flags().Int("concurrency", 4, "maximum requests in flight")
	produceCmd.Flags().Int64("seed", 0, "random seed for event content (0 picks one)")
	produceCmd.Flags().String("log-level", "warn", "per-event log level: debug, info, warn, error")
}

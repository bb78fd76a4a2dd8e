package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/relay-stack/cli/internal/config"
	"github.com/telhawk-systems/relay-stack/cli/pkg/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage deployment profiles",
	Long:  "Save bridge and sink endpoints and the shared secret under a name in ~/.relayctl/config.yaml",
}

var profileSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or replace a profile and make it current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p config.Profile
		p.BridgeURL, _ = cmd.Flags().GetString("bridge-url")
		p.SinkURL, _ = cmd.Flags().GetString("sink-url")
		p.JWTSecret, _ = cmd.Flags().GetString("secret")
		p.CallerID, _ = cmd.Flags().GetString("caller-id")

		if err := cfg.SaveProfile(args[0], p); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		output.Success("Profile '%s' saved to %s", args[0], cfg.Path())
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := output.NewTable([]string{"", "Name", "Bridge", "Sink", "Caller"})
		for _, name := range cfg.ProfileNames() {
			current := ""
			if name == cfg.CurrentProfile {
				current = "*"
			}
			p := cfg.Resolve(name)
			table.AddRow([]string{current, name, p.BridgeURL, p.SinkURL, p.CallerID})
		}
		table.Render()
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		output.Success("Profile '%s' removed", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRemoveCmd)

	profileSetCmd.Flags().String("secret", "", "shared JWT signing secret")
	profileSetCmd.Flags().String("caller-id", "", "producer caller id claim")
}

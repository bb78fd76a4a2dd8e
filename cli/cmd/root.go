package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/cli/internal/client"
	"github.com/telhawk-systems/relay-stack/cli/internal/config"
	"github.com/telhawk-systems/relay-stack/cli/pkg/output"
)

// operatorCallerID identifies relayctl when it acts with a relay token.
const operatorCallerID = "relayctl"

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Relay stack CLI",
	Long: `relayctl produces events into the relay bridge and inspects the pipeline.

It simulates the producer service, queries delivery status and dead letters on
the bridge, reads delivered events from the sink, and issues service tokens
signed with the shared secret.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree, printing any error to stderr.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		output.Error("%v", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.relayctl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringP("output", "o", output.FormatTable, "output format: table, json, yaml")
	rootCmd.PersistentFlags().String("bridge-url", "", "bridge base URL (overrides the profile)")
	rootCmd.PersistentFlags().String("sink-url", "", "sink base URL (overrides the profile)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// target resolves the profile named by --profile and applies URL flags.
func target(cmd *cobra.Command) config.Profile {
	name, _ := cmd.Flags().GetString("profile")
	p := cfg.Resolve(name)
	if u, _ := cmd.Flags().GetString("bridge-url"); u != "" {
		p.BridgeURL = u
	}
	if u, _ := cmd.Flags().GetString("sink-url"); u != "" {
		p.SinkURL = u
	}
	return p
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}

func issue(p config.Profile, role tokens.Role, callerID string) (string, error) {
	svc, err := tokens.NewService(tokens.Config{Secret: p.JWTSecret})
	if err != nil {
		return "", err
	}
	return svc.Issue(role, callerID)
}

func producerClient(cmd *cobra.Command) (*client.BridgeClient, error) {
	p := target(cmd)
	token, err := issue(p, tokens.RoleProducer, p.CallerID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue producer token: %w", err)
	}
	return client.NewBridgeClient(p.BridgeURL, token), nil
}

func operatorBridgeClient(cmd *cobra.Command) (*client.BridgeClient, error) {
	p := target(cmd)
	token, err := issue(p, tokens.RoleRelay, operatorCallerID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue relay token: %w", err)
	}
	return client.NewBridgeClient(p.BridgeURL, token), nil
}

func sinkClient(cmd *cobra.Command) (*client.SinkClient, error) {
	p := target(cmd)
	token, err := issue(p, tokens.RoleRelay, operatorCallerID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue relay token: %w", err)
	}
	return client.NewSinkClient(p.SinkURL, token), nil
}

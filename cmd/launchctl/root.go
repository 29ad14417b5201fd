package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultServer = "http://localhost:8080"

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LAUNCHCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:          "launchctl",
		Short:        "Control a mention launcher server",
		Long:         "launchctl starts and stops mention monitoring, runs manual launches, and inspects parser results and launch history on a running launcher server.",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("server", defaultServer, "launcher server base URL (env LAUNCHCTL_SERVER)")
	flags.Duration("timeout", 2*time.Minute, "request timeout")
	flags.Bool("json", false, "print raw JSON responses")
	_ = v.BindPFlag("server", flags.Lookup("server"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("json", flags.Lookup("json"))

	clientFor := func() *apiClient {
		return newAPIClient(v.GetString("server"), v.GetDuration("timeout"))
	}
	asJSON := func() bool { return v.GetBool("json") }

	rootCmd.AddCommand(
		newStatusCmd(clientFor, asJSON),
		newStartCmd(clientFor, asJSON),
		newStopCmd(clientFor, asJSON),
		newLaunchCmd(clientFor, asJSON),
		newParseCmd(asJSON),
		newHistoryCmd(clientFor, asJSON),
	)

	return rootCmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

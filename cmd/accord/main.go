package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "accord",
		Short: "Command line client for the Accord chat platform",
		Long: `Accord is a sharded gateway and REST client for the Accord chat platform.

The CLI connects as a bot: it asks the API for gateway connection advice,
spreads the event stream across the recommended number of shards, keeps the
sessions alive through reconnects and resumes, and exposes Prometheus
metrics about the connection fleet.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		tailCmd(),
		sendCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// tokenFromFlagOrEnv resolves the bot token, preferring the flag.
func tokenFromFlagOrEnv(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if tok := os.Getenv("ACCORD_TOKEN"); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("no token: pass --token or set ACCORD_TOKEN")
}

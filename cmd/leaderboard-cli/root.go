package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	sdk "github.com/borisprogrm/leaderboard-server/sdk/go"
)

type cliOptions struct {
	server  string
	apiKey  string
	timeout time.Duration
}

// newRootCmd builds the command tree. Defaults come from LEADERBOARD_CLI_* variables, which
// may be placed in a .env file next to the binary.
func newRootCmd() *cobra.Command {
	_ = godotenv.Load(".env")

	opts := &cliOptions{}
	root := &cobra.Command{
		Use:   "leaderboard-cli",
		Short: "Command line client for the leaderboard server",
		Long: `leaderboard-cli talks to a running leaderboard server over HTTP.

It can submit, read and delete user scores, list the top of a game board
and check that the server is up.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("LEADERBOARD_CLI_SERVER", "http://localhost:8415"), "base URL of the leaderboard server")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("LEADERBOARD_CLI_API_KEY"), "API key sent as X-API-Key")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newSendCmd(opts),
		newGetCmd(opts),
		newDeleteCmd(opts),
		newTopCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

func (o *cliOptions) client() (*sdk.Client, error) {
	return sdk.NewClient(o.server, sdk.WithAPIKey(o.apiKey))
}

func (o *cliOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

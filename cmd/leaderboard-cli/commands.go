package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/borisprogrm/leaderboard-server/core"
)

func newSendCmd(opts *cliOptions) *cobra.Command {
	var name, params string
	cmd := &cobra.Command{
		Use:   "send <gameId> <userId> <score>",
		Short: "Submit a score, replacing the user's previous one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[2], err)
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			if err := client.SendScore(ctx, args[0], args[1], core.ScoreProps{Score: score, Name: name, Params: params}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "success")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (at most 50 characters)")
	cmd.Flags().StringVar(&params, "params", "", "opaque user parameters (at most 255 characters)")
	return cmd
}

func newGetCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <gameId> <userId>",
		Short: "Print a user's score",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			props, err := client.GetScore(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if props == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no score")
				return nil
			}
			return printJSON(cmd, props)
		},
	}
}

func newDeleteCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <gameId> <userId>",
		Short: "Remove a user's score",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			if err := client.DeleteScore(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "success")
			return nil
		},
	}
}

func newTopCmd(opts *cliOptions) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "top <gameId>",
		Short: "List the highest scores of a game board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			top, err := client.GetTop(ctx, args[0], n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, rec := range top {
				fmt.Fprintf(out, "%d\t%s\t%g", i+1, rec.UserID, rec.Score)
				if rec.Name != "" {
					fmt.Fprintf(out, "\t%s", rec.Name)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 10, "number of entries (1-100)")
	return cmd
}

func newStatusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			status, err := client.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

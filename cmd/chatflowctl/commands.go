package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/chatflow-backend/internal/chatflow/generation"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCreateCmd(clientFor func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "create <description>",
		Short: "Create a chatflow and start schema generation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			body := map[string]string{"description": strings.Join(args, " ")}
			if err := clientFor().do(cmd.Context(), http.MethodPost, "/api/chatflows", body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func fetchStatus(c *apiClient, id string) func(context.Context) (generation.Status, error) {
	return func(ctx context.Context) (generation.Status, error) {
		var st generation.Status
		err := c.do(ctx, http.MethodGet, "/api/chatflows/"+id+"/generation", nil, &st)
		return st, err
	}
}

func newStatusCmd(clientFor func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status <chatflow-id>",
		Short: "Show schema generation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := fetchStatus(clientFor(), args[0])(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}

func newWaitCmd(clientFor func() *apiClient) *cobra.Command {
	var opts generation.PollOptions
	cmd := &cobra.Command{
		Use:   "wait <chatflow-id>",
		Short: "Poll until schema generation completes or fails",
		Long: "Polls generation status. Exits 0 when completed, 1 when generation " +
			"failed, 2 when it is still running after the last attempt.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := generation.Poll(cmd.Context(), fetchStatus(clientFor(), args[0]), opts)
			if perr := printJSON(cmd, st); perr != nil {
				return perr
			}
			if err != nil {
				return fmt.Errorf("wait %s: %w", args[0], err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Attempts, "attempts", 30, "maximum status checks")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 2*time.Second, "delay between checks")
	return cmd
}

func newPublishCmd(clientFor func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <chatflow-id>",
		Short: "Publish a chatflow and print its share URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				ShareURL   string `json:"share_url"`
				ShareToken string `json:"share_token"`
			}
			if err := clientFor().do(cmd.Context(), http.MethodPost, "/api/chatflows/"+args[0]+"/publish", nil, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.ShareURL)
			return nil
		},
	}
}

func newSubmissionsCmd(clientFor func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "submissions <chatflow-id>",
		Short: "List submissions of a chatflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := clientFor().do(cmd.Context(), http.MethodGet, "/api/chatflows/"+args[0]+"/submissions", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out["submissions"])
		},
	}
}

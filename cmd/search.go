package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/stream"
)

func newSearchCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Runs one search and prints its events as JSON lines",
		Long: `Runs a single search without the HTTP server. Every event the web page
would receive is written to stdout as one JSON object per line, ending with
a complete or an error event.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 10*time.Second)
				defer cancel()
				if cerr := appInstance.Close(closeCtx); cerr != nil {
					zap.L().Warn("close failed", zap.Error(cerr))
				}
			}()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			out := stream.NewWriter(cmd.OutOrStdout(), stream.FormatJSONLines)
			if _, err := appInstance.Search(ctx, strings.Join(args, " "), out); err != nil {
				return fmt.Errorf("search: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall limit for the search (0 uses search_timeout_seconds)")
	return cmd
}

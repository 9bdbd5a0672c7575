package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or load the persisted vector index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if rebuild {
				if err := a.store.Clear(ctx); err != nil {
					return fmt.Errorf("clear index: %w", err)
				}
			}
			start := time.Now()
			idx, err := a.loadIndex(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index ready: %d chunks (%s)\n", idx.Len(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Discard the persisted index and rebuild it from the source")
	return cmd
}

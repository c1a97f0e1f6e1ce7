package cli

import (
	"fmt"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/ahmedsayedsa/orderbot/internal/config"
	"github.com/ahmedsayedsa/orderbot/internal/reconcile"
)

// NewReconcileCommand replays the failure ledger against the storefront
// once, outside the running service. Safe to repeat; a clean run is a no-op.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Retry every failed status update once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			clk := clock.WallClock
			d, err := buildDeps(cmd.Context(), cfg, clk)
			if err != nil {
				return err
			}

			sweeper := reconcile.NewSweeper(d.client, d.ledger, d.metrics, clk)
			res, err := sweeper.Reconcile(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, recovered %d, still failing %d\n",
				res.Processed, res.Successful, res.Failed+res.Remaining)
			return err
		},
	}
}

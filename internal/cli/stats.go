package cli

import (
	"encoding/json"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/ahmedsayedsa/orderbot/internal/config"
)

// NewStatsCommand prints the sync ledger counters.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show sync ledger statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg, clock.WallClock)
			if err != nil {
				return err
			}

			stats, err := d.ledger.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

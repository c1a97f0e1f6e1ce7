package cli

import (
	"fmt"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/ahmedsayedsa/orderbot/internal/config"
)

// NewProbeCommand checks storefront reachability and optionally records the
// discovered API surface for later inspection.
func NewProbeCommand(opts *RootOptions) *cobra.Command {
	var discover bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Test connectivity to the storefront backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg, clock.WallClock)
			if err != nil {
				return err
			}

			res, ok := d.client.TestConnection(cmd.Context())
			if !ok {
				return fmt.Errorf("backend unreachable at %s", cfg.Sync.BaseURL)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reachable: %s (%d)\n", res.Endpoint, res.StatusCode)

			if discover {
				outPath := filepath.Join(cfg.DataDir, "api_discovery.json")
				probes, err := d.client.DiscoverAPIStructure(cmd.Context(), outPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "probed %d endpoints, wrote %s\n", len(probes), outPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&discover, "discover", false, "probe known endpoints and write api_discovery.json")
	return cmd
}

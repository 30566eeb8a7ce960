package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Apply schema migrations for the configured SQL driver.

MongoDB collections need no migration; the command only creates
their indexes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			backend, err := openBackend(cmd, cfg, true)
			if err != nil {
				return err
			}
			defer closeBackend(cmd, backend)

			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", driverName(cfg.Database.Driver))
			return nil
		},
	}
}

func driverName(driver string) string {
	if driver == "" {
		return "sqlite"
	}
	return driver
}

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/charlesng35/taskpad/internal/app/maintenance"
	"github.com/charlesng35/taskpad/internal/cache"
)

func newCleanupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run the maintenance jobs once",
		Long: `Clear expired one-time codes, remove stale unverified accounts
and purge expired cache entries, then print how many rows each job touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			backend, err := openBackend(cmd, cfg, false)
			if err != nil {
				return err
			}
			defer closeBackend(cmd, backend)

			var purger maintenance.CachePurger
			if backend.SQL != nil {
				purger = cache.NewDatabaseStore(backend.SQL)
			}

			cleaner := maintenance.NewFromConfig(cfg, backend.Accounts(), purger)
			removed, runErr := cleaner.RunOnce(cmd.Context())

			jobs := make([]string, 0, len(removed))
			for job := range removed {
				jobs = append(jobs, job)
			}
			sort.Strings(jobs)
			for _, job := range jobs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", job, removed[job])
			}

			if runErr != nil {
				return fmt.Errorf("cleanup: %w", runErr)
			}
			return nil
		},
	}
}

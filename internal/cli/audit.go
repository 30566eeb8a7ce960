package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/charlesng35/taskpad/internal/security"
)

var errAuditFailed = errors.New("security audit reported failures")

func newAuditCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Review the deployment's security settings",
		Long: `Check the signing secret, session lifetime, bcrypt cost, email
delivery, CORS policy and the backlog of stale unverified accounts.

Exits non-zero when any check fails.`,
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

			result := security.NewAuditService(backend.SQL, cfg).Run(cmd.Context())

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, check := range result.Checks {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", check.Status, check.ID, check.Message)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if result.Failed() {
				return errAuditFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	iauth "github.com/charlesng35/taskpad/internal/auth"
	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/services"
)

func newDeleteAccountCommand(opts *rootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete an account and all of its tasks",
		Long: `Delete an account by email address. Its tasks are removed first
and any session tokens it holds stop working immediately.

Examples:
  taskpadctl delete-account --email someone@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
				// Deletion issues no tokens.
				cfg.Auth.JWT.Secret = "taskpadctl"
			}

			backend, err := openBackend(cmd, cfg, false)
			if err != nil {
				return err
			}
			defer closeBackend(cmd, backend)

			tokens, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
			if err != nil {
				return err
			}
			hasher := cfg.Auth.PasswordHasher()

			accounts, err := services.NewAccountService(
				backend.Accounts(),
				backend.Tasks(),
				hasher,
				iauth.NewOTPEngine(hasher, nil),
				tokens,
				services.NewMailNotifier(nil),
			)
			if err != nil {
				return err
			}

			normalized := models.NormalizeEmail(email)
			if err := accounts.DeleteAccountByEmail(cmd.Context(), normalized); err != nil {
				return fmt.Errorf("delete %s: %w", normalized, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted account %s\n", normalized)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the account to delete")
	return cmd
}

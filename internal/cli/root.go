package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charlesng35/taskpad/internal/app"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the taskpadctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "taskpadctl",
		Short: "Taskpad administration tool",
		Long: `taskpadctl runs maintenance tasks against a Taskpad database.

It reads the same configuration file and TASKPAD_* environment
variables as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration directory or file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newCleanupCommand(opts))
	root.AddCommand(newDeleteAccountCommand(opts))
	root.AddCommand(newAuditCommand(opts))

	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) load() (*app.Config, error) {
	var (
		cfg *app.Config
		err error
	)
	path := strings.TrimSpace(o.configPath)
	if path == "" {
		cfg, err = app.LoadConfig()
	} else {
		info, statErr := os.Stat(path)
		switch {
		case errors.Is(statErr, os.ErrNotExist):
			return nil, fmt.Errorf("config path %q does not exist", path)
		case statErr != nil:
			return nil, fmt.Errorf("stat config path: %w", statErr)
		case info.IsDir():
			cfg, err = app.LoadConfig(path)
		default:
			cfg, err = app.LoadConfig(filepath.Dir(path))
		}
	}
	if err != nil {
		return nil, err
	}

	cfg.Server.LogLevel = o.logLevel
	cfg.Server.LogFormat = "console"
	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, nil
}

func openBackend(cmd *cobra.Command, cfg *app.Config, migrate bool) (*app.Backend, error) {
	backend, err := app.OpenBackend(cmd.Context(), cfg.Database, migrate)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return backend, nil
}

func closeBackend(cmd *cobra.Command, backend *app.Backend) {
	if err := backend.Close(context.WithoutCancel(cmd.Context())); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: close database: %v\n", err)
	}
}

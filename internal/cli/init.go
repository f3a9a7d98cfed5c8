package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/simpledb/internal/paths"
	"github.com/mesh-intelligence/simpledb/pkg/simpledb"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file and the database",
		Long: "Create the configuration directory with a default config.yaml, then\n" +
			"create the data directory and the database file. Existing files are kept.",
		Args: cobra.NoArgs,
		RunE: a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(a.configDir, 0o755); err != nil {
		return &exitError{code: exitSysError, err: fmt.Errorf("create config directory: %w", err)}
	}
	path := paths.ConfigFile(a.configDir)
	written, err := writeConfigIfMissing(path, configFile{
		Backend:  a.cfg.Backend,
		DataDir:  a.cfg.DataDir,
		Database: a.cfg.Database,
		LogLevel: a.cfg.LogLevel,
	})
	if err != nil {
		return &exitError{code: exitSysError, err: fmt.Errorf("write config: %w", err)}
	}
	if written {
		a.log.Info().Str("path", path).Msg("config written")
	}

	err = a.withDB(cmd, func(_ context.Context, db *simpledb.DB) error {
		if a.jsonMode {
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"config":   path,
				"database": db.Config().DatabaseFile(),
				"tables":   len(db.TableNames()),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s (config %s)\n", db.Config().DatabaseFile(), path)
		return nil
	})
	return err
}

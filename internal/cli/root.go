// Package cli implements the simpledb command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/simpledb/internal/paths"
	"github.com/mesh-intelligence/simpledb/pkg/simpledb"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// classify tags err with an exit code. Errors caused by the caller's input
// exit with 1; everything else with 2.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	for _, user := range []error{
		types.ErrTableNotFound,
		types.ErrNotFound,
		types.ErrInvalidArgument,
		types.ErrUnsupportedOperation,
		types.ErrValidation,
		types.ErrBackendEmpty,
		types.ErrBackendUnknown,
	} {
		if errors.Is(err, user) {
			return &exitError{code: exitUserError, err: err}
		}
	}
	return &exitError{code: exitSysError, err: err}
}

// app holds the global flags and the state resolved before a command runs.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string

	v   *viper.Viper
	cfg types.Config
	log zerolog.Logger
}

// NewRootCmd creates the simpledb command with its global flags and
// subcommands.
func NewRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}
	root := &cobra.Command{
		Use:           "simpledb",
		Short:         "Query and edit SQLite tables through deferred lists",
		Version:       simpledb.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return classify(a.setup(cmd))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: per-user config dir)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	pf.BoolVar(&a.jsonMode, "json", false, "output as JSON")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default: warn)")

	root.AddCommand(
		newVersionCmd(),
		a.newInitCmd(),
		a.newTablesCmd(),
		a.newListCmd(),
		a.newCountCmd(),
		a.newGetCmd(),
		a.newDumpCmd(),
		a.newLoadCmd(),
		a.newExecCmd(),
	)
	return root
}

// Execute runs the command line and exits with its code.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return exitUserError
	}
	return exitSuccess
}

// setup resolves directories, loads config.yaml and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = configDir

	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	a.v = v

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	dataDir, err := paths.ResolveDataDir(a.dataDir, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return &exitError{code: exitUserError, err: fmt.Errorf("log level %q: %w", cfg.LogLevel, err)}
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().Timestamp().Str("cmd", cmd.Name()).Logger()
	return nil
}

// open opens the configured database. The caller closes it.
func (a *app) open(ctx context.Context) (*simpledb.DB, error) {
	db, err := simpledb.Open(ctx, a.cfg, simpledb.WithLogger(a.log), simpledb.WithQueryStats(a.log.GetLevel() <= zerolog.InfoLevel))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// withDB opens the database, runs fn and closes the database.
func (a *app) withDB(cmd *cobra.Command, fn func(ctx context.Context, db *simpledb.DB) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := a.open(ctx)
	if err != nil {
		return classify(err)
	}
	defer db.Close()
	return classify(fn(ctx, db))
}

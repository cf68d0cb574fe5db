// Package cmd provides the CLI commands for hybridindex.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/hybridindex/internal/config"
	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/internal/router"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// SetVersion records build information shown by the version command
func SetVersion(v, built string) {
	version = v
	buildTime = built
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// app carries state shared by subcommands once flags are parsed
type app struct {
	configPath string
	root       string
	logLevel   string

	cfg      *config.Config
	logger   *slog.Logger
	cleanup  func()
	registry *router.Registry
}

// NewRootCmd creates the root command for the hybridindex CLI
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "hybridindex",
		Short: "Hybrid code index: keyword, vector and symbol graph search",
		Long: `hybridindex keeps a per-workspace index of source files and answers
hybrid searches that combine BM25 keyword matching, embedding similarity
and symbol graph expansion.

Run 'hybridindex serve' inside a workspace to expose it over MCP.`,
		Version:            version,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	cmd.SetVersionTemplate("hybridindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ~/.hybridindex/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.root, "root", "", "Workspace root (default current directory)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newRebuildCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newDiagnosticsCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newContextCmd(a))
	cmd.AddCommand(newModelCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration and logging before any subcommand runs
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: cfg.Logging.File == "",
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)

	if a.root == "" {
		wd, err := os.Getwd()
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		a.root = wd
	}
	if a.root, err = filepath.Abs(a.root); err != nil {
		cleanup()
		return fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.cleanup = cleanup
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	var err error
	if a.registry != nil {
		err = a.registry.Close()
		a.registry = nil
	}
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
	return err
}

// workspace returns the router of the workspace named by --root
func (a *app) workspace() (*router.Router, error) {
	return a.workspaces().Get(a.root)
}

// workspaces returns the registry, creating it on first use
func (a *app) workspaces() *router.Registry {
	if a.registry == nil {
		a.registry = router.NewRegistry(a.cfg, a.logger)
	}
	return a.registry
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

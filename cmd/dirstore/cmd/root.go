// Package cmd provides the CLI commands for dirstore.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/treefort-labs/dirstore/internal/config"
	"github.com/treefort-labs/dirstore/internal/filestore"
	"github.com/treefort-labs/dirstore/internal/logging"
	"github.com/treefort-labs/dirstore/internal/ui"
	"github.com/treefort-labs/dirstore/pkg/version"
)

var (
	cfgFile        string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the dirstore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirstore",
		Short: "Query a directory tree like a document store",
		Long: `dirstore treats a directory of files as a queryable dataset.

Each file becomes a document with derived fields (path, name, parent,
size, hash, last_updated) plus user metadata persisted in a JSON sidecar
inside the tracked root. Files are identified by a stable digest of their
root-relative path, so renames change identity but edits do not.

Run 'dirstore scan --root ./data' to get started.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("dirstore version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default .dirstore.yaml)")
	cmd.PersistentFlags().String("root", "", "Directory tree to track")
	cmd.PersistentFlags().Int("max-depth", config.UnboundedDepth, "Traversal depth limit (0 = root files only, negative = unbounded)")
	cmd.PersistentFlags().StringSlice("include", nil, "Glob patterns to include (repeatable)")
	cmd.PersistentFlags().String("sidecar", "", "Metadata sidecar filename")
	cmd.PersistentFlags().Bool("read-only", false, "Refuse metadata updates and sidecar writes")
	cmd.PersistentFlags().Int("workers", 0, "Crawl worker count (0 = NumCPU)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.dirstore/logs/")

	viper.SetEnvPrefix("DIRSTORE")
	viper.AutomaticEnv()

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newMetaCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		styles := ui.ForTerminal()
		fmt.Fprintln(cmd.ErrOrStderr(), styles.Error.Render("error: ")+err.Error())
		return err
	}
	return nil
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = false
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		// Logging is observability only; a failed setup never blocks work.
		return nil
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig resolves the effective configuration: defaults, config file,
// environment, then explicit flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	// The root flag (or DIRSTORE_ROOT) makes the implicit config file
	// optional, so apply flags before validating. An explicitly named
	// config file must load; running against defaults would silently
	// discard the user's patterns, sidecar name and read-only flag.
	cfg := config.Default()
	loaded, err := config.Load(cfgFile)
	if err != nil && cfgFile != "" {
		return nil, err
	}
	if err == nil {
		cfg = *loaded
	}

	if flags.Changed("root") {
		cfg.Root, _ = flags.GetString("root")
	} else if cfg.Root == "" {
		cfg.Root = viper.GetString("root")
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("include") {
		cfg.IncludePatterns, _ = flags.GetStringSlice("include")
	}
	if flags.Changed("sidecar") {
		cfg.SidecarName, _ = flags.GetString("sidecar")
	}
	if flags.Changed("read-only") {
		cfg.ReadOnly, _ = flags.GetBool("read-only")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}

	if verr := cfg.Validate(); verr != nil {
		if err != nil {
			return nil, err
		}
		return nil, verr
	}
	return &cfg, nil
}

// openStore builds and connects a store from the effective configuration.
// Recoverable warnings are printed to stderr.
func openStore(ctx context.Context, cmd *cobra.Command) (*filestore.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return connectStore(ctx, cmd, cfg)
}

func connectStore(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*filestore.Store, error) {
	store, err := filestore.New(filestore.Options{
		Root:            cfg.Root,
		ReadOnly:        cfg.ReadOnly,
		MaxDepth:        cfg.MaxDepth,
		IncludePatterns: cfg.IncludePatterns,
		SidecarName:     cfg.SidecarName,
		Workers:         cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}

	styles := ui.ForTerminal()
	for _, w := range store.Warnings() {
		fmt.Fprintln(cmd.ErrOrStderr(), styles.Warning.Render("warning: ")+w.Error())
	}
	return store, nil
}

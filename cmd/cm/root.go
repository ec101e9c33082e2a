package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/config"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/logging"
)

var (
	// Global flags
	dryRun       bool
	verbose      bool
	output       string
	cfgFile      string
	useGlobal    bool
	useWorkspace bool
)

// app is built once per invocation by the root pre-run hook.
var app *appEnv

// skipSetup marks commands that run without configuration.
const skipSetup = "skip-setup"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cm",
	Short: "Feedback-weighted playbook memory for coding agents",
	Long: `cm keeps a playbook of short rules ("bullets") that coding agents
learned across sessions, and curates it from feedback.

Every bullet carries a log of helpful and harmful events. Events decay with
age, harmful events weigh four times as much as helpful ones, and the
resulting score drives a maturity ratchet:

  candidate -> established -> proven      (forward only)
  any       -> deprecated                 (terminal)

A rule that turns out harmful is not deleted; it is inverted into an
"AVOID:" anti-pattern so the lesson is kept.

Playbooks:
  global     ~/.cass-memory/playbook.yaml   (default for writes)
  workspace  <repo>/.cass/playbook.yaml     (--workspace)

Core Commands:
  add        Add a rule
  mark       Record helpful or harmful feedback
  curate     Apply a batch of deltas from files
  outcome    Record session outcomes
  list       List bullets by score
  show       Explain one bullet's score and maturity
  prune      Demote or retire bullets with negative scores`,
	SilenceUsage:      true,
	PersistentPreRunE: setupApp,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			_ = logging.Sync(app.logger) //nolint:errcheck // best-effort flush
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Show what would happen without writing any playbook")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: <repo>/.cass/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&useGlobal, "global", false, "Use only the global playbook")
	rootCmd.PersistentFlags().BoolVar(&useWorkspace, "workspace", false, "Use only the workspace playbook")
}

// GetDryRun returns the dry-run flag value for use by subcommands.
func GetDryRun() bool {
	return dryRun
}

// GetOutput returns the resolved output format for use by subcommands.
func GetOutput() string {
	if app != nil {
		return app.cfg.Output
	}
	return output
}

// setupApp resolves configuration and builds the logger before any
// subcommand runs.
func setupApp(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}
	if useGlobal && useWorkspace {
		return errors.New("--global and --workspace are mutually exclusive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	loaded, err := config.Load(config.Options{
		HomeDir:       home,
		WorkspaceRoot: config.FindWorkspaceRoot(cwd, config.Default().Paths.WorkspaceDir),
		ConfigPath:    cfgFile,
		Flags:         flagOverrides(cmd),
	})
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  loaded.Log.Level,
		Format: loaded.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	app = &appEnv{
		cfg:    loaded,
		logger: logger,
		home:   home,
		root:   config.FindWorkspaceRoot(cwd, loaded.Paths.WorkspaceDir),
		now:    func() time.Time { return time.Now().UTC() },
	}
	logger.Debug("configuration resolved",
		zap.Strings("files", loaded.Files),
		zap.String("workspace_root", app.root))
	return nil
}

// flagOverrides returns the global flags the user set explicitly, keyed
// by configuration key.
func flagOverrides(cmd *cobra.Command) map[string]any {
	flags := map[string]any{}
	if cmd.Flags().Changed("output") {
		flags["output"] = output
	}
	if verbose {
		flags["verbose"] = true
		flags["log.level"] = "debug"
	}
	return flags
}

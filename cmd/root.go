// Package cmd provides the eventrecon command-line interface.
package cmd

import (
	"fmt"

	"eventrecon/bootstrap"
	"eventrecon/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// cli carries the state shared by every subcommand
type cli struct {
	v          *viper.Viper
	configFile string
	noColor    bool
	quiet      bool
	outputJSON bool

	cfg    *config.Config
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "eventrecon",
		Short: "Reconstruct high-level events from forensic timelines",
		Long: `eventrecon matches detection rules against a plaso timeline export and
reconstructs the user and system activity behind the low-level entries.

Each matching rule produces high-level events with extracted keys, the
reasoning behind the match and the surrounding timeline context. Events
reconstructed more than once are merged into a single chronological timeline.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "Config file path (default ./eventrecon.yaml or ./config/eventrecon.yaml)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.String("rules-dir", "", "Load rule documents from this directory instead of the embedded rules")
	flags.BoolVar(&c.outputJSON, "json", false, "Output in JSON format")
	flags.BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&c.quiet, "quiet", false, "Suppress non-essential output")

	mustBind(c.v, "logging.level", flags.Lookup("log-level"))
	mustBind(c.v, "logging.format", flags.Lookup("log-format"))
	mustBind(c.v, "rules.dir", flags.Lookup("rules-dir"))

	root.AddCommand(newAnalyzeCmd(c))
	root.AddCommand(newRulesCmd(c))

	return root
}

// setup loads the configuration and the logger before any subcommand runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.noColor {
		color.NoColor = true
	}

	cfg, err := bootstrap.InitConfig(c.v, c.configFile, zap.NewNop().Sugar())
	if err != nil {
		return err
	}
	logger, sugar, err := bootstrap.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if c.quiet && cfg.Logging.Level != "debug" {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
		sugar = logger.Sugar()
	}

	c.cfg, c.logger, c.sugar = cfg, logger, sugar
	sugar.Debugw("Command starting", "command", cmd.CommandPath(), "config", c.v.ConfigFileUsed())
	return nil
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

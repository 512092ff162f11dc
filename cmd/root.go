// Package cmd wires the qroute CLI: plan, run, validate, agents, gen,
// and history subcommands over the routing pipeline.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/intent"
	"github.com/gman622/qroute/internal/logging"
	"github.com/gman622/qroute/internal/ui"
)

// log is the process logger, a no-op unless --verbose is set. Built in
// the persistent pre-run so every subcommand can use it.
var log = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "qroute",
	Short: "Cost-aware intent routing for agent fleets",
	Long: "qroute plans a backlog of intents onto a fleet of AI agents: it solves\n" +
		"the cheapest assignment that clears every quality floor, partitions the\n" +
		"dependency graph into parallel waves, and executes them behind quality gates.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(viper.GetBool("verbose"))
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		log = logger
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .qroute.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".qroute")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("QROUTE")
	viper.AutomaticEnv()

	// No config file is fine; defaults cover everything.
	_ = viper.ReadInConfig()
}

// printer builds the Printer for a command, honoring --no-color.
func printer(cmd *cobra.Command) *ui.Printer {
	noColor, _ := cmd.Flags().GetBool("no-color")
	return ui.New(!noColor)
}

// defaultIntentDir is where commands look for a backlog when no
// directory argument is given.
const defaultIntentDir = "intents"

func intentDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultIntentDir
}

// loadBacklog reads and validates a bundle. Validation errors are
// reported through the printer and returned as a single error.
func loadBacklog(dir string, p *ui.Printer) (*intent.Bundle, error) {
	b, err := intent.Load(dir)
	if err != nil {
		return nil, err
	}
	if errs := intent.Validate(b); len(errs) > 0 {
		p.ValidationResult(dir, len(b.Intents), errs)
		return nil, fmt.Errorf("%d validation error(s) in %s", len(errs), dir)
	}
	return b, nil
}

// loadPool returns the fleet: the file named by --agents, or the
// built-in default fleet.
func loadPool(cmd *cobra.Command) (*agent.Pool, error) {
	path, _ := cmd.Flags().GetString("agents")
	if path == "" {
		return agent.DefaultPool(), nil
	}
	return agent.LoadPool(path)
}

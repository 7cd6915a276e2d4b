package cmd

import (
	"context"
	"strings"

	"github.com/Iron-Ham/cxfinder/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "cxfinder",
	Short: "Find merge conflicts before they happen",
	Long: `cxfinder lists the active feature branches of a git repository and
simulates merging them into a base branch to find conflicting files,
without touching any branch, ref or working tree file.

Branches are skipped when they are the base branch, when their last commit
is older than the age cutoff, when they match a pattern in the
repository's .cxfinderrc, or when they were forked from an excluded branch.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Global flag values
var (
	repoPath string
)

// Execute runs the root command. Canceling ctx stops in-flight merge
// simulations before their next path.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/cxfinder/config.yaml)")
	flags.StringVarP(&repoPath, "repo", "C", ".", "path to the git repository")
	flags.String("base", "", "base branch (default main, or master when main does not exist)")
	flags.Duration("max-age", 0, "skip branches whose last commit is older than this (default 168h)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	bindFlags()
}

// bindFlags lets global flags override their configuration keys.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("base.branch", flags.Lookup("base"))
	_ = viper.BindPFlag("filter.max_age", flags.Lookup("max-age"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CXFINDER")
	// Replace dots with underscores for nested keys in env vars
	// e.g., CXFINDER_MERGE_TOOL for merge.tool
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

package commands

import (
	"fmt"

	"github.com/dyluth/loft/internal/config"
	"github.com/dyluth/loft/internal/instance"
	"github.com/dyluth/loft/internal/printer"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loft",
	Short: "Loft - shared chat and whiteboard server",
	Long: `Loft relays chat and file-sharing messages between the participants of a
collaboration session and keeps numbered, immutable checkpoints of the
shared whiteboard.

Run "loft serve" to start a server. The other commands talk to a running
instance through its Redis server or inspect its checkpoints directly.`,
	Version: version,
	// Unknown flags on the root command are errors, not silently ignored
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Errors are printed by the printer package, not by cobra
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to loft.yml (defaults apply if it does not exist)")
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*config.LoftConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			fmt.Sprintf("Could not load %s: %v", configPath, err),
			[]string{"Fix the file, or remove it to run with defaults"},
		)
	}
	return cfg, nil
}

// clientRedisOptions returns the Redis server a client command should use:
// the configured one, or a local Redis when loft.yml has no redis section.
func clientRedisOptions(cfg *config.LoftConfig) (*redis.Options, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	if opts != nil {
		return opts, nil
	}
	return redis.ParseURL(instance.DefaultRedisURL())
}

package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/loft/internal/printer"
	"github.com/dyluth/loft/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit    bool
	initInstance string
	initDir      string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter loft.yml",
	Long: `Create a starter loft.yml and an empty snapshots/ directory.

The generated configuration stores checkpoints on disk and runs without
Redis. Uncomment the redis section to enable "loft send" and "loft watch".

Use --force to replace an existing loft.yml. Saved checkpoints are never removed.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Replace an existing loft.yml")
	initCmd.Flags().StringVarP(&initInstance, "name", "n", "", "Instance name (default \"default\")")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to initialize")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	result, err := scaffold.Initialize(scaffold.Options{
		Dir:      initDir,
		Instance: initInstance,
		Force:    forceInit,
	})
	if err != nil {
		if errors.Is(err, scaffold.ErrAlreadyInitialized) {
			return printer.Error(
				"project already initialized",
				fmt.Sprintf("Found an existing loft.yml in %s", initDir),
				[]string{"Use 'loft init --force' to replace it (saved checkpoints are kept)"},
			)
		}
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("Initialized loft in %s\n", initDir)
	for _, path := range result.Created {
		printer.Detail("Created", path)
	}
	printer.Info("\nNext steps:\n  1. Review loft.yml\n  2. Run 'loft serve'\n")
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	registryPath string
	verbose      bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "concordat",
		Short: "Concordat - estate compliance for GitHub repositories",
		Long: `Concordat keeps a fleet of GitHub repositories compliant with
infrastructure-as-code standards. Each managed fleet is an estate: a git
repository holding the OpenTofu configuration that declares the desired
shape of every repository it governs.

Commands operate on ephemeral clones of the estate repository, drive the
OpenTofu binary through a fixed command sequence, and can persist the
estate's state to a versioned object-storage bucket.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "estate registry database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newEstateCommand())

	return rootCmd
}

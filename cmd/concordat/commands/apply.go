package commands

import (
	"github.com/spf13/cobra"

	"github.com/concordat-io/concordat/pkg/runner"
)

func newApplyCommand() *cobra.Command {
	var (
		alias       string
		keepWorkdir bool
		autoApprove bool
	)

	cmd := &cobra.Command{
		Use:   "apply [-- <tool-args>]",
		Short: "Apply estate changes",
		Long: `Clone the estate repository into an ephemeral workspace and run the
OpenTofu apply sequence there. Apply refuses to run without the explicit
--auto-approve confirmation; there is no interactive prompt to fall back
to inside the ephemeral workspace.`,
		Example: `  # Apply the active estate
  concordat apply --auto-approve

  # Apply a specific estate
  concordat apply --alias df12 --auto-approve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := args
			if autoApprove {
				extra = append([]string{"-auto-approve"}, args...)
			}
			return runExecution(cmd.Context(), runner.VerbApply, alias, keepWorkdir, extra)
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "estate alias (defaults to the active estate)")
	cmd.Flags().BoolVar(&keepWorkdir, "keep-workdir", false, "retain the workspace after the run")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "confirm non-interactive changes")

	return cmd
}

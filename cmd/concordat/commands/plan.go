package commands

import (
	"github.com/spf13/cobra"

	"github.com/concordat-io/concordat/pkg/runner"
)

func newPlanCommand() *cobra.Command {
	var (
		alias       string
		keepWorkdir bool
	)

	cmd := &cobra.Command{
		Use:   "plan [-- <tool-args>]",
		Short: "Preview estate changes without applying them",
		Long: `Clone the estate repository into an ephemeral workspace and run the
OpenTofu plan sequence there. Arguments after -- are passed to the plan
step verbatim.`,
		Example: `  # Plan the active estate
  concordat plan

  # Plan a specific estate and keep the workspace for inspection
  concordat plan --alias df12 --keep-workdir

  # Pass extra arguments to the tool
  concordat plan -- -target=module.repos`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecution(cmd.Context(), runner.VerbPlan, alias, keepWorkdir, args)
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "estate alias (defaults to the active estate)")
	cmd.Flags().BoolVar(&keepWorkdir, "keep-workdir", false, "retain the workspace after the run")

	return cmd
}

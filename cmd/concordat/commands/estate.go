package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/concordat-io/concordat/pkg/estate"
)

func newEstateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estate",
		Short: "Manage estate registrations",
		Long: `Manage the local registry of estates. An estate is a git repository
holding the OpenTofu configuration for a fleet of GitHub repositories;
the registry records each estate's alias, remote URL, branch, and owner.`,
	}

	cmd.AddCommand(newEstateRegisterCommand())
	cmd.AddCommand(newEstateListCommand())
	cmd.AddCommand(newEstateUseCommand())
	cmd.AddCommand(newEstateRemoveCommand())
	cmd.AddCommand(newEstatePersistCommand())

	return cmd
}

func newEstateRegisterCommand() *cobra.Command {
	var (
		alias         string
		repoURL       string
		branch        string
		owner         string
		inventoryPath string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an estate",
		Example: `  # Register an estate; the owner is derived from the GitHub URL
  concordat estate register --alias df12 --repo-url git@github.com:df12/estate.git

  # Non-GitHub remotes need an explicit owner
  concordat estate register --alias lab --repo-url https://git.example.com/lab/estate.git --github-owner lab`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				slug, ok := estate.ParseGitHubSlug(repoURL)
				if !ok {
					return fmt.Errorf("unable to determine the GitHub owner from %q; provide --github-owner", repoURL)
				}
				owner = strings.SplitN(slug, "/", 2)[0]
			}

			ctx := cmd.Context()
			registry, err := openRegistry(ctx)
			if err != nil {
				return err
			}
			defer registry.Close()

			record := estate.Record{
				Alias:         alias,
				GitHubOwner:   owner,
				RepoURL:       repoURL,
				Branch:        branch,
				InventoryPath: inventoryPath,
			}
			if err := registry.Register(ctx, record); err != nil {
				return err
			}

			// The first registered estate becomes active automatically.
			if _, err := registry.Active(ctx); err != nil {
				var noActive *estate.NoActiveEstateError
				if !errors.As(err, &noActive) {
					return err
				}
				if err := registry.SetActive(ctx, alias); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered estate %q (%s)\n", alias, repoURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "estate alias")
	cmd.Flags().StringVar(&repoURL, "repo-url", "", "estate repository URL")
	cmd.Flags().StringVar(&branch, "branch", estate.DefaultBranch, "estate branch")
	cmd.Flags().StringVar(&owner, "github-owner", "", "GitHub owner the estate governs (derived from --repo-url when possible)")
	cmd.Flags().StringVar(&inventoryPath, "inventory-path", estate.DefaultInventoryPath, "repository inventory path inside the estate")
	cmd.MarkFlagRequired("alias")
	cmd.MarkFlagRequired("repo-url")

	return cmd
}

func newEstateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered estates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			registry, err := openRegistry(ctx)
			if err != nil {
				return err
			}
			defer registry.Close()

			records, err := registry.List(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No estates registered.")
				return nil
			}

			active := ""
			if rec, err := registry.Active(ctx); err == nil {
				active = rec.Alias
			}
			for _, rec := range records {
				marker := " "
				if rec.Alias == active {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-16s %s (%s)\n", marker, rec.Alias, rec.RepoURL, rec.Branch)
			}
			return nil
		},
	}
}

func newEstateUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use <alias>",
		Short: "Select the active estate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			registry, err := openRegistry(ctx)
			if err != nil {
				return err
			}
			defer registry.Close()

			if err := registry.SetActive(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active estate is now %q\n", args[0])
			return nil
		},
	}
}

func newEstateRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <alias>",
		Short: "Remove an estate registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			registry, err := openRegistry(ctx)
			if err != nil {
				return err
			}
			defer registry.Close()

			if err := registry.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed estate %q\n", args[0])
			return nil
		},
	}
}

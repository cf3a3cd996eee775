package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/concordat-io/concordat/pkg/backend"
	"github.com/concordat-io/concordat/pkg/credentials"
	"github.com/concordat-io/concordat/pkg/persist"
	"github.com/concordat-io/concordat/pkg/workspace"
)

func newEstatePersistCommand() *cobra.Command {
	var (
		alias         string
		bucket        string
		region        string
		endpoint      string
		keyPrefix     string
		keySuffix     string
		force         bool
		noInput       bool
		allowInsecure bool
	)

	cmd := &cobra.Command{
		Use:   "persist",
		Short: "Persist the estate's state to a remote backend",
		Long: `Provision the estate's remote state backend: collect the bucket
parameters, verify the bucket (versioning enabled, write/delete probe),
write the backend file and manifest into a clone of the estate, and open
a pull request with the change.

Parameters omitted as flags are prompted for on a terminal, or read from
the CONCORDAT_BUCKET, CONCORDAT_REGION, CONCORDAT_ENDPOINT,
CONCORDAT_KEY_PREFIX, and CONCORDAT_KEY_SUFFIX environment variables.`,
		Example: `  # Interactive persist for the active estate
  concordat estate persist

  # Scripted persist
  concordat estate persist --alias df12 --no-input \
      --bucket df12-tfstate --region fr-par --endpoint s3.fr-par.scw.cloud

  # Replace an existing backend configuration
  concordat estate persist --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			record, err := resolveEstate(ctx, alias)
			if err != nil {
				return err
			}

			token := os.Getenv("GITHUB_TOKEN")
			manager := &workspace.Manager{Token: token, Log: log.Logger}
			ws, err := manager.Create(ctx, record.Alias, record.RepoURL, record.Branch, false)
			if err != nil {
				return err
			}
			defer func() {
				if err := ws.Teardown(); err != nil {
					log.Warn().Err(err).Msg("failed to remove workspace")
				}
			}()

			preset := backend.Params{
				Bucket:    firstNonEmpty(bucket, os.Getenv("CONCORDAT_BUCKET")),
				Region:    firstNonEmpty(region, os.Getenv("CONCORDAT_REGION")),
				Endpoint:  firstNonEmpty(endpoint, os.Getenv("CONCORDAT_ENDPOINT")),
				KeyPrefix: firstNonEmpty(keyPrefix, os.Getenv("CONCORDAT_KEY_PREFIX")),
				KeySuffix: firstNonEmpty(keySuffix, os.Getenv("CONCORDAT_KEY_SUFFIX")),
			}
			var source persist.Source
			if noInput || !persist.CanPrompt() {
				source = &persist.StaticSource{Preset: preset}
			} else {
				source = &persist.PromptSource{Preset: preset, In: os.Stdin, Out: os.Stderr}
			}

			orch := &persist.Orchestrator{
				Source:                source,
				Resolver:              credentials.NewResolver(),
				Publisher:             &persist.GitHubPublisher{Token: token},
				AllowInsecureEndpoint: allowInsecure,
				Log:                   log.Logger,
			}
			outcome, err := orch.Persist(ctx, ws, *record, force)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Render())
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "estate alias (defaults to the active estate)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "state bucket name")
	cmd.Flags().StringVar(&region, "region", "", "bucket region")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint (HTTPS assumed when the scheme is omitted)")
	cmd.Flags().StringVar(&keyPrefix, "key-prefix", "", "state object key prefix (defaults to estates/<owner>/<branch>)")
	cmd.Flags().StringVar(&keySuffix, "key-suffix", "", "state object key suffix (defaults to terraform.tfstate)")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing backend configuration")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "never prompt; fail when a parameter is missing")
	cmd.Flags().BoolVar(&allowInsecure, "allow-insecure-endpoint", false, "permit a plain HTTP endpoint")

	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

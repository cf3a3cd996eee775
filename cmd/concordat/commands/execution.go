package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/concordat-io/concordat/pkg/backend"
	"github.com/concordat-io/concordat/pkg/credentials"
	"github.com/concordat-io/concordat/pkg/estate"
	"github.com/concordat-io/concordat/pkg/runner"
	"github.com/concordat-io/concordat/pkg/workspace"
)

// runExecution is the shared plan/apply flow: resolve the estate, clone it
// into an ephemeral workspace, wire the remote backend when one is
// persisted, and drive the tool through its fixed command sequence.
func runExecution(ctx context.Context, verb runner.Verb, alias string, keep bool, extra []string) error {
	record, err := resolveEstate(ctx, alias)
	if err != nil {
		return err
	}

	token := os.Getenv("GITHUB_TOKEN")
	manager := &workspace.Manager{Token: token, Log: log.Logger}
	ws, err := manager.Create(ctx, record.Alias, record.RepoURL, record.Branch, keep)
	if err != nil {
		return err
	}
	defer func() {
		if err := ws.Teardown(); err != nil {
			log.Warn().Err(err).Msg("failed to remove workspace")
		}
	}()
	if keep {
		log.Info().Str("workspace", ws.Root).Msg("workspace retained for inspection")
	}

	if err := ws.WriteVars(map[string]string{"github_owner": record.GitHubOwner}); err != nil {
		return err
	}

	env := credentials.ProcessEnv()
	toolDir := ws.ToolDir()

	backendConfig, err := wireRemoteBackend(ws, toolDir, record, env)
	if err != nil {
		return err
	}

	// A blank session token in the calling environment breaks some
	// S3-compatible endpoints; never pass one through.
	if value, ok := env[credentials.SessionTokenVar]; ok && strings.TrimSpace(value) == "" {
		delete(env, credentials.SessionTokenVar)
	}

	r := &runner.Runner{
		Dir:    toolDir,
		Env:    env,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Log:    log.Logger,
	}
	if binary := os.Getenv("CONCORDAT_TOFU_BIN"); binary != "" {
		r.Binary = binary
	}
	_, err = r.Run(ctx, verb, backendConfig, extra)
	return err
}

// wireRemoteBackend resolves credentials and returns the backend-config path
// relative to the tool directory, or "" when the estate has no persisted
// backend (local state).
func wireRemoteBackend(ws *workspace.Workspace, toolDir string, record *estate.Record, env map[string]string) (string, error) {
	store := backend.NewStore(ws.Root)
	manifest, err := store.Read()
	if err != nil {
		return "", err
	}
	if manifest == nil {
		log.Debug().Msg("no persisted backend; running against local state")
		return "", nil
	}

	set, material, err := credentials.NewResolver().Resolve(env)
	if err != nil {
		return "", err
	}
	log.Info().
		Str("provider", set.Provider).
		Str("access_key_var", set.AccessKeyVar).
		Bool("session_token", set.HasSessionToken).
		Msg("resolved backend credentials")
	for key, value := range material.Env() {
		env[key] = value
	}

	backendPath := store.BackendFilePath(record.Alias)
	if _, err := os.Stat(backendPath); err != nil {
		return "", fmt.Errorf("remote backend config %q was not found in the estate workspace", store.BackendFileRel(record.Alias))
	}
	rel, err := filepath.Rel(toolDir, backendPath)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(os.Stderr, "remote backend: bucket=%s key=%s region=%s\n",
		manifest.Bucket, backend.ObjectKey(manifest.KeyPrefix, manifest.KeySuffix), manifest.Region)
	return rel, nil
}

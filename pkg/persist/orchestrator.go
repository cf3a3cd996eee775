package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/concordat-io/concordat/pkg/backend"
	"github.com/concordat-io/concordat/pkg/credentials"
	"github.com/concordat-io/concordat/pkg/estate"
	"github.com/concordat-io/concordat/pkg/workspace"
)

// Orchestrator runs one persist: collect parameters, resolve credentials,
// verify the bucket, write the backend pair, publish. Zero side effects on
// the bucket besides the probe object, which is always cleaned up.
type Orchestrator struct {
	Source    Source
	Resolver  *credentials.Resolver
	Publisher Publisher

	// ClientFactory builds the object-storage client; nil selects the S3
	// implementation.
	ClientFactory backend.ClientFactory

	// Env is the environment consulted for credentials; nil snapshots the
	// process environment.
	Env map[string]string

	AllowInsecureEndpoint bool

	Log zerolog.Logger
}

// Outcome reports what a successful persist run did.
type Outcome struct {
	Params       backend.Params
	BackendPath  string
	ManifestPath string
	Updated      bool
	Publish      PrOutcome
}

// Render formats the outcome for the operator.
func (o *Outcome) Render() string {
	if !o.Updated {
		return fmt.Sprintf("Backend for this estate is already persisted at %s; nothing to do.", o.BackendPath)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Persisted remote state backend:\n")
	fmt.Fprintf(&b, "  backend file: %s\n", o.BackendPath)
	fmt.Fprintf(&b, "  manifest:     %s\n", o.ManifestPath)
	fmt.Fprintf(&b, "  bucket:       %s\n", o.Params.Bucket)
	fmt.Fprintf(&b, "  key:          %s\n", backend.ObjectKey(o.Params.KeyPrefix, o.Params.KeySuffix))
	switch {
	case o.Publish.URL != "":
		fmt.Fprintf(&b, "Opened pull request %s", o.Publish.URL)
	case o.Publish.Branch != "" && !o.Publish.Skipped:
		fmt.Fprintf(&b, "Pushed branch %s", o.Publish.Branch)
	default:
		fmt.Fprintf(&b, "Pull request skipped: %s", o.Publish.Reason)
	}
	return b.String()
}

// Persist executes the workflow against an estate workspace. The backend
// files are only written after the bucket passes verification; publication
// failures after that point are downgraded to warnings because the durable
// outcome already exists.
func (o *Orchestrator) Persist(ctx context.Context, ws *workspace.Workspace, rec estate.Record, force bool) (*Outcome, error) {
	store := backend.NewStore(ws.Root)
	existing, err := store.Read()
	if err != nil {
		return nil, err
	}

	params, err := o.Source.Collect(Defaults(rec, existing))
	if err != nil {
		return nil, err
	}
	params.Endpoint = backend.NormalizeEndpoint(params.Endpoint)
	if err := params.Validate(o.AllowInsecureEndpoint); err != nil {
		return nil, err
	}

	resolver := o.Resolver
	if resolver == nil {
		resolver = credentials.NewResolver()
	}
	env := o.Env
	if env == nil {
		env = credentials.ProcessEnv()
	}
	set, material, err := resolver.Resolve(env)
	if err != nil {
		return nil, err
	}
	o.Log.Info().
		Str("provider", set.Provider).
		Str("access_key_var", set.AccessKeyVar).
		Bool("session_token", set.HasSessionToken).
		Msg("resolved backend credentials")

	factory := o.ClientFactory
	if factory == nil {
		factory = backend.NewObjectClient
	}
	client := factory(params.Region, params.Endpoint, material)
	if err := backend.VerifyBucket(ctx, client, params.Bucket, params.KeyPrefix, params.KeySuffix); err != nil {
		return nil, err
	}
	o.Log.Info().Str("bucket", params.Bucket).Msg("bucket verified")

	updated, err := store.Write(rec.Alias, params, force)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Params:       params,
		BackendPath:  store.BackendFilePath(rec.Alias),
		ManifestPath: store.ManifestPath(),
		Updated:      updated,
	}
	if !updated {
		outcome.Publish = PrOutcome{Skipped: true, Reason: "backend unchanged"}
		return outcome, nil
	}

	if o.Publisher == nil {
		outcome.Publish = PrOutcome{Skipped: true, Reason: "publication disabled"}
		return outcome, nil
	}
	files := []string{
		store.BackendFileRel(rec.Alias),
		filepath.Join(backend.BackendDirname, backend.ManifestFilename),
	}
	pr, err := o.Publisher.Publish(ctx, ws, rec, params, files)
	if err != nil {
		var unavailable *PublishUnavailableError
		if !errors.As(err, &unavailable) {
			return nil, err
		}
		o.Log.Warn().Err(err).Msg("backend files persisted, but pull request publication is unavailable")
	}
	outcome.Publish = pr
	return outcome, nil
}

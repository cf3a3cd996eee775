package credentials

import (
	"fmt"
	"os"
	"strings"
)

// Canonical AWS variable names expected by the IaC tool's S3 backend.
const (
	AccessKeyVar    = "AWS_ACCESS_KEY_ID"
	SecretKeyVar    = "AWS_SECRET_ACCESS_KEY"
	SessionTokenVar = "AWS_SESSION_TOKEN"
)

// Strategy describes one provider's environment variable naming convention.
type Strategy struct {
	Provider  string
	AccessVar string
	SecretVar string
}

// DefaultStrategies returns the supported providers in priority order. The
// native AWS names are preferred; Scaleway and DigitalOcean Spaces aliases
// are mapped onto the AWS names before the external tool ever sees them.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Provider: "aws", AccessVar: "AWS_ACCESS_KEY_ID", SecretVar: "AWS_SECRET_ACCESS_KEY"},
		{Provider: "scaleway", AccessVar: "SCW_ACCESS_KEY", SecretVar: "SCW_SECRET_KEY"},
		{Provider: "spaces", AccessVar: "SPACES_ACCESS_KEY_ID", SecretVar: "SPACES_SECRET_ACCESS_KEY"},
	}
}

// Set records which provider satisfied the lookup and which variables were
// consulted. It deliberately carries no secret values and is safe to log.
type Set struct {
	Provider        string `json:"provider"`
	AccessKeyVar    string `json:"access_key_var"`
	SecretKeyVar    string `json:"secret_key_var"`
	HasSessionToken bool   `json:"has_session_token"`
}

// Material holds the resolved secret values for the lifetime of a single
// command invocation. It must never be persisted or logged.
type Material struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// String redacts the secret values so accidental formatting cannot leak them.
func (m Material) String() string {
	return "credentials(redacted)"
}

// Env returns the subprocess environment overrides, always keyed by the
// canonical AWS variable names. A blank session token is omitted entirely;
// some S3 endpoints reject requests carrying an empty token header.
func (m Material) Env() map[string]string {
	env := map[string]string{
		AccessKeyVar: m.AccessKey,
		SecretKeyVar: m.SecretKey,
	}
	if token := strings.TrimSpace(m.SessionToken); token != "" {
		env[SessionTokenVar] = token
	}
	return env
}

// MissingCredentialsError reports that no provider strategy produced a
// complete credential set. Variable names the first missing required
// variable from the preferred provider.
type MissingCredentialsError struct {
	Variable string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf(
		"missing %s: remote state backend requires credentials in the environment: "+
			"either AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, SCW_ACCESS_KEY and "+
			"SCW_SECRET_KEY, or SPACES_ACCESS_KEY_ID and SPACES_SECRET_ACCESS_KEY",
		e.Variable,
	)
}

// Resolver walks provider strategies in priority order.
type Resolver struct {
	Strategies []Strategy
}

// NewResolver returns a resolver with the default provider ordering.
func NewResolver() *Resolver {
	return &Resolver{Strategies: DefaultStrategies()}
}

// Resolve finds the first complete credential set in env. It has no side
// effects beyond reading the supplied map.
func (r *Resolver) Resolve(env map[string]string) (Set, Material, error) {
	strategies := r.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}

	token := strings.TrimSpace(env[SessionTokenVar])
	for _, s := range strategies {
		access := strings.TrimSpace(env[s.AccessVar])
		secret := strings.TrimSpace(env[s.SecretVar])
		if access == "" || secret == "" {
			continue
		}
		set := Set{
			Provider:        s.Provider,
			AccessKeyVar:    s.AccessVar,
			SecretKeyVar:    s.SecretVar,
			HasSessionToken: token != "",
		}
		material := Material{
			AccessKey:    access,
			SecretKey:    secret,
			SessionToken: token,
		}
		return set, material, nil
	}

	preferred := strategies[0]
	missing := preferred.AccessVar
	if strings.TrimSpace(env[preferred.AccessVar]) != "" {
		missing = preferred.SecretVar
	}
	return Set{}, Material{}, &MissingCredentialsError{Variable: missing}
}

// ProcessEnv snapshots the process environment as a map for Resolve.
func ProcessEnv() map[string]string {
	env := make(map[string]string, len(os.Environ()))
	for _, pair := range os.Environ() {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	return env
}

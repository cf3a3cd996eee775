package estate

import (
	"fmt"
	"time"
)

// Defaults applied when registering an estate without explicit values.
const (
	DefaultBranch        = "main"
	DefaultInventoryPath = "tofu/inventory/repositories.yaml"
)

// Record identifies one estate. Loaded once per command invocation and
// treated as immutable afterwards.
type Record struct {
	Alias         string    `json:"alias"`
	GitHubOwner   string    `json:"github_owner"`
	RepoURL       string    `json:"repo_url"`
	Branch        string    `json:"branch"`
	InventoryPath string    `json:"inventory_path"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NotConfiguredError reports a lookup for an unknown estate alias.
type NotConfiguredError struct {
	Alias string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("estate %q is not configured", e.Alias)
}

// DuplicateAliasError reports an attempt to register an alias twice.
type DuplicateAliasError struct {
	Alias string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("estate alias %q already exists", e.Alias)
}

// NoActiveEstateError reports an operation that needs an active estate when
// none has been selected.
type NoActiveEstateError struct{}

func (e *NoActiveEstateError) Error() string {
	return "no active estate configured; run `concordat estate use` first"
}

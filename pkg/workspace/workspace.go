package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// VarsFilename is the variables file the IaC tool reads for its
	// namespace-scoping guard.
	VarsFilename = "terraform.tfvars"

	// toolDirname is where estates carry their OpenTofu root module,
	// matching the platform-standards template layout.
	toolDirname = "tofu"
)

// CloneError reports a failure to populate a workspace from the estate's
// repository: unreachable remote, missing branch, or a local filesystem
// problem.
type CloneError struct {
	URL    string
	Branch string
	Err    error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone %s at branch %q: %v", e.URL, e.Branch, e.Err)
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

// Workspace is an ephemeral directory owned exclusively by one command
// invocation.
type Workspace struct {
	Root        string
	EstateAlias string
	KeepOnExit  bool
}

// Manager creates and tears down workspaces.
type Manager struct {
	// BaseDir is where temporary workspaces are created. Defaults to the
	// system temp directory.
	BaseDir string

	// Token, when set, authenticates HTTPS clones of hosted repositories.
	Token string

	Log zerolog.Logger
}

// Create clones the estate repository at its recorded branch into a freshly
// created temporary directory.
func (m *Manager) Create(ctx context.Context, alias, repoURL, branch string, keep bool) (*Workspace, error) {
	base := m.BaseDir
	if base == "" {
		base = os.TempDir()
	}
	root := filepath.Join(base, fmt.Sprintf("concordat-%s-%s", alias, uuid.NewString()[:8]))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &CloneError{URL: repoURL, Branch: branch, Err: err}
	}

	_, err := git.PlainCloneContext(ctx, root, false, &git.CloneOptions{
		URL:           repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Auth:          m.auth(repoURL),
	})
	if err != nil {
		_ = os.RemoveAll(root)
		return nil, &CloneError{URL: repoURL, Branch: branch, Err: err}
	}

	m.Log.Debug().Str("workspace", root).Str("estate", alias).Msg("workspace created")
	return &Workspace{Root: root, EstateAlias: alias, KeepOnExit: keep}, nil
}

func (m *Manager) auth(repoURL string) transport.AuthMethod {
	if m.Token == "" || !strings.HasPrefix(repoURL, "https://") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: m.Token}
}

// WriteVars writes the variables file the IaC tool's guard logic reads. The
// caller must include at least the estate's owner identifier.
func (w *Workspace) WriteVars(vars map[string]string) error {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s = %q\n", key, vars[key])
	}
	path := filepath.Join(w.Root, VarsFilename)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", VarsFilename, err)
	}
	return nil
}

// ToolDir returns the directory containing the OpenTofu root module. Estates
// normally carry their configuration under tofu/; legacy layouts place it at
// the repository root, so we fall back when tofu/ holds no tool files.
func (w *Workspace) ToolDir() string {
	candidate := filepath.Join(w.Root, toolDirname)
	info, err := os.Stat(candidate)
	if err != nil || !info.IsDir() {
		return w.Root
	}
	for _, pattern := range []string{"*.tofu", "*.tf"} {
		matches, err := filepath.Glob(filepath.Join(candidate, pattern))
		if err == nil && len(matches) > 0 {
			return candidate
		}
	}
	return w.Root
}

// Teardown removes the workspace unless retention was requested. Safe to
// call more than once.
func (w *Workspace) Teardown() error {
	if w.KeepOnExit {
		return nil
	}
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", w.Root, err)
	}
	return nil
}

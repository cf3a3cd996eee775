package persist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/concordat-io/concordat/pkg/backend"
	"github.com/concordat-io/concordat/pkg/estate"
	"github.com/concordat-io/concordat/pkg/workspace"
)

// PullRequestTitle is the fixed title for persistence pull requests.
const PullRequestTitle = "Concordat: persist estate remote state"

// PrOutcome describes what publication did, or why it was skipped.
type PrOutcome struct {
	Skipped bool
	Reason  string
	Branch  string
	URL     string
}

// PublishUnavailableError marks a publication failure after the backend
// files were already durably written. Callers downgrade it to a warning.
type PublishUnavailableError struct {
	Reason string
	Err    error
}

func (e *PublishUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pull request publication unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("pull request publication unavailable: %s", e.Reason)
}

func (e *PublishUnavailableError) Unwrap() error {
	return e.Err
}

// Publisher turns freshly written backend files into a reviewable change on
// the estate's hosting platform.
type Publisher interface {
	Publish(ctx context.Context, ws *workspace.Workspace, rec estate.Record, params backend.Params, files []string) (PrOutcome, error)
}

// GitHubPublisher commits the backend files on a dedicated branch, pushes
// it, and opens a pull request against the estate branch.
type GitHubPublisher struct {
	// Token authenticates the push and the pull request API call. Empty
	// means publication is skipped.
	Token string

	// Now stamps the branch name; defaults to time.Now.
	Now func() time.Time

	// OpenPR creates the pull request and returns its URL. Nil selects the
	// GitHub API implementation; tests substitute a stub.
	OpenPR func(ctx context.Context, token, slug, head, base, title, body string) (string, error)
}

// Publish is best effort: a missing token or a non-GitHub remote yields a
// skipped outcome with no error, while push or API failures return a
// PublishUnavailableError alongside the skipped outcome.
func (p *GitHubPublisher) Publish(ctx context.Context, ws *workspace.Workspace, rec estate.Record, params backend.Params, files []string) (PrOutcome, error) {
	if p.Token == "" {
		return PrOutcome{Skipped: true, Reason: "no GITHUB_TOKEN in the environment"}, nil
	}
	slug, ok := estate.ParseGitHubSlug(rec.RepoURL)
	if !ok {
		return PrOutcome{Skipped: true, Reason: fmt.Sprintf("remote %q is not a GitHub repository", rec.RepoURL)}, nil
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	branch := "estate/persist-" + now().UTC().Format("20060102150405")

	if err := p.commitAndPush(ws, branch, files, now()); err != nil {
		return PrOutcome{Skipped: true, Reason: "push failed", Branch: branch},
			&PublishUnavailableError{Reason: "failed to push persistence branch", Err: err}
	}

	openPR := p.OpenPR
	if openPR == nil {
		openPR = openGitHubPR
	}
	url, err := openPR(ctx, p.Token, slug, branch, rec.Branch, PullRequestTitle, pullRequestBody(rec.Alias, params))
	if err != nil {
		return PrOutcome{Skipped: true, Reason: "pull request API call failed", Branch: branch},
			&PublishUnavailableError{Reason: "failed to open pull request", Err: err}
	}
	return PrOutcome{Branch: branch, URL: url}, nil
}

func (p *GitHubPublisher) commitAndPush(ws *workspace.Workspace, branch string, files []string, when time.Time) error {
	repo, err := git.PlainOpen(ws.Root)
	if err != nil {
		return fmt.Errorf("failed to open workspace repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Hash:   head.Hash(),
		Create: true,
	}); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branch, err)
	}
	for _, file := range files {
		if _, err := wt.Add(file); err != nil {
			return fmt.Errorf("failed to stage %s: %w", file, err)
		}
	}
	_, err = wt.Commit("chore: configure remote state persistence", &git.CommitOptions{
		Author: &object.Signature{Name: "concordat", Email: "concordat@local", When: when},
	})
	if err != nil {
		return fmt.Errorf("failed to commit backend files: %w", err)
	}

	refspec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	if err := repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Auth:       p.pushAuth(repo),
	}); err != nil {
		return fmt.Errorf("failed to push %s: %w", branch, err)
	}
	return nil
}

func (p *GitHubPublisher) pushAuth(repo *git.Repository) transport.AuthMethod {
	remote, err := repo.Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 {
		return nil
	}
	if !strings.HasPrefix(remote.Config().URLs[0], "https://") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: p.Token}
}

func pullRequestBody(alias string, params backend.Params) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Configures the remote state backend for estate `%s`.\n\n", alias)
	fmt.Fprintf(&b, "- **Bucket**: `%s`\n", params.Bucket)
	fmt.Fprintf(&b, "- **Key**: `%s`\n", backend.ObjectKey(params.KeyPrefix, params.KeySuffix))
	fmt.Fprintf(&b, "- **Region**: `%s`\n", params.Region)
	fmt.Fprintf(&b, "- **Endpoint**: `%s`\n", params.Endpoint)
	b.WriteString("\nThe bucket was verified before this change: versioning is enabled and a write/delete probe succeeded.\n")
	return b.String()
}

func openGitHubPR(ctx context.Context, token, slug, head, base, title, body string) (string, error) {
	owner, name, ok := strings.Cut(slug, "/")
	if !ok {
		return "", fmt.Errorf("invalid repository slug %q", slug)
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, source))
	pr, _, err := client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
		Body:  github.String(body),
	})
	if err != nil {
		return "", err
	}
	return pr.GetHTMLURL(), nil
}

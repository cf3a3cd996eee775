package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/concordat-io/concordat/pkg/backend"
	"github.com/concordat-io/concordat/pkg/workspace"
)

// cloneWorkspace builds a workspace backed by a local origin repository, the
// same shape plan/apply and persist operate on.
func cloneWorkspace(t *testing.T) (*workspace.Workspace, string) {
	t.Helper()

	origin := t.TempDir()
	repo, err := git.PlainInitWithOptions(origin, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		t.Fatalf("failed to init origin: %v", err)
	}
	if err := os.WriteFile(filepath.Join(origin, "main.tf"), []byte("# root\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := wt.AddGlob("."); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@local", When: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	root := filepath.Join(t.TempDir(), "ws")
	if _, err := git.PlainClone(root, false, &git.CloneOptions{
		URL:           origin,
		ReferenceName: plumbing.Main,
		SingleBranch:  true,
	}); err != nil {
		t.Fatalf("failed to clone origin: %v", err)
	}
	return &workspace.Workspace{Root: root, EstateAlias: "df12"}, origin
}

func writeBackendPair(t *testing.T, ws *workspace.Workspace) []string {
	t.Helper()
	store := backend.NewStore(ws.Root)
	if _, err := store.Write("df12", testParams2(), false); err != nil {
		t.Fatalf("failed to write backend pair: %v", err)
	}
	return []string{
		store.BackendFileRel("df12"),
		filepath.Join(backend.BackendDirname, backend.ManifestFilename),
	}
}

func testParams2() backend.Params {
	return backend.Params{
		Bucket:    "df12-tfstate",
		Region:    "fr-par",
		Endpoint:  "https://s3.fr-par.scw.cloud",
		KeyPrefix: "estates/df12/main",
		KeySuffix: "terraform.tfstate",
	}
}

func TestPublishSkipsWithoutToken(t *testing.T) {
	p := &GitHubPublisher{Token: ""}
	outcome, err := p.Publish(context.Background(), &workspace.Workspace{Root: t.TempDir()}, testRecord(), testParams2(), nil)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if !outcome.Skipped {
		t.Error("outcome not skipped")
	}
	if !strings.Contains(outcome.Reason, "GITHUB_TOKEN") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestPublishSkipsNonGitHubRemote(t *testing.T) {
	rec := testRecord()
	rec.RepoURL = "https://gitlab.example.com/df12/estate.git"
	p := &GitHubPublisher{Token: "ghp_x"}
	outcome, err := p.Publish(context.Background(), &workspace.Workspace{Root: t.TempDir()}, rec, testParams2(), nil)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if !outcome.Skipped {
		t.Error("outcome not skipped")
	}
	if !strings.Contains(outcome.Reason, "GitHub") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestPublishPushesBranchAndOpensPR(t *testing.T) {
	ws, origin := cloneWorkspace(t)
	files := writeBackendPair(t, ws)

	var gotHead, gotBase, gotTitle, gotBody string
	p := &GitHubPublisher{
		Token: "ghp_x",
		Now:   func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		OpenPR: func(ctx context.Context, token, slug, head, base, title, body string) (string, error) {
			if slug != "df12/estate" {
				t.Errorf("slug = %q", slug)
			}
			gotHead, gotBase, gotTitle, gotBody = head, base, title, body
			return "https://github.com/df12/estate/pull/12", nil
		},
	}

	outcome, err := p.Publish(context.Background(), ws, testRecord(), testParams2(), files)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if outcome.Skipped {
		t.Fatalf("outcome skipped: %s", outcome.Reason)
	}
	if outcome.Branch != "estate/persist-20260102030405" {
		t.Errorf("branch = %q", outcome.Branch)
	}
	if outcome.URL != "https://github.com/df12/estate/pull/12" {
		t.Errorf("url = %q", outcome.URL)
	}
	if gotHead != outcome.Branch || gotBase != "main" {
		t.Errorf("pull request head/base = %q/%q", gotHead, gotBase)
	}
	if gotTitle != PullRequestTitle {
		t.Errorf("title = %q", gotTitle)
	}
	if !strings.Contains(gotBody, "df12-tfstate") || !strings.Contains(gotBody, "estates/df12/main/terraform.tfstate") {
		t.Errorf("body missing backend details:\n%s", gotBody)
	}

	originRepo, err := git.PlainOpen(origin)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := originRepo.Reference(plumbing.NewBranchReferenceName(outcome.Branch), true)
	if err != nil {
		t.Fatalf("pushed branch missing on origin: %v", err)
	}
	commit, err := originRepo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatal(err)
	}
	tree, err := commit.Tree()
	if err != nil {
		t.Fatal(err)
	}
	for _, file := range files {
		if _, err := tree.File(filepath.ToSlash(file)); err != nil {
			t.Errorf("file %s missing from pushed commit: %v", file, err)
		}
	}
}

func TestPublishPushFailureIsUnavailable(t *testing.T) {
	ws, _ := cloneWorkspace(t)
	files := writeBackendPair(t, ws)

	repo, err := git.PlainOpen(ws.Root)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteRemote("origin"); err != nil {
		t.Fatal(err)
	}

	p := &GitHubPublisher{Token: "ghp_x"}
	outcome, err := p.Publish(context.Background(), ws, testRecord(), testParams2(), files)
	var unavailable *PublishUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected PublishUnavailableError, got %v", err)
	}
	if !outcome.Skipped {
		t.Error("outcome not skipped")
	}
}

func TestPublishPRFailureIsUnavailable(t *testing.T) {
	ws, _ := cloneWorkspace(t)
	files := writeBackendPair(t, ws)

	p := &GitHubPublisher{
		Token: "ghp_x",
		OpenPR: func(ctx context.Context, token, slug, head, base, title, body string) (string, error) {
			return "", errors.New("api unreachable")
		},
	}
	outcome, err := p.Publish(context.Background(), ws, testRecord(), testParams2(), files)
	var unavailable *PublishUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected PublishUnavailableError, got %v", err)
	}
	if outcome.Branch == "" {
		t.Error("branch missing from outcome after successful push")
	}
}

package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRepository(t *testing.T) (string, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "origin")
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"demo"}`), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("package.json")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &gogit.CommitOptions{Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}})
	require.NoError(t, err)
	return dir, hash.String()
}

func TestCloneLocalRepository(t *testing.T) {
	origin, want := seedRepository(t)
	dest := filepath.Join(t.TempDir(), "checkout")

	got, err := Clone(context.Background(), origin, dest, CloneOptions{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.FileExists(t, filepath.Join(dest, "package.json"))
}

func TestCloneValidatesArguments(t *testing.T) {
	_, err := Clone(context.Background(), "", t.TempDir(), CloneOptions{})
	assert.Error(t, err)
	_, err = Clone(context.Background(), "https://example.com/a.git", "", CloneOptions{})
	assert.Error(t, err)
}

func TestHeadCommitFailsWithoutCommits(t *testing.T) {
	repo, err := gogit.PlainInit(t.TempDir(), false)
	require.NoError(t, err)

	hash, err := headCommit(repo)
	require.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
	assert.Contains(t, err.Error(), "resolve HEAD")
	assert.Empty(t, hash)
}

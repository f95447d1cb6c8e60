package git

import (
	"context"
	"fmt"
	"io"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// CloneOptions tune a checkout.
type CloneOptions struct {
	// Depth limits history; zero fetches everything.
	Depth int
	// Progress receives the remote's sideband output when set.
	Progress io.Writer
}

// Clone checks the repository out into dest and returns the HEAD commit hash.
func Clone(ctx context.Context, repoURL, dest string, opts CloneOptions) (string, error) {
	if strings.TrimSpace(repoURL) == "" {
		return "", fmt.Errorf("repository URL cannot be empty")
	}
	if dest == "" {
		return "", fmt.Errorf("destination cannot be empty")
	}
	repo, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{
		URL:          repoURL,
		Depth:        opts.Depth,
		SingleBranch: true,
		Progress:     opts.Progress,
	})
	if err != nil {
		return "", fmt.Errorf("git clone %s: %w", repoURL, err)
	}
	return headCommit(repo)
}

func headCommit(repo *gogit.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectOutputDirFollowsPriority(t *testing.T) {
	existing := map[string]bool{"out": true, "dist": true, ".next": true}
	name, err := SelectOutputDir(OutputDirs, func(n string) bool { return existing[n] })
	require.NoError(t, err)
	assert.Equal(t, "dist", name)

	existing = map[string]bool{".next": true}
	name, err = SelectOutputDir(OutputDirs, func(n string) bool { return existing[n] })
	require.NoError(t, err)
	assert.Equal(t, ".next", name)
}

func TestSelectOutputDirListsCandidatesOnFailure(t *testing.T) {
	_, err := SelectOutputDir(OutputDirs, func(string) bool { return false })
	require.ErrorIs(t, err, ErrOutputDirNotFound)
	assert.Contains(t, err.Error(), "build, dist, public, out, .output, .next")
}

func TestResolveOutputDirIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "build"), []byte("not a dir"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "public"), 0o755))

	dir, err := ResolveOutputDir(root, OutputDirs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "public"), dir)
}

func TestCollectFilesRecurses(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets", "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "img", "logo.png"), []byte("x"), 0o644))

	files, err := CollectFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/img/logo.png", "index.html"}, files)
}

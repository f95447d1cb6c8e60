package worker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutputDirNotFound indicates none of the conventional output directories exist.
var ErrOutputDirNotFound = errors.New("build directory not found")

// OutputDirs lists the conventional build output directories in priority order.
var OutputDirs = []string{"build", "dist", "public", "out", ".output", ".next"}

// SelectOutputDir returns the first candidate for which isDir reports true.
func SelectOutputDir(candidates []string, isDir func(name string) bool) (string, error) {
	for _, name := range candidates {
		if isDir(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: ensure that one of the following directories exists: %s",
		ErrOutputDirNotFound, strings.Join(candidates, ", "))
}

// ResolveOutputDir returns the absolute path of the build output below root.
func ResolveOutputDir(root string, candidates []string) (string, error) {
	name, err := SelectOutputDir(candidates, func(name string) bool {
		info, err := os.Lstat(filepath.Join(root, name))
		return err == nil && info.IsDir()
	})
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}

// CollectFiles lists every non-directory entry below dir as slash-separated
// paths relative to dir, in lexical order.
func CollectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths.
// When rootPath is a file it is returned as-is if it matches.
func FindFilesByExtension(rootPath string, extensions ...string) ([]string, error) {
	if len(extensions) == 0 {
		panic("extension must not be empty")
	}

	return FindFiles(rootPath, func(path string, _ fs.DirEntry) bool {
		for _, ext := range extensions {
			if strings.HasSuffix(path, ext) {
				return true
			}
		}
		return false
	})
}

// FindFiles walks rootPath and returns every regular file accepted by match.
// Hidden directories (".git", ".cache", ...) below the root are skipped.
func FindFiles(rootPath string, match func(path string, d fs.DirEntry) bool) ([]string, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if match(rootPath, fs.FileInfoToDirEntry(info)) {
			return []string{rootPath}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootPath && IsHidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !IsHidden(path) && match(path, d) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// IsHidden reports whether the base name of path starts with a dot.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && strings.HasPrefix(base, ".") && base != ".."
}

// Within reports whether path equals root or lies below it.
func Within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Package adapter contains infrastructure and capability adapters for the
// testforge CLI.
package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	m "testforge.dev/pkg/testforge/internal/model"
)

// SourceFSAdapter abstracts filesystem operations the domain layer relies on
// when scanning and amending user projects. It hides direct `os` access so
// mapper, discovery, and integration logic can be tested without touching
// the real disk layout.
type SourceFSAdapter interface {
	// WalkGoFiles traverses root and invokes fn for every .go file found.
	// Files matching any of the exclude regexps are skipped.
	WalkGoFiles(root m.Path, exclude []string, fn func(path m.Path) error) error

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions,
	// creating parent directories as needed.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// FileInfo returns metadata for a path so the domain can check
	// existence or distinguish files from directories.
	FileInfo(path m.Path) (os.FileInfo, error)

	// EnsureDir creates a directory (and parents) if it does not exist.
	EnsureDir(path m.Path) error

	// JoinPath joins path elements into a single path.
	JoinPath(elem ...string) m.Path
}

// LocalSourceFSAdapter is the os-backed SourceFSAdapter implementation.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter ready to be
// wired into the workflow.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// WalkGoFiles iterates over .go files under root, skipping excluded paths
// and common non-source directories.
func (a *LocalSourceFSAdapter) WalkGoFiles(root m.Path, exclude []string, fn func(path m.Path) error) error {
	patterns, err := compileExcludes(exclude)
	if err != nil {
		return err
	}

	return filepath.Walk(string(root), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			base := filepath.Base(path)
			if base == ".git" || base == "vendor" || base == "node_modules" {
				return filepath.SkipDir
			}

			return nil
		}

		if filepath.Ext(path) != ".go" {
			return nil
		}

		for _, re := range patterns {
			if re.MatchString(path) {
				return nil
			}
		}

		return fn(m.Path(path))
	})
}

func compileExcludes(exclude []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(exclude))

	for _, expr := range exclude {
		if strings.TrimSpace(expr) == "" {
			continue
		}

		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", expr, err)
		}

		patterns = append(patterns, re)
	}

	return patterns, nil
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// WriteFile writes content to a file, creating parent directories first.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// EnsureDir creates the directory if missing.
func (a *LocalSourceFSAdapter) EnsureDir(path m.Path) error {
	return os.MkdirAll(string(path), 0o750)
}

// JoinPath joins path elements into a single path.
func (a *LocalSourceFSAdapter) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}

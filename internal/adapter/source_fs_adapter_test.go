package adapter

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "testforge.dev/pkg/testforge/internal/model"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	}
}

func walkNames(t *testing.T, root string, exclude []string) []string {
	t.Helper()

	var names []string

	err := NewLocalSourceFSAdapter().WalkGoFiles(m.Path(root), exclude, func(path m.Path) error {
		rel, relErr := filepath.Rel(root, string(path))
		require.NoError(t, relErr)
		names = append(names, rel)

		return nil
	})
	require.NoError(t, err)
	sort.Strings(names)

	return names
}

func TestWalkGoFilesFindsOnlyGoSources(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.go":          "package main",
		"nested/helper.go": "package nested",
		"README.md":        "# docs",
		"data.json":        "{}",
	})

	assert.Equal(t, []string{"main.go", filepath.Join("nested", "helper.go")}, walkNames(t, dir, nil))
}

func TestWalkGoFilesSkipsVendorAndGit(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"keep.go":               "package p",
		"vendor/dep/dep.go":     "package dep",
		".git/hooks/hook.go":    "package hook",
		"node_modules/x/y.go":   "package y",
		"sub/vendor/nested.go":  "package nested",
	})

	assert.Equal(t, []string{"keep.go"}, walkNames(t, dir, nil))
}

func TestWalkGoFilesAppliesExcludeRegexps(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"keep.go":          "package p",
		"gen/schema.go":    "package gen",
		"keep_mock.go":     "package p",
	})

	names := walkNames(t, dir, []string{`gen/`, `_mock\.go$`})
	assert.Equal(t, []string{"keep.go"}, names)
}

func TestWalkGoFilesRejectsBadPattern(t *testing.T) {
	err := NewLocalSourceFSAdapter().WalkGoFiles(m.Path(t.TempDir()), []string{"["}, func(m.Path) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")
}

func TestWriteFileCreatesParents(t *testing.T) {
	fs := NewLocalSourceFSAdapter()
	path := fs.JoinPath(t.TempDir(), "deep", "nested", "out.go")

	require.NoError(t, fs.WriteFile(path, []byte("package out"), 0o600))

	content, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package out", string(content))
}

func TestFileInfoMissingPath(t *testing.T) {
	_, err := NewLocalSourceFSAdapter().FileInfo("/nonexistent/testforge-path")

	assert.Error(t, err)
}

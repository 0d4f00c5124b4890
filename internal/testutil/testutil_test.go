package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.NotEmpty(t, root)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestEnsureDir(t *testing.T) {
	testDir := filepath.Join(t.TempDir(), "test", "nested", "dir")

	require.NoError(t, EnsureDir(testDir))
	assert.True(t, DirExists(testDir))
	assert.False(t, DirExists(filepath.Join(testDir, "missing")))
}

func TestFileExists(t *testing.T) {
	assert.False(t, FileExists("/non/existent/file"))

	p := WriteFile(t, t.TempDir(), "a.bin", []byte{1, 2, 3})
	assert.True(t, FileExists(p))
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	WriteFile(t, dir, "b", nil)
	WriteFile(t, dir, "a", nil)
	assert.Equal(t, []string{"a", "b"}, ListFiles(t, dir))
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsGitURL(t *testing.T) {
	assert.True(t, isGitURL("https://example.com/org/repo.git"))
	assert.True(t, isGitURL("git@example.com:org/repo"))
	assert.False(t, isGitURL("./local/dir"))
	assert.False(t, isGitURL("https://example.com/org/repo"))
}

func TestFindGitRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, ok := findGitRoot(nested)
	require.True(t, ok)
	assert.Equal(t, root, found)
}

func TestFindGitRootAbsent(t *testing.T) {
	_, ok := findGitRoot(t.TempDir())
	assert.False(t, ok)
}

func TestGitChangesSections(t *testing.T) {
	runner := &stubRunner{responses: map[string][]byte{
		"git status --porcelain -uall": []byte(" M src/lib.rs\n?? notes.md\n"),
		"git diff --staged":            []byte("diff --git a/staged b/staged\n+staged line\n"),
		"git diff":                     []byte("diff --git a/unstaged b/unstaged\n+unstaged line\n"),
	}}

	out := gitChanges(runner, "/repo", true, true)

	assert.Contains(t, out, "# --- Git Changes ---")
	assert.Contains(t, out, "## Git Status:")
	assert.Contains(t, out, " M src/lib.rs")
	assert.Contains(t, out, "## Git Diff (Staged):")
	assert.Contains(t, out, "+staged line")
	assert.Contains(t, out, "## Git Diff (Unstaged):")
	assert.Contains(t, out, "+unstaged line")
}

func TestGitChangesSuppressedDiffs(t *testing.T) {
	runner := &stubRunner{responses: map[string][]byte{
		"git status --porcelain -uall": []byte(""),
		"git diff --staged":            []byte("staged\n"),
		"git diff":                     []byte("unstaged\n"),
	}}

	out := gitChanges(runner, "/repo", false, false)

	assert.Contains(t, out, "No uncommitted changes")
	assert.NotContains(t, out, "Git Diff")
	assert.Equal(t, []string{"git status --porcelain -uall"}, runner.calls)
}

func TestGitChangesSurvivesFailures(t *testing.T) {
	out := gitChanges(&stubRunner{err: errStub}, "/repo", true, true)

	assert.Contains(t, out, "# --- Git Changes ---")
	assert.NotContains(t, out, "Git Diff")
}

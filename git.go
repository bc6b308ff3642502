package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// isGitURL reports whether a target argument names a remote repository
// rather than a local path.
func isGitURL(input string) bool {
	return strings.HasSuffix(input, ".git") || strings.HasPrefix(input, "git@")
}

// cloneGitRepo clones url into a fresh temp directory and returns its path.
// The caller owns cleanup.
func cloneGitRepo(url string) (string, error) {
	tempDir, err := os.MkdirTemp("", "flattener-git-")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory: %w", err)
	}

	logger.Info("cloning repository", "url", url, "dir", tempDir)
	_, err = git.PlainClone(tempDir, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.HEAD,
		SingleBranch:  true,
	})
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to clone repository %q: %w", url, err)
	}
	return tempDir, nil
}

// findGitRoot walks up from startPath to the first directory containing a
// .git dir. The boolean is false when no enclosing repository exists.
func findGitRoot(startPath string) (string, bool) {
	current, err := filepath.Abs(startPath)
	if err != nil {
		return "", false
	}
	for {
		if info, err := os.Stat(filepath.Join(current, ".git")); err == nil && info.IsDir() {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// gitChanges assembles the git-changes section: porcelain status plus the
// staged and unstaged diffs, each suppressible. Failed git invocations are
// logged and their section skipped; they never abort the run.
func gitChanges(runner commandRunner, repoRoot string, includeStaged, includeUnstaged bool) string {
	var out strings.Builder
	out.WriteString("\n\n# --- Git Changes ---\n")
	fmt.Fprintf(&out, "# Repository: %s\n\n", repoRoot)

	status, err := runner.Run(repoRoot, "git", "status", "--porcelain", "-uall")
	if err != nil {
		logger.Warn("'git status' failed", "err", err)
	} else if s := strings.TrimSpace(string(status)); s != "" {
		out.WriteString("## Git Status:\n```bash\n")
		out.WriteString(s)
		out.WriteString("\n```\n\n")
	} else {
		out.WriteString("## Git Status: No uncommitted changes.\n\n")
	}

	if includeStaged {
		appendDiffSection(&out, runner, repoRoot, "Staged", "diff", "--staged")
	}
	if includeUnstaged {
		appendDiffSection(&out, runner, repoRoot, "Unstaged", "diff")
	}
	return out.String()
}

func appendDiffSection(out *strings.Builder, runner commandRunner, repoRoot, label string, args ...string) {
	diff, err := runner.Run(repoRoot, "git", args...)
	if err != nil {
		logger.Warn("git diff failed", "kind", label, "err", err)
		return
	}
	if s := strings.TrimSpace(string(diff)); s != "" {
		fmt.Fprintf(out, "## Git Diff (%s):\n```diff\n%s\n```\n\n", label, s)
	}
}

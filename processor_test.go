package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProbe() *wordpressProbe {
	return newWordPressProbe(&stubRunner{err: errStub})
}

func runFixture(t *testing.T, opts *Options, custom map[string]CustomProfile) (*Result, error) {
	t.Helper()
	probe := testProbe()
	resolver := NewResolver(custom, probe, newBuiltinProfiles())
	return run(opts, resolver, probe, &stubRunner{err: errStub}, loadLanguageTable())
}

func baseNames(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, filepath.Base(f))
	}
	return out
}

func rustFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "lib.rs"), "pub fn lib() {}\n")
	writeFile(t, filepath.Join(root, "src", "main.rs"), "fn main() {}\n")
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[package]\nname = \"demo\"\n")
	writeFile(t, filepath.Join(root, "Cargo.lock"), "# lock\n")
	writeFile(t, filepath.Join(root, "main.py"), "print('nope')\n")
	writeFile(t, filepath.Join(root, "README.txt"), "docs\n")
	return root
}

func TestRunRustProfile(t *testing.T) {
	root := rustFixture(t)
	opts := &Options{TargetDirs: []string{root}, Profile: "rust", MaxSizeMB: 2.0}

	result, err := runFixture(t, opts, nil)
	require.NoError(t, err)

	names := baseNames(result.Files)
	assert.Contains(t, names, "lib.rs")
	assert.Contains(t, names, "main.rs")
	assert.Contains(t, names, "Cargo.toml")
	assert.Contains(t, names, "Cargo.lock")
	assert.NotContains(t, names, "main.py")
	assert.NotContains(t, names, "README.txt")

	assert.Equal(t, len(result.Files), result.FileCount)
	assert.Contains(t, result.Content, "# --- File:")
	assert.Contains(t, result.Content, "pub fn lib() {}")
	assert.Greater(t, result.TokenCount, 0)
}

func TestRunCustomProfileExtendsBuiltin(t *testing.T) {
	root := rustFixture(t)
	writeFile(t, filepath.Join(root, "api.proto"), "syntax = \"proto3\";\n")

	custom := map[string]CustomProfile{
		"rust-grpc": {Extends: "rust", Extensions: []string{".proto"}},
	}
	opts := &Options{TargetDirs: []string{root}, Profile: "rust-grpc", MaxSizeMB: 2.0}

	result, err := runFixture(t, opts, custom)
	require.NoError(t, err)

	names := baseNames(result.Files)
	assert.Contains(t, names, "api.proto")
	assert.Contains(t, names, "lib.rs")
	assert.NotContains(t, names, "main.py")
}

func TestRunUnknownProfileFails(t *testing.T) {
	opts := &Options{TargetDirs: []string{t.TempDir()}, Profile: "no-such-profile"}

	_, err := runFixture(t, opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunWithoutFilterRulesFails(t *testing.T) {
	opts := &Options{TargetDirs: []string{t.TempDir()}}

	_, err := runFixture(t, opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no allowed extensions")
}

func TestRunIncludeGlobsAlone(t *testing.T) {
	root := rustFixture(t)
	opts := &Options{
		TargetDirs:   []string{root},
		IncludeGlobs: []string{"src/**"},
		MaxSizeMB:    2.0,
	}

	result, err := runFixture(t, opts, nil)
	require.NoError(t, err)

	names := baseNames(result.Files)
	assert.ElementsMatch(t, []string{"lib.rs", "main.rs"}, names)
}

func TestRunParallelMatchesSequential(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 40; i++ {
		writeFile(t, filepath.Join(root, "src", "mod"+string(rune('a'+i%26)), "file"+string(rune('a'+i%26))+".rs"), "fn f() {}\n")
	}
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[package]\n")

	seq := &Options{TargetDirs: []string{root}, Profile: "rust", MaxSizeMB: 2.0}
	par := &Options{TargetDirs: []string{root}, Profile: "rust", MaxSizeMB: 2.0, Parallel: true}

	seqRes, err := runFixture(t, seq, nil)
	require.NoError(t, err)
	parRes, err := runFixture(t, par, nil)
	require.NoError(t, err)

	assert.Equal(t, seqRes.FileCount, parRes.FileCount)
	assert.ElementsMatch(t, seqRes.Files, parRes.Files)
	assert.Equal(t, len(seqRes.Content), len(parRes.Content))
}

func TestRunDryRun(t *testing.T) {
	root := rustFixture(t)
	opts := &Options{TargetDirs: []string{root}, Profile: "rust", MaxSizeMB: 2.0, DryRun: true}

	result, err := runFixture(t, opts, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Content)
	assert.Equal(t, 4, result.FileCount)
	assert.Contains(t, baseNames(result.Files), "lib.rs")
}

func TestRunSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "small.rs"), "ok\n")
	writeFile(t, filepath.Join(root, "big.rs"), strings.Repeat("x", 200))

	// Cap of ~10 bytes.
	opts := &Options{TargetDirs: []string{root}, Extensions: []string{".rs"}, MaxSizeMB: 0.00001}

	result, err := runFixture(t, opts, nil)
	require.NoError(t, err)

	names := baseNames(result.Files)
	assert.Contains(t, names, "small.rs")
	assert.NotContains(t, names, "big.rs")
}

func TestRunMarkdownFencing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lib.rs"), "pub fn f() {}\n")

	opts := &Options{TargetDirs: []string{root}, Extensions: []string{".rs"}, MaxSizeMB: 2.0, Markdown: true}

	result, err := runFixture(t, opts, nil)
	require.NoError(t, err)

	assert.Contains(t, result.Content, "```rust\n")
	assert.Contains(t, result.Content, "\n```\n")
}

func TestRunMissingTargetFails(t *testing.T) {
	opts := &Options{
		TargetDirs: []string{filepath.Join(t.TempDir(), "does-not-exist")},
		Extensions: []string{".rs"},
	}

	_, err := runFixture(t, opts, nil)
	assert.Error(t, err)
}

func TestValidateOptions(t *testing.T) {
	err := validateOptions(&Options{
		IncludeDirs: []string{"src"},
		ExcludeDirs: []string{"src/vendor"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict")

	err = validateOptions(&Options{MaxSizeMB: 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed")

	assert.NoError(t, validateOptions(&Options{
		IncludeDirs: []string{"src"},
		ExcludeDirs: []string{"docs"},
		MaxSizeMB:   2.0,
	}))
}

func TestApplyProfileSettingsFillsUnsetOnly(t *testing.T) {
	probe := testProbe()
	resolver := NewResolver(nil, probe, newBuiltinProfiles())

	opts := &Options{Profile: "rust", Extensions: []string{".zig"}}
	require.NoError(t, applyProfileSettings(opts, resolver, probe))

	// Explicit extensions win over the profile's.
	assert.Equal(t, []string{".zig"}, opts.Extensions)
	// Unset filename list comes from the profile.
	assert.Contains(t, opts.AllowedFilenames, "Cargo.toml")
	// A glob-free profile must not install an include-glob restriction.
	assert.Empty(t, opts.IncludeGlobs)
}

func TestApplyProfileSettingsSizeDepthPrecedence(t *testing.T) {
	probe := testProbe()
	custom := map[string]CustomProfile{
		"tuned": {Extensions: []string{".rs"}, MaxSizeMB: floatPtr(50), MaxDepth: intPtr(3)},
	}
	resolver := NewResolver(custom, probe, newBuiltinProfiles())

	// Flag defaults with nothing set explicitly: the profile wins.
	opts := &Options{Profile: "tuned", MaxSizeMB: 2.0, MaxDepth: 100}
	require.NoError(t, applyProfileSettings(opts, resolver, probe))
	assert.Equal(t, 50.0, opts.MaxSizeMB)
	assert.Equal(t, 3, opts.MaxDepth)

	// Explicit values, even zero, beat the profile.
	opts = &Options{Profile: "tuned", MaxSizeSet: true, MaxDepthSet: true}
	require.NoError(t, applyProfileSettings(opts, resolver, probe))
	assert.Equal(t, 0.0, opts.MaxSizeMB)
	assert.Equal(t, 0, opts.MaxDepth)
}

func TestWalkDirectoryMaxDepthBoundary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.rs"), "x\n")
	writeFile(t, filepath.Join(root, "a", "nested.rs"), "x\n")

	var names []string
	for _, e := range walkDirectory(root, &Options{MaxDepth: 1}) {
		if !e.IsDir {
			names = append(names, filepath.Base(e.Path))
		}
	}

	assert.Contains(t, names, "top.rs")
	assert.NotContains(t, names, "nested.rs")
}

func TestRunSkipsEscapingSymlinks(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.rs"), "pub fn secret() {}\n")

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real.rs"), "pub fn real() {}\n")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.rs"), filepath.Join(root, "link.rs")))

	opts := &Options{TargetDirs: []string{root}, Extensions: []string{".rs"}, MaxSizeMB: 2.0}

	result, err := runFixture(t, opts, nil)
	require.NoError(t, err)

	names := baseNames(result.Files)
	assert.Contains(t, names, "real.rs")
	assert.NotContains(t, names, "link.rs")
	assert.NotContains(t, result.Content, "secret")
}

func TestWalkDirectoryPruning(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "ignored/\n")
	writeFile(t, filepath.Join(root, "keep.rs"), "x\n")
	writeFile(t, filepath.Join(root, "ignored", "gone.rs"), "x\n")
	writeFile(t, filepath.Join(root, "node_modules", "dep", "index.js"), "x\n")
	writeFile(t, filepath.Join(root, ".hidden", "secret.rs"), "x\n")
	writeFile(t, filepath.Join(root, "a", "b", "c", "deep.rs"), "x\n")

	opts := &Options{
		ExcludeNodeModules: true,
		ExcludeHiddenDirs:  true,
		MaxDepth:           2,
	}

	var names []string
	for _, e := range walkDirectory(root, opts) {
		if !e.IsDir {
			names = append(names, filepath.Base(e.Path))
		}
	}

	assert.Contains(t, names, "keep.rs")
	assert.NotContains(t, names, "gone.rs")
	assert.NotContains(t, names, "index.js")
	assert.NotContains(t, names, "secret.rs")
	assert.NotContains(t, names, "deep.rs")
}

func TestCanonicalRootMissingPath(t *testing.T) {
	_, err := canonicalRoot(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

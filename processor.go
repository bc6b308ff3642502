package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	gitignore "github.com/monochromegane/go-gitignore"
)

const maxSizeCapMB = 100.0

// run executes one full flattening pass: profile application, validation,
// per-root enumeration and filtering, git-changes collection, and token
// counting. Targets must already be local directories.
func run(opts *Options, resolver *Resolver, probe *wordpressProbe, runner commandRunner, langs *languageTable) (*Result, error) {
	if err := applyProfileSettings(opts, resolver, probe); err != nil {
		return nil, err
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	logger.Debug("effective filter settings",
		"extensions", opts.Extensions,
		"allowed_filenames", opts.AllowedFilenames,
		"include_globs", opts.IncludeGlobs,
		"max_size_mb", opts.MaxSizeMB)

	extSet := make(map[string]bool, len(opts.Extensions))
	for _, e := range normalizeExtensions(opts.Extensions) {
		extSet[e] = true
	}
	fileSet := make(map[string]bool, len(opts.AllowedFilenames))
	for _, f := range opts.AllowedFilenames {
		fileSet[filepath.ToSlash(f)] = true
	}

	if len(extSet) == 0 && len(fileSet) == 0 && len(opts.IncludeGlobs) == 0 {
		return nil, fmt.Errorf("no allowed extensions, filenames, or include globs specified")
	}

	agg := newAggregator()
	logger.Info("starting code flattening", "targets", opts.TargetDirs, "parallel", opts.Parallel)

	for _, target := range opts.TargetDirs {
		root, err := canonicalRoot(target)
		if err != nil {
			return nil, err
		}

		entries := walkDirectory(root, opts)
		pipeline := newFilterPipeline(root, opts)

		if opts.Parallel {
			processEntriesParallel(entries, root, pipeline, extSet, fileSet, opts, agg, langs)
		} else {
			processEntriesSequential(entries, root, pipeline, extSet, fileSet, opts, agg, langs)
		}
	}

	content, files, count := agg.Finalize()

	if !opts.DryRun && opts.IncludeGitChanges && len(opts.TargetDirs) > 0 {
		if repoRoot, ok := findGitRoot(opts.TargetDirs[0]); ok {
			content += gitChanges(runner, repoRoot, !opts.NoStagedDiff, !opts.NoUnstagedDiff)
		}
	}

	tokens := getTokenizer(opts.GPT4Tokens).CountTokens(content)

	return &Result{
		Content:    content,
		Files:      files,
		FileCount:  count,
		TokenCount: tokens,
	}, nil
}

// applyProfileSettings resolves the requested profile and folds it into the
// options wherever the CLI/config left a field unset. The WordPress probe
// gets first crack in path-aware mode unless a custom profile shadows the
// name. A missing top-level profile is fatal: without it no filter rule
// would exist.
func applyProfileSettings(opts *Options, resolver *Resolver, probe *wordpressProbe) error {
	if opts.Profile == "" {
		return nil
	}
	name := opts.Profile

	var prof Profile
	var ok bool
	if _, isCustom := resolver.custom[name]; !isCustom && probe.Supports(name) && len(opts.TargetDirs) > 0 {
		prof, ok = probe.ProfileForPath(name, opts.TargetDirs[0],
			opts.WPIncludeOnlyPlugins, opts.WPExcludePlugins, opts.WPIncludeTheme)
	}
	if !ok {
		prof, ok = resolver.Resolve(name)
	}
	if !ok {
		return fmt.Errorf("profile %q not found", name)
	}

	if len(opts.Extensions) == 0 {
		opts.Extensions = prof.AllowedExtensions
	}
	if len(opts.AllowedFilenames) == 0 {
		opts.AllowedFilenames = prof.AllowedFilenames
	}
	// A profile without globs must not install an include-glob restriction:
	// an empty configured list would otherwise reject everything at stage 6.
	if len(opts.IncludeGlobs) == 0 && len(prof.IncludeGlobs) > 0 {
		opts.IncludeGlobs = prof.IncludeGlobs
	}
	if len(opts.ExcludeGlobs) == 0 {
		opts.ExcludeGlobs = prof.ExcludeGlobs
	}
	if len(opts.IncludeDirs) == 0 {
		opts.IncludeDirs = prof.IncludeDirs
	}
	if len(opts.ExcludeDirs) == 0 {
		opts.ExcludeDirs = prof.ExcludeDirs
	}

	// Boolean knobs apply only while the option still holds its zero value.
	// Size and depth carry explicit provenance instead: their flag defaults
	// are non-zero, and an explicit zero must still beat the profile.
	if !opts.Markdown && prof.Markdown != nil {
		opts.Markdown = *prof.Markdown
	}
	if !opts.MaxSizeSet && prof.MaxSizeMB != nil {
		opts.MaxSizeMB = *prof.MaxSizeMB
	}
	if !opts.GPT4Tokens && prof.GPT4Tokens != nil {
		opts.GPT4Tokens = *prof.GPT4Tokens
	}
	if !opts.IncludeGitChanges && prof.IncludeGitChanges != nil {
		opts.IncludeGitChanges = *prof.IncludeGitChanges
	}
	if !opts.NoStagedDiff && prof.NoStagedDiff != nil {
		opts.NoStagedDiff = *prof.NoStagedDiff
	}
	if !opts.NoUnstagedDiff && prof.NoUnstagedDiff != nil {
		opts.NoUnstagedDiff = *prof.NoUnstagedDiff
	}
	if !opts.ExcludeNodeModules && prof.ExcludeNodeModules != nil {
		opts.ExcludeNodeModules = *prof.ExcludeNodeModules
	}
	if !opts.ExcludeBuildDirs && prof.ExcludeBuildDirs != nil {
		opts.ExcludeBuildDirs = *prof.ExcludeBuildDirs
	}
	if !opts.ExcludeHiddenDirs && prof.ExcludeHiddenDirs != nil {
		opts.ExcludeHiddenDirs = *prof.ExcludeHiddenDirs
	}
	if !opts.MaxDepthSet && prof.MaxDepth != nil {
		opts.MaxDepth = *prof.MaxDepth
	}
	return nil
}

// validateOptions reports configuration errors that must stop the run
// before any traversal starts.
func validateOptions(opts *Options) error {
	for _, inc := range opts.IncludeDirs {
		for _, exc := range opts.ExcludeDirs {
			if hasPathPrefix(exc, inc) {
				return fmt.Errorf("conflict: exclude directory %q is within include directory %q", exc, inc)
			}
		}
	}
	if opts.MaxSizeMB > maxSizeCapMB {
		return fmt.Errorf("max file size cannot exceed %.0fMB", maxSizeCapMB)
	}
	return nil
}

// canonicalRoot makes a target root absolute and symlink-resolved. A root
// that cannot be canonicalized is fatal.
func canonicalRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", dir, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize path %s: %w", dir, err)
	}
	return canonical, nil
}

// isSafePath reports whether path stays inside root once symlinks are
// resolved. Paths that do not exist yet are judged lexically. Root must
// already be canonical.
func isSafePath(path, root string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = filepath.Clean(path)
	}
	return resolved == root || strings.HasPrefix(resolved, root+string(filepath.Separator))
}

// walkDirectory enumerates every descendant of root once, up front, on a
// single thread. It honors the root .gitignore and prunes excluded
// subtrees at the directory level so their contents are never visited.
func walkDirectory(root string, opts *Options) []ScanEntry {
	var entries []ScanEntry

	var matcher gitignore.IgnoreMatcher
	gitIgnorePath := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitIgnorePath); err == nil {
		m, err := gitignore.NewGitIgnore(gitIgnorePath)
		if err != nil {
			logger.Warn("could not parse .gitignore", "path", gitIgnorePath, "err", err)
		} else {
			matcher = m
		}
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("error accessing path", "path", path, "err", err)
			return nil
		}
		if path == root {
			return nil
		}

		name := d.Name()
		isDir := d.IsDir()

		if isDir {
			// WordPress core trees are never worth flattening.
			if name == "wp-admin" || name == "wp-includes" {
				return fs.SkipDir
			}
			if opts.ExcludeNodeModules && name == "node_modules" {
				return fs.SkipDir
			}
			if opts.ExcludeBuildDirs && (name == "target" || name == "build" || name == "dist") {
				return fs.SkipDir
			}
			if opts.ExcludeHiddenDirs && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
		}

		if matcher != nil && matcher.Match(path, isDir) {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if opts.MaxDepth > 0 {
			// A directory at the depth limit can only hold entries past it.
			depth := pathDepth(rel)
			if isDir && depth >= opts.MaxDepth {
				return fs.SkipDir
			}
			if !isDir && depth > opts.MaxDepth {
				return nil
			}
		}

		var size int64
		if !isDir {
			info, err := d.Info()
			if err != nil {
				logger.Warn("could not stat file", "path", path, "err", err)
				return nil
			}
			size = info.Size()
		}

		entries = append(entries, ScanEntry{Path: path, IsDir: isDir, Size: size})
		return nil
	})
	if walkErr != nil {
		logger.Warn("error walking directory", "root", root, "err", walkErr)
	}
	return entries
}

// pathDepth counts the components of a root-relative path: "a" is 1,
// "a/b.rs" is 2.
func pathDepth(path string) int {
	path = strings.Trim(filepath.ToSlash(path), "/")
	if path == "." || path == "" {
		return 0
	}
	return strings.Count(path, "/") + 1
}

func processEntriesSequential(entries []ScanEntry, root string, pipeline *filterPipeline, extSet, fileSet map[string]bool, opts *Options, agg *aggregator, langs *languageTable) {
	for _, entry := range entries {
		if !pipeline.Admit(entry) {
			continue
		}
		if err := processFile(entry, root, extSet, fileSet, opts, agg, langs); err != nil {
			logger.Warn("failed to process file", "path", entry.Path, "err", err)
		}
	}
}

// processEntriesParallel fans the pre-enumerated entries out to a fixed
// worker pool. Each worker runs the full pipeline decision and its own
// blocking read; only the aggregator is shared.
func processEntriesParallel(entries []ScanEntry, root string, pipeline *filterPipeline, extSet, fileSet map[string]bool, opts *Options, agg *aggregator, langs *languageTable) {
	numWorkers := runtime.NumCPU()
	jobs := make(chan ScanEntry, len(entries))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				if !pipeline.Admit(entry) {
					continue
				}
				if err := processFile(entry, root, extSet, fileSet, opts, agg, langs); err != nil {
					logger.Warn("failed to process file", "path", entry.Path, "err", err)
				}
			}
		}()
	}

	for _, entry := range entries {
		jobs <- entry
	}
	close(jobs)
	wg.Wait()
}

// processFile applies the final allow check to an admitted entry and, when
// it passes, reads and appends the file. The filename set is consulted with
// both the basename and the root-relative slash path, so probe-scoped
// filenames stay scoped to their package.
func processFile(entry ScanEntry, root string, extSet, fileSet map[string]bool, opts *Options, agg *aggregator, langs *languageTable) error {
	base := filepath.Base(entry.Path)
	ext := filepath.Ext(entry.Path)

	relSlash := filepath.ToSlash(entry.Path)
	if rel, err := filepath.Rel(root, entry.Path); err == nil {
		relSlash = filepath.ToSlash(rel)
	}

	allowed := extSet[ext] || fileSet[base] || fileSet[relSlash] || len(opts.IncludeGlobs) > 0
	if !allowed {
		return nil
	}

	// Symlinks may point anywhere; only content inside the root is read.
	if !isSafePath(entry.Path, root) {
		logger.Warn("skipping path resolving outside root", "path", entry.Path)
		return nil
	}

	if opts.DryRun {
		logger.Info("DRY-RUN: would process", "path", entry.Path)
		agg.Count(entry.Path)
		return nil
	}

	if opts.MaxSizeMB > 0 && entry.Size > int64(opts.MaxSizeMB*1024*1024) {
		logger.Debug("skipping large file", "path", entry.Path, "size", entry.Size)
		return nil
	}

	content, err := os.ReadFile(entry.Path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", entry.Path, err)
	}

	block := formatFileBlock(entry.Path, ext, string(content), opts.Markdown, langs)
	agg.Append(entry.Path, block)

	logger.Debug("processed", "path", entry.Path)
	return nil
}

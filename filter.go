package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreFileName is the run-local ignore list, read once per pipeline from
// the scan root. Line-oriented, glob syntax, # comments, blank lines
// skipped.
const ignoreFileName = ".flattenerignore"

// binaryExtensions is the fixed denylist applied before content sniffing.
var binaryExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "ico": true,
	"webp": true, "svg": true, "bmp": true, "tiff": true, "tif": true,
	"mp4": true, "avi": true, "mov": true, "wmv": true, "flv": true,
	"webm": true, "mkv": true, "mp3": true, "wav": true, "ogg": true,
	"zip": true, "tar": true, "gz": true, "bz2": true, "7z": true,
	"rar": true, "pdf": true, "doc": true, "docx": true, "xls": true,
	"xlsx": true, "exe": true, "dll": true, "so": true, "dylib": true,
	"woff": true, "woff2": true, "ttf": true, "eot": true,
}

// coreWordPressFiles are host-framework entry points that never belong in a
// flattened site bundle.
var coreWordPressFiles = map[string]bool{
	"xmlrpc.php": true, "wp-activate.php": true, "wp-cron.php": true,
	"wp-load.php": true, "wp-blog-header.php": true, "wp-settings.php": true,
	"wp-login.php": true, "wp-signup.php": true, "wp-trackback.php": true,
	"wp-comments-post.php": true, "wp-links-opml.php": true, "wp-mail.php": true,
}

// filterPipeline decides admit/reject for one filesystem entry. Admit is a
// pure function of the entry, the root, and the options; the only state is
// the ignore-pattern list loaded once at construction.
type filterPipeline struct {
	root           string
	opts           *Options
	ignorePatterns []string
}

func newFilterPipeline(root string, opts *Options) *filterPipeline {
	return &filterPipeline{
		root:           root,
		opts:           opts,
		ignorePatterns: loadIgnorePatterns(filepath.Join(root, ignoreFileName)),
	}
}

func loadIgnorePatterns(path string) []string {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// Admit runs the entry through every stage in order; each stage
// short-circuits to reject. Admission only gates whether the entry reaches
// the final extension/filename allow check done by the caller.
func (fp *filterPipeline) Admit(entry ScanEntry) bool {
	// 1. Directories are never content.
	if entry.IsDir {
		return false
	}

	rel := fp.relPath(entry.Path)

	// 2. Local ignore list.
	for _, pattern := range fp.ignorePatterns {
		if matchesGlob(pattern, rel) {
			return false
		}
	}

	// 3. Excluded directory prefixes.
	for _, dir := range fp.opts.ExcludeDirs {
		if hasPathPrefix(rel, dir) {
			return false
		}
	}

	// 4. Include directory list is exclusive when present.
	if len(fp.opts.IncludeDirs) > 0 {
		included := false
		for _, dir := range fp.opts.IncludeDirs {
			if hasPathPrefix(rel, dir) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	// 5. Exclude globs.
	for _, pattern := range fp.opts.ExcludeGlobs {
		if matchesGlob(pattern, rel) {
			return false
		}
	}

	// 6. Include globs are exclusive when present. An empty list means no
	// glob restriction, never "restrict to nothing".
	if len(fp.opts.IncludeGlobs) > 0 {
		included := false
		for _, pattern := range fp.opts.IncludeGlobs {
			if matchesGlob(pattern, rel) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	// 7. Excluded plugin slugs.
	relLower := strings.ToLower(filepath.ToSlash(rel))
	for _, raw := range fp.opts.WPExcludePlugins {
		prefix := wpPluginsDir + "/" + strings.ToLower(pluginSlug(raw))
		if hasPathPrefix(relLower, prefix) {
			logger.Debug("excluding plugin path", "plugin", raw, "path", rel)
			return false
		}
	}

	// 8. Binary files.
	if isBinaryFile(entry.Path) {
		return false
	}

	// 9. Strict inclusion: with explicit plugin/theme selectors, only the
	// selected packages and the anchor file survive.
	if fp.opts.strictWordPressInclusion() {
		return fp.admitStrictWordPress(relLower)
	}

	// 10. Host-framework denylist.
	if coreWordPressFiles[filepath.Base(entry.Path)] {
		return false
	}

	return true
}

func (fp *filterPipeline) admitStrictWordPress(relLower string) bool {
	if relLower == "wp-config.php" {
		return true
	}
	for _, raw := range fp.opts.WPIncludeOnlyPlugins {
		prefix := wpPluginsDir + "/" + strings.ToLower(pluginSlug(raw))
		if hasPathPrefix(relLower, prefix) {
			return true
		}
	}
	if theme := fp.opts.WPIncludeTheme; theme != "" {
		prefix := wpThemesDir + "/" + strings.ToLower(theme)
		if hasPathPrefix(relLower, prefix) {
			return true
		}
	}
	return false
}

func (fp *filterPipeline) relPath(path string) string {
	rel, err := filepath.Rel(fp.root, path)
	if err != nil {
		return path
	}
	return rel
}

// matchesGlob tries the pattern against both the forward-slash-normalized
// form and the OS-native form, so globs authored on one OS match on
// another.
func matchesGlob(pattern, relPath string) bool {
	slashPat := filepath.ToSlash(pattern)
	slashRel := filepath.ToSlash(relPath)
	if ok, err := doublestar.Match(slashPat, slashRel); err == nil && ok {
		return true
	}
	if pattern != slashPat || relPath != slashRel {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// hasPathPrefix reports whether rel is dir itself or lives under it,
// comparing whole path components.
func hasPathPrefix(rel, dir string) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	if dir == "" || dir == "." {
		return false
	}
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}

// isBinaryFile rejects known binary extensions outright, then sniffs up to
// 1024 bytes for NUL or non-printable control bytes (tab/LF/CR excluded).
func isBinaryFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if binaryExtensions[ext] {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	for _, b := range buf[:n] {
		if b == 0 || (b < 32 && b != '\t' && b != '\n' && b != '\r') {
			return true
		}
	}
	return false
}

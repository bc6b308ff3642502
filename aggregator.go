package main

import (
	"fmt"
	"strings"
	"sync"
)

// aggregator accumulates admitted file blocks and a running count. It is
// shared between workers in parallel mode; blocks are formatted before the
// lock is taken so the critical section is pure buffer mutation.
type aggregator struct {
	mu    sync.Mutex
	buf   strings.Builder
	files []string
	count int
}

func newAggregator() *aggregator {
	return &aggregator{}
}

// Append records one admitted file.
func (a *aggregator) Append(path, block string) {
	a.mu.Lock()
	a.buf.WriteString(block)
	a.files = append(a.files, path)
	a.count++
	a.mu.Unlock()
}

// Count records an admitted file without content, for dry runs.
func (a *aggregator) Count(path string) {
	a.mu.Lock()
	a.files = append(a.files, path)
	a.count++
	a.mu.Unlock()
}

// Finalize returns the accumulated content, the admitted paths in
// processing order, and the file count. Call once, after all workers are
// done.
func (a *aggregator) Finalize() (string, []string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String(), a.files, a.count
}

// formatFileBlock renders one file the way it appears in the bundle, either
// plain or fenced. The fence label comes from the language table when the
// file's type is known, falling back to the bare extension.
func formatFileBlock(path, ext, content string, markdown bool, langs *languageTable) string {
	if !markdown {
		return fmt.Sprintf("\n\n# --- File: %s ---\n\n%s", path, content)
	}
	label := strings.TrimPrefix(ext, ".")
	if lang, ok := langs.FenceLabel(path); ok {
		label = lang
	}
	return fmt.Sprintf("\n\n```%s\n# --- File: %s ---\n%s\n```\n", label, path, content)
}

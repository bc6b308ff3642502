package main

// Options is the effective configuration for one run, after CLI flags,
// config file, and profile have been folded together (in that precedence).
// It is built once before traversal starts and never mutated afterwards.
type Options struct {
	// Input / output
	TargetDirs []string
	Output     string
	Clipboard  bool
	PDFOutput  string

	// Profile selection
	Profile      string
	ListProfiles bool

	// Filtering
	Extensions       []string
	AllowedFilenames []string
	IncludeGlobs     []string
	ExcludeGlobs     []string
	IncludeDirs      []string
	ExcludeDirs      []string
	MaxSizeMB        float64
	MaxDepth         int

	// MaxSizeSet/MaxDepthSet record that the value came from the CLI or the
	// config file. Their flag defaults are non-zero, so the zero value cannot
	// stand in for "unset" the way it does for the boolean knobs.
	MaxSizeSet  bool
	MaxDepthSet bool

	ExcludeNodeModules bool
	ExcludeBuildDirs   bool
	ExcludeHiddenDirs  bool

	// Output formatting / tokens
	Markdown   bool
	GPT4Tokens bool

	// Git changes section
	IncludeGitChanges bool
	NoStagedDiff      bool
	NoUnstagedDiff    bool

	// WordPress profile selectors
	WPExcludePlugins     []string
	WPIncludeOnlyPlugins []string
	WPIncludeTheme       string

	// Execution
	Parallel bool
	DryRun   bool
	Verbose  bool

	ConfigFile string
}

// strictWordPressInclusion reports whether the run is in strict inclusion
// mode: only explicitly selected plugin/theme paths survive the pipeline.
func (o *Options) strictWordPressInclusion() bool {
	return o.Profile == "wordpress" &&
		(len(o.WPIncludeOnlyPlugins) > 0 || o.WPIncludeTheme != "")
}

// ScanEntry is one filesystem path produced by the traversal walk, plus the
// metadata the pipeline needs. Entries are created per walk step and
// discarded once a decision has been made.
type ScanEntry struct {
	Path  string
	IsDir bool
	Size  int64
}

// Result is what a run hands to the output stage.
type Result struct {
	Content    string
	Files      []string // admitted paths, in processing order
	FileCount  int
	TokenCount int
}

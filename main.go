package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
})

// version is set via ldflags.
var version = "dev"

var opts Options

var rootCmd = &cobra.Command{
	Use:   "flattener [TARGET_DIRS...]",
	Short: "A blazingly fast code flattener.",
	Long: `Flattener concatenates the relevant files of one or more directory trees
into a single LLM-ready text bundle. File selection is driven by profiles
(built-in, user-defined with inheritance, or probed from the target tree)
plus per-run overrides, and token counts are reported for the result.`,
	Version:       version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if opts.Verbose {
			logger.SetLevel(log.DebugLevel)
		}

		if err := initConfig(opts.ConfigFile); err != nil {
			return err
		}
		mergeConfig(cmd, &opts)

		customProfiles, err := loadCustomProfiles()
		if err != nil {
			return err
		}

		probe := newWordPressProbe(execRunner{})
		resolver := NewResolver(customProfiles, probe, newBuiltinProfiles())

		if opts.ListProfiles {
			printProfiles(resolver)
			return nil
		}

		opts.TargetDirs = args
		if len(opts.TargetDirs) == 0 {
			opts.TargetDirs = []string{"."}
		}

		// Remote repository targets are cloned into temp dirs and
		// flattened like any local tree.
		var tempDirs []string
		defer func() {
			for _, dir := range tempDirs {
				logger.Debug("cleaning up temporary directory", "dir", dir)
				_ = os.RemoveAll(dir)
			}
		}()
		for i, target := range opts.TargetDirs {
			if !isGitURL(target) {
				continue
			}
			tempDir, err := cloneGitRepo(target)
			if err != nil {
				return err
			}
			tempDirs = append(tempDirs, tempDir)
			opts.TargetDirs[i] = tempDir
		}

		langs := loadLanguageTable()

		result, err := run(&opts, resolver, probe, execRunner{}, langs)
		if err != nil {
			return err
		}

		if opts.PDFOutput != "" {
			if err := generatePDF(result, langs, opts.PDFOutput); err != nil {
				return err
			}
		} else if !opts.DryRun {
			if err := writeOutput(result, &opts); err != nil {
				return err
			}
		}

		logger.Info("processing complete",
			"files", result.FileCount, "tokens", result.TokenCount)
		return nil
	},
}

func init() {
	flags := rootCmd.Flags()

	// Output
	flags.StringVarP(&opts.Output, "output", "o", "", "Output file path for the flattened code (default: stdout)")
	flags.BoolVarP(&opts.Clipboard, "clipboard", "c", false, "Copy the flattened code to the clipboard")
	flags.StringVar(&opts.PDFOutput, "pdf", "", "Save the flattened code as a syntax-highlighted PDF")

	// Profiles
	flags.StringVarP(&opts.Profile, "profile", "p", "", "Use a predefined or custom profile for a specific project type")
	flags.BoolVar(&opts.ListProfiles, "list-profiles", false, "List all available profiles and their descriptions")

	// Filtering
	flags.StringSliceVarP(&opts.Extensions, "extensions", "e", nil, "Comma-separated list of allowed file extensions (overrides profile)")
	flags.StringSliceVarP(&opts.AllowedFilenames, "allowed-filenames", "a", nil, "Comma-separated list of specific filenames to include (overrides profile)")
	flags.StringSliceVar(&opts.IncludeGlobs, "include-globs", nil, "Comma-separated list of glob patterns to include")
	flags.StringSliceVar(&opts.ExcludeGlobs, "exclude-globs", nil, "Comma-separated list of glob patterns to exclude")
	flags.StringSliceVar(&opts.IncludeDirs, "include-dirs", nil, "Comma-separated list of directories to include (relative to target)")
	flags.StringSliceVar(&opts.ExcludeDirs, "exclude-dirs", nil, "Comma-separated list of directories to exclude (relative to target)")
	flags.Float64Var(&opts.MaxSizeMB, "max-size", 2.0, "Maximum file size to process in megabytes (MB)")
	flags.IntVar(&opts.MaxDepth, "max-depth", 100, "Maximum directory depth to traverse")
	flags.BoolVar(&opts.ExcludeNodeModules, "exclude-node-modules", false, "Exclude node_modules directories")
	flags.BoolVar(&opts.ExcludeBuildDirs, "exclude-build-dirs", false, "Exclude target/, build/, and dist/ directories")
	flags.BoolVar(&opts.ExcludeHiddenDirs, "exclude-hidden-dirs", false, "Exclude hidden directories (starting with .)")

	// Formatting / tokens
	flags.BoolVar(&opts.Markdown, "markdown", false, "Format the output content using Markdown code blocks")
	flags.BoolVar(&opts.GPT4Tokens, "gpt4-tokens", false, "Use the GPT-4 tokenizer for more accurate token counting")

	// Git changes
	flags.BoolVarP(&opts.IncludeGitChanges, "include-git-changes", "g", false, "Append a section with current Git status and diffs")
	flags.BoolVar(&opts.NoStagedDiff, "no-staged-diff", false, "Do NOT include staged changes (git diff --staged)")
	flags.BoolVar(&opts.NoUnstagedDiff, "no-unstaged-diff", false, "Do NOT include unstaged changes (git diff)")

	// WordPress profile selectors
	flags.StringSliceVar(&opts.WPExcludePlugins, "wp-exclude-plugins", nil, "WordPress profile: comma-separated plugin slugs to exclude")
	flags.StringSliceVar(&opts.WPIncludeOnlyPlugins, "wp-include-only-plugins", nil, "WordPress profile: comma-separated plugin slugs to exclusively include")
	flags.StringVar(&opts.WPIncludeTheme, "wp-include-theme", "", "WordPress profile: theme to include")

	// Execution
	flags.BoolVar(&opts.Parallel, "parallel", false, "Enable parallel processing")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "Log which files would be processed but don't read them")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Print verbose output during processing")

	flags.StringVar(&opts.ConfigFile, "config", "", "Configuration file path (default: .flattener.toml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

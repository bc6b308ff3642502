package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
)

// writeOutput hands the final bundle to its destination: a file, the
// clipboard, or stdout.
func writeOutput(result *Result, opts *Options) error {
	if opts.Output != "" {
		if parent := filepath.Dir(opts.Output); parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory %s: %w", parent, err)
			}
		}
		if err := os.WriteFile(opts.Output, []byte(result.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write output file %s: %w", opts.Output, err)
		}
		logger.Info("flattened code written", "path", opts.Output)
		return nil
	}

	if opts.Clipboard {
		if err := clipboard.WriteAll(result.Content); err != nil {
			logger.Warn("could not write to clipboard, printing to stdout", "err", err)
			fmt.Print(result.Content)
			return nil
		}
		logger.Info("flattened code copied to clipboard")
		return nil
	}

	fmt.Print(result.Content)
	return nil
}

// printProfiles writes the deduplicated profile listing for
// --list-profiles.
func printProfiles(resolver *Resolver) {
	fmt.Println("Available Profiles:")
	for _, entry := range resolver.ListAll() {
		fmt.Printf("  - %s: %s\n", entry.Name, entry.Description)
		profile, ok := resolver.Resolve(entry.Name)
		if !ok {
			continue
		}
		fmt.Printf("    Extensions: %s\n", strings.Join(profile.AllowedExtensions, ", "))
		if len(profile.AllowedFilenames) > 0 {
			fmt.Printf("    Allowed Filenames: %s\n", strings.Join(profile.AllowedFilenames, ", "))
		}
		fmt.Println()
	}
}

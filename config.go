package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initConfig points viper at the configuration file. The default is a
// .flattener.toml found in the current directory or ~/.config/flattener;
// an explicitly requested file that does not exist is an error, a missing
// default is not.
func initConfig(configFile string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".flattener")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "flattener"))
		}
	}

	viper.SetEnvPrefix("FLATTENER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && configFile == "" {
			logger.Debug("no config file found, using defaults and flags")
			return nil
		}
		if configFile != "" {
			if _, statErr := os.Stat(configFile); statErr != nil {
				return fmt.Errorf("configuration file not found at: %s", configFile)
			}
		}
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	logger.Debug("using config file", "path", viper.ConfigFileUsed())
	return nil
}

// mergeConfig overlays config-file values onto the options, but only for
// flags the user did not set explicitly: CLI beats config, config beats
// profile.
func mergeConfig(cmd *cobra.Command, opts *Options) {
	flags := cmd.Flags()

	setString := func(flag, key string, dst *string) {
		if !flags.Changed(flag) && viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	setBool := func(flag, key string, dst *bool) {
		if !flags.Changed(flag) && viper.IsSet(key) {
			*dst = viper.GetBool(key)
		}
	}
	setFloat := func(flag, key string, dst *float64) {
		if !flags.Changed(flag) && viper.IsSet(key) {
			*dst = viper.GetFloat64(key)
		}
	}
	setInt := func(flag, key string, dst *int) {
		if !flags.Changed(flag) && viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	setSlice := func(flag, key string, dst *[]string) {
		if !flags.Changed(flag) && viper.IsSet(key) {
			*dst = viper.GetStringSlice(key)
		}
	}

	setString("profile", "profile", &opts.Profile)
	setString("output", "output", &opts.Output)
	setString("pdf", "pdf", &opts.PDFOutput)
	setSlice("extensions", "extensions", &opts.Extensions)
	setSlice("allowed-filenames", "allowed_filenames", &opts.AllowedFilenames)
	setSlice("include-globs", "include_globs", &opts.IncludeGlobs)
	setSlice("exclude-globs", "exclude_globs", &opts.ExcludeGlobs)
	setSlice("include-dirs", "include_dirs", &opts.IncludeDirs)
	setSlice("exclude-dirs", "exclude_dirs", &opts.ExcludeDirs)
	setFloat("max-size", "max_size", &opts.MaxSizeMB)
	setInt("max-depth", "max_depth", &opts.MaxDepth)
	setBool("markdown", "markdown", &opts.Markdown)
	setBool("gpt4-tokens", "gpt4_tokens", &opts.GPT4Tokens)
	setBool("include-git-changes", "include_git_changes", &opts.IncludeGitChanges)
	setBool("no-staged-diff", "no_staged_diff", &opts.NoStagedDiff)
	setBool("no-unstaged-diff", "no_unstaged_diff", &opts.NoUnstagedDiff)
	setBool("exclude-node-modules", "exclude_node_modules", &opts.ExcludeNodeModules)
	setBool("exclude-build-dirs", "exclude_build_dirs", &opts.ExcludeBuildDirs)
	setBool("exclude-hidden-dirs", "exclude_hidden_dirs", &opts.ExcludeHiddenDirs)
	setBool("parallel", "parallel", &opts.Parallel)
	setBool("clipboard", "clipboard", &opts.Clipboard)
	setSlice("wp-exclude-plugins", "wp_exclude_plugins", &opts.WPExcludePlugins)
	setSlice("wp-include-only-plugins", "wp_include_only_plugins", &opts.WPIncludeOnlyPlugins)
	setString("wp-include-theme", "wp_include_theme", &opts.WPIncludeTheme)

	opts.MaxSizeSet = flags.Changed("max-size") || viper.IsSet("max_size")
	opts.MaxDepthSet = flags.Changed("max-depth") || viper.IsSet("max_depth")
}

// loadCustomProfiles decodes the [profiles.<name>] tables of the config
// file. A malformed section is a configuration error.
func loadCustomProfiles() (map[string]CustomProfile, error) {
	if !viper.IsSet("profiles") {
		return nil, nil
	}
	var profiles map[string]CustomProfile
	if err := viper.UnmarshalKey("profiles", &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse custom profiles: %w", err)
	}
	return profiles, nil
}

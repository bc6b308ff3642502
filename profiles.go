package main

import (
	"sort"
	"strings"
)

// Profile is a named bundle of file-selection rules. Set-valued fields are
// kept deduplicated in declaration order; optional scalar knobs use pointers
// so "unset" can be told apart from an explicit false/zero.
type Profile struct {
	Description       string
	AllowedExtensions []string
	AllowedFilenames  []string
	IncludeGlobs      []string

	Markdown          *bool
	MaxSizeMB         *float64
	GPT4Tokens        *bool
	IncludeGitChanges *bool
	NoStagedDiff      *bool
	NoUnstagedDiff    *bool

	IncludeDirs  []string
	ExcludeDirs  []string
	ExcludeGlobs []string

	ExcludeNodeModules *bool
	ExcludeBuildDirs   *bool
	ExcludeHiddenDirs  *bool
	MaxDepth           *int
}

func newProfile(description string, extensions, filenames []string) Profile {
	return Profile{
		Description:       description,
		AllowedExtensions: normalizeExtensions(extensions),
		AllowedFilenames:  dedupe(filenames),
	}
}

// normalizeExtensions forces the leading-dot form and drops duplicates.
func normalizeExtensions(exts []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range exts {
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func dedupe(items []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// appendMissing unions extra into base, keeping base order and appending new
// members in their own order.
func appendMissing(base, extra []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(out))
	for _, b := range out {
		seen[b] = true
	}
	for _, e := range extra {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// MergeWith merges the receiver (parent) with child. Set-valued fields are
// unioned parent-first; optional fields take the child's value when the
// child set one; the description is always the child's. Folding a chain
// root-to-leaf therefore yields the same sets as resolving the leaf.
func (p Profile) MergeWith(child Profile) Profile {
	merged := Profile{
		Description:       child.Description,
		AllowedExtensions: appendMissing(p.AllowedExtensions, child.AllowedExtensions),
		AllowedFilenames:  appendMissing(p.AllowedFilenames, child.AllowedFilenames),
		IncludeGlobs:      appendMissing(p.IncludeGlobs, child.IncludeGlobs),

		Markdown:          orBool(child.Markdown, p.Markdown),
		MaxSizeMB:         orFloat(child.MaxSizeMB, p.MaxSizeMB),
		GPT4Tokens:        orBool(child.GPT4Tokens, p.GPT4Tokens),
		IncludeGitChanges: orBool(child.IncludeGitChanges, p.IncludeGitChanges),
		NoStagedDiff:      orBool(child.NoStagedDiff, p.NoStagedDiff),
		NoUnstagedDiff:    orBool(child.NoUnstagedDiff, p.NoUnstagedDiff),

		ExcludeNodeModules: orBool(child.ExcludeNodeModules, p.ExcludeNodeModules),
		ExcludeBuildDirs:   orBool(child.ExcludeBuildDirs, p.ExcludeBuildDirs),
		ExcludeHiddenDirs:  orBool(child.ExcludeHiddenDirs, p.ExcludeHiddenDirs),
		MaxDepth:           orInt(child.MaxDepth, p.MaxDepth),
	}

	merged.IncludeDirs = child.IncludeDirs
	if merged.IncludeDirs == nil {
		merged.IncludeDirs = p.IncludeDirs
	}
	merged.ExcludeDirs = child.ExcludeDirs
	if merged.ExcludeDirs == nil {
		merged.ExcludeDirs = p.ExcludeDirs
	}
	merged.ExcludeGlobs = child.ExcludeGlobs
	if merged.ExcludeGlobs == nil {
		merged.ExcludeGlobs = p.ExcludeGlobs
	}

	return merged
}

func orBool(a, b *bool) *bool {
	if a != nil {
		return a
	}
	return b
}

func orFloat(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func orInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

// CustomProfile is a user-authored, possibly-partial profile from the
// [profiles.<name>] tables of the config file. It is never used directly;
// the resolver turns it into a Profile.
type CustomProfile struct {
	Description *string  `mapstructure:"description"`
	Extends     string   `mapstructure:"extends"`
	Extensions  []string `mapstructure:"extensions"`

	AllowedFilenames []string `mapstructure:"allowed_filenames"`
	IncludeGlobs     []string `mapstructure:"include_globs"`

	Markdown          *bool    `mapstructure:"markdown"`
	MaxSizeMB         *float64 `mapstructure:"max_size"`
	GPT4Tokens        *bool    `mapstructure:"gpt4_tokens"`
	IncludeGitChanges *bool    `mapstructure:"include_git_changes"`
	NoStagedDiff      *bool    `mapstructure:"no_staged_diff"`
	NoUnstagedDiff    *bool    `mapstructure:"no_unstaged_diff"`

	IncludeDirs  []string `mapstructure:"include_dirs"`
	ExcludeDirs  []string `mapstructure:"exclude_dirs"`
	ExcludeGlobs []string `mapstructure:"exclude_globs"`

	ExcludeNodeModules *bool `mapstructure:"exclude_node_modules"`
	ExcludeBuildDirs   *bool `mapstructure:"exclude_build_dirs"`
	ExcludeHiddenDirs  *bool `mapstructure:"exclude_hidden_dirs"`
	MaxDepth           *int  `mapstructure:"max_depth"`
}

// toProfile builds the "child" half of a custom profile. The description
// defaults to the profile's own name.
func (c CustomProfile) toProfile(name string) Profile {
	desc := name
	if c.Description != nil {
		desc = *c.Description
	}
	p := newProfile(desc, c.Extensions, c.AllowedFilenames)
	p.IncludeGlobs = dedupe(c.IncludeGlobs)
	p.Markdown = c.Markdown
	p.MaxSizeMB = c.MaxSizeMB
	p.GPT4Tokens = c.GPT4Tokens
	p.IncludeGitChanges = c.IncludeGitChanges
	p.NoStagedDiff = c.NoStagedDiff
	p.NoUnstagedDiff = c.NoUnstagedDiff
	p.IncludeDirs = c.IncludeDirs
	p.ExcludeDirs = c.ExcludeDirs
	p.ExcludeGlobs = c.ExcludeGlobs
	p.ExcludeNodeModules = c.ExcludeNodeModules
	p.ExcludeBuildDirs = c.ExcludeBuildDirs
	p.ExcludeHiddenDirs = c.ExcludeHiddenDirs
	p.MaxDepth = c.MaxDepth
	return p
}

// ProfileEntry is one row of a profile listing.
type ProfileEntry struct {
	Name        string
	Description string
}

// ProfileSource is one provider of named profiles. Sources are queried in a
// fixed priority order by the resolver; an unknown name is "not found", not
// an error.
type ProfileSource interface {
	Get(name string) (Profile, bool)
	List() []ProfileEntry
}

// builtinStore is the compiled-in profile registry. It is constructed once
// at startup and passed into the resolver; immutability makes it safe to
// share across goroutines.
type builtinStore struct {
	profiles map[string]Profile
}

func newBuiltinProfiles() *builtinStore {
	m := make(map[string]Profile)

	m["nextjs-ts-prisma"] = newProfile(
		"Next.js, TypeScript, Prisma project files.",
		[]string{
			".ts", ".tsx", ".js", ".jsx", ".json", ".css", ".scss", ".sass",
			".less", ".html", ".htm", ".md", ".mdx", ".graphql", ".gql",
			".env", ".env.local", ".env.development", ".env.production",
			".yml", ".yaml", ".xml", ".toml", ".ini", ".vue", ".svelte",
			".prisma",
		},
		[]string{
			"next.config.js", "tailwind.config.js", "postcss.config.js",
			"middleware.ts", "middleware.js", "schema.prisma",
		},
	)

	m["cpp-cmake"] = newProfile(
		"C/C++ and CMake project files.",
		[]string{
			".c", ".cpp", ".cc", ".cxx", ".h", ".hpp", ".hh", ".ino",
			".cmake", ".txt", ".md", ".json", ".xml", ".yml", ".yaml",
			".ini", ".proto", ".fbs",
		},
		[]string{"CMakeLists.txt"},
	)

	m["rust"] = newProfile(
		"Rust project files.",
		[]string{".rs", ".toml", ".md", ".yml", ".yaml", ".sh", ".json", ".html"},
		[]string{"Cargo.toml", "Cargo.lock", "build.rs", ".rustfmt.toml"},
	)

	return &builtinStore{profiles: m}
}

func (s *builtinStore) Get(name string) (Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

func (s *builtinStore) List() []ProfileEntry {
	entries := make([]ProfileEntry, 0, len(s.profiles))
	for name, p := range s.profiles {
		entries = append(entries, ProfileEntry{Name: name, Description: p.Description})
	}
	return entries
}

// Resolver turns a profile name into one concrete Profile, consulting custom
// definitions first, then the remaining sources (probe, built-ins) in order.
type Resolver struct {
	custom  map[string]CustomProfile
	sources []ProfileSource
}

func NewResolver(custom map[string]CustomProfile, sources ...ProfileSource) *Resolver {
	if custom == nil {
		custom = make(map[string]CustomProfile)
	}
	return &Resolver{custom: custom, sources: sources}
}

// Resolve looks up name across all sources, handling `extends` chains for
// custom profiles. The boolean is false when no source knows the name.
func (r *Resolver) Resolve(name string) (Profile, bool) {
	return r.resolve(name, make(map[string]bool))
}

func (r *Resolver) resolve(name string, resolving map[string]bool) (Profile, bool) {
	if custom, ok := r.custom[name]; ok {
		return r.resolveCustom(name, custom, resolving), true
	}
	for _, src := range r.sources {
		if p, ok := src.Get(name); ok {
			return p, true
		}
	}
	return Profile{}, false
}

// resolveCustom builds the child profile and merges in its parent, if any.
// The resolving set guards against inheritance cycles of any length; a cycle
// degrades to child-only with a warning, it never recurses forever.
func (r *Resolver) resolveCustom(name string, custom CustomProfile, resolving map[string]bool) Profile {
	resolving[name] = true
	child := custom.toProfile(name)

	parentName := custom.Extends
	if parentName == "" {
		return child
	}
	if resolving[parentName] {
		logger.Warn("profile inheritance cycle detected, ignoring parent",
			"profile", name, "extends", parentName)
		return child
	}

	logger.Debug("resolving parent profile", "profile", name, "extends", parentName)
	parent, ok := r.resolve(parentName, resolving)
	if !ok {
		logger.Warn("parent profile not found, using child definition only",
			"profile", name, "extends", parentName)
		return child
	}
	return parent.MergeWith(child)
}

// ListAll returns every known profile name with its description, sorted by
// name. Custom definitions win on name collisions with other sources.
func (r *Resolver) ListAll() []ProfileEntry {
	byName := make(map[string]string)
	for _, src := range r.sources {
		for _, e := range src.List() {
			if _, ok := byName[e.Name]; !ok {
				byName[e.Name] = e.Description
			}
		}
	}
	for name, custom := range r.custom {
		desc := name
		if custom.Description != nil {
			desc = *custom.Description
		} else if custom.Extends != "" {
			desc = "Custom profile extending " + custom.Extends
		}
		byName[name] = desc
	}

	entries := make([]ProfileEntry, 0, len(byName))
	for name, desc := range byName {
		entries = append(entries, ProfileEntry{Name: name, Description: desc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

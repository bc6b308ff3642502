package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// wordpressProbe supplies the "wordpress" profile. Unlike the static
// built-ins it can inspect the target tree: the path-aware mode asks wp-cli
// for the active theme and plugin set and admits only files belonging to
// them, so an inactive plugin's main file with the same name stays out.
//
// Every external failure degrades to the next tier; the probe never errors
// the run.
type wordpressProbe struct {
	runner commandRunner
}

func newWordPressProbe(runner commandRunner) *wordpressProbe {
	return &wordpressProbe{runner: runner}
}

// inventorySource tags where a plugin inventory came from, so the fallback
// tiers can be asserted independently.
type inventorySource int

const (
	inventoryTool inventorySource = iota
	inventoryFilesystem
	inventoryUnavailable
)

func (s inventorySource) String() string {
	switch s {
	case inventoryTool:
		return "tool"
	case inventoryFilesystem:
		return "filesystem"
	default:
		return "unavailable"
	}
}

const (
	wpPluginsDir = "wp-content/plugins"
	wpThemesDir  = "wp-content/themes"
)

// permissiveWPExtensions is used when inclusion is already scoped by
// explicit filenames or selectors, so a blanket .php allow cannot flatten
// the whole core tree.
var permissiveWPExtensions = []string{
	".php", ".js", ".css", ".scss", ".sass", ".less", ".html", ".htm",
	".md", ".mdx", ".json", ".xml", ".yml", ".yaml", ".ini",
	".env", ".env.local", ".env.development", ".env.production", ".txt",
}

// curatedWPExtensions is the blanket allow for probe-discovered trees:
// style/script/docs only. PHP files are admitted solely through the
// per-package filename list.
var curatedWPExtensions = []string{
	".js", ".css", ".scss", ".sass", ".less", ".json", ".txt", ".md",
}

func (p *wordpressProbe) Supports(name string) bool {
	return name == "wordpress"
}

// Get returns the conservative, content-independent default. It is what
// --list-profiles sees, when no target path is known yet.
func (p *wordpressProbe) Get(name string) (Profile, bool) {
	if name != "wordpress" {
		return Profile{}, false
	}
	return newProfile(
		"WordPress site with active theme and plugins.",
		permissiveWPExtensions,
		[]string{
			"wp-config.php", "wp-cli.yml", "composer.json", "package.json",
			"webpack.config.js", "tailwind.config.js", "postcss.config.js",
		},
	), true
}

func (p *wordpressProbe) List() []ProfileEntry {
	prof, _ := p.Get("wordpress")
	return []ProfileEntry{{Name: "wordpress", Description: prof.Description}}
}

// ProfileForPath builds a profile from the actual content of root. With an
// explicit include list or theme, probing is skipped entirely and the
// profile is built from exactly the named items.
func (p *wordpressProbe) ProfileForPath(name, root string, includeOnlyPlugins, excludePlugins []string, includeTheme string) (Profile, bool) {
	if name != "wordpress" {
		return Profile{}, false
	}

	if len(includeOnlyPlugins) > 0 || includeTheme != "" {
		return p.explicitProfile(root, includeOnlyPlugins, excludePlugins, includeTheme), true
	}

	filenames := []string{"wp-config.php"}

	if theme, ok := p.activeTheme(root); ok {
		filenames = append(filenames, themeFiles(root, theme)...)
	}

	plugins, source := p.activePlugins(root)
	logger.Debug("wordpress plugin inventory", "count", len(plugins), "source", source)
	for _, plugin := range plugins {
		slug := pluginSlug(plugin)
		if containsFold(excludePlugins, slug) {
			logger.Info("excluding plugin", "plugin", slug)
			continue
		}
		if main, ok := pluginMainFile(root, slug); ok {
			filenames = append(filenames, main)
		}
	}

	return newProfile(
		"WordPress site with active theme and plugins (path-aware).",
		curatedWPExtensions,
		filenames,
	), true
}

// explicitProfile builds a profile for user-named plugins/theme without any
// probing. Extensions are permissive because inclusion is scoped by the
// explicit filename list and the strict-inclusion pipeline stage.
func (p *wordpressProbe) explicitProfile(root string, includeOnly, exclude []string, theme string) Profile {
	logger.Info("using explicit include profile for wordpress")
	filenames := []string{"wp-config.php"}

	if theme != "" {
		filenames = append(filenames, themeFiles(root, theme)...)
	}

	var plugins []string
	switch {
	case len(includeOnly) > 0:
		plugins = includeOnly
	default:
		active, _ := p.activePlugins(root)
		for _, plugin := range active {
			slug := pluginSlug(plugin)
			if !containsFold(exclude, slug) {
				plugins = append(plugins, slug)
			}
		}
	}

	for _, plugin := range plugins {
		if main, ok := pluginMainFile(root, pluginSlug(plugin)); ok {
			filenames = append(filenames, main)
		}
	}

	return newProfile(
		"WordPress site with specific theme/plugins.",
		permissiveWPExtensions,
		filenames,
	)
}

// activeTheme asks wp-cli for the active theme name. A failed or malformed
// invocation simply reports no theme.
func (p *wordpressProbe) activeTheme(root string) (string, bool) {
	out, err := p.runner.Run(root, "wp", "theme", "list", "--format=json", "--status=active")
	if err != nil {
		return "", false
	}
	var themes []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(out, &themes); err != nil || len(themes) == 0 {
		return "", false
	}
	return themes[0].Name, themes[0].Name != ""
}

// activePlugins lists active plugin slugs, preferring wp-cli and falling
// back to enumerating the immediate subdirectories of wp-content/plugins.
func (p *wordpressProbe) activePlugins(root string) ([]string, inventorySource) {
	out, err := p.runner.Run(root, "wp", "plugin", "list", "--format=json", "--status=active")
	if err == nil {
		var plugins []struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(out, &plugins); err == nil && len(plugins) > 0 {
			names := make([]string, 0, len(plugins))
			for _, pl := range plugins {
				if pl.Name != "" {
					names = append(names, pl.Name)
				}
			}
			return names, inventoryTool
		}
	}
	return p.availablePlugins(root)
}

func (p *wordpressProbe) availablePlugins(root string) ([]string, inventorySource) {
	entries, err := os.ReadDir(filepath.Join(root, wpPluginsDir))
	if err != nil {
		return nil, inventoryUnavailable
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, inventoryFilesystem
}

// themeFiles returns the theme's anchor files as root-relative slash paths,
// skipping ones that do not exist.
func themeFiles(root, theme string) []string {
	var out []string
	dir := filepath.Join(root, wpThemesDir, theme)
	for _, name := range []string{"functions.php", "style.css"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			out = append(out, relOrAbs(root, path))
		}
	}
	return out
}

// pluginMainFile returns the conventional <slug>/<slug>.php main file as a
// root-relative slash path, if it exists.
func pluginMainFile(root, slug string) (string, bool) {
	path := filepath.Join(root, wpPluginsDir, slug, slug+".php")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return relOrAbs(root, path), true
}

// relOrAbs prefers the root-relative form so filename matching later stays
// scoped to the discovered package; it falls back to the absolute path.
func relOrAbs(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// pluginSlug reduces a plugin identifier like "woocommerce/woocommerce.php"
// to its leading path segment.
func pluginSlug(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return name
}

// containsFold reports whether items contains target, case-insensitively,
// comparing leading path segments.
func containsFold(items []string, target string) bool {
	for _, it := range items {
		if strings.EqualFold(pluginSlug(it), target) {
			return true
		}
	}
	return false
}

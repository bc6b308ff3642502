package main

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LanguageInfo describes one language for file-type detection.
type LanguageInfo struct {
	Type       string   `yaml:"type"`
	Extensions []string `yaml:"extensions"`
	Filenames  []string `yaml:"filenames"`
}

// languageTable maps extensions and literal filenames to language names.
// It backs Markdown fence labels and PDF lexer selection. A built-in table
// covers the common cases; an optional languages.yml next to the config
// extends or overrides it.
type languageTable struct {
	extensionMap map[string]string
	filenameMap  map[string]string
}

// builtinLanguages covers the file types the built-in profiles select.
var builtinLanguages = map[string]LanguageInfo{
	"rust":       {Extensions: []string{".rs"}, Filenames: []string{"Cargo.toml", "Cargo.lock"}},
	"go":         {Extensions: []string{".go"}, Filenames: []string{"go.mod", "go.sum"}},
	"typescript": {Extensions: []string{".ts", ".tsx"}},
	"javascript": {Extensions: []string{".js", ".jsx"}},
	"php":        {Extensions: []string{".php"}},
	"c":          {Extensions: []string{".c", ".h"}},
	"cpp":        {Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"}},
	"css":        {Extensions: []string{".css", ".scss", ".sass", ".less"}},
	"html":       {Extensions: []string{".html", ".htm"}},
	"json":       {Extensions: []string{".json"}},
	"yaml":       {Extensions: []string{".yml", ".yaml"}},
	"toml":       {Extensions: []string{".toml"}},
	"markdown":   {Extensions: []string{".md", ".mdx"}},
	"xml":        {Extensions: []string{".xml"}},
	"bash":       {Extensions: []string{".sh"}},
	"sql":        {Extensions: []string{".sql"}},
	"python":     {Extensions: []string{".py"}},
	"ini":        {Extensions: []string{".ini"}},
	"cmake":      {Extensions: []string{".cmake"}, Filenames: []string{"CMakeLists.txt"}},
}

// loadLanguageTable builds the lookup table, merging languages.yml from the
// config locations when present. A broken or missing file is not an error.
func loadLanguageTable() *languageTable {
	table := &languageTable{
		extensionMap: make(map[string]string),
		filenameMap:  make(map[string]string),
	}
	table.add(builtinLanguages)

	for _, dir := range languageFilePaths() {
		path := filepath.Join(dir, "languages.yml")
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var langs map[string]LanguageInfo
		if err := yaml.Unmarshal(content, &langs); err != nil {
			logger.Warn("could not parse language definitions", "path", path, "err", err)
			continue
		}
		logger.Debug("loaded language definitions", "path", path, "languages", len(langs))
		table.add(langs)
		break
	}
	return table
}

func languageFilePaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "flattener"))
	}
	return append(paths, ".")
}

func (lt *languageTable) add(langs map[string]LanguageInfo) {
	for name, info := range langs {
		key := strings.ToLower(name)
		for _, ext := range info.Extensions {
			lt.extensionMap[strings.ToLower(ext)] = key
		}
		for _, fname := range info.Filenames {
			lt.filenameMap[fname] = key
		}
	}
}

// FenceLabel returns the language name for a path, filename matches taking
// precedence over extension matches.
func (lt *languageTable) FenceLabel(path string) (string, bool) {
	if lt == nil {
		return "", false
	}
	base := filepath.Base(path)
	if lang, ok := lt.filenameMap[base]; ok {
		return lang, true
	}
	if ext := strings.ToLower(filepath.Ext(base)); ext != "" {
		if lang, ok := lt.extensionMap[ext]; ok {
			return lang, true
		}
	}
	return "", false
}

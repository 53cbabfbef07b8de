package langserver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/langgate/errors"
)

// languageManifests maps a language to the manifest files whose nearest
// ancestor directory is treated as the project root. Checked in order.
var languageManifests = map[string][]string{
	"rust":       {"Cargo.toml"},
	"python":     {"pyproject.toml", "setup.py", "requirements.txt"},
	"javascript": {"package.json"},
	"typescript": {"tsconfig.json", "package.json"},
}

// FindProjectRoot resolves the project root for a file by walking up from
// its directory to the nearest ancestor containing a language manifest.
// language "generic" skips the recognized-language check and looks for a
// .git directory, falling back to the file's own directory.
func (r *Registry) FindProjectRoot(filePath, language string) (string, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = NormalizeLanguage("", filePath)
	}

	if language != "generic" && !r.IsRecognized(language) {
		return "", errors.Wrapf(errors.ErrUnrecognizedLanguage,
			"%s (recognized: %s)", language, strings.Join(recognizedLanguages, ", "))
	}

	start := filepath.Dir(filePath)
	if abs, err := filepath.Abs(start); err == nil {
		start = abs
	}

	if language == "generic" {
		if root, ok := findAncestorWith(start, ".git"); ok {
			return root, nil
		}
		return start, nil
	}

	for _, manifest := range languageManifests[language] {
		if root, ok := findAncestorWith(start, manifest); ok {
			return root, nil
		}
	}

	// No manifest found; the containing directory is the best root we have
	return start, nil
}

// findAncestorWith walks up from dir looking for a directory containing
// name. Returns the containing directory and whether one was found.
func findAncestorWith(dir, name string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

package intent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the bundle manifest expected in every intent directory.
const ManifestFileName = "intents.toml"

// Load reads an intent directory, parsing intents.toml and all *.md intent files.
func Load(dir string) (*Bundle, error) {
	manifestPath := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("reading %s: %w", ManifestFileName, err)
	}

	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFileName, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading intent directory: %w", err)
	}

	var intents []Intent
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}

		it, err := parseIntentFile(filepath.Join(dir, e.Name()), manifest.Defaults)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", e.Name(), err)
		}
		it.SourceFile = e.Name()
		intents = append(intents, it)
	}

	return &Bundle{
		Dir:      dir,
		Manifest: manifest,
		Intents:  intents,
	}, nil
}

// parseIntentFile reads a markdown file with +++ TOML frontmatter.
func parseIntentFile(path string, defaults Defaults) (Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Intent{}, err
	}

	frontmatter, body, err := splitFrontmatter(string(data))
	if err != nil {
		return Intent{}, err
	}

	var it Intent
	if err := toml.Unmarshal([]byte(frontmatter), &it); err != nil {
		return Intent{}, fmt.Errorf("parsing TOML frontmatter: %w", err)
	}

	it.Body = strings.TrimSpace(body)

	// Apply defaults for zero-valued fields.
	if it.QualityFloor == 0 {
		it.QualityFloor = defaults.QualityFloor
	}
	if len(it.Tags) == 0 && len(defaults.Tags) > 0 {
		it.Tags = make([]string, len(defaults.Tags))
		copy(it.Tags, defaults.Tags)
	}
	if it.Workflow == "" {
		it.Workflow = defaults.Workflow
	}

	return it, nil
}

// splitFrontmatter splits content on +++ delimiters.
// Expected format:
//
//	+++
//	<TOML>
//	+++
//	<body>
func splitFrontmatter(content string) (string, string, error) {
	const delim = "+++"

	// Trim leading whitespace/newlines.
	content = strings.TrimLeft(content, " \t\r\n")

	if !strings.HasPrefix(content, delim) {
		return "", "", fmt.Errorf("file does not start with +++ frontmatter delimiter")
	}

	// Find closing delimiter.
	rest := content[len(delim):]
	idx := strings.Index(rest, delim)
	if idx < 0 {
		return "", "", fmt.Errorf("missing closing +++ frontmatter delimiter")
	}

	return rest[:idx], rest[idx+len(delim):], nil
}

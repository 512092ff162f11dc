package intent

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrDirExists indicates the output directory already exists and Overwrite was not set.
var ErrDirExists = errors.New("output directory already exists")

// WriteOptions controls how a bundle is written to disk.
type WriteOptions struct {
	Overwrite bool // If true, overwrite an existing bundle directory.
}

// WriteBundle writes a complete bundle (manifest + intent files) to the
// given output directory. Intent files are numbered sequentially in
// topological order of their dependencies (0001-intent-id.md, ...).
//
// If the directory already exists and opts.Overwrite is false, WriteBundle
// returns an error. On failure, any partially written directory is removed.
func WriteBundle(b *Bundle, outputDir string, opts WriteOptions) error {
	// Pre-flight: check if directory already exists.
	if info, err := os.Stat(outputDir); err == nil && info.IsDir() {
		if !opts.Overwrite {
			return fmt.Errorf("%w: %s; use --force to overwrite", ErrDirExists, outputDir)
		}
	}

	// Sort intents topologically for deterministic numbering.
	g, err := Graph(b)
	if err != nil {
		return fmt.Errorf("building dependency graph: %w", err)
	}
	order, err := g.Sort()
	if err != nil {
		return fmt.Errorf("sorting intents: %w", err)
	}
	byID := b.ByID()

	// Write to a temp directory first; rename atomically on success.
	tmpDir := outputDir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("cleaning temp directory: %w", err)
	}

	// Ensure cleanup on failure.
	success := false
	defer func() {
		if !success {
			os.RemoveAll(tmpDir)
		}
	}()

	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	// Write manifest.
	manifestBytes, err := toml.Marshal(b.Manifest)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ManifestFileName), manifestBytes, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ManifestFileName, err)
	}

	// Write intent files.
	for i, id := range order {
		it := byID[id]
		filename := fmt.Sprintf("%04d-%s.md", i+1, it.ID)
		data, err := MarshalIntentFile(*it)
		if err != nil {
			return fmt.Errorf("marshaling intent %q: %w", it.ID, err)
		}
		if err := os.WriteFile(filepath.Join(tmpDir, filename), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", filename, err)
		}
	}

	// Atomic swap: remove existing dir if overwrite, then rename.
	if opts.Overwrite {
		if err := os.RemoveAll(outputDir); err != nil {
			return fmt.Errorf("removing existing directory: %w", err)
		}
	}
	if err := os.Rename(tmpDir, outputDir); err != nil {
		return fmt.Errorf("renaming temp to output directory: %w", err)
	}

	success = true
	return nil
}

// MarshalIntentFile serializes an intent to its on-disk form: +++ TOML
// frontmatter followed by the markdown body.
func MarshalIntentFile(it Intent) ([]byte, error) {
	front, err := toml.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter to TOML: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("+++\n")
	buf.Write(front)
	buf.WriteString("+++\n")
	if it.Body != "" {
		buf.WriteString("\n")
		buf.WriteString(it.Body)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

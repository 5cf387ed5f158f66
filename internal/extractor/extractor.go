package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/pkg/runerr"
)

// ManifestObject is one extracted source object.
type ManifestObject struct {
	Type          ir.ObjectType `json:"type"`
	Name          string        `json:"name"`
	Module        string        `json:"module,omitempty"`
	SourcePath    string        `json:"source_path"`
	ExtractedPath string        `json:"extracted_path"`
}

// Failure is a per-object extraction failure. It degrades the run outcome
// to partial but never aborts it.
type Failure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Manifest is the extractor output consumed by the analysis pipeline.
type Manifest struct {
	SourceRoot    string           `json:"source_root,omitempty"`
	SourceVersion string           `json:"source_version,omitempty"`
	Extractor     string           `json:"extractor"`
	Objects       []ManifestObject `json:"objects"`
	Failures      []Failure        `json:"failures,omitempty"`
}

// Options configures an extraction.
type Options struct {
	// Command is the external export command template with {input} and
	// {output} placeholders, used by the binary extractor.
	Command string
}

// Extractor is the contract the core consumes. Implementations turn an
// input path into extracted per-object files plus a manifest.
type Extractor interface {
	Extract(ctx context.Context, inputPath, outDir string, opts Options) (*Manifest, error)
	Name() string
}

// Select picks an extractor by selector: text scans directories and
// archives, binary shells out to an export command, auto prefers binary
// when a command template is configured.
func Select(selector, command string) (Extractor, error) {
	switch selector {
	case "text":
		return NewScan(), nil
	case "binary":
		return NewCommand(), nil
	case "", "auto":
		if command != "" {
			return NewCommand(), nil
		}
		return NewScan(), nil
	}
	return nil, runerr.Newf(runerr.CodeInput, "unknown extractor selector %q", selector)
}

// WriteManifest persists a manifest as JSON next to the extracted files.
func WriteManifest(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest JSON file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, runerr.Wrap(runerr.CodeInput, "manifest not readable", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, runerr.Wrap(runerr.CodeInput, "manifest malformed", err)
	}
	return &m, nil
}

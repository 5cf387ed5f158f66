package extractor

import "context"

// Prebuilt serves a manifest that an earlier extract step already wrote.
// It lets the analyze stage run without re-extracting.
type Prebuilt struct {
	ManifestPath string
}

func NewPrebuilt(manifestPath string) *Prebuilt {
	return &Prebuilt{ManifestPath: manifestPath}
}

func (p *Prebuilt) Name() string { return "manifest" }

func (p *Prebuilt) Extract(_ context.Context, _, _ string, _ Options) (*Manifest, error) {
	return LoadManifest(p.ManifestPath)
}

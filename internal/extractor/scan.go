package extractor

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/screenlens/screenlens/internal/parser"
	"github.com/screenlens/screenlens/pkg/runerr"
)

// Scan is the text extractor: it walks an already-exported source tree
// (or a .zip of one), classifies files by kind, and copies them into the
// out dir. Unreadable entries become manifest failures.
type Scan struct{}

func NewScan() *Scan {
	return &Scan{}
}

func (s *Scan) Name() string { return "text" }

func (s *Scan) Extract(ctx context.Context, inputPath, outDir string, _ Options) (*Manifest, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, runerr.Wrap(runerr.CodeInput, "input path not readable", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}

	root := inputPath
	if !info.IsDir() {
		if strings.EqualFold(filepath.Ext(inputPath), ".zip") {
			unpacked := filepath.Join(outDir, "unpacked")
			if err := unzip(inputPath, unpacked); err != nil {
				return nil, runerr.Wrap(runerr.CodeInput, "archive not extractable", err)
			}
			root = unpacked
		} else {
			return nil, runerr.Newf(runerr.CodeInput, "input %q is neither a directory nor a .zip", inputPath)
		}
	}

	m := &Manifest{SourceRoot: inputPath, Extractor: s.Name()}

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			m.Failures = append(m.Failures, Failure{Path: path, Reason: err.Error()})
			return nil
		}
		if d.IsDir() || !isSourceExt(filepath.Ext(path)) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		dst := filepath.Join(outDir, "objects", rel)
		if err := copyFile(path, dst); err != nil {
			m.Failures = append(m.Failures, Failure{Path: path, Reason: err.Error()})
			return nil
		}

		content, err := os.ReadFile(dst)
		if err != nil {
			m.Failures = append(m.Failures, Failure{Path: path, Reason: err.Error()})
			return nil
		}

		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		m.Objects = append(m.Objects, ManifestObject{
			Type:          parser.DetectKind(path, content),
			Name:          strings.ToLower(stem),
			Module:        moduleOf(rel),
			SourcePath:    path,
			ExtractedPath: dst,
		})
		return nil
	})
	if walkErr != nil {
		if ctx.Err() != nil {
			return nil, runerr.Wrap(runerr.CodeCanceled, "extraction canceled", walkErr)
		}
		return nil, fmt.Errorf("walk source tree: %w", walkErr)
	}

	return m, nil
}

var sourceExts = map[string]bool{
	".srw": true, ".sru": true, ".srm": true,
	".srd": true, ".srf": true, ".srs": true,
}

func isSourceExt(ext string) bool {
	return sourceExts[strings.ToLower(ext)]
}

// moduleOf takes the first directory of a relative path as the module name.
func moduleOf(rel string) string {
	rel = filepath.ToSlash(rel)
	if idx := strings.IndexByte(rel, '/'); idx > 0 {
		return rel[:idx]
	}
	return ""
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func unzip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		target := filepath.Join(destDir, f.Name)

		// Prevent zip slip
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("invalid zip entry: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry: %w", err)
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		// 100MB per entry guards against zip bombs
		if _, err := io.Copy(out, io.LimitReader(rc, 100*1024*1024)); err != nil {
			out.Close()
			rc.Close()
			return fmt.Errorf("extract entry %s: %w", f.Name, err)
		}
		out.Close()
		rc.Close()
	}
	return nil
}

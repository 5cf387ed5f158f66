package extractor

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlens/screenlens/internal/ir"
)

func TestScanDirectory(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sales"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sales", "w_order.srw"),
		[]byte("event open;\nend event\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "dw_items.srd"),
		[]byte("release 12;\nretrieve=\"SELECT a FROM tb_items\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "readme.txt"),
		[]byte("not a source"), 0o644))

	m, err := NewScan().Extract(context.Background(), srcDir, outDir, Options{})
	require.NoError(t, err)

	require.Len(t, m.Objects, 2)
	assert.Empty(t, m.Failures)

	byName := map[string]ManifestObject{}
	for _, obj := range m.Objects {
		byName[obj.Name] = obj
	}

	order, ok := byName["w_order"]
	require.True(t, ok)
	assert.Equal(t, ir.TypeScreen, order.Type)
	assert.Equal(t, "sales", order.Module)
	assert.FileExists(t, order.ExtractedPath)

	items, ok := byName["dw_items"]
	require.True(t, ok)
	assert.Equal(t, ir.TypeDataGrid, items.Type)
}

func TestScanZipArchive(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	archive := filepath.Join(srcDir, "lib.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("app/w_main.srw")
	require.NoError(t, err)
	_, err = w.Write([]byte("event open;\nend event\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	m, err := NewScan().Extract(context.Background(), archive, outDir, Options{})
	require.NoError(t, err)
	require.Len(t, m.Objects, 1)
	assert.Equal(t, "w_main", m.Objects[0].Name)
	assert.Equal(t, "app", m.Objects[0].Module)
}

func TestScanRejectsMissingInput(t *testing.T) {
	_, err := NewScan().Extract(context.Background(), filepath.Join(t.TempDir(), "absent"), t.TempDir(), Options{})
	require.Error(t, err)
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m := &Manifest{
		Extractor: "text",
		Objects: []ManifestObject{
			{Type: ir.TypeScreen, Name: "w_a", SourcePath: "a", ExtractedPath: "b"},
		},
		Failures: []Failure{{Path: "broken.srw", Reason: "unreadable"}},
	}
	require.NoError(t, WriteManifest(path, m))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.Objects, loaded.Objects)
	assert.Equal(t, m.Failures, loaded.Failures)
}

func TestSelectExtractor(t *testing.T) {
	ext, err := Select("text", "")
	require.NoError(t, err)
	assert.Equal(t, "text", ext.Name())

	ext, err = Select("auto", "export-tool {input} {output}")
	require.NoError(t, err)
	assert.Equal(t, "binary", ext.Name())

	ext, err = Select("auto", "")
	require.NoError(t, err)
	assert.Equal(t, "text", ext.Name())

	_, err = Select("bogus", "")
	require.Error(t, err)
}

func TestCommandTemplateExpansion(t *testing.T) {
	argv := buildArgv("pbexport --src {input} --dst {output}", "/in/lib.pbl", "/out")
	assert.Equal(t, []string{"pbexport", "--src", "/in/lib.pbl", "--dst", "/out"}, argv)
}

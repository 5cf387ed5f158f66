package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/screenlens/screenlens/internal/ir"
)

var extKinds = map[string]ir.ObjectType{
	".srw": ir.TypeScreen,
	".sru": ir.TypeUserObject,
	".srm": ir.TypeMenu,
	".srd": ir.TypeDataGrid,
	".srf": ir.TypeFunction,
	".srs": ir.TypeScript,
	".sql": ir.TypeSql,
}

var descriptorMarker = regexp.MustCompile(`(?is)^\s*(release\s+\d+\s*;|datawindow\s*\()`)

// DetectKind classifies a source file. A leading `release N;` or
// `datawindow(...)` preamble in the first 256 bytes marks a data-grid
// descriptor regardless of extension; otherwise the extension decides, and
// an unknown extension yields Script.
func DetectKind(path string, content []byte) ir.ObjectType {
	head := content
	if len(head) > 256 {
		head = head[:256]
	}
	if descriptorMarker.Match(head) {
		return ir.TypeDataGrid
	}
	if kind, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return ir.TypeScript
}

// IsDescriptor reports whether the file should be routed to the
// descriptor parser rather than the source parser.
func IsDescriptor(kind ir.ObjectType) bool {
	return kind == ir.TypeDataGrid
}

// ObjectName returns the declared object name for a file: the manifest
// name when present, else the file stem lower-cased.
func ObjectName(input FileInput) string {
	if input.Name != "" {
		return strings.ToLower(input.Name)
	}
	base := filepath.Base(input.Path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

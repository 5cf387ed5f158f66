package parser

import (
	"regexp"
	"strings"

	"github.com/screenlens/screenlens/internal/lexer"
)

var (
	tableBlockRe = regexp.MustCompile(`(?i)\btable\s*\(`)
	sqlStartRe   = regexp.MustCompile(`(?i)^\s*(SELECT|INSERT|UPDATE|DELETE|MERGE)\b`)
	firstTableRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_$.#]*)`)
	wsRe         = regexp.MustCompile(`\s+`)
)

// ParseDescriptor extracts the retrieve SQL and update base table from a
// data-grid descriptor text. Without retrieve= and a table( block, a body
// that starts with a SQL keyword is taken as the select; without update=,
// the base table is the first FROM/JOIN table of the select. When none of
// these applies, only the object record results.
func ParseDescriptor(input FileInput) *ParsedDataWindow {
	text, _ := lexer.Decode(input.Content)
	name := ObjectName(input)

	dw := &ParsedDataWindow{
		ObjectName: name,
		DWName:     name,
		Module:     input.Module,
		SourcePath: input.Path,
	}

	if sql, ok := quotedProperty(text, "retrieve"); ok {
		dw.SqlSelect = compactWhitespace(sql)
	}
	if table, ok := quotedProperty(text, "update"); ok {
		dw.BaseTable = strings.ToLower(strings.TrimSpace(table))
	}

	// A descriptor without retrieve= or a table( block may be a bare SQL
	// body exported as-is; adopt it when it starts with a SQL keyword.
	if dw.SqlSelect == "" && !tableBlockRe.MatchString(text) {
		candidate := strings.TrimSpace(text)
		if candidate != "" && sqlStartRe.MatchString(candidate) {
			dw.SqlSelect = compactWhitespace(candidate)
		}
	}

	// Base table falls back to the first FROM/JOIN table of the select.
	if dw.SqlSelect != "" && dw.BaseTable == "" {
		if m := firstTableRe.FindStringSubmatch(dw.SqlSelect); m != nil {
			dw.BaseTable = strings.ToLower(m[1])
		}
	}

	return dw
}

// quotedProperty finds `key = "value"` in a descriptor, honoring
// escape-by-doubling inside the quoted value.
func quotedProperty(text, key string) (string, bool) {
	lower := strings.ToLower(text)
	from := 0
	for {
		idx := strings.Index(lower[from:], key)
		if idx < 0 {
			return "", false
		}
		idx += from
		from = idx + len(key)

		// Left boundary: key must not be part of a longer identifier.
		if idx > 0 && isIdentByte(lower[idx-1]) {
			continue
		}

		i := idx + len(key)
		for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
			i++
		}
		if i >= len(text) || text[i] != '=' {
			continue
		}
		i++
		for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
			i++
		}
		if i >= len(text) || text[i] != '"' {
			continue
		}
		i++
		var b strings.Builder
		for i < len(text) {
			if text[i] == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					b.WriteByte('"')
					i += 2
					continue
				}
				return b.String(), true
			}
			b.WriteByte(text[i])
			i++
		}
		return b.String(), true
	}
}

func compactWhitespace(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

func isIdentByte(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}

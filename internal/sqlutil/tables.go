package sqlutil

import (
	"strings"

	"github.com/screenlens/screenlens/internal/ir"
)

// clause keywords that terminate a FROM/JOIN table list.
var clauseStops = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"UNION": true, "ON": true, "SET": true, "VALUES": true,
	"LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true,
	"CROSS": true, "FULL": true, "JOIN": true, "USING": true,
	"WHEN": true, "RETURNING": true,
}

// ExtractTables derives the (table, R/W) references of a normalized SQL
// statement according to its kind. Table names come back lower-cased with
// schema prefixes stripped; excluded names are suppressed. OTHER statements
// reference no tables.
func ExtractTables(kind ir.SqlKind, norm string, excluded func(string) bool) []ir.TableUsage {
	if kind == ir.KindOther {
		return nil
	}

	toks := scan(norm)
	var usages []ir.TableUsage
	seen := make(map[ir.TableUsage]bool)

	add := func(raw string, rw ir.RwType) {
		name := CanonicalTable(raw)
		if name == "" {
			return
		}
		if excluded != nil && excluded(name) {
			return
		}
		u := ir.TableUsage{TableName: name, RwType: rw}
		if seen[u] {
			return
		}
		seen[u] = true
		usages = append(usages, u)
	}

	switch kind {
	case ir.KindSelect:
		collectFromJoin(toks, func(name string) { add(name, ir.RwRead) })

	case ir.KindInsert:
		if name, ok := identAfter(toks, "INTO"); ok {
			add(name, ir.RwWrite)
		}
		// Tables of a nested SELECT are read sources.
		if containsWord(toks, "SELECT") {
			collectFromJoin(toks, func(name string) { add(name, ir.RwRead) })
		}

	case ir.KindUpdate:
		if name, ok := identAfter(toks, "UPDATE"); ok {
			add(name, ir.RwWrite)
		}
		collectFromJoin(toks, func(name string) { add(name, ir.RwRead) })

	case ir.KindDelete:
		if name, ok := identAfter(toks, "FROM"); ok {
			add(name, ir.RwWrite)
		}

	case ir.KindMerge:
		for i := 0; i+1 < len(toks); i++ {
			if toks[i] == "MERGE" && toks[i+1] == "INTO" && i+2 < len(toks) {
				if isTableIdent(toks[i+2]) {
					add(toks[i+2], ir.RwWrite)
				}
				break
			}
		}
		for i := 0; i < len(toks); i++ {
			if toks[i] != "USING" {
				continue
			}
			if i+1 < len(toks) && toks[i+1] == "(" {
				// Nested source select: its FROM/JOIN tables are reads.
				collectFromJoin(toks[i+1:], func(name string) { add(name, ir.RwRead) })
			} else if i+1 < len(toks) && isTableIdent(toks[i+1]) {
				add(toks[i+1], ir.RwRead)
			}
			break
		}
	}

	return usages
}

// CanonicalTable lower-cases a table identifier and strips any schema
// prefix separated by dots.
func CanonicalTable(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.Trim(name, ",)")
}

// collectFromJoin walks a token stream and reports the table names of every
// FROM list and JOIN clause. Aliases after table names are dropped.
func collectFromJoin(toks []string, report func(string)) {
	for i := 0; i < len(toks); i++ {
		switch toks[i] {
		case "FROM":
			i = consumeTableList(toks, i+1, true, report)
		case "JOIN":
			i = consumeTableList(toks, i+1, false, report)
		}
	}
}

// consumeTableList reads `table [alias] [, table [alias]]...` starting at
// idx and returns the index of the last consumed token. With list=false only
// the first table (a JOIN target) is taken.
func consumeTableList(toks []string, idx int, list bool, report func(string)) int {
	expectTable := true
	for ; idx < len(toks); idx++ {
		tok := toks[idx]
		if tok == "," {
			if !list {
				return idx - 1
			}
			expectTable = true
			continue
		}
		if tok == ";" || tok == ")" || clauseStops[tok] {
			return idx - 1
		}
		if tok == "(" {
			// Derived table: skip; any nested FROM is handled by the caller's scan.
			return idx - 1
		}
		if expectTable && isTableIdent(tok) {
			report(tok)
			expectTable = false
			if !list {
				return idx
			}
			continue
		}
		// alias or host variable: dropped
	}
	return idx - 1
}

func identAfter(toks []string, keyword string) (string, bool) {
	for i := 0; i+1 < len(toks); i++ {
		if toks[i] == keyword && isTableIdent(toks[i+1]) {
			return toks[i+1], true
		}
	}
	return "", false
}

func containsWord(toks []string, word string) bool {
	for _, t := range toks {
		if t == word {
			return true
		}
	}
	return false
}

// isTableIdent reports whether tok can name a table: a bare or dotted
// identifier that is not a literal, host marker, or punctuation.
func isTableIdent(tok string) bool {
	if tok == "" || tok == ":?" {
		return false
	}
	ch := tok[0]
	if !(ch == '_' || (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')) {
		return false
	}
	switch tok {
	case "SELECT", "FROM", "INTO", "AS", "DISTINCT", "ALL", "TOP":
		return false
	}
	return !clauseStops[tok]
}

// scan splits a normalized statement into word and punctuation tokens,
// keeping string literals intact.
func scan(norm string) []string {
	var toks []string
	i := 0
	n := len(norm)
	for i < n {
		ch := norm[i]
		switch {
		case ch == ' ':
			i++
		case ch == '\'' || ch == '"':
			quote := ch
			start := i
			i++
			for i < n {
				if norm[i] == quote {
					if i+1 < n && norm[i+1] == quote {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			toks = append(toks, norm[start:i])
		case ch == ':' && i+1 < n && norm[i+1] == '?':
			toks = append(toks, ":?")
			i += 2
		case isWordPart(ch) || ch == '.':
			start := i
			for i < n && (isWordPart(norm[i]) || norm[i] == '.' || norm[i] == '$' || norm[i] == '#') {
				i++
			}
			toks = append(toks, norm[start:i])
		default:
			toks = append(toks, string(ch))
			i++
		}
	}
	return toks
}

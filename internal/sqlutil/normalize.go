package sqlutil

import (
	"strings"

	"github.com/screenlens/screenlens/internal/ir"
)

// Normalize produces the canonical sql_text_norm form of a statement:
// comments stripped, whitespace collapsed, tokens uppercased outside string
// literals, host variables replaced with ":?", trailing semicolon removed.
// Normalizing an already-normalized text yields the same string.
func Normalize(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	i := 0
	n := len(sql)
	pendingSpace := false

	writeSpace := func() {
		if b.Len() > 0 {
			pendingSpace = true
		}
	}
	emit := func(ch byte) {
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteByte(ch)
	}

	for i < n {
		ch := sql[i]

		switch {
		case ch == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
			writeSpace()

		case ch == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			if i+1 < n {
				i += 2
			} else {
				i = n
			}
			writeSpace()

		case ch == '\'' || ch == '"':
			quote := ch
			emit(ch)
			i++
			for i < n {
				emit(sql[i])
				if sql[i] == quote {
					if i+1 < n && sql[i+1] == quote {
						i++
						emit(sql[i])
						i++
						continue
					}
					i++
					break
				}
				i++
			}

		case ch == ':' && i+1 < n && isWordStart(sql[i+1]):
			emit(':')
			emit('?')
			i++
			for i < n && isWordPart(sql[i]) {
				i++
			}

		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			writeSpace()
			i++

		default:
			if ch >= 'a' && ch <= 'z' {
				emit(ch - ('a' - 'A'))
			} else {
				emit(ch)
			}
			i++
		}
	}

	out := strings.TrimSpace(b.String())
	out = strings.TrimSuffix(out, ";")
	return strings.TrimSpace(out)
}

// KindOf classifies a normalized statement by its first keyword.
func KindOf(norm string) ir.SqlKind {
	first := norm
	if idx := strings.IndexByte(first, ' '); idx > 0 {
		first = first[:idx]
	}
	switch first {
	case "SELECT":
		return ir.KindSelect
	case "INSERT":
		return ir.KindInsert
	case "UPDATE":
		return ir.KindUpdate
	case "DELETE":
		return ir.KindDelete
	case "MERGE":
		return ir.KindMerge
	}
	return ir.KindOther
}

func isWordStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isWordPart(ch byte) bool {
	return isWordStart(ch) || (ch >= '0' && ch <= '9')
}

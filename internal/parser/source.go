package parser

import (
	"fmt"
	"strings"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/internal/lexer"
)

// base-class words of the type preamble; a known word overrides the object
// kind taken from the manifest or the extension.
var baseKinds = map[string]ir.ObjectType{
	"window":          ir.TypeScreen,
	"userobject":      ir.TypeUserObject,
	"menu":            ir.TypeMenu,
	"datawindow":      ir.TypeDataGrid,
	"function_object": ir.TypeFunction,
}

// ParseSource parses a non-descriptor source file into its shallow model.
// Parse errors are recovered at statement boundaries; the file is abandoned
// once maxErrors is reached.
func ParseSource(input FileInput, maxErrors int) *ParsedFile {
	text, enc := lexer.Decode(input.Content)

	kind := input.Type
	if !ir.ValidObjectType(kind) || kind == "" {
		kind = DetectKind(input.Path, input.Content)
	}

	pf := &ParsedFile{
		Object: ir.Object{
			Type:       kind,
			Name:       ObjectName(input),
			Module:     input.Module,
			SourcePath: input.Path,
		},
		Encoding: enc,
	}

	if ratio := lexer.MojibakeRatio(text); ratio > 0.005 {
		pf.Issues = append(pf.Issues, Issue{
			File:    input.Path,
			Message: fmt.Sprintf("mojibake ratio %.3f after %s decode", ratio, enc),
		})
	}

	p := &srcParser{
		toks:      lexer.New(text).Tokenize(),
		file:      input.Path,
		maxErrors: maxErrors,
		pf:        pf,
	}
	p.parse()

	for i := range pf.Events {
		ev := &pf.Events[i]
		pf.CallSites = append(pf.CallSites, ScanCallSites(ev.Body, ev.Name)...)
		pf.EmbeddedSql = append(pf.EmbeddedSql, collectSqlBlocks(ev.Body, ev.Name, p)...)
	}
	for i := range pf.Functions {
		fn := &pf.Functions[i]
		pf.CallSites = append(pf.CallSites, ScanCallSites(fn.Body, fn.Name)...)
		pf.EmbeddedSql = append(pf.EmbeddedSql, collectSqlBlocks(fn.Body, fn.Name, p)...)
	}

	return pf
}

type srcParser struct {
	toks      []lexer.Token
	idx       int
	file      string
	maxErrors int
	pf        *ParsedFile
}

func (p *srcParser) parse() {
	for !p.done() {
		tok := p.peek()

		switch {
		case tok.Type == lexer.TokNewline || tok.Type == lexer.TokComment:
			p.idx++

		case tok.Type == lexer.TokKeyword && tok.Value == "forward":
			p.skipBlock("forward")

		case tok.Type == lexer.TokKeyword && tok.Value == "type":
			p.parseTypeBlock()

		case tok.Type == lexer.TokKeyword && (tok.Value == "event" || tok.Value == "on"):
			p.parseEvent(tok.Value)

		case tok.Type == lexer.TokKeyword && isAccessWord(tok.Value):
			p.idx++

		case tok.Type == lexer.TokKeyword && (tok.Value == "function" || tok.Value == "subroutine"):
			p.parseFunction(tok.Value)

		case tok.Type == lexer.TokKeyword && tok.Value == "global":
			p.idx++

		case tok.Type == lexer.TokSqlBlockStart:
			// Top-level SQL outside any event or function body: tolerated,
			// attributed to the object itself.
			p.collectTopLevelSql()

		case tok.Type == lexer.TokEof:
			return

		default:
			p.errorf(tok, "unexpected %q at top level", tok.Value)
			if p.pf.Abandoned {
				return
			}
			p.recover()
		}
	}
}

// parseTypeBlock handles the `type NAME from BASE ... end type` preamble,
// refining the object kind from the base word when it is known.
func (p *srcParser) parseTypeBlock() {
	start := p.next() // type
	name, ok := p.expectIdent()
	if !ok {
		p.errorf(start, "type declaration without a name")
		p.recover()
		return
	}

	if p.peek().Type == lexer.TokKeyword && p.peek().Value == "from" {
		p.idx++
		if base, ok := p.expectIdentOrKeyword(); ok {
			if kind, known := baseKinds[base]; known {
				p.pf.Object.Type = kind
			}
			if strings.EqualFold(name, p.pf.Object.Name) || p.pf.Object.Name == "" {
				p.pf.Object.Name = strings.ToLower(name)
			}
		}
	}

	p.skipBlock("type")
}

func (p *srcParser) parseEvent(opener string) {
	start := p.next() // event | on
	// Event names share spelling with keywords (open, close, create).
	name, ok := p.expectIdentOrKeyword()
	if !ok {
		p.errorf(start, "%s declaration without a name", opener)
		p.recover()
		return
	}
	// An optional `;` closes the declaration line; the body follows up to
	// `end event` or `end on`.
	if p.peek().Type == lexer.TokPunct && p.peek().Value == ";" {
		p.idx++
	}

	body, terminated := p.collectBody("event", "on")
	if !terminated {
		p.errorf(start, "event %q not terminated before end of file", name)
	}

	p.pf.Events = append(p.pf.Events, Event{
		Name:      strings.ToLower(name),
		ScriptRef: fmt.Sprintf("%s:%d", p.file, start.Line),
		Body:      body,
	})
}

func (p *srcParser) parseFunction(opener string) {
	start := p.next() // function | subroutine

	// function <return-type> <name> ( args ) | subroutine <name> ( args )
	first, ok := p.expectIdentOrKeyword()
	if !ok {
		p.errorf(start, "%s declaration without a name", opener)
		p.recover()
		return
	}
	name := first
	if opener == "function" {
		if p.peek().Type == lexer.TokIdent {
			name = p.next().Value
		}
	}

	sig := p.collectSignature(opener, first, name)

	body, terminated := p.collectBody("function", "subroutine")
	if !terminated {
		p.errorf(start, "%s %q not terminated before end of file", opener, name)
	}

	p.pf.Functions = append(p.pf.Functions, Function{
		Name:      strings.ToLower(name),
		Signature: sig,
		Body:      body,
	})
}

// collectSignature re-assembles the declaration text up to the closing
// parenthesis of the argument list.
func (p *srcParser) collectSignature(opener, first, name string) string {
	parts := []string{opener, first}
	if name != first {
		parts = append(parts, name)
	}
	if p.peek().Type == lexer.TokPunct && p.peek().Value == "(" {
		depth := 0
		for !p.done() {
			tok := p.peek()
			if tok.Type == lexer.TokNewline {
				break
			}
			parts = append(parts, tok.Value)
			p.idx++
			if tok.Type == lexer.TokPunct {
				if tok.Value == "(" {
					depth++
				} else if tok.Value == ")" {
					depth--
					if depth == 0 {
						break
					}
				}
			}
		}
	}
	sig := strings.Join(parts, " ")
	if len(sig) > 200 {
		sig = sig[:200]
	}
	return sig
}

// collectBody gathers tokens until `end <closer>` for any of the given
// closers. Returns the span and whether the terminator was found.
func (p *srcParser) collectBody(closers ...string) ([]lexer.Token, bool) {
	var body []lexer.Token
	for !p.done() {
		tok := p.peek()
		if tok.Type == lexer.TokKeyword && tok.Value == "end" {
			nxt := p.peekAt(1)
			if nxt.Type == lexer.TokKeyword {
				for _, c := range closers {
					if nxt.Value == c {
						p.idx += 2
						return body, true
					}
				}
			}
		}
		if tok.Type == lexer.TokEof {
			return body, false
		}
		body = append(body, tok)
		p.idx++
	}
	return body, false
}

// skipBlock consumes tokens through `end <closer>`.
func (p *srcParser) skipBlock(closer string) {
	for !p.done() {
		tok := p.next()
		if tok.Type == lexer.TokKeyword && tok.Value == "end" {
			nxt := p.peek()
			if nxt.Type == lexer.TokKeyword && nxt.Value == closer {
				p.idx++
				return
			}
		}
		if tok.Type == lexer.TokEof {
			return
		}
	}
}

func (p *srcParser) collectTopLevelSql() {
	start := p.next() // SqlBlockStart
	if p.peek().Type == lexer.TokSqlBlockBody {
		body := p.next()
		text := strings.TrimSpace(start.Value + " " + body.Value)
		p.pf.EmbeddedSql = append(p.pf.EmbeddedSql, EmbeddedSql{
			Owner: p.pf.Object.Name,
			Text:  text,
			Line:  start.Line,
		})
		if p.peek().Type == lexer.TokSqlBlockEnd {
			p.idx++
		} else {
			p.errorf(start, "embedded SQL not terminated by semicolon")
		}
	}
}

// recover advances to the next statement boundary: a newline or a
// top-level semicolon.
func (p *srcParser) recover() {
	for !p.done() {
		tok := p.next()
		if tok.Type == lexer.TokNewline {
			return
		}
		if tok.Type == lexer.TokPunct && tok.Value == ";" {
			return
		}
		if tok.Type == lexer.TokEof {
			return
		}
	}
}

func (p *srcParser) errorf(at lexer.Token, format string, args ...any) {
	p.pf.Issues = append(p.pf.Issues, Issue{
		File:    p.file,
		Line:    at.Line,
		Col:     at.Col,
		Message: fmt.Sprintf(format, args...),
	})
	if len(p.pf.Issues) >= p.maxErrors {
		p.pf.Abandoned = true
		p.idx = len(p.toks)
	}
}

func (p *srcParser) expectIdent() (string, bool) {
	if p.peek().Type == lexer.TokIdent {
		return p.next().Value, true
	}
	return "", false
}

func (p *srcParser) expectIdentOrKeyword() (string, bool) {
	tok := p.peek()
	if tok.Type == lexer.TokIdent || tok.Type == lexer.TokKeyword {
		p.idx++
		return tok.Value, true
	}
	return "", false
}

func (p *srcParser) peek() lexer.Token   { return p.peekAt(0) }
func (p *srcParser) done() bool          { return p.idx >= len(p.toks) }

func (p *srcParser) peekAt(off int) lexer.Token {
	if p.idx+off >= len(p.toks) {
		return lexer.Token{Type: lexer.TokEof}
	}
	return p.toks[p.idx+off]
}

func (p *srcParser) next() lexer.Token {
	tok := p.peek()
	if p.idx < len(p.toks) {
		p.idx++
	}
	return tok
}

func isAccessWord(word string) bool {
	switch word {
	case "public", "private", "protected", "shared":
		return true
	}
	return false
}

// collectSqlBlocks re-scans a body token span for SqlBlock tokens and
// reassembles each contiguous block verbatim.
func collectSqlBlocks(body []lexer.Token, owner string, p *srcParser) []EmbeddedSql {
	var out []EmbeddedSql
	for i := 0; i < len(body); i++ {
		if body[i].Type != lexer.TokSqlBlockStart {
			continue
		}
		start := body[i]
		if i+1 < len(body) && body[i+1].Type == lexer.TokSqlBlockBody {
			text := strings.TrimSpace(start.Value + " " + body[i+1].Value)
			out = append(out, EmbeddedSql{Owner: owner, Text: text, Line: start.Line})
			i++
			if i+1 < len(body) && body[i+1].Type == lexer.TokSqlBlockEnd {
				i++
			} else if p != nil {
				p.errorf(start, "embedded SQL not terminated by semicolon")
			}
		}
	}
	return out
}

package parser

import (
	"strings"

	"github.com/screenlens/screenlens/internal/lexer"
)

// words that look like calls but never are.
var callStopWords = map[string]bool{
	"if": true, "while": true, "for": true, "choose": true, "case": true,
	"return": true, "messagebox": true, "create": true, "destroy": true,
	"halt": true, "describe": true, "modify": true, "super": true,
	"parent": true, "this": true,
}

// ScanCallSites walks an event/function body token span and detects
// screen-open, event-trigger, function-call, and data-grid-use sites.
func ScanCallSites(body []lexer.Token, caller string) []CallSite {
	var sites []CallSite

	for i := 0; i < len(body); i++ {
		tok := body[i]

		switch {
		case tok.Type == lexer.TokKeyword && (tok.Value == "open" || tok.Value == "openwithparm"):
			if callee, ok := firstParenIdent(body, i+1); ok {
				sites = append(sites, CallSite{
					Caller: caller, Callee: callee, Kind: CallScreenOpen, Line: tok.Line,
				})
			}

		case tok.Type == lexer.TokKeyword && tok.Value == "triggerevent":
			if callee, ok := triggerEventArg(body, i+1); ok {
				sites = append(sites, CallSite{
					Caller: caller, Callee: callee, Kind: CallEventTrigger, Line: tok.Line,
				})
			}

		case tok.Type == lexer.TokKeyword && tok.Value == "trigger":
			// `trigger event ue_x` statement form.
			if i+2 < len(body) &&
				body[i+1].Type == lexer.TokKeyword && body[i+1].Value == "event" &&
				body[i+2].Type == lexer.TokIdent {
				sites = append(sites, CallSite{
					Caller: caller, Callee: body[i+2].Value, Kind: CallEventTrigger, Line: tok.Line,
				})
				i += 2
			}

		case tok.Type == lexer.TokIdent:
			if strings.HasPrefix(tok.Value, "dw_") && followedBy(body, i+1, ".") {
				sites = append(sites, CallSite{
					Caller: caller, Callee: tok.Value, Kind: CallDataGridUse, Line: tok.Line,
				})
				continue
			}
			if callStopWords[tok.Value] {
				continue
			}
			// IDENT ( args ) is a function-call candidate; the analyzer
			// keeps only names declared somewhere in the run.
			if followedBy(body, i+1, "(") && !precededBy(body, i-1, ".") {
				sites = append(sites, CallSite{
					Caller: caller, Callee: tok.Value, Kind: CallFunction, Line: tok.Line,
				})
			}
		}
	}

	return sites
}

// firstParenIdent matches `( IDENT` starting at idx, returning the
// identifier. Used for open(w_x) and openwithparm(w_x, parm).
func firstParenIdent(body []lexer.Token, idx int) (string, bool) {
	if idx < len(body) && body[idx].Type == lexer.TokPunct && body[idx].Value == "(" {
		if idx+1 < len(body) && body[idx+1].Type == lexer.TokIdent {
			return body[idx+1].Value, true
		}
	}
	return "", false
}

// triggerEventArg extracts the event name from `triggerevent("ue_x")` or
// `triggerevent(target, "ue_x")`. Both forms resolve to the same event.
func triggerEventArg(body []lexer.Token, idx int) (string, bool) {
	if idx >= len(body) || body[idx].Type != lexer.TokPunct || body[idx].Value != "(" {
		return "", false
	}
	depth := 0
	for i := idx; i < len(body); i++ {
		tok := body[i]
		if tok.Type == lexer.TokPunct {
			switch tok.Value {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					return "", false
				}
			}
		}
		if tok.Type == lexer.TokString && depth >= 1 {
			return strings.ToLower(Unquote(tok.Value)), true
		}
	}
	return "", false
}

func followedBy(body []lexer.Token, idx int, punct string) bool {
	return idx < len(body) && body[idx].Type == lexer.TokPunct && body[idx].Value == punct
}

func precededBy(body []lexer.Token, idx int, punct string) bool {
	return idx >= 0 && body[idx].Type == lexer.TokPunct && body[idx].Value == punct
}

// Unquote strips the surrounding quotes of a string token and resolves
// doubled-quote escapes.
func Unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	quote := raw[0]
	if raw[len(raw)-1] != quote {
		return raw[1:]
	}
	inner := raw[1 : len(raw)-1]
	return strings.ReplaceAll(inner, string(quote)+string(quote), string(quote))
}

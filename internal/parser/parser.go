package parser

import (
	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/internal/lexer"
)

// FileInput is one extracted source file to be parsed.
type FileInput struct {
	Path    string
	Content []byte
	// Type overrides extension-based kind detection when the manifest
	// already classified the object.
	Type   ir.ObjectType
	Name   string
	Module string
}

// Issue is a recovered parse error. Parsing continues past it.
type Issue struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// Event is a named handler with its body kept as a token span.
type Event struct {
	Name      string
	ScriptRef string
	Body      []lexer.Token
}

// Function is a named callable with its signature and body token span.
type Function struct {
	Name      string
	Signature string
	Body      []lexer.Token
}

// EmbeddedSql is one contiguous SQL block found inside an event or
// function body. Owner is the enclosing event or function name.
type EmbeddedSql struct {
	Owner string
	Text  string
	Line  int
}

// CallSiteKind classifies a detected call site.
type CallSiteKind string

const (
	CallFunction     CallSiteKind = "function-call"
	CallScreenOpen   CallSiteKind = "screen-open"
	CallEventTrigger CallSiteKind = "event-trigger"
	CallDataGridUse  CallSiteKind = "data-grid-use"
)

// CallSite is a reference from an event or function body to another name.
type CallSite struct {
	Caller string
	Callee string
	Kind   CallSiteKind
	Line   int
}

// ParsedFile is the shallow syntactic model of one source file.
type ParsedFile struct {
	Object      ir.Object
	Events      []Event
	Functions   []Function
	EmbeddedSql []EmbeddedSql
	CallSites   []CallSite
	Issues      []Issue
	// Abandoned marks a file that exceeded the per-file error cap.
	Abandoned bool
	Encoding  string
}

// ParsedDataWindow is the result of parsing a data-grid descriptor.
type ParsedDataWindow struct {
	ObjectName string
	DWName     string
	BaseTable  string
	SqlSelect  string
	Module     string
	SourcePath string
	Issues     []Issue
}

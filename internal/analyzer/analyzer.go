package analyzer

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/internal/parser"
	"github.com/screenlens/screenlens/internal/rules"
	"github.com/screenlens/screenlens/internal/sqlutil"
)

// Default confidences per call-site kind.
const (
	confCalls        = 0.85
	confOpens        = 0.95
	confTriggerEvent = 0.70
	confUsesDW       = 0.90
	confTableUse     = 0.90
)

// Diagnostic records a call site whose callee could not be resolved.
// No relation is emitted for it.
type Diagnostic struct {
	Object string
	Callee string
	Kind   parser.CallSiteKind
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("unresolved callee %q (%s) in %s", d.Callee, d.Kind, d.Object)
}

// Result is the analyzer output: the persistable record set plus
// resolution diagnostics.
type Result struct {
	Analysis   *ir.Analysis
	Unresolved []Diagnostic
}

// Analyzer derives typed relations and SQL records from parsed files.
// It runs single-tasked after all files of the run are parsed, because it
// needs the global function/object directory.
type Analyzer struct {
	rules  *rules.Config
	logger *slog.Logger
}

func New(cfg *rules.Config, logger *slog.Logger) *Analyzer {
	if cfg == nil {
		cfg = rules.Default()
	}
	return &Analyzer{rules: cfg, logger: logger}
}

// directory indexes every declared name of the run for callee resolution.
// Lookups are case-insensitive; ambiguous names keep all candidates.
type directory struct {
	functions map[string][]string // function name -> owning object names
	objects   map[string][]string // object name -> object names (declared spelling)
	events    map[string][]string // event name -> owning object names
	dataGrids map[string][]string // data-grid name -> object names
}

// Analyze builds the IR record set for one run.
func (a *Analyzer) Analyze(files []*parser.ParsedFile, dataWindows []*parser.ParsedDataWindow) *Result {
	live := files[:0:0]
	for _, pf := range files {
		if pf != nil && !pf.Abandoned {
			live = append(live, pf)
		}
	}

	res := &Result{Analysis: &ir.Analysis{}}
	an := res.Analysis

	dir := buildDirectory(live, dataWindows)
	rel := newRelationSet()
	tables := map[string]bool{}

	for _, pf := range live {
		an.Objects = append(an.Objects, pf.Object)

		for _, ev := range pf.Events {
			an.Events = append(an.Events, ir.Event{
				ObjectName: pf.Object.Name,
				EventName:  ev.Name,
				ScriptRef:  ev.ScriptRef,
			})
		}
		for _, fn := range pf.Functions {
			an.Functions = append(an.Functions, ir.Function{
				ObjectName:   pf.Object.Name,
				FunctionName: fn.Name,
				Signature:    fn.Signature,
			})
		}
	}

	for _, dw := range dataWindows {
		if dw == nil {
			continue
		}
		an.Objects = append(an.Objects, ir.Object{
			Type:       ir.TypeDataGrid,
			Name:       dw.ObjectName,
			Module:     dw.Module,
			SourcePath: dw.SourcePath,
		})
		an.DataWindows = append(an.DataWindows, ir.DataWindow{
			ObjectName: dw.ObjectName,
			DWName:     dw.DWName,
			BaseTable:  dw.BaseTable,
			SqlSelect:  dw.SqlSelect,
		})
	}

	// Call sites against the global directory.
	for _, pf := range live {
		for _, cs := range pf.CallSites {
			a.resolveCallSite(pf.Object.Name, cs, dir, rel, res)
		}
	}

	// Embedded SQL of events and functions. The enclosing object, not the
	// event or function, is the unit of relational reasoning.
	for _, pf := range live {
		seen := map[string]bool{}
		for _, emb := range pf.EmbeddedSql {
			stmt, ok := a.buildStatement(pf.Object.Name, emb.Text, seen)
			if !ok {
				continue
			}
			an.SqlStatements = append(an.SqlStatements, stmt)
			a.emitTableRelations(pf.Object.Name, stmt, rel, tables)
		}
	}

	// Descriptor SQL runs through the same pipeline; the data grid itself
	// owns the statement. An update base table is a write target.
	for _, dw := range dataWindows {
		if dw == nil {
			continue
		}
		if dw.SqlSelect != "" {
			seen := map[string]bool{}
			if stmt, ok := a.buildStatement(dw.ObjectName, dw.SqlSelect, seen); ok {
				an.SqlStatements = append(an.SqlStatements, stmt)
				a.emitTableRelations(dw.ObjectName, stmt, rel, tables)
			}
		}
		if dw.BaseTable != "" {
			name := sqlutil.CanonicalTable(dw.BaseTable)
			if name != "" && !a.rules.TableExcluded(name) {
				tables[name] = true
				rel.add(dw.ObjectName, name, ir.RelWritesTable, confTableUse)
			}
		}
	}

	// Materialize one Table object per referenced table. Tables carry no
	// source path.
	tableNames := make([]string, 0, len(tables))
	for name := range tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)
	for _, name := range tableNames {
		an.Objects = append(an.Objects, ir.Object{
			Type:   ir.TypeTable,
			Name:   name,
			Module: "db",
		})
	}

	an.Relations = rel.sorted()

	for _, pf := range live {
		for _, issue := range pf.Issues {
			an.Warnings = append(an.Warnings, fmt.Sprintf("parse issue: %s (%s)", pf.Object.Name, issue.Message))
		}
	}

	if a.logger != nil {
		a.logger.Info("analysis complete",
			slog.Int("objects", len(an.Objects)),
			slog.Int("relations", len(an.Relations)),
			slog.Int("sql_statements", len(an.SqlStatements)),
			slog.Int("unresolved", len(res.Unresolved)))
	}

	return res
}

func (a *Analyzer) resolveCallSite(src string, cs parser.CallSite, dir *directory, rel *relationSet, res *Result) {
	callee := strings.ToLower(cs.Callee)

	switch cs.Kind {
	case parser.CallFunction:
		// Candidates that match no declared function are ordinary built-in
		// calls, not diagnostics.
		owners := dir.functions[callee]
		for _, owner := range owners {
			rel.add(src, owner, ir.RelCalls, confCalls/float64(len(owners)))
		}

	case parser.CallScreenOpen:
		targets := dir.objects[callee]
		if len(targets) == 0 {
			res.Unresolved = append(res.Unresolved, Diagnostic{Object: src, Callee: cs.Callee, Kind: cs.Kind})
			return
		}
		for _, dst := range targets {
			rel.add(src, dst, ir.RelOpens, confOpens/float64(len(targets)))
		}

	case parser.CallEventTrigger:
		owners := dir.events[callee]
		if len(owners) == 0 {
			res.Unresolved = append(res.Unresolved, Diagnostic{Object: src, Callee: cs.Callee, Kind: cs.Kind})
			return
		}
		for _, owner := range owners {
			rel.add(src, owner, ir.RelTriggersEvent, confTriggerEvent/float64(len(owners)))
		}

	case parser.CallDataGridUse:
		targets := dir.dataGrids[callee]
		if len(targets) == 0 {
			res.Unresolved = append(res.Unresolved, Diagnostic{Object: src, Callee: cs.Callee, Kind: cs.Kind})
			return
		}
		for _, dst := range targets {
			rel.add(src, dst, ir.RelUsesDW, confUsesDW/float64(len(targets)))
		}
	}
}

// buildStatement normalizes a SQL text and extracts its table usages.
// Duplicate (kind, text) statements of the same owner collapse.
func (a *Analyzer) buildStatement(owner, text string, seen map[string]bool) (ir.SqlStatement, bool) {
	norm := sqlutil.Normalize(text)
	if norm == "" {
		return ir.SqlStatement{}, false
	}
	kind := sqlutil.KindOf(norm)

	key := string(kind) + "\x00" + norm
	if seen[key] {
		return ir.SqlStatement{}, false
	}
	seen[key] = true

	usages := sqlutil.ExtractTables(kind, norm, a.rules.TableExcluded)

	return ir.SqlStatement{
		OwnerName:   owner,
		SqlKind:     kind,
		SqlTextNorm: norm,
		Tables:      usages,
	}, true
}

func (a *Analyzer) emitTableRelations(owner string, stmt ir.SqlStatement, rel *relationSet, tables map[string]bool) {
	for _, usage := range stmt.Tables {
		tables[usage.TableName] = true
		relType := ir.RelReadsTable
		if usage.RwType == ir.RwWrite {
			relType = ir.RelWritesTable
		}
		rel.add(owner, usage.TableName, relType, confTableUse)
	}
}

func buildDirectory(files []*parser.ParsedFile, dataWindows []*parser.ParsedDataWindow) *directory {
	dir := &directory{
		functions: map[string][]string{},
		objects:   map[string][]string{},
		events:    map[string][]string{},
		dataGrids: map[string][]string{},
	}

	appendUnique := func(m map[string][]string, key, value string) {
		for _, v := range m[key] {
			if v == value {
				return
			}
		}
		m[key] = append(m[key], value)
	}

	for _, pf := range files {
		name := strings.ToLower(pf.Object.Name)
		appendUnique(dir.objects, name, pf.Object.Name)
		if pf.Object.Type == ir.TypeDataGrid {
			appendUnique(dir.dataGrids, name, pf.Object.Name)
		}
		for _, fn := range pf.Functions {
			appendUnique(dir.functions, strings.ToLower(fn.Name), pf.Object.Name)
		}
		for _, ev := range pf.Events {
			appendUnique(dir.events, strings.ToLower(ev.Name), pf.Object.Name)
		}
	}
	for _, dw := range dataWindows {
		if dw == nil {
			continue
		}
		name := strings.ToLower(dw.ObjectName)
		appendUnique(dir.objects, name, dw.ObjectName)
		appendUnique(dir.dataGrids, name, dw.ObjectName)
	}

	return dir
}

// relationSet deduplicates relations by (src, dst, type), retaining the
// maximum observed confidence.
type relationSet struct {
	byKey map[string]ir.Relation
}

func newRelationSet() *relationSet {
	return &relationSet{byKey: map[string]ir.Relation{}}
}

func (rs *relationSet) add(src, dst string, relType ir.RelationType, confidence float64) {
	key := strings.ToLower(src) + "\x00" + strings.ToLower(dst) + "\x00" + string(relType)
	if existing, ok := rs.byKey[key]; ok && existing.Confidence >= confidence {
		return
	}
	rs.byKey[key] = ir.Relation{
		SrcName:      src,
		DstName:      dst,
		RelationType: relType,
		Confidence:   confidence,
	}
}

func (rs *relationSet) sorted() []ir.Relation {
	keys := make([]string, 0, len(rs.byKey))
	for k := range rs.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ir.Relation, 0, len(keys))
	for _, k := range keys {
		out = append(out, rs.byKey[k])
	}
	return out
}

package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/screenlens/screenlens/internal/store"
	"github.com/screenlens/screenlens/pkg/runerr"
)

// Row is one report row as column name to value.
type Row = map[string]any

// reportSet holds the five standard reports in render order.
type reportSet struct {
	names []string
	data  map[string][]Row
}

// Generate renders the standard reports of a run into outDir in the given
// format (csv, json or html) and returns the written file paths.
func Generate(ctx context.Context, s *store.Store, runID, outDir, format string) ([]string, error) {
	format = strings.ToLower(format)
	switch format {
	case "csv", "json", "html":
	default:
		return nil, runerr.Newf(runerr.CodeInput, "unsupported report format %q", format)
	}

	set, err := collect(ctx, s, runID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	switch format {
	case "json":
		return writeJSON(set, outDir)
	case "csv":
		return writeCSV(set, outDir)
	default:
		return writeHTML(set, outDir, runID)
	}
}

func collect(ctx context.Context, s *store.Store, runID string) (*reportSet, error) {
	const limit = 2000

	set := &reportSet{data: map[string][]Row{}}
	add := func(name string, rows []Row) {
		set.names = append(set.names, name)
		set.data[name] = rows
	}

	objects, err := s.ListObjects(ctx, runID, "", "", limit)
	if err != nil {
		return nil, err
	}
	add("object_inventory", mapRows(objects, func(r store.ObjectRow) Row {
		return Row{"type": r.Type, "name": r.Name, "module": r.Module, "source_path": r.SourcePath}
	}))

	events, err := s.EventFunctionMap(ctx, runID, limit)
	if err != nil {
		return nil, err
	}
	add("event_function_map", mapRows(events, func(r store.EventFunctionRow) Row {
		return Row{"object_name": r.ObjectName, "event_name": r.EventName,
			"script_ref": r.ScriptRef, "called_objects": r.CalledObjects}
	}))

	impact, err := s.TableImpact(ctx, runID, "", limit)
	if err != nil {
		return nil, err
	}
	add("table_impact", mapRows(impact, func(r store.TableImpactRow) Row {
		return Row{"table_name": r.TableName, "rw_type": r.RwType,
			"owner_object": r.OwnerObject, "sql_kind": r.SqlKind}
	}))

	graph, err := s.ScreenCallGraph(ctx, runID, "", limit)
	if err != nil {
		return nil, err
	}
	add("screen_call_graph", mapRows(graph, func(r store.RelationRow) Row {
		return Row{"src_name": r.SrcName, "dst_name": r.DstName,
			"relation_type": r.RelationType, "confidence": r.Confidence}
	}))

	unused, err := s.UnusedObjectCandidates(ctx, runID, limit)
	if err != nil {
		return nil, err
	}
	add("unused_object_candidates", mapRows(unused, func(r store.ObjectRow) Row {
		return Row{"type": r.Type, "name": r.Name, "module": r.Module, "source_path": r.SourcePath}
	}))

	return set, nil
}

func mapRows[T any](in []T, conv func(T) Row) []Row {
	out := make([]Row, 0, len(in))
	for _, item := range in {
		out = append(out, conv(item))
	}
	return out
}

func writeJSON(set *reportSet, outDir string) ([]string, error) {
	var files []string
	for _, name := range set.names {
		path := filepath.Join(outDir, name+".json")
		data, err := json.MarshalIndent(set.data[name], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func writeCSV(set *reportSet, outDir string) ([]string, error) {
	var files []string
	for _, name := range set.names {
		path := filepath.Join(outDir, name+".csv")
		if err := writeCSVFile(path, set.data[name]); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func writeCSVFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	headers := headerOrder(rows)
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = fmt.Sprint(row[h])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func headerOrder(rows []Row) []string {
	if len(rows) == 0 {
		return []string{"empty"}
	}
	headers := make([]string, 0, len(rows[0]))
	for h := range rows[0] {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	return headers
}

func writeHTML(set *reportSet, outDir, runID string) ([]string, error) {
	path := filepath.Join(outDir, "report.html")

	var b strings.Builder
	b.WriteString("<!doctype html>\n<html lang='en'>\n<head>\n")
	b.WriteString("  <meta charset='utf-8' />\n")
	b.WriteString("  <title>screenlens report</title>\n")
	b.WriteString("  <style>\n")
	b.WriteString("    body { font-family: sans-serif; margin: 24px; }\n")
	b.WriteString("    table { border-collapse: collapse; width: 100%; margin-bottom: 24px; }\n")
	b.WriteString("    th, td { border: 1px solid #ccc; padding: 8px; text-align: left; }\n")
	b.WriteString("    th { background: #f5f5f5; }\n")
	b.WriteString("  </style>\n</head>\n<body>\n")
	fmt.Fprintf(&b, "  <h1>screenlens report</h1>\n  <p>run %s</p>\n", html.EscapeString(runID))

	for _, name := range set.names {
		fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(titleCase(name)))
		renderTable(&b, set.data[name])
	}

	b.WriteString("</body>\n</html>\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return []string{path}, nil
}

func titleCase(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func renderTable(b *strings.Builder, rows []Row) {
	if len(rows) == 0 {
		b.WriteString("<p>No data.</p>\n")
		return
	}
	headers := headerOrder(rows)

	b.WriteString("<table><thead><tr>")
	for _, h := range headers {
		fmt.Fprintf(b, "<th>%s</th>", html.EscapeString(h))
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, h := range headers {
			fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(fmt.Sprint(row[h])))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>\n")
}

package store

import (
	"context"
	"fmt"
	"sort"
)

// DiffItem is one added or removed record between two runs.
type DiffItem struct {
	Category   string `json:"category"` // object | relation | sql_statement | data_window
	Key        string `json:"key"`
	ChangeType string `json:"change_type"` // added | removed
}

// DiffResult is the run comparison output. Changed is always empty: a
// modified record shows as one removal plus one addition when any key
// component differs.
type DiffResult struct {
	RunOld  string     `json:"run_old"`
	RunNew  string     `json:"run_new"`
	Added   []DiffItem `json:"added"`
	Removed []DiffItem `json:"removed"`
	Changed []DiffItem `json:"changed"`
}

// Diff computes the four set differences between two runs: objects by
// (type, name), relations by endpoint keys and type, SQL statements by
// (owner, kind, normalized text), data windows by (owner, name, base table).
func (s *Store) Diff(ctx context.Context, runOld, runNew string) (*DiffResult, error) {
	if _, err := s.GetRun(ctx, runOld); err != nil {
		return nil, err
	}
	if _, err := s.GetRun(ctx, runNew); err != nil {
		return nil, err
	}

	res := &DiffResult{RunOld: runOld, RunNew: runNew, Changed: []DiffItem{}}

	categories := []struct {
		name  string
		query string
	}{
		{"object", `SELECT type || ':' || name AS key FROM objects WHERE run_id = ?`},
		{"relation", `
			SELECT src.type || ':' || src.name || '->' || dst.type || ':' || dst.name || ':' || r.relation_type AS key
			FROM relations r
			JOIN objects src ON src.id = r.src_id AND src.run_id = r.run_id
			JOIN objects dst ON dst.id = r.dst_id AND dst.run_id = r.run_id
			WHERE r.run_id = ?`},
		{"sql_statement", `
			SELECT o.name || ':' || ss.sql_kind || ':' || ss.sql_text_norm AS key
			FROM sql_statements ss
			JOIN objects o ON o.id = ss.owner_id AND o.run_id = ss.run_id
			WHERE ss.run_id = ?`},
		{"data_window", `
			SELECT o.name || ':' || dw.dw_name || ':' || dw.base_table AS key
			FROM data_windows dw
			JOIN objects o ON o.id = dw.object_id AND o.run_id = dw.run_id
			WHERE dw.run_id = ?`},
	}

	for _, cat := range categories {
		oldKeys, err := s.keySet(ctx, cat.query, runOld)
		if err != nil {
			return nil, fmt.Errorf("diff %s (%s): %w", cat.name, runOld, err)
		}
		newKeys, err := s.keySet(ctx, cat.query, runNew)
		if err != nil {
			return nil, fmt.Errorf("diff %s (%s): %w", cat.name, runNew, err)
		}

		for _, key := range sortedDifference(newKeys, oldKeys) {
			res.Added = append(res.Added, DiffItem{Category: cat.name, Key: key, ChangeType: "added"})
		}
		for _, key := range sortedDifference(oldKeys, newKeys) {
			res.Removed = append(res.Removed, DiffItem{Category: cat.name, Key: key, ChangeType: "removed"})
		}
	}

	return res, nil
}

func (s *Store) keySet(ctx context.Context, query, runID string) (map[string]bool, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, query, runID); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}

func sortedDifference(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

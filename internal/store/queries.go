package store

import (
	"context"
	"fmt"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/pkg/runerr"
)

// Row limits of the query surface.
const (
	DefaultLimit = 200
	minLimit     = 10
	maxLimit     = 2000
)

// ClampLimit forces a row limit into the supported range, substituting the
// default for zero.
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	if limit < minLimit {
		return minLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// ObjectRow is one object of the inventory query.
type ObjectRow struct {
	ID         int64  `db:"id" json:"id"`
	Type       string `db:"type" json:"type"`
	Name       string `db:"name" json:"name"`
	Module     string `db:"module" json:"module,omitempty"`
	SourcePath string `db:"source_path" json:"source_path,omitempty"`
}

// EventFunctionRow maps an event to the objects its owner calls.
type EventFunctionRow struct {
	ObjectName    string `db:"object_name" json:"object_name"`
	EventName     string `db:"event_name" json:"event_name"`
	ScriptRef     string `db:"script_ref" json:"script_ref,omitempty"`
	CalledObjects string `db:"called_objects" json:"called_objects,omitempty"`
}

// TableImpactRow is one (table, object, rw, kind) usage.
type TableImpactRow struct {
	TableName   string `db:"table_name" json:"table_name"`
	RwType      string `db:"rw_type" json:"rw_type"`
	OwnerObject string `db:"owner_object" json:"owner_object"`
	SqlKind     string `db:"sql_kind" json:"sql_kind"`
}

// RelationRow is one resolved relation edge with object names.
type RelationRow struct {
	SrcName      string  `db:"src_name" json:"src_name"`
	SrcType      string  `db:"src_type" json:"src_type"`
	DstName      string  `db:"dst_name" json:"dst_name"`
	DstType      string  `db:"dst_type" json:"dst_type"`
	RelationType string  `db:"relation_type" json:"relation_type"`
	Confidence   float64 `db:"confidence" json:"confidence"`
}

// DataWindowRow is one data-grid record with its owner name.
type DataWindowRow struct {
	ObjectName string `db:"object_name" json:"object_name"`
	DWName     string `db:"dw_name" json:"dw_name"`
	BaseTable  string `db:"base_table" json:"base_table,omitempty"`
	SqlSelect  string `db:"sql_select" json:"sql_select,omitempty"`
}

// ListObjects returns the object inventory of a run, optionally filtered
// by type and a case-insensitive name substring.
func (s *Store) ListObjects(ctx context.Context, runID string, objType, nameSearch string, limit int) ([]ObjectRow, error) {
	q := `SELECT id, type, name, module, source_path FROM objects WHERE run_id = ?`
	args := []any{runID}
	if objType != "" {
		q += ` AND type = ?`
		args = append(args, objType)
	}
	if nameSearch != "" {
		q += ` AND name LIKE ?`
		args = append(args, "%"+nameSearch+"%")
	}
	q += ` ORDER BY type, name LIMIT ?`
	args = append(args, ClampLimit(limit))

	var rows []ObjectRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return rows, nil
}

// EventFunctionMap lists, per object event, the names of the objects the
// owner calls.
func (s *Store) EventFunctionMap(ctx context.Context, runID string, limit int) ([]EventFunctionRow, error) {
	const q = `
		SELECT
		    o.name AS object_name,
		    e.event_name,
		    e.script_ref,
		    COALESCE(GROUP_CONCAT(DISTINCT dst.name), '') AS called_objects
		FROM events e
		JOIN objects o ON o.id = e.object_id
		LEFT JOIN relations r
		    ON r.src_id = o.id
		   AND r.run_id = e.run_id
		   AND r.relation_type = 'calls'
		LEFT JOIN objects dst ON dst.id = r.dst_id
		WHERE e.run_id = ?
		GROUP BY o.name, e.event_name, e.script_ref
		ORDER BY o.name, e.event_name
		LIMIT ?`

	var rows []EventFunctionRow
	if err := s.db.SelectContext(ctx, &rows, q, runID, ClampLimit(limit)); err != nil {
		return nil, fmt.Errorf("event function map: %w", err)
	}
	return rows, nil
}

// TableImpact lists, per table, the objects touching it with rw type and
// statement kind. tableName narrows to a single table.
func (s *Store) TableImpact(ctx context.Context, runID, tableName string, limit int) ([]TableImpactRow, error) {
	q := `
		SELECT
		    st.table_name,
		    st.rw_type,
		    owner.name AS owner_object,
		    ss.sql_kind
		FROM sql_tables st
		JOIN sql_statements ss ON ss.id = st.sql_id
		JOIN objects owner ON owner.id = ss.owner_id
		WHERE st.run_id = ?`
	args := []any{runID}
	if tableName != "" {
		q += ` AND st.table_name = ?`
		args = append(args, tableName)
	}
	q += ` ORDER BY st.table_name, owner.name, st.rw_type LIMIT ?`
	args = append(args, ClampLimit(limit))

	var rows []TableImpactRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("table impact: %w", err)
	}
	return rows, nil
}

// ScreenCallGraph lists opens/calls relations, optionally from one source.
func (s *Store) ScreenCallGraph(ctx context.Context, runID, srcName string, limit int) ([]RelationRow, error) {
	q := `
		SELECT
		    src.name AS src_name, src.type AS src_type,
		    dst.name AS dst_name, dst.type AS dst_type,
		    r.relation_type, r.confidence
		FROM relations r
		JOIN objects src ON src.id = r.src_id
		JOIN objects dst ON dst.id = r.dst_id
		WHERE r.run_id = ? AND r.relation_type IN ('opens', 'calls')`
	args := []any{runID}
	if srcName != "" {
		q += ` AND src.name = ?`
		args = append(args, srcName)
	}
	q += ` ORDER BY src.name, dst.name, r.relation_type LIMIT ?`
	args = append(args, ClampLimit(limit))

	var rows []RelationRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("screen call graph: %w", err)
	}
	return rows, nil
}

// UnusedObjectCandidates lists objects that take part in no relation and
// own no event or function. Tables are excluded; an unreferenced table
// cannot occur by construction.
func (s *Store) UnusedObjectCandidates(ctx context.Context, runID string, limit int) ([]ObjectRow, error) {
	const q = `
		SELECT o.id, o.type, o.name, o.module, o.source_path
		FROM objects o
		LEFT JOIN relations rs ON rs.src_id = o.id
		LEFT JOIN relations rd ON rd.dst_id = o.id
		LEFT JOIN events e ON e.object_id = o.id
		LEFT JOIN functions f ON f.object_id = o.id
		WHERE o.run_id = ?
		  AND rs.id IS NULL
		  AND rd.id IS NULL
		  AND e.id IS NULL
		  AND f.id IS NULL
		  AND o.type <> 'Table'
		GROUP BY o.id, o.type, o.name, o.module, o.source_path
		ORDER BY o.type, o.name
		LIMIT ?`

	var rows []ObjectRow
	if err := s.db.SelectContext(ctx, &rows, q, runID, ClampLimit(limit)); err != nil {
		return nil, fmt.Errorf("unused object candidates: %w", err)
	}
	return rows, nil
}

// DataWindows lists the run's data-grid records, optionally for one owner.
func (s *Store) DataWindows(ctx context.Context, runID, objectName string, limit int) ([]DataWindowRow, error) {
	q := `
		SELECT o.name AS object_name, dw.dw_name, dw.base_table, dw.sql_select
		FROM data_windows dw
		JOIN objects o ON o.id = dw.object_id
		WHERE dw.run_id = ?`
	args := []any{runID}
	if objectName != "" {
		q += ` AND o.name = ?`
		args = append(args, objectName)
	}
	q += ` ORDER BY o.name, dw.dw_name LIMIT ?`
	args = append(args, ClampLimit(limit))

	var rows []DataWindowRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("data windows: %w", err)
	}
	return rows, nil
}

// Runs lists known runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]ir.Run, error) {
	var rows []ir.Run
	err := s.db.SelectContext(ctx, &rows,
		`SELECT run_id, started_at, finished_at, status, COALESCE(source_version, '') AS source_version
		 FROM runs ORDER BY started_at DESC LIMIT ?`, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return rows, nil
}

// GetRun fetches one run row.
func (s *Store) GetRun(ctx context.Context, runID string) (*ir.Run, error) {
	var run ir.Run
	err := s.db.GetContext(ctx, &run,
		`SELECT run_id, started_at, finished_at, status, COALESCE(source_version, '') AS source_version
		 FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return nil, runerr.Newf(runerr.CodeInput, "run not found: %s", runID)
	}
	return &run, nil
}

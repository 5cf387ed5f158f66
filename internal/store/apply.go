package store

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/pkg/runerr"
)

// PersistResult reports the record counts written for a run.
type PersistResult struct {
	Objects       int
	Events        int
	Functions     int
	Relations     int
	SqlStatements int
	SqlTables     int
	DataWindows   int
}

// ApplyAnalysis persists every record of a run atomically, in dependency
// order: objects, events/functions/data windows, SQL statements, SQL
// tables, relations. Validation runs first; any invariant violation aborts
// before the transaction opens, and any store-level constraint violation
// rolls the whole run back.
func (s *Store) ApplyAnalysis(ctx context.Context, runID string, a *ir.Analysis) (*PersistResult, error) {
	if err := ir.Validate(a); err != nil {
		return nil, err
	}

	res := &PersistResult{}
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		ids := make(map[string]int64, len(a.Objects))

		for _, obj := range a.Objects {
			r, err := tx.ExecContext(ctx,
				`INSERT INTO objects (run_id, type, name, module, source_path)
				 VALUES (?, ?, ?, ?, ?)`,
				runID, obj.Type, obj.Name, obj.Module, obj.SourcePath)
			if err != nil {
				return runerr.Wrap(runerr.CodePersistence, "insert object "+obj.Name, err)
			}
			id, err := r.LastInsertId()
			if err != nil {
				return runerr.Wrap(runerr.CodePersistence, "object id", err)
			}
			key := strings.ToLower(obj.Name)
			if _, taken := ids[key]; !taken {
				ids[key] = id
			}
			res.Objects++
		}

		lookup := func(name string) (int64, bool) {
			id, ok := ids[strings.ToLower(name)]
			return id, ok
		}

		for _, ev := range a.Events {
			objID, ok := lookup(ev.ObjectName)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO events (run_id, object_id, event_name, script_ref) VALUES (?, ?, ?, ?)`,
				runID, objID, ev.EventName, ev.ScriptRef); err != nil {
				return runerr.Wrap(runerr.CodePersistence, "insert event "+ev.EventName, err)
			}
			res.Events++
		}

		for _, fn := range a.Functions {
			objID, ok := lookup(fn.ObjectName)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO functions (run_id, object_id, function_name, signature) VALUES (?, ?, ?, ?)`,
				runID, objID, fn.FunctionName, fn.Signature); err != nil {
				return runerr.Wrap(runerr.CodePersistence, "insert function "+fn.FunctionName, err)
			}
			res.Functions++
		}

		for _, dw := range a.DataWindows {
			objID, ok := lookup(dw.ObjectName)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO data_windows (run_id, object_id, dw_name, base_table, sql_select)
				 VALUES (?, ?, ?, ?, ?)`,
				runID, objID, dw.DWName, dw.BaseTable, dw.SqlSelect); err != nil {
				return runerr.Wrap(runerr.CodePersistence, "insert data window "+dw.DWName, err)
			}
			res.DataWindows++
		}

		for _, stmt := range a.SqlStatements {
			ownerID, ok := lookup(stmt.OwnerName)
			if !ok {
				continue
			}
			r, err := tx.ExecContext(ctx,
				`INSERT INTO sql_statements (run_id, owner_id, sql_kind, sql_text_norm)
				 VALUES (?, ?, ?, ?)`,
				runID, ownerID, stmt.SqlKind, stmt.SqlTextNorm)
			if err != nil {
				return runerr.Wrap(runerr.CodePersistence, "insert sql statement", err)
			}
			sqlID, err := r.LastInsertId()
			if err != nil {
				return runerr.Wrap(runerr.CodePersistence, "sql statement id", err)
			}
			res.SqlStatements++

			for _, usage := range stmt.Tables {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO sql_tables (run_id, sql_id, table_name, rw_type) VALUES (?, ?, ?, ?)`,
					runID, sqlID, usage.TableName, usage.RwType); err != nil {
					return runerr.Wrap(runerr.CodePersistence, "insert sql table "+usage.TableName, err)
				}
				res.SqlTables++
			}
		}

		for _, rel := range a.Relations {
			srcID, okSrc := lookup(rel.SrcName)
			dstID, okDst := lookup(rel.DstName)
			if !okSrc || !okDst {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO relations (run_id, src_id, dst_id, relation_type, confidence)
				 VALUES (?, ?, ?, ?, ?)`,
				runID, srcID, dstID, rel.RelationType, rel.Confidence); err != nil {
				return runerr.Wrap(runerr.CodePersistence, "insert relation", err)
			}
			res.Relations++
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

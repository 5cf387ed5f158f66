package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlens/screenlens/internal/ir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertRun(t *testing.T, s *Store, runID string) {
	t.Helper()
	require.NoError(t, s.InsertRun(context.Background(), ir.Run{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Status:    ir.RunRunning,
	}))
}

func sampleAnalysis() *ir.Analysis {
	return &ir.Analysis{
		Objects: []ir.Object{
			{Type: ir.TypeScreen, Name: "w_main", Module: "app", SourcePath: "w_main.srw"},
			{Type: ir.TypeDataGrid, Name: "dw_orders"},
			{Type: ir.TypeUserObject, Name: "u_calc"},
			{Type: ir.TypeMenu, Name: "m_idle"},
			{Type: ir.TypeTable, Name: "tb_orders", Module: "db"},
		},
		Events: []ir.Event{
			{ObjectName: "w_main", EventName: "open", ScriptRef: "w_main.srw:1"},
		},
		Functions: []ir.Function{
			{ObjectName: "u_calc", FunctionName: "f_total", Signature: "function integer f_total ( )"},
		},
		Relations: []ir.Relation{
			{SrcName: "w_main", DstName: "u_calc", RelationType: ir.RelCalls, Confidence: 0.85},
			{SrcName: "w_main", DstName: "dw_orders", RelationType: ir.RelUsesDW, Confidence: 0.9},
			{SrcName: "w_main", DstName: "tb_orders", RelationType: ir.RelReadsTable, Confidence: 0.9},
		},
		SqlStatements: []ir.SqlStatement{
			{OwnerName: "w_main", SqlKind: ir.KindSelect, SqlTextNorm: "SELECT A FROM TB_ORDERS",
				Tables: []ir.TableUsage{{TableName: "tb_orders", RwType: ir.RwRead}}},
		},
		DataWindows: []ir.DataWindow{
			{ObjectName: "dw_orders", DWName: "dw_orders", BaseTable: "tb_orders", SqlSelect: "SELECT A FROM TB_ORDERS"},
		},
	}
}

func TestApplyAndQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	insertRun(t, s, "run_1")

	res, err := s.ApplyAnalysis(ctx, "run_1", sampleAnalysis())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Objects)
	assert.Equal(t, 1, res.Events)
	assert.Equal(t, 1, res.Functions)
	assert.Equal(t, 3, res.Relations)
	assert.Equal(t, 1, res.SqlStatements)
	assert.Equal(t, 1, res.SqlTables)
	assert.Equal(t, 1, res.DataWindows)

	require.NoError(t, s.FinalizeRun(ctx, "run_1", ir.RunOK, time.Now().UTC()))

	objects, err := s.ListObjects(ctx, "run_1", "", "", 0)
	require.NoError(t, err)
	assert.Len(t, objects, 5)

	screens, err := s.ListObjects(ctx, "run_1", string(ir.TypeScreen), "", 0)
	require.NoError(t, err)
	require.Len(t, screens, 1)
	assert.Equal(t, "w_main", screens[0].Name)

	impact, err := s.TableImpact(ctx, "run_1", "tb_orders", 0)
	require.NoError(t, err)
	require.Len(t, impact, 1)
	assert.Equal(t, "w_main", impact[0].OwnerObject)
	assert.Equal(t, "READ", impact[0].RwType)
	assert.Equal(t, "SELECT", impact[0].SqlKind)

	graph, err := s.ScreenCallGraph(ctx, "run_1", "", 0)
	require.NoError(t, err)
	require.Len(t, graph, 1)
	assert.Equal(t, "u_calc", graph[0].DstName)

	efm, err := s.EventFunctionMap(ctx, "run_1", 0)
	require.NoError(t, err)
	require.Len(t, efm, 1)
	assert.Equal(t, "u_calc", efm[0].CalledObjects)

	unused, err := s.UnusedObjectCandidates(ctx, "run_1", 0)
	require.NoError(t, err)
	require.Len(t, unused, 1)
	assert.Equal(t, "m_idle", unused[0].Name)

	dws, err := s.DataWindows(ctx, "run_1", "", 0)
	require.NoError(t, err)
	require.Len(t, dws, 1)
	assert.Equal(t, "tb_orders", dws[0].BaseTable)

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ir.RunOK, runs[0].Status)
}

// A store-level violation mid-transaction rolls back every record of the
// run. Writing under an unknown run id trips the foreign key on the first
// insert after validation has passed.
func TestApplyIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.ApplyAnalysis(ctx, "run_never_created", sampleAnalysis())
	require.Error(t, err)

	objects, qerr := s.ListObjects(ctx, "run_never_created", "", "", 0)
	require.NoError(t, qerr)
	assert.Empty(t, objects, "rollback must leave no partial records")
}

func TestApplyRejectsInvalidAnalysisBeforeWriting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	insertRun(t, s, "run_invalid")

	bad := sampleAnalysis()
	bad.Relations[0].Confidence = 2.0

	_, err := s.ApplyAnalysis(ctx, "run_invalid", bad)
	require.Error(t, err)

	objects, qerr := s.ListObjects(ctx, "run_invalid", "", "", 0)
	require.NoError(t, qerr)
	assert.Empty(t, objects)
}

func TestLeaseRejectsConcurrentOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leased.db")
	s1, err := Open(path)
	require.NoError(t, err)

	_, err = Open(path)
	require.Error(t, err, "second open on same path must be rejected")

	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 10, ClampLimit(3))
	assert.Equal(t, 2000, ClampLimit(99999))
	assert.Equal(t, 500, ClampLimit(500))
}

func TestRunScopingIsolatesRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	insertRun(t, s, "run_a")
	insertRun(t, s, "run_b")

	_, err := s.ApplyAnalysis(ctx, "run_a", sampleAnalysis())
	require.NoError(t, err)

	objects, err := s.ListObjects(ctx, "run_b", "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

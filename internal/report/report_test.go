package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/internal/store"
)

func seededStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ir.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	const runID = "run_report"
	require.NoError(t, s.InsertRun(ctx, ir.Run{RunID: runID, StartedAt: time.Now().UTC(), Status: ir.RunRunning}))

	_, err = s.ApplyAnalysis(ctx, runID, &ir.Analysis{
		Objects: []ir.Object{
			{Type: ir.TypeScreen, Name: "w_main", SourcePath: "w_main.srw"},
			{Type: ir.TypeTable, Name: "tb_x", Module: "db"},
		},
		Events: []ir.Event{{ObjectName: "w_main", EventName: "ue_save"}},
		Relations: []ir.Relation{
			{SrcName: "w_main", DstName: "tb_x", RelationType: ir.RelWritesTable, Confidence: 0.9},
		},
		SqlStatements: []ir.SqlStatement{
			{OwnerName: "w_main", SqlKind: ir.KindUpdate, SqlTextNorm: "UPDATE TB_X SET A = :?",
				Tables: []ir.TableUsage{{TableName: "tb_x", RwType: ir.RwWrite}}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.FinalizeRun(ctx, runID, ir.RunOK, time.Now().UTC()))
	return s, runID
}

func TestGenerateJSON(t *testing.T) {
	s, runID := seededStore(t)
	outDir := t.TempDir()

	files, err := Generate(context.Background(), s, runID, outDir, "json")
	require.NoError(t, err)
	require.Len(t, files, 5)

	data, err := os.ReadFile(filepath.Join(outDir, "table_impact.json"))
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "tb_x", rows[0]["table_name"])
	assert.Equal(t, "WRITE", rows[0]["rw_type"])
}

func TestGenerateCSV(t *testing.T) {
	s, runID := seededStore(t)
	outDir := t.TempDir()

	files, err := Generate(context.Background(), s, runID, outDir, "csv")
	require.NoError(t, err)
	require.Len(t, files, 5)

	data, err := os.ReadFile(filepath.Join(outDir, "object_inventory.csv"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "w_main")
	assert.Contains(t, text, "tb_x")
}

func TestGenerateHTML(t *testing.T) {
	s, runID := seededStore(t)
	outDir := t.TempDir()

	files, err := Generate(context.Background(), s, runID, outDir, "html")
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "Table Impact"))
	assert.Contains(t, text, "w_main")
}

func TestGenerateRejectsUnknownFormat(t *testing.T) {
	s, runID := seededStore(t)
	_, err := Generate(context.Background(), s, runID, t.TempDir(), "xml")
	require.Error(t, err)
}

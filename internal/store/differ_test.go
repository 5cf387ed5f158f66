package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/pkg/runerr"
)

func applyRun(t *testing.T, s *Store, runID string, a *ir.Analysis) {
	t.Helper()
	insertRun(t, s, runID)
	_, err := s.ApplyAnalysis(context.Background(), runID, a)
	require.NoError(t, err)
	require.NoError(t, s.FinalizeRun(context.Background(), runID, ir.RunOK, time.Now().UTC()))
}

// R2 adds screen s3 and drops data grid dw_old; the diff reports both with
// their attached relations.
func TestDiffAddedAndRemoved(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	r1 := &ir.Analysis{
		Objects: []ir.Object{
			{Type: ir.TypeScreen, Name: "s1"},
			{Type: ir.TypeDataGrid, Name: "dw_old"},
		},
		Relations: []ir.Relation{
			{SrcName: "s1", DstName: "dw_old", RelationType: ir.RelUsesDW, Confidence: 0.9},
		},
		DataWindows: []ir.DataWindow{
			{ObjectName: "dw_old", DWName: "dw_old", BaseTable: "tb_old"},
		},
	}
	r2 := &ir.Analysis{
		Objects: []ir.Object{
			{Type: ir.TypeScreen, Name: "s1"},
			{Type: ir.TypeScreen, Name: "s3"},
		},
		Relations: []ir.Relation{
			{SrcName: "s1", DstName: "s3", RelationType: ir.RelOpens, Confidence: 0.95},
		},
	}

	applyRun(t, s, "r1", r1)
	applyRun(t, s, "r2", r2)

	diff, err := s.Diff(ctx, "r1", "r2")
	require.NoError(t, err)

	assert.Empty(t, diff.Changed)

	addedKeys := keysOf(diff.Added)
	removedKeys := keysOf(diff.Removed)

	assert.Contains(t, addedKeys, "Screen:s3")
	assert.Contains(t, addedKeys, "Screen:s1->Screen:s3:opens")
	assert.Contains(t, removedKeys, "DataGrid:dw_old")
	assert.Contains(t, removedKeys, "Screen:s1->DataGrid:dw_old:uses_dw")
	assert.Contains(t, removedKeys, "dw_old:dw_old:tb_old")
}

// Persisting the same analysis under two run ids diffs empty.
func TestDiffIdenticalRunsIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	applyRun(t, s, "ra", sampleAnalysis())
	applyRun(t, s, "rb", sampleAnalysis())

	diff, err := s.Diff(ctx, "ra", "rb")
	require.NoError(t, err)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.Changed)
}

func TestDiffUnknownRunIsInputError(t *testing.T) {
	s := openTestStore(t)
	applyRun(t, s, "rx", sampleAnalysis())

	_, err := s.Diff(context.Background(), "rx", "missing")
	var rerr *runerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, runerr.CodeInput, rerr.Code())
}

func keysOf(items []DiffItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Key
	}
	return out
}

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validAnalysis() *Analysis {
	return &Analysis{
		Objects: []Object{
			{Type: TypeScreen, Name: "w_main"},
			{Type: TypeTable, Name: "tb_x", Module: "db"},
		},
		Relations: []Relation{
			{SrcName: "w_main", DstName: "tb_x", RelationType: RelWritesTable, Confidence: 0.9},
		},
		SqlStatements: []SqlStatement{
			{OwnerName: "w_main", SqlKind: KindUpdate, SqlTextNorm: "UPDATE TB_X SET A = 1",
				Tables: []TableUsage{{TableName: "tb_x", RwType: RwWrite}}},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	assert.NoError(t, Validate(validAnalysis()))
}

func TestValidateRejectsConfidenceOutOfRange(t *testing.T) {
	a := validAnalysis()
	a.Relations[0].Confidence = 1.5
	assert.Error(t, Validate(a))
}

func TestValidateRejectsUnknownRelationType(t *testing.T) {
	a := validAnalysis()
	a.Relations[0].RelationType = "depends_on"
	assert.Error(t, Validate(a))
}

func TestValidateRejectsDuplicateObjects(t *testing.T) {
	a := validAnalysis()
	a.Objects = append(a.Objects, Object{Type: TypeScreen, Name: "W_MAIN"})
	assert.Error(t, Validate(a))
}

func TestValidateRejectsDanglingRelation(t *testing.T) {
	a := validAnalysis()
	a.Relations[0].DstName = "tb_missing"
	assert.Error(t, Validate(a))
}

func TestValidateRejectsWriteOnSelect(t *testing.T) {
	a := validAnalysis()
	a.SqlStatements[0].SqlKind = KindSelect
	assert.Error(t, Validate(a))
}

func TestValidateRejectsTablesOnOther(t *testing.T) {
	a := validAnalysis()
	a.SqlStatements[0].SqlKind = KindOther
	assert.Error(t, Validate(a))
}

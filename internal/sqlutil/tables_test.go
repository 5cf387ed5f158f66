package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlens/screenlens/internal/ir"
)

func extract(t *testing.T, sql string) []ir.TableUsage {
	t.Helper()
	norm := Normalize(sql)
	return ExtractTables(KindOf(norm), norm, nil)
}

func TestSelectTablesAreReads(t *testing.T) {
	usages := extract(t, "select a from tb_a join tb_b on tb_a.k = tb_b.k where x = 1")
	assert.ElementsMatch(t, []ir.TableUsage{
		{TableName: "tb_a", RwType: ir.RwRead},
		{TableName: "tb_b", RwType: ir.RwRead},
	}, usages)
}

func TestSelectFromListDropsAliases(t *testing.T) {
	usages := extract(t, "select a from tb_a x, tb_b y where x.k = y.k")
	assert.ElementsMatch(t, []ir.TableUsage{
		{TableName: "tb_a", RwType: ir.RwRead},
		{TableName: "tb_b", RwType: ir.RwRead},
	}, usages)
}

func TestInsertTargetIsWrite(t *testing.T) {
	usages := extract(t, "insert into tb_y(a) values(1)")
	assert.Equal(t, []ir.TableUsage{{TableName: "tb_y", RwType: ir.RwWrite}}, usages)
}

func TestInsertSelectReadsSources(t *testing.T) {
	usages := extract(t, "insert into tb_y(a) select a from tb_src")
	assert.ElementsMatch(t, []ir.TableUsage{
		{TableName: "tb_y", RwType: ir.RwWrite},
		{TableName: "tb_src", RwType: ir.RwRead},
	}, usages)
}

func TestUpdateTargetIsWrite(t *testing.T) {
	usages := extract(t, "update tb_x set a = 1 where k = :k")
	assert.Equal(t, []ir.TableUsage{{TableName: "tb_x", RwType: ir.RwWrite}}, usages)
}

func TestUpdateWithFromReadsSources(t *testing.T) {
	usages := extract(t, "update tb_x set a = s.a from tb_src s where tb_x.k = s.k")
	assert.ElementsMatch(t, []ir.TableUsage{
		{TableName: "tb_x", RwType: ir.RwWrite},
		{TableName: "tb_src", RwType: ir.RwRead},
	}, usages)
}

func TestDeleteTargetIsWrite(t *testing.T) {
	usages := extract(t, "delete from tb_x where k = :k")
	assert.Equal(t, []ir.TableUsage{{TableName: "tb_x", RwType: ir.RwWrite}}, usages)
}

func TestMergeTargetAndSource(t *testing.T) {
	usages := extract(t, "merge into tb_t using tb_s on (tb_t.k = tb_s.k) when matched then update set a = 1")
	assert.ElementsMatch(t, []ir.TableUsage{
		{TableName: "tb_t", RwType: ir.RwWrite},
		{TableName: "tb_s", RwType: ir.RwRead},
	}, usages)
}

func TestMergeUsingNestedSelect(t *testing.T) {
	usages := extract(t, "merge into tb_t using (select k from tb_src) s on (tb_t.k = s.k)")
	assert.ElementsMatch(t, []ir.TableUsage{
		{TableName: "tb_t", RwType: ir.RwWrite},
		{TableName: "tb_src", RwType: ir.RwRead},
	}, usages)
}

func TestOtherKindHasNoTables(t *testing.T) {
	usages := extract(t, "declare cur cursor for select a from tb_a")
	assert.Empty(t, usages)
}

func TestSchemaPrefixStripped(t *testing.T) {
	usages := extract(t, "select a from scott.tb_emp")
	require.Len(t, usages, 1)
	assert.Equal(t, "tb_emp", usages[0].TableName)
}

func TestExclusionListSuppressesTables(t *testing.T) {
	norm := Normalize("select sysdate from dual")
	usages := ExtractTables(KindOf(norm), norm, func(name string) bool { return name == "dual" })
	assert.Empty(t, usages)
}

func TestDuplicateUsagesCollapse(t *testing.T) {
	usages := extract(t, "select a from tb_a join tb_a on 1=1")
	assert.Equal(t, []ir.TableUsage{{TableName: "tb_a", RwType: ir.RwRead}}, usages)
}

package parser

import (
	"strings"
	"testing"

	"github.com/screenlens/screenlens/internal/ir"
)

func parseSrc(t *testing.T, path, src string) *ParsedFile {
	t.Helper()
	return ParseSource(FileInput{Path: path, Content: []byte(src)}, 100)
}

func TestScreenWithEventsAndFunctions(t *testing.T) {
	src := `forward
type w_customer from window
end forward

type w_customer from window
end type

event open;
ls_title = "Customers"
end event

event ue_save;
wf_save(1)
end event

public function integer wf_save (long al_id);
return 1
end function
`
	pf := parseSrc(t, "w_customer.srw", src)

	if pf.Object.Type != ir.TypeScreen {
		t.Fatalf("object type %s", pf.Object.Type)
	}
	if pf.Object.Name != "w_customer" {
		t.Fatalf("object name %q", pf.Object.Name)
	}
	assertHasEvent(t, pf, "open")
	assertHasEvent(t, pf, "ue_save")
	assertHasFunction(t, pf, "wf_save")

	var fn *Function
	for i := range pf.Functions {
		if pf.Functions[i].Name == "wf_save" {
			fn = &pf.Functions[i]
		}
	}
	if fn == nil || !strings.Contains(fn.Signature, "wf_save") {
		t.Fatalf("signature missing: %+v", fn)
	}
	if len(pf.Issues) != 0 {
		t.Fatalf("unexpected issues: %v", pf.Issues)
	}
}

func TestEmbeddedSqlCollectedPerOwner(t *testing.T) {
	src := `event ue_save;
UPDATE tb_x SET a = 1 WHERE k = :k;
INSERT INTO tb_y(a) VALUES(1);
end event
`
	pf := parseSrc(t, "w_s1.srw", src)
	if len(pf.EmbeddedSql) != 2 {
		t.Fatalf("expected 2 embedded statements, got %d: %+v", len(pf.EmbeddedSql), pf.EmbeddedSql)
	}
	for _, emb := range pf.EmbeddedSql {
		if emb.Owner != "ue_save" {
			t.Fatalf("owner %q", emb.Owner)
		}
	}
	if !strings.HasPrefix(strings.ToUpper(pf.EmbeddedSql[0].Text), "UPDATE") {
		t.Fatalf("first statement %q", pf.EmbeddedSql[0].Text)
	}
}

func TestCallSites(t *testing.T) {
	src := `event clicked;
open(w_detail)
openwithparm(w_popup, ls_parm)
triggerevent("ue_save")
triggerevent(dw_list, "ue_refresh")
trigger event ue_recalc
dw_list.Retrieve()
wf_compute(1, 2)
end event
`
	pf := parseSrc(t, "w_main.srw", src)

	assertCallSite(t, pf, CallScreenOpen, "w_detail")
	assertCallSite(t, pf, CallScreenOpen, "w_popup")
	assertCallSite(t, pf, CallEventTrigger, "ue_save")
	assertCallSite(t, pf, CallEventTrigger, "ue_refresh")
	assertCallSite(t, pf, CallEventTrigger, "ue_recalc")
	assertCallSite(t, pf, CallDataGridUse, "dw_list")
	assertCallSite(t, pf, CallFunction, "wf_compute")
}

func TestMethodCallsAreNotFunctionCandidates(t *testing.T) {
	src := `event clicked;
dw_list.Retrieve()
end event
`
	pf := parseSrc(t, "w_main.srw", src)
	for _, cs := range pf.CallSites {
		if cs.Kind == CallFunction && cs.Callee == "retrieve" {
			t.Fatal("method call after dot must not be a function candidate")
		}
	}
}

func TestFailSoftRecovery(t *testing.T) {
	src := `event clicked;
x = 1
end event

)))

event ue_later;
y = 2
end event
`
	pf := parseSrc(t, "w_bad.srw", src)
	if len(pf.Issues) == 0 {
		t.Fatal("expected recovered parse issues")
	}
	if pf.Abandoned {
		t.Fatal("file should not be abandoned")
	}
	assertHasEvent(t, pf, "clicked")
	assertHasEvent(t, pf, "ue_later")
}

func TestFileAbandonedAtErrorCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString(")))\n")
	}
	pf := ParseSource(FileInput{Path: "w_junk.srw", Content: []byte(b.String())}, 10)
	if !pf.Abandoned {
		t.Fatalf("expected abandonment after cap, issues=%d", len(pf.Issues))
	}
	if len(pf.Issues) != 10 {
		t.Fatalf("expected exactly cap issues, got %d", len(pf.Issues))
	}
}

func TestKindFromExtension(t *testing.T) {
	cases := map[string]ir.ObjectType{
		"u_helper.sru": ir.TypeUserObject,
		"m_main.srm":   ir.TypeMenu,
		"f_util.srf":   ir.TypeFunction,
		"s_batch.srs":  ir.TypeScript,
	}
	for path, want := range cases {
		pf := parseSrc(t, path, "event created;\nend event\n")
		if pf.Object.Type != want {
			t.Errorf("%s: type %s, want %s", path, pf.Object.Type, want)
		}
	}
}

// --- helpers ---

func assertHasEvent(t *testing.T, pf *ParsedFile, name string) {
	t.Helper()
	for _, ev := range pf.Events {
		if ev.Name == name {
			return
		}
	}
	names := make([]string, len(pf.Events))
	for i, ev := range pf.Events {
		names[i] = ev.Name
	}
	t.Errorf("missing event %q; have %v", name, names)
}

func assertHasFunction(t *testing.T, pf *ParsedFile, name string) {
	t.Helper()
	for _, fn := range pf.Functions {
		if fn.Name == name {
			return
		}
	}
	t.Errorf("missing function %q", name)
}

func assertCallSite(t *testing.T, pf *ParsedFile, kind CallSiteKind, callee string) {
	t.Helper()
	for _, cs := range pf.CallSites {
		if cs.Kind == kind && cs.Callee == callee {
			return
		}
	}
	var have []string
	for _, cs := range pf.CallSites {
		have = append(have, string(cs.Kind)+":"+cs.Callee)
	}
	t.Errorf("missing call site %s:%s; have %v", kind, callee, have)
}

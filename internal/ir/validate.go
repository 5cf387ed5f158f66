package ir

import (
	"strings"

	"github.com/screenlens/screenlens/pkg/runerr"
)

// Validate checks the application-layer invariants of an analysis before
// persistence. The store enforces the same rules with CHECK/UNIQUE
// constraints; a violation here aborts the run without touching the store.
func Validate(a *Analysis) error {
	objectKeys := make(map[string]struct{}, len(a.Objects))
	objectNames := make(map[string]struct{}, len(a.Objects))

	for _, obj := range a.Objects {
		if !ValidObjectType(obj.Type) {
			return runerr.Newf(runerr.CodePersistence, "object %q has unknown type %q", obj.Name, obj.Type)
		}
		if obj.Name == "" {
			return runerr.New(runerr.CodePersistence, "object with empty name")
		}
		key := string(obj.Type) + ":" + strings.ToLower(obj.Name)
		if _, dup := objectKeys[key]; dup {
			return runerr.Newf(runerr.CodePersistence, "duplicate object %s", key)
		}
		objectKeys[key] = struct{}{}
		objectNames[strings.ToLower(obj.Name)] = struct{}{}
	}

	requireObject := func(name, role string) error {
		if _, ok := objectNames[strings.ToLower(name)]; !ok {
			return runerr.Newf(runerr.CodePersistence, "%s references unknown object %q", role, name)
		}
		return nil
	}

	for _, ev := range a.Events {
		if err := requireObject(ev.ObjectName, "event "+ev.EventName); err != nil {
			return err
		}
	}
	for _, fn := range a.Functions {
		if err := requireObject(fn.ObjectName, "function "+fn.FunctionName); err != nil {
			return err
		}
	}

	for _, rel := range a.Relations {
		if !ValidRelationType(rel.RelationType) {
			return runerr.Newf(runerr.CodePersistence, "relation has unknown type %q", rel.RelationType)
		}
		if rel.Confidence < 0.0 || rel.Confidence > 1.0 {
			return runerr.Newf(runerr.CodePersistence,
				"relation %s->%s confidence %v out of range", rel.SrcName, rel.DstName, rel.Confidence)
		}
		if err := requireObject(rel.SrcName, "relation src"); err != nil {
			return err
		}
		if err := requireObject(rel.DstName, "relation dst"); err != nil {
			return err
		}
	}

	for _, stmt := range a.SqlStatements {
		if err := validateStatement(stmt, requireObject); err != nil {
			return err
		}
	}

	dwKeys := make(map[string]struct{}, len(a.DataWindows))
	for _, dw := range a.DataWindows {
		if err := requireObject(dw.ObjectName, "data window "+dw.DWName); err != nil {
			return err
		}
		key := strings.ToLower(dw.ObjectName) + ":" + strings.ToLower(dw.DWName)
		if _, dup := dwKeys[key]; dup {
			return runerr.Newf(runerr.CodePersistence, "duplicate data window %s", key)
		}
		dwKeys[key] = struct{}{}
	}

	return nil
}

func validateStatement(stmt SqlStatement, requireObject func(name, role string) error) error {
	switch stmt.SqlKind {
	case KindSelect, KindInsert, KindUpdate, KindDelete, KindMerge, KindOther:
	default:
		return runerr.Newf(runerr.CodePersistence, "sql statement has unknown kind %q", stmt.SqlKind)
	}
	if err := requireObject(stmt.OwnerName, "sql statement"); err != nil {
		return err
	}
	if stmt.SqlKind == KindOther && len(stmt.Tables) > 0 {
		return runerr.Newf(runerr.CodePersistence,
			"OTHER statement owned by %q must not reference tables", stmt.OwnerName)
	}
	for _, t := range stmt.Tables {
		if t.RwType != RwRead && t.RwType != RwWrite {
			return runerr.Newf(runerr.CodePersistence, "table %q has unknown rw type %q", t.TableName, t.RwType)
		}
		if stmt.SqlKind == KindSelect && t.RwType != RwRead {
			return runerr.Newf(runerr.CodePersistence,
				"SELECT statement owned by %q has WRITE reference to %q", stmt.OwnerName, t.TableName)
		}
	}
	return nil
}


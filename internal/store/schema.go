package store

// Schema of the IR store. CHECK and UNIQUE constraints mirror the
// application-layer validation; either layer rejecting a record aborts the
// run's persistence.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id         TEXT PRIMARY KEY,
    started_at     TIMESTAMP NOT NULL,
    finished_at    TIMESTAMP,
    status         TEXT NOT NULL CHECK (status IN ('running','ok','partial','failed')),
    source_version TEXT
);

CREATE TABLE IF NOT EXISTS objects (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL REFERENCES runs(run_id),
    type        TEXT NOT NULL CHECK (type IN
        ('Screen','UserObject','Menu','DataGrid','Function','Script','Library','Sql','Table')),
    name        TEXT NOT NULL,
    module      TEXT NOT NULL DEFAULT '',
    source_path TEXT NOT NULL DEFAULT '',
    UNIQUE (run_id, type, name)
);

CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(run_id),
    object_id  INTEGER NOT NULL REFERENCES objects(id),
    event_name TEXT NOT NULL,
    script_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS functions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT NOT NULL REFERENCES runs(run_id),
    object_id     INTEGER NOT NULL REFERENCES objects(id),
    function_name TEXT NOT NULL,
    signature     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS relations (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT NOT NULL REFERENCES runs(run_id),
    src_id        INTEGER NOT NULL REFERENCES objects(id),
    dst_id        INTEGER NOT NULL REFERENCES objects(id),
    relation_type TEXT NOT NULL CHECK (relation_type IN
        ('calls','opens','uses_dw','reads_table','writes_table','triggers_event')),
    confidence    REAL NOT NULL CHECK (confidence >= 0.0 AND confidence <= 1.0)
);

CREATE TABLE IF NOT EXISTS sql_statements (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT NOT NULL REFERENCES runs(run_id),
    owner_id      INTEGER NOT NULL REFERENCES objects(id),
    sql_kind      TEXT NOT NULL CHECK (sql_kind IN
        ('SELECT','INSERT','UPDATE','DELETE','MERGE','OTHER')),
    sql_text_norm TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sql_tables (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(run_id),
    sql_id     INTEGER NOT NULL REFERENCES sql_statements(id),
    table_name TEXT NOT NULL,
    rw_type    TEXT NOT NULL CHECK (rw_type IN ('READ','WRITE'))
);

CREATE TABLE IF NOT EXISTS data_windows (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(run_id),
    object_id  INTEGER NOT NULL REFERENCES objects(id),
    dw_name    TEXT NOT NULL,
    base_table TEXT NOT NULL DEFAULT '',
    sql_select TEXT NOT NULL DEFAULT '',
    UNIQUE (run_id, object_id, dw_name)
);

CREATE INDEX IF NOT EXISTS idx_objects_run_type_name ON objects(run_id, type, name);
CREATE INDEX IF NOT EXISTS idx_relations_type_src_dst ON relations(relation_type, src_id, dst_id);
CREATE INDEX IF NOT EXISTS idx_relations_run ON relations(run_id);
CREATE INDEX IF NOT EXISTS idx_sql_tables_name ON sql_tables(table_name);
CREATE INDEX IF NOT EXISTS idx_events_run_object ON events(run_id, object_id);
CREATE INDEX IF NOT EXISTS idx_functions_run_object ON functions(run_id, object_id);
CREATE INDEX IF NOT EXISTS idx_data_windows_run_object ON data_windows(run_id, object_id);
CREATE INDEX IF NOT EXISTS idx_sql_statements_run_owner ON sql_statements(run_id, owner_id);
`

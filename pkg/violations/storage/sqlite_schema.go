package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the violation database schema.
const Schema = `
CREATE TABLE IF NOT EXISTS violations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    rule_id TEXT NOT NULL,
    rule_name TEXT NOT NULL,

    risk_level TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    status TEXT NOT NULL,

    -- Unix nanoseconds
    detected_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,

    -- JSON documents
    data TEXT NOT NULL,
    rule TEXT
);

CREATE INDEX IF NOT EXISTS idx_violations_tenant_time ON violations(tenant_id, detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_violations_rule ON violations(rule_id);
CREATE INDEX IF NOT EXISTS idx_violations_status ON violations(status);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion returns the highest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const insertViolation = `
INSERT INTO violations (
    id, tenant_id, rule_id, rule_name, risk_level, risk_score, status,
    detected_at, updated_at, data, rule
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectViolationColumns = `
SELECT id, tenant_id, rule_id, rule_name, risk_level, risk_score, status, detected_at, data, rule
FROM violations`

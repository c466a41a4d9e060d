package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"complyhq/sentinel/pkg/rules"
	"complyhq/sentinel/pkg/violations"
)

// SQLiteConfig contains configuration for the SQLite violation store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/violations.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements violations.Repository on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database and creates the schema if needed.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "violations.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, violations.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite violation store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return violations.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if s.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(pragma); err != nil {
			return violations.NewStorageError("sqlite", "set_busy_timeout", err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return violations.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return violations.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return violations.NewStorageError("sqlite", "get_schema_version", err)
	}
	if int(version.Int64) != SchemaVersion {
		return violations.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}

	return nil
}

// Save inserts a violation.
func (s *SQLiteStorage) Save(ctx context.Context, v *rules.Violation) error {
	if v == nil || v.ID == "" {
		return violations.NewStorageError("sqlite", "save", errors.New("violation id is required"))
	}
	if !v.Status.Valid() {
		return fmt.Errorf("%w: %q", violations.ErrInvalidStatus, v.Status)
	}

	data, err := json.Marshal(v.Data)
	if err != nil {
		return violations.NewStorageError("sqlite", "marshal_data", err)
	}

	var ruleJSON sql.NullString
	if v.Rule != nil {
		b, err := json.Marshal(v.Rule)
		if err != nil {
			return violations.NewStorageError("sqlite", "marshal_rule", err)
		}
		ruleJSON = sql.NullString{String: string(b), Valid: true}
	}

	detected := v.Timestamp.UnixNano()
	_, err = s.db.ExecContext(ctx, insertViolation,
		v.ID, v.TenantID, v.RuleID, v.RuleName,
		string(v.Risk.Level), v.Risk.Score, string(v.Status),
		detected, time.Now().UnixNano(), string(data), ruleJSON,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", violations.ErrDuplicate, v.ID)
		}
		return violations.NewStorageError("sqlite", "save", err)
	}

	s.logger.Debug("violation stored", "violation_id", v.ID, "rule_id", v.RuleID)
	return nil
}

// Get loads a violation by id.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*rules.Violation, error) {
	row := s.db.QueryRowContext(ctx, selectViolationColumns+" WHERE id = ?", id)
	v, err := scanViolation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &violations.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, violations.NewStorageError("sqlite", "get", err)
	}
	return v, nil
}

// ListByTenant returns the tenant's violations matching filter, newest first.
func (s *SQLiteStorage) ListByTenant(ctx context.Context, tenantID string, filter *violations.Filter) ([]*rules.Violation, error) {
	query, args := buildListQuery(tenantID, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, violations.NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	var out []*rules.Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, violations.NewStorageError("sqlite", "scan", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, violations.NewStorageError("sqlite", "list", err)
	}
	return out, nil
}

// UpdateStatus changes the status of a stored violation.
func (s *SQLiteStorage) UpdateStatus(ctx context.Context, id string, status rules.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", violations.ErrInvalidStatus, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE violations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UnixNano(), id)
	if err != nil {
		return violations.NewStorageError("sqlite", "update_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return violations.NewStorageError("sqlite", "update_status", err)
	}
	if n == 0 {
		return &violations.NotFoundError{ID: id}
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return violations.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return violations.NewStorageError("sqlite", "close", err)
	}
	return nil
}

func buildListQuery(tenantID string, filter *violations.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(selectViolationColumns)
	b.WriteString(" WHERE tenant_id = ?")
	args := []any{tenantID}

	if filter != nil {
		if len(filter.Statuses) > 0 {
			b.WriteString(" AND status IN (" + placeholders(len(filter.Statuses)) + ")")
			for _, st := range filter.Statuses {
				args = append(args, string(st))
			}
		}
		if len(filter.RiskLevels) > 0 {
			b.WriteString(" AND risk_level IN (" + placeholders(len(filter.RiskLevels)) + ")")
			for _, lvl := range filter.RiskLevels {
				args = append(args, string(lvl))
			}
		}
		if filter.RuleID != "" {
			b.WriteString(" AND rule_id = ?")
			args = append(args, filter.RuleID)
		}
		if !filter.Since.IsZero() {
			b.WriteString(" AND detected_at >= ?")
			args = append(args, filter.Since.UnixNano())
		}
		if !filter.Until.IsZero() {
			b.WriteString(" AND detected_at < ?")
			args = append(args, filter.Until.UnixNano())
		}
	}

	b.WriteString(" ORDER BY detected_at DESC, id ASC")

	if filter != nil && filter.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}
	return b.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanViolation(row rowScanner) (*rules.Violation, error) {
	var (
		v         rules.Violation
		level     string
		status    string
		detected  int64
		data      string
		ruleJSON  sql.NullString
		riskScore int
	)
	if err := row.Scan(&v.ID, &v.TenantID, &v.RuleID, &v.RuleName,
		&level, &riskScore, &status, &detected, &data, &ruleJSON); err != nil {
		return nil, err
	}

	v.Risk = rules.Risk{Level: rules.RiskLevel(level), Score: riskScore}
	v.Status = rules.Status(status)
	v.Timestamp = time.Unix(0, detected).UTC()

	if err := json.Unmarshal([]byte(data), &v.Data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	if ruleJSON.Valid {
		var r rules.Rule
		if err := json.Unmarshal([]byte(ruleJSON.String), &r); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		v.Rule = &r
	}
	return &v, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"complyhq/sentinel/pkg/workflow"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name            string
	numbered        bool // $1 placeholders instead of ?
	schema          string
	uniqueViolation func(error) bool
}

// sqlStore is the workflow.Store shared by the SQL backends. Each workflow is one
// row holding the JSON document plus the columns used for lookups and the version.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, stmt := range splitStatements(s.dialect.schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return workflow.NewStorageError(s.dialect.name, "create_schema", err)
		}
	}
	return nil
}

func (s *sqlStore) q(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const workflowColumns = `id, violation_id, tenant_id, status, priority, created_at, updated_at, version, document`

// Create implements workflow.Store.
func (s *sqlStore) Create(ctx context.Context, wf *workflow.Workflow) error {
	wf.Version = 1
	doc, err := json.Marshal(wf)
	if err != nil {
		return workflow.NewStorageError(s.dialect.name, "marshal", err)
	}

	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO workflows (`+workflowColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		wf.ID, wf.ViolationID, wf.TenantID, string(wf.Status), string(wf.Priority),
		wf.CreatedAt.UnixNano(), wf.UpdatedAt.UnixNano(), wf.Version, string(doc))
	if err != nil {
		wf.Version = 0
		if s.dialect.uniqueViolation(err) {
			return fmt.Errorf("%w: %s", workflow.ErrDuplicate, wf.ID)
		}
		return workflow.NewStorageError(s.dialect.name, "create", err)
	}
	return nil
}

// Get implements workflow.Store.
func (s *sqlStore) Get(ctx context.Context, id string) (*workflow.Workflow, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT document, version FROM workflows WHERE id = ?`), id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &workflow.NotFoundError{WorkflowID: id}
	}
	if err != nil {
		return nil, workflow.NewStorageError(s.dialect.name, "get", err)
	}
	return decodeWorkflow(doc, version)
}

// Update implements workflow.Store.
func (s *sqlStore) Update(ctx context.Context, wf *workflow.Workflow, expectedVersion int64, t *workflow.Transition) error {
	next := expectedVersion + 1
	candidate := *wf
	candidate.Version = next
	doc, err := json.Marshal(&candidate)
	if err != nil {
		return workflow.NewStorageError(s.dialect.name, "marshal", err)
	}

	err = s.inTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE workflows SET status = ?, priority = ?, updated_at = ?, version = ?, document = ? WHERE id = ? AND version = ?`),
			string(wf.Status), string(wf.Priority), wf.UpdatedAt.UnixNano(), next, string(doc), wf.ID, expectedVersion)
		if err != nil {
			return workflow.NewStorageError(s.dialect.name, "update", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return workflow.NewStorageError(s.dialect.name, "update", err)
		}
		if n == 0 {
			var one int
			err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM workflows WHERE id = ?`), wf.ID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return &workflow.NotFoundError{WorkflowID: wf.ID}
			}
			if err != nil {
				return workflow.NewStorageError(s.dialect.name, "update", err)
			}
			return fmt.Errorf("%w: %s expected version %d", workflow.ErrVersionConflict, wf.ID, expectedVersion)
		}

		if t == nil {
			return nil
		}
		tdoc, err := json.Marshal(t)
		if err != nil {
			return workflow.NewStorageError(s.dialect.name, "marshal", err)
		}
		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO workflow_transitions (id, workflow_id, seq, from_status, to_status, action, performed_by, performed_at, document) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			t.ID, t.WorkflowID, next, string(t.FromStatus), string(t.ToStatus), string(t.Action),
			t.PerformedBy, t.PerformedAt.UnixNano(), string(tdoc))
		if err != nil {
			return workflow.NewStorageError(s.dialect.name, "append_transition", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	wf.Version = next
	return nil
}

// ListByViolation implements workflow.Store.
func (s *sqlStore) ListByViolation(ctx context.Context, violationID string) ([]*workflow.Workflow, error) {
	return s.list(ctx, "list_by_violation", `WHERE violation_id = ?`, violationID)
}

// ListByTenant implements workflow.Store.
func (s *sqlStore) ListByTenant(ctx context.Context, tenantID string) ([]*workflow.Workflow, error) {
	return s.list(ctx, "list_by_tenant", `WHERE tenant_id = ?`, tenantID)
}

// ListActive implements workflow.Store.
func (s *sqlStore) ListActive(ctx context.Context) ([]*workflow.Workflow, error) {
	return s.list(ctx, "list_active", `WHERE status NOT IN (?, ?, ?)`,
		string(workflow.StatusResolved), string(workflow.StatusCancelled), string(workflow.StatusRejected))
}

func (s *sqlStore) list(ctx context.Context, op, where string, args ...any) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT document, version FROM workflows `+where+` ORDER BY created_at, id`), args...)
	if err != nil {
		return nil, workflow.NewStorageError(s.dialect.name, op, err)
	}
	defer rows.Close()

	var out []*workflow.Workflow
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, workflow.NewStorageError(s.dialect.name, op, err)
		}
		wf, err := decodeWorkflow(doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, workflow.NewStorageError(s.dialect.name, op, err)
	}
	return out, nil
}

// ListTransitions implements workflow.Store.
func (s *sqlStore) ListTransitions(ctx context.Context, workflowID string) ([]*workflow.Transition, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT document FROM workflow_transitions WHERE workflow_id = ? ORDER BY seq`), workflowID)
	if err != nil {
		return nil, workflow.NewStorageError(s.dialect.name, "list_transitions", err)
	}
	defer rows.Close()

	var out []*workflow.Transition
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, workflow.NewStorageError(s.dialect.name, "list_transitions", err)
		}
		var t workflow.Transition
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, workflow.NewStorageError(s.dialect.name, "decode_transition", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, workflow.NewStorageError(s.dialect.name, "list_transitions", err)
	}
	return out, nil
}

// Ping verifies the database connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return workflow.NewStorageError(s.dialect.name, "ping", err)
	}
	return nil
}

// Close implements workflow.Store.
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return workflow.NewStorageError(s.dialect.name, "close", err)
	}
	return nil
}

func (s *sqlStore) inTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.NewStorageError(s.dialect.name, "begin", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return workflow.NewStorageError(s.dialect.name, "commit", err)
	}
	return nil
}

func decodeWorkflow(doc string, version int64) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(doc), &wf); err != nil {
		return nil, workflow.NewStorageError("sql", "decode", err)
	}
	wf.Version = version
	return &wf, nil
}

func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) != "" {
			out = append(out, stmt)
		}
	}
	return out
}

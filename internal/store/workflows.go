package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flockops/safeguard/internal/core"
)

// Workflow returns one workflow by id.
func (s *Store) Workflow(ctx context.Context, id int64) (*core.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type_id, name, active, completed_at, completed_reason
		FROM workflows WHERE id = ?`, id)

	var (
		wf          core.Workflow
		active      int
		completedAt sql.NullString
	)
	err := row.Scan(&wf.ID, &wf.TypeID, &wf.Name, &active, &completedAt, &wf.CompletedReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("WORKFLOW_NOT_FOUND", fmt.Sprintf("workflow %d does not exist", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying workflow: %w", err)
	}
	wf.Active = active != 0
	wf.CompletedAt = scanTimePtr(completedAt)
	return &wf, nil
}

// ActivateWorkflow creates a new active workflow of the given type. Used
// when an observation arrives for a person with no in-flight request.
func (s *Store) ActivateWorkflow(ctx context.Context, typeID int64, name string) (*core.Workflow, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (type_id, name, active) VALUES (?, ?, 1)`,
		typeID, name)
	if err != nil {
		return nil, fmt.Errorf("inserting workflow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &core.Workflow{ID: id, TypeID: typeID, Name: name, Active: true}, nil
}

// Fields returns the workflow's field map.
func (s *Store) Fields(ctx context.Context, workflowID int64) (core.FieldSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, kind, value FROM workflow_fields WHERE workflow_id = ?`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("querying workflow fields: %w", err)
	}
	defer rows.Close()

	fields := make(core.FieldSet)
	for rows.Next() {
		var key, kind, value string
		if err := rows.Scan(&key, &kind, &value); err != nil {
			return nil, err
		}
		fields[key] = core.ParseFieldValue(core.FieldKind(kind), value)
	}
	return fields, rows.Err()
}

// SaveFields persists all writes of one reconciliation in a single
// transaction. A field definition is created on first write; later writes
// update the value in place.
func (s *Store) SaveFields(ctx context.Context, workflowID int64, writes []core.FieldWrite) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, w := range writes {
		qualifiers := "{}"
		if len(w.Qualifiers) > 0 {
			b, err := json.Marshal(w.Qualifiers)
			if err != nil {
				return fmt.Errorf("marshaling qualifiers for %s: %w", w.Key, err)
			}
			qualifiers = string(b)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_fields (workflow_id, key, kind, value, qualifiers)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(workflow_id, key) DO UPDATE SET
				value = excluded.value,
				kind = excluded.kind`,
			workflowID, w.Key, string(w.Value.Kind), w.Value.String(), qualifiers)
		if err != nil {
			return fmt.Errorf("saving field %s: %w", w.Key, err)
		}
	}
	return tx.Commit()
}

// CompleteWorkflow marks a workflow inactive with a completion reason.
func (s *Store) CompleteWorkflow(ctx context.Context, workflowID int64, reason string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflows SET active = 0, completed_at = ?, completed_reason = ?
		WHERE id = ?`,
		fmtTime(at), reason, workflowID)
	if err != nil {
		return fmt.Errorf("completing workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound("WORKFLOW_NOT_FOUND", fmt.Sprintf("workflow %d does not exist", workflowID))
	}
	return nil
}

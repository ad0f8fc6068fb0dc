package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flockops/safeguard/internal/core"
)

const checkColumns = `id, person_ref, request_id, response_id, package_name, status,
	request_date, response_date, response_data, workflow_id, source_tag`

// FindCheck returns the best upsert target for an incoming check
// observation, or nil when nothing matches. Candidates match on request id
// when the observation carries one, otherwise on the person reference, and
// are ranked open-record-first, then latest response, then latest request.
func (s *Store) FindCheck(ctx context.Context, q core.CheckQuery) (*core.CheckRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM check_records
		WHERE source_tag = ?1
		  AND ((?2 != '' AND request_id = ?2) OR (?2 = '' AND person_ref = ?3))
		ORDER BY (response_date IS NOT NULL) ASC, response_date DESC, request_date DESC
		LIMIT 1`, checkColumns),
		q.SourceTag, q.RequestID, q.PersonRef)

	rec, err := scanCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ChecksByWorkflow returns all check records attached to a workflow.
func (s *Store) ChecksByWorkflow(ctx context.Context, workflowID int64) ([]*core.CheckRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM check_records WHERE workflow_id = ? ORDER BY id`, checkColumns),
		workflowID)
	if err != nil {
		return nil, fmt.Errorf("querying checks by workflow: %w", err)
	}
	defer rows.Close()

	var recs []*core.CheckRecord
	for rows.Next() {
		rec, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CreateCheck inserts a record and fills in its id.
func (s *Store) CreateCheck(ctx context.Context, rec *core.CheckRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO check_records (
			person_ref, request_id, response_id, package_name, status,
			request_date, response_date, response_data, workflow_id, source_tag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PersonRef, rec.RequestID, rec.ResponseID, rec.PackageName, string(rec.Status),
		fmtTime(rec.RequestDate), fmtTimePtr(rec.ResponseDate), rec.ResponseData,
		nullInt64(rec.WorkflowID), rec.SourceTag)
	if err != nil {
		return fmt.Errorf("inserting check record: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	return err
}

// UpdateCheck persists all mutable fields of a record.
func (s *Store) UpdateCheck(ctx context.Context, rec *core.CheckRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE check_records SET
			person_ref = ?, request_id = ?, response_id = ?, package_name = ?,
			status = ?, request_date = ?, response_date = ?, response_data = ?,
			workflow_id = ?, source_tag = ?
		WHERE id = ?`,
		rec.PersonRef, rec.RequestID, rec.ResponseID, rec.PackageName,
		string(rec.Status), fmtTime(rec.RequestDate), fmtTimePtr(rec.ResponseDate), rec.ResponseData,
		nullInt64(rec.WorkflowID), rec.SourceTag, rec.ID)
	if err != nil {
		return fmt.Errorf("updating check record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound("CHECK_NOT_FOUND", fmt.Sprintf("check record %d does not exist", rec.ID))
	}
	return nil
}

// RecentChecks returns the most recently requested records for the read API.
func (s *Store) RecentChecks(ctx context.Context, limit int) ([]*core.CheckRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM check_records ORDER BY request_date DESC, id DESC LIMIT ?`, checkColumns),
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent checks: %w", err)
	}
	defer rows.Close()

	var recs []*core.CheckRecord
	for rows.Next() {
		rec, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CheckByID returns one record by primary key.
func (s *Store) CheckByID(ctx context.Context, id int64) (*core.CheckRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM check_records WHERE id = ?`, checkColumns), id)
	rec, err := scanCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("CHECK_NOT_FOUND", fmt.Sprintf("check record %d does not exist", id))
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheck(row rowScanner) (*core.CheckRecord, error) {
	var (
		rec          core.CheckRecord
		status       string
		requestDate  string
		responseDate sql.NullString
		workflowID   sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.PersonRef, &rec.RequestID, &rec.ResponseID,
		&rec.PackageName, &status, &requestDate, &responseDate, &rec.ResponseData,
		&workflowID, &rec.SourceTag)
	if err != nil {
		return nil, err
	}
	rec.Status = core.CheckStatus(status)
	rec.RequestDate = scanTime(requestDate)
	rec.ResponseDate = scanTimePtr(responseDate)
	if workflowID.Valid {
		rec.WorkflowID = &workflowID.Int64
	}
	return &rec, nil
}

const trainingColumns = `id, person_ref, vendor_user_id, survey_code, user_type, score,
	completed_at, request_date, response_date, direct_login_url, workflow_id, source_tag`

// FindTrainings returns all candidate records for an incoming training
// completion. An alias reference matches by person across the current
// partitions; a bare numeric id matches legacy records by workflow id and
// additionally by person across the current partitions, since old vendor
// users carry a raw alias id as their reference. Candidates are ordered
// open-first, then latest completion, then latest response.
func (s *Store) FindTrainings(ctx context.Context, q core.TrainingQuery) ([]*core.TrainingRecord, error) {
	var (
		where string
		args  []any
	)
	if q.IsAliasRef {
		where = "person_ref = ? AND source_tag IN (?, ?)"
		args = []any{q.NumericID, core.PartitionImported, core.PartitionCurrent}
	} else {
		where = "(workflow_id = ? AND source_tag = ?) OR (person_ref = ? AND source_tag IN (?, ?))"
		args = []any{q.NumericID, core.PartitionLegacy,
			q.NumericID, core.PartitionImported, core.PartitionCurrent}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM training_records
		WHERE %s
		ORDER BY (completed_at IS NOT NULL) ASC, completed_at DESC, response_date DESC`,
		trainingColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("querying trainings: %w", err)
	}
	defer rows.Close()

	var recs []*core.TrainingRecord
	for rows.Next() {
		rec, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// TrainingByWorkflow returns the training record attached to a workflow in
// the current partition, or nil.
func (s *Store) TrainingByWorkflow(ctx context.Context, workflowID int64) (*core.TrainingRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM training_records
		WHERE workflow_id = ? AND source_tag = ?
		ORDER BY id DESC LIMIT 1`, trainingColumns),
		workflowID, core.PartitionCurrent)
	rec, err := scanTraining(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// CreateTraining inserts a record and fills in its id.
func (s *Store) CreateTraining(ctx context.Context, rec *core.TrainingRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO training_records (
			person_ref, vendor_user_id, survey_code, user_type, score,
			completed_at, request_date, response_date, direct_login_url, workflow_id, source_tag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PersonRef, rec.VendorUserID, rec.SurveyCode, rec.UserType, nullInt(rec.Score),
		fmtTimePtr(rec.CompletedAt), fmtTime(rec.RequestDate), fmtTimePtr(rec.ResponseDate),
		rec.DirectLoginURL, nullInt64(rec.WorkflowID), rec.SourceTag)
	if err != nil {
		return fmt.Errorf("inserting training record: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	return err
}

// UpdateTraining persists all mutable fields of a record.
func (s *Store) UpdateTraining(ctx context.Context, rec *core.TrainingRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE training_records SET
			person_ref = ?, vendor_user_id = ?, survey_code = ?, user_type = ?,
			score = ?, completed_at = ?, request_date = ?, response_date = ?,
			direct_login_url = ?, workflow_id = ?, source_tag = ?
		WHERE id = ?`,
		rec.PersonRef, rec.VendorUserID, rec.SurveyCode, rec.UserType,
		nullInt(rec.Score), fmtTimePtr(rec.CompletedAt), fmtTime(rec.RequestDate),
		fmtTimePtr(rec.ResponseDate), rec.DirectLoginURL, nullInt64(rec.WorkflowID),
		rec.SourceTag, rec.ID)
	if err != nil {
		return fmt.Errorf("updating training record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound("TRAINING_NOT_FOUND", fmt.Sprintf("training record %d does not exist", rec.ID))
	}
	return nil
}

// RecentTrainings returns the most recently requested records for the read API.
func (s *Store) RecentTrainings(ctx context.Context, limit int) ([]*core.TrainingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM training_records ORDER BY request_date DESC, id DESC LIMIT ?`, trainingColumns),
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent trainings: %w", err)
	}
	defer rows.Close()

	var recs []*core.TrainingRecord
	for rows.Next() {
		rec, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanTraining(row rowScanner) (*core.TrainingRecord, error) {
	var (
		rec          core.TrainingRecord
		score        sql.NullInt64
		completedAt  sql.NullString
		requestDate  string
		responseDate sql.NullString
		workflowID   sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.PersonRef, &rec.VendorUserID, &rec.SurveyCode,
		&rec.UserType, &score, &completedAt, &requestDate, &responseDate,
		&rec.DirectLoginURL, &workflowID, &rec.SourceTag)
	if err != nil {
		return nil, err
	}
	if score.Valid {
		n := int(score.Int64)
		rec.Score = &n
	}
	rec.CompletedAt = scanTimePtr(completedAt)
	rec.RequestDate = scanTime(requestDate)
	rec.ResponseDate = scanTimePtr(responseDate)
	if workflowID.Valid {
		rec.WorkflowID = &workflowID.Int64
	}
	return &rec, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flockops/safeguard/internal/core"
)

// PersonByAlias returns the person carrying the alias id, or nil.
func (s *Store) PersonByAlias(ctx context.Context, aliasID int64) (*core.Person, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, alias_id, first_name, last_name, email, record_status, connection_status
		FROM persons WHERE alias_id = ?`, aliasID)

	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// CandidatesByLastName returns possible matches for fuzzy ranking.
func (s *Store) CandidatesByLastName(ctx context.Context, lastName string) ([]*core.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alias_id, first_name, last_name, email, record_status, connection_status
		FROM persons WHERE last_name = ? COLLATE NOCASE`, lastName)
	if err != nil {
		return nil, fmt.Errorf("querying person candidates: %w", err)
	}
	defer rows.Close()

	var people []*core.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// CreatePerson inserts a person. A zero AliasID gets the new row id as its
// alias, which keeps aliases unique without a separate sequence.
func (s *Store) CreatePerson(ctx context.Context, p *core.Person) (*core.Person, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO persons (alias_id, first_name, last_name, email, record_status, connection_status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.AliasID, p.FirstName, p.LastName, p.Email, p.RecordStatus, p.ConnectionStatus)
	if err != nil {
		return nil, fmt.Errorf("inserting person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	p.ID = id

	if p.AliasID == 0 {
		p.AliasID = id
		if _, err := tx.ExecContext(ctx, `UPDATE persons SET alias_id = ? WHERE id = ?`, id, id); err != nil {
			return nil, fmt.Errorf("assigning alias: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func scanPerson(row rowScanner) (*core.Person, error) {
	var p core.Person
	err := row.Scan(&p.ID, &p.AliasID, &p.FirstName, &p.LastName, &p.Email,
		&p.RecordStatus, &p.ConnectionStatus)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CatalogPackage is a cached vendor background check package.
type CatalogPackage struct {
	VendorID int64
	Name     string
	Code     string
}

// CatalogTag is a cached vendor tag.
type CatalogTag struct {
	VendorID int64
	Name     string
}

// CatalogSurveyType is a cached training curriculum.
type CatalogSurveyType struct {
	Code string
	Name string
}

// ReplacePackages replaces the cached package catalog.
func (s *Store) ReplacePackages(ctx context.Context, packages []CatalogPackage) error {
	return s.replaceCatalog(ctx, "catalog_packages", func(tx *sql.Tx, syncedAt string) error {
		for _, p := range packages {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO catalog_packages (code, vendor_id, name, synced_at)
				VALUES (?, ?, ?, ?)`,
				p.Code, p.VendorID, p.Name, syncedAt)
			if err != nil {
				return fmt.Errorf("inserting package %s: %w", p.Code, err)
			}
		}
		return nil
	})
}

// ReplaceTags replaces the cached tag catalog.
func (s *Store) ReplaceTags(ctx context.Context, tags []CatalogTag) error {
	return s.replaceCatalog(ctx, "catalog_tags", func(tx *sql.Tx, syncedAt string) error {
		for _, t := range tags {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO catalog_tags (name, vendor_id, synced_at)
				VALUES (?, ?, ?)`,
				t.Name, t.VendorID, syncedAt)
			if err != nil {
				return fmt.Errorf("inserting tag %s: %w", t.Name, err)
			}
		}
		return nil
	})
}

// ReplaceSurveyTypes replaces the cached survey type catalog.
func (s *Store) ReplaceSurveyTypes(ctx context.Context, types []CatalogSurveyType) error {
	return s.replaceCatalog(ctx, "catalog_survey_types", func(tx *sql.Tx, syncedAt string) error {
		for _, st := range types {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO catalog_survey_types (code, name, synced_at)
				VALUES (?, ?, ?)`,
				st.Code, st.Name, syncedAt)
			if err != nil {
				return fmt.Errorf("inserting survey type %s: %w", st.Code, err)
			}
		}
		return nil
	})
}

// Packages returns the cached package catalog.
func (s *Store) Packages(ctx context.Context) ([]CatalogPackage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, vendor_id, name FROM catalog_packages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying packages: %w", err)
	}
	defer rows.Close()

	var packages []CatalogPackage
	for rows.Next() {
		var p CatalogPackage
		if err := rows.Scan(&p.Code, &p.VendorID, &p.Name); err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

// Tags returns the cached tag catalog.
func (s *Store) Tags(ctx context.Context) ([]CatalogTag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, vendor_id FROM catalog_tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var tags []CatalogTag
	for rows.Next() {
		var t CatalogTag
		if err := rows.Scan(&t.Name, &t.VendorID); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// SurveyTypes returns the cached survey type catalog.
func (s *Store) SurveyTypes(ctx context.Context) ([]CatalogSurveyType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name FROM catalog_survey_types ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("querying survey types: %w", err)
	}
	defer rows.Close()

	var types []CatalogSurveyType
	for rows.Next() {
		var st CatalogSurveyType
		if err := rows.Scan(&st.Code, &st.Name); err != nil {
			return nil, err
		}
		types = append(types, st)
	}
	return types, rows.Err()
}

// replaceCatalog clears a catalog table and refills it in one transaction.
func (s *Store) replaceCatalog(ctx context.Context, table string, fill func(tx *sql.Tx, syncedAt string) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	if err := fill(tx, fmtTime(time.Now())); err != nil {
		return err
	}
	return tx.Commit()
}

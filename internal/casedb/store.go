package casedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/deepak6009/khetsaathi-sub000/internal/types"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for health probes.
func (s *Store) DB() *sql.DB { return s.db }

// SaveCase inserts (or updates, keyed by id) one case record and returns its id.
func (s *Store) SaveCase(ctx context.Context, rec types.CaseRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	diagJSON, err := json.Marshal(rec.Diagnosis)
	if err != nil {
		return "", fmt.Errorf("marshal diagnosis: %w", err)
	}
	imgJSON, err := json.Marshal(rec.ImageURLs)
	if err != nil {
		return "", fmt.Errorf("marshal image urls: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cases (id, phone, language, crop, location, summary, diagnosis, image_urls, pdf_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			diagnosis = excluded.diagnosis,
			pdf_url = excluded.pdf_url`,
		rec.ID, rec.Phone, rec.Language, rec.Crop, rec.Location, rec.Summary, string(diagJSON), string(imgJSON), rec.PdfURL)
	if err != nil {
		return "", fmt.Errorf("insert case: %w", err)
	}
	return rec.ID, nil
}

// GetCase loads one case by id.
func (s *Store) GetCase(ctx context.Context, id string) (types.CaseRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, phone, language, crop, location, summary, diagnosis, image_urls, pdf_url, created_at
		FROM cases WHERE id = ?`, id)
	return scanCase(row)
}

// ListCasesByPhone returns the farmer's case history, newest first.
func (s *Store) ListCasesByPhone(ctx context.Context, phone string, limit int) ([]types.CaseRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, language, crop, location, summary, diagnosis, image_urls, pdf_url, created_at
		FROM cases WHERE phone = ? ORDER BY created_at DESC LIMIT ?`, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.CaseRecord
	for rows.Next() {
		rec, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (types.CaseRecord, error) {
	var rec types.CaseRecord
	var diagJSON, imgJSON string
	err := row.Scan(&rec.ID, &rec.Phone, &rec.Language, &rec.Crop, &rec.Location,
		&rec.Summary, &diagJSON, &imgJSON, &rec.PdfURL, &rec.CreatedAt)
	if err != nil {
		return types.CaseRecord{}, err
	}
	if err := json.Unmarshal([]byte(diagJSON), &rec.Diagnosis); err != nil {
		return types.CaseRecord{}, fmt.Errorf("unmarshal diagnosis: %w", err)
	}
	if err := json.Unmarshal([]byte(imgJSON), &rec.ImageURLs); err != nil {
		return types.CaseRecord{}, fmt.Errorf("unmarshal image urls: %w", err)
	}
	return rec, nil
}

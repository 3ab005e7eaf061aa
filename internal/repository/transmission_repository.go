package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinsg/medexam-api/internal/models"
)

// TransmissionRepository persists agency delivery records for submitted
// reports.
type TransmissionRepository struct {
	db *sqlx.DB
}

// NewTransmissionRepository constructs the repository.
func NewTransmissionRepository(db *sqlx.DB) *TransmissionRepository {
	return &TransmissionRepository{db: db}
}

// Create inserts a queued transmission row.
func (r *TransmissionRepository) Create(ctx context.Context, tm *models.Transmission) error {
	if tm.ID == "" {
		tm.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tm.CreatedAt.IsZero() {
		tm.CreatedAt = now
	}
	tm.UpdatedAt = now
	if tm.Status == "" {
		tm.Status = models.TransmissionQueued
	}
	const query = `INSERT INTO transmissions (id, report_id, agency, status, attempts, artifact_path, last_error, sent_at, created_at, updated_at)
	VALUES (:id, :report_id, :agency, :status, :attempts, :artifact_path, :last_error, :sent_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tm); err != nil {
		return fmt.Errorf("create transmission: %w", err)
	}
	return nil
}

// GetByID fetches a transmission by identifier.
func (r *TransmissionRepository) GetByID(ctx context.Context, id string) (*models.Transmission, error) {
	const query = `SELECT id, report_id, agency, status, attempts, artifact_path, last_error, sent_at, created_at, updated_at
	FROM transmissions WHERE id = $1`
	var tm models.Transmission
	if err := r.db.GetContext(ctx, &tm, query, id); err != nil {
		return nil, err
	}
	return &tm, nil
}

// ListByReport returns transmissions for a report, oldest first.
func (r *TransmissionRepository) ListByReport(ctx context.Context, reportID string) ([]models.Transmission, error) {
	const query = `SELECT id, report_id, agency, status, attempts, artifact_path, last_error, sent_at, created_at, updated_at
	FROM transmissions WHERE report_id = $1 ORDER BY created_at ASC`
	var items []models.Transmission
	if err := r.db.SelectContext(ctx, &items, query, reportID); err != nil {
		return nil, fmt.Errorf("list transmissions: %w", err)
	}
	return items, nil
}

// ListRecent returns the most recently updated transmissions.
func (r *TransmissionRepository) ListRecent(ctx context.Context, limit int) ([]models.Transmission, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	const query = `SELECT id, report_id, agency, status, attempts, artifact_path, last_error, sent_at, created_at, updated_at
	FROM transmissions ORDER BY updated_at DESC LIMIT $1`
	var items []models.Transmission
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("list recent transmissions: %w", err)
	}
	return items, nil
}

// MarkSent records a successful delivery and where the rendered artifact
// landed.
func (r *TransmissionRepository) MarkSent(ctx context.Context, id string, attempts int, artifactPath string, sentAt time.Time) error {
	const query = `UPDATE transmissions SET status = $2, attempts = $3, artifact_path = $4, sent_at = $5, last_error = NULL, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.TransmissionSent, attempts, artifactPath, sentAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark transmission sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt with its error.
func (r *TransmissionRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	const query = `UPDATE transmissions SET status = $2, attempts = $3, last_error = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.TransmissionFailed, attempts, lastError, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark transmission failed: %w", err)
	}
	return nil
}

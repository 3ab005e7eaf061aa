package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinsg/medexam-api/internal/models"
)

// ErrRevisionConflict signals that a conditional update found the stored
// revision had already advanced past the caller's copy.
var ErrRevisionConflict = errors.New("report revision conflict")

// MaxPageSize caps a single List page. Callers that page through the full
// register must keep their batch size at or below this.
const MaxPageSize = 200

// ReportRepository persists examination reports and their append-only
// submission history.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// reportRow flattens the aggregate for sqlx scanning.
type reportRow struct {
	ID               string          `db:"id"`
	ExamType         string          `db:"exam_type"`
	Status           string          `db:"status"`
	PatientName      string          `db:"patient_name"`
	PatientID        string          `db:"patient_identifier"`
	PatientDOB       *time.Time      `db:"patient_dob"`
	PatientContact   *string         `db:"patient_contact"`
	ExaminationDate  *time.Time      `db:"examination_date"`
	FormData         json.RawMessage `db:"form_data"`
	CreatedBy        string          `db:"created_by"`
	AssignedDoctorID *string         `db:"assigned_doctor_id"`
	ApprovedBy       *string         `db:"approved_by"`
	RejectedReason   *string         `db:"rejected_reason"`
	Revision         int             `db:"revision"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

const reportColumns = `id, exam_type, status, patient_name, patient_identifier, patient_dob, patient_contact,
       examination_date, form_data, created_by, assigned_doctor_id, approved_by, rejected_reason,
       revision, created_at, updated_at`

func (row *reportRow) toModel() *models.Report {
	return &models.Report{
		ID:       row.ID,
		ExamType: models.ExamType(row.ExamType),
		Status:   models.ReportStatus(row.Status),
		Patient: models.Patient{
			Name:        row.PatientName,
			Identifier:  row.PatientID,
			DateOfBirth: row.PatientDOB,
			Contact:     row.PatientContact,
		},
		ExaminationDate:  row.ExaminationDate,
		FormData:         row.FormData,
		CreatedBy:        row.CreatedBy,
		AssignedDoctorID: row.AssignedDoctorID,
		ApprovedBy:       row.ApprovedBy,
		RejectedReason:   row.RejectedReason,
		Revision:         row.Revision,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func fromModel(report *models.Report) *reportRow {
	return &reportRow{
		ID:               report.ID,
		ExamType:         string(report.ExamType),
		Status:           string(report.Status),
		PatientName:      report.Patient.Name,
		PatientID:        report.Patient.Identifier,
		PatientDOB:       report.Patient.DateOfBirth,
		PatientContact:   report.Patient.Contact,
		ExaminationDate:  report.ExaminationDate,
		FormData:         report.FormData,
		CreatedBy:        report.CreatedBy,
		AssignedDoctorID: report.AssignedDoctorID,
		ApprovedBy:       report.ApprovedBy,
		RejectedReason:   report.RejectedReason,
		Revision:         report.Revision,
		CreatedAt:        report.CreatedAt,
		UpdatedAt:        report.UpdatedAt,
	}
}

// Create inserts a new report at revision 1 together with its creation
// event in one transaction.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report, event *models.SubmissionEvent) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	report.Revision = 1
	if report.Status == "" {
		report.Status = models.StatusDraft
	}
	if len(report.FormData) == 0 {
		report.FormData = json.RawMessage("{}")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create report: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO reports
	(id, exam_type, status, patient_name, patient_identifier, patient_dob, patient_contact,
	 examination_date, form_data, created_by, assigned_doctor_id, approved_by, rejected_reason,
	 revision, created_at, updated_at)
	VALUES (:id, :exam_type, :status, :patient_name, :patient_identifier, :patient_dob, :patient_contact,
	 :examination_date, :form_data, :created_by, :assigned_doctor_id, :approved_by, :rejected_reason,
	 :revision, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, fromModel(report)); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if event != nil {
		event.ReportID = report.ID
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID fetches a report by identifier.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	var row reportRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// List returns reports matching the filter, latest first.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + reportColumns + ` FROM reports`)
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 5)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ExamType != "" {
		args = append(args, filter.ExamType)
		conditions = append(conditions, fmt.Sprintf("exam_type = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.AssignedDoctorID != "" {
		args = append(args, filter.AssignedDoctorID)
		conditions = append(conditions, fmt.Sprintf("assigned_doctor_id = $%d", len(args)))
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		conditions = append(conditions, fmt.Sprintf("patient_identifier = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY updated_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	reports := make([]models.Report, len(rows))
	for i := range rows {
		reports[i] = *rows[i].toModel()
	}
	return reports, nil
}

// UpdateWithEvents persists the report conditioned on the expected revision
// and appends the supplied history events in the same transaction. The whole
// call is all-or-nothing: a revision mismatch leaves both the report and its
// history untouched and returns ErrRevisionConflict.
func (r *ReportRepository) UpdateWithEvents(ctx context.Context, report *models.Report, expectedRevision int, events ...*models.SubmissionEvent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update report: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	report.UpdatedAt = time.Now().UTC()
	report.Revision = expectedRevision + 1

	const query = `UPDATE reports SET
	status = :status,
	patient_name = :patient_name,
	patient_identifier = :patient_identifier,
	patient_dob = :patient_dob,
	patient_contact = :patient_contact,
	examination_date = :examination_date,
	form_data = :form_data,
	assigned_doctor_id = :assigned_doctor_id,
	approved_by = :approved_by,
	rejected_reason = :rejected_reason,
	revision = :revision,
	updated_at = :updated_at
	WHERE id = :id AND revision = :expected_revision`

	params := struct {
		reportRow
		ExpectedRevision int `db:"expected_revision"`
	}{*fromModel(report), expectedRevision}

	result, err := tx.NamedExecContext(ctx, query, params)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report result: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM reports WHERE id = $1)`, report.ID); err != nil {
			return fmt.Errorf("check report existence: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		return ErrRevisionConflict
	}

	for _, event := range events {
		event.ReportID = report.ID
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountByStatus aggregates report counts per lifecycle status.
func (r *ReportRepository) CountByStatus(ctx context.Context) (map[models.ReportStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM reports GROUP BY status`
	rows := []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}
	counts := make(map[models.ReportStatus]int, len(rows))
	for _, row := range rows {
		counts[models.ReportStatus(row.Status)] = row.Total
	}
	return counts, nil
}

// ListEvents returns the submission history for a report in insertion order.
func (r *ReportRepository) ListEvents(ctx context.Context, reportID string) ([]models.SubmissionEvent, error) {
	const query = `SELECT id, report_id, type, actor_id, actor_role, details, created_at
	FROM submission_events WHERE report_id = $1 ORDER BY created_at ASC, id ASC`
	var events []models.SubmissionEvent
	if err := r.db.SelectContext(ctx, &events, query, reportID); err != nil {
		return nil, fmt.Errorf("list submission events: %w", err)
	}
	return events, nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, event *models.SubmissionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage("{}")
	}
	const query = `INSERT INTO submission_events (id, report_id, type, actor_id, actor_role, details, created_at)
	VALUES (:id, :report_id, :type, :actor_id, :actor_role, :details, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append submission event: %w", err)
	}
	return nil
}

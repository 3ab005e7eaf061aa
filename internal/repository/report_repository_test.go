package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/clinsg/medexam-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func reportRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "exam_type", "status", "patient_name", "patient_identifier", "patient_dob", "patient_contact",
		"examination_date", "form_data", "created_by", "assigned_doctor_id", "approved_by", "rejected_reason",
		"revision", "created_at", "updated_at",
	})
}

func TestReportRepositoryCreateInsertsReportAndEvent(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	report := &models.Report{
		ExamType:  models.ExamFMWSixMonthly,
		Patient:   models.Patient{Name: "Tan Mei Ling", Identifier: "G1234567X"},
		CreatedBy: "nurse-1",
	}
	event := &models.SubmissionEvent{
		Type:      models.EventCreated,
		ActorID:   "nurse-1",
		ActorRole: models.RoleNurse,
	}
	require.NoError(t, repo.Create(context.Background(), report, event))
	require.NotEmpty(t, report.ID)
	require.Equal(t, 1, report.Revision)
	require.Equal(t, models.StatusDraft, report.Status)
	require.Equal(t, report.ID, event.ReportID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	now := time.Now()
	rows := reportRows().AddRow(
		"rep-1", "FMW_SIX_MONTHLY", "draft", "Tan Mei Ling", "G1234567X", nil, nil,
		nil, []byte(`{}`), "nurse-1", nil, nil, nil,
		1, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, exam_type, status")).
		WithArgs("rep-1").
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), "rep-1")
	require.NoError(t, err)
	require.Equal(t, "rep-1", found.ID)
	require.Equal(t, models.ExamFMWSixMonthly, found.ExamType)
	require.Equal(t, "Tan Mei Ling", found.Patient.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	now := time.Now()
	rows := reportRows().AddRow(
		"rep-2", "AGED_DRIVERS", "pending_approval", "Lim Ah Kow", "S0412345A", nil, nil,
		nil, []byte(`{}`), "nurse-1", "doc-1", nil, nil,
		3, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, exam_type, status")).
		WithArgs("pending_approval", "AGED_DRIVERS", "doc-1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.ReportFilter{
		Status:           []models.ReportStatus{models.StatusPendingApproval},
		ExamType:         models.ExamAgedDrivers,
		AssignedDoctorID: "doc-1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "rep-2", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateWithEvents(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	report := &models.Report{
		ID:       "rep-1",
		ExamType: models.ExamFMWSixMonthly,
		Status:   models.StatusSubmitted,
		Patient:  models.Patient{Name: "Tan Mei Ling", Identifier: "G1234567X"},
		FormData: []byte(`{}`),
		Revision: 2,
	}
	approved := &models.SubmissionEvent{Type: models.EventApproved, ActorID: "doc-1", ActorRole: models.RoleDoctor}
	submitted := &models.SubmissionEvent{Type: models.EventSubmitted, ActorID: "doc-1", ActorRole: models.RoleDoctor}
	require.NoError(t, repo.UpdateWithEvents(context.Background(), report, 2, approved, submitted))
	require.Equal(t, 3, report.Revision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateRevisionConflict(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("rep-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	report := &models.Report{ID: "rep-1", FormData: []byte(`{}`), Revision: 1}
	err := repo.UpdateWithEvents(context.Background(), report, 1)
	require.ErrorIs(t, err, ErrRevisionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateMissingReport(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	report := &models.Report{ID: "missing", FormData: []byte(`{}`), Revision: 1}
	err := repo.UpdateWithEvents(context.Background(), report, 1)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListEvents(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "report_id", "type", "actor_id", "actor_role", "details", "created_at"}).
		AddRow("evt-1", "rep-1", "created", "nurse-1", "NURSE", []byte(`{}`), now).
		AddRow("evt-2", "rep-1", "submitted", "doc-1", "DOCTOR", []byte(`{"previousStatus":"draft"}`), now.Add(time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, report_id, type")).
		WithArgs("rep-1").
		WillReturnRows(rows)

	events, err := repo.ListEvents(context.Background(), "rep-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, models.EventCreated, events[0].Type)
	require.Equal(t, models.EventSubmitted, events[1].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/clinsg/medexam-api/internal/models"
)

func newTransmissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTransmissionRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newTransmissionRepoMock(t)
	defer cleanup()

	repo := NewTransmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transmissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tm := &models.Transmission{
		ReportID: "rep-1",
		Agency:   models.AgencyMOM,
	}
	require.NoError(t, repo.Create(context.Background(), tm))
	require.NotEmpty(t, tm.ID)
	require.Equal(t, models.TransmissionQueued, tm.Status)
	require.False(t, tm.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransmissionRepositoryListByReport(t *testing.T) {
	db, mock, cleanup := newTransmissionRepoMock(t)
	defer cleanup()

	repo := NewTransmissionRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "report_id", "agency", "status", "attempts", "artifact_path", "last_error", "sent_at", "created_at", "updated_at"}).
		AddRow("tm-1", "rep-1", "MOM", "FAILED", 1, nil, "disk full", nil, now, now).
		AddRow("tm-2", "rep-1", "MOM", "SENT", 2, "FMW_SIX_MONTHLY-rep-1.pdf", nil, now.Add(time.Minute), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, report_id, agency")).
		WithArgs("rep-1").
		WillReturnRows(rows)

	list, err := repo.ListByReport(context.Background(), "rep-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, models.TransmissionFailed, list[0].Status)
	require.Equal(t, models.TransmissionSent, list[1].Status)
	require.NotNil(t, list[1].ArtifactPath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransmissionRepositoryMarkSent(t *testing.T) {
	db, mock, cleanup := newTransmissionRepoMock(t)
	defer cleanup()

	repo := NewTransmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE transmissions SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSent(context.Background(), "tm-1", 1, "FMW_SIX_MONTHLY-rep-1.pdf", time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransmissionRepositoryMarkFailed(t *testing.T) {
	db, mock, cleanup := newTransmissionRepoMock(t)
	defer cleanup()

	repo := NewTransmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE transmissions SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), "tm-1", 1, "rendering failed")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/repository"
	"github.com/clinsg/medexam-api/pkg/export"
	"github.com/clinsg/medexam-api/pkg/storage"
)

type registerStub struct{}

func (registerStub) List(_ context.Context, filter models.ReportFilter) ([]models.Report, error) {
	if filter.Offset > 0 {
		return nil, nil
	}
	examDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	return []models.Report{
		{
			ID:              "rep-1",
			ExamType:        models.ExamFMWSixMonthly,
			Status:          models.StatusSubmitted,
			Patient:         models.Patient{Name: "Tan Mei Ling", Identifier: "G1234567X"},
			ExaminationDate: &examDate,
			Revision:        4,
			UpdatedAt:       examDate,
		},
	}, nil
}

type deliveryLogStub struct{}

func (deliveryLogStub) ListRecent(context.Context, int) ([]models.Transmission, error) {
	artifact := "FMW_SIX_MONTHLY-rep-1.pdf"
	return []models.Transmission{
		{ID: "tm-1", ReportID: "rep-1", Agency: models.AgencyMOM, Status: models.TransmissionSent, Attempts: 1, ArtifactPath: &artifact},
	}, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(registerStub{}, deliveryLogStub{}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateRegisterCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-1",
		Type:      models.ExportTypeRegister,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/export/")

	path := store.Path(result.RelativePath)
	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(payload)
	require.Contains(t, content, "Tan Mei Ling")
	require.Contains(t, content, "FMW_SIX_MONTHLY")
	require.True(t, strings.HasPrefix(content, "ID,Exam Type,Status"))
}

func TestExportServiceGenerateTransmissionLogPDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-2",
		Type:      models.ExportTypeTransmissionLog,
		Params:    models.ExportJobParams{Format: models.ExportFormatPDF},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ExportFormatPDF, result.Format)

	path := filepath.Clean(store.Path(result.RelativePath))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceRejectsUnknownType(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:     "job-3",
		Type:   "inventory",
		Params: models.ExportJobParams{Format: models.ExportFormatCSV},
	}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported export type")
}

func TestNewExportServiceClampsBatchSize(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)

	// A batch larger than the repository page cap would be clamped by the
	// repository mid-export and skip rows between pages.
	svc := NewExportService(registerStub{}, deliveryLogStub{}, store, signer,
		ExportConfig{BatchSize: 500}, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	require.Equal(t, repository.MaxPageSize, svc.cfg.BatchSize)

	svc = NewExportService(registerStub{}, deliveryLogStub{}, store, signer,
		ExportConfig{BatchSize: 100}, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	require.Equal(t, 100, svc.cfg.BatchSize)
}

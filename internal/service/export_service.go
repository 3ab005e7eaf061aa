package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/repository"
	"github.com/clinsg/medexam-api/pkg/export"
	"github.com/clinsg/medexam-api/pkg/storage"
)

type registerLister interface {
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
}

type deliveryLogLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.Transmission, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	BatchSize int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService builds export datasets and persists rendered files.
type ExportService struct {
	reports       registerLister
	transmissions deliveryLogLister
	storage       fileStorage
	csv           csvRenderer
	pdf           pdfRenderer
	signer        *storage.SignedURLSigner
	logger        *zap.Logger
	cfg           ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(reports registerLister, transmissions deliveryLogLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	// A batch above the repository's page cap would be silently clamped
	// mid-export and skip rows between pages.
	if cfg.BatchSize <= 0 || cfg.BatchSize > repository.MaxPageSize {
		cfg.BatchSize = repository.MaxPageSize
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		reports:       reports,
		transmissions: transmissions,
		storage:       store,
		csv:           csv,
		pdf:           pdf,
		signer:        signer,
		logger:        logger,
		cfg:           cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", strings.ToLower(string(job.Type)), timestamp, job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeRegister:
		return s.buildRegisterDataset(ctx, job.Params)
	case models.ExportTypeTransmissionLog:
		return s.buildTransmissionDataset(ctx)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildRegisterDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	headers := []string{"ID", "Exam Type", "Status", "Patient", "Identifier", "Examination Date", "Assigned Doctor", "Revision", "Updated At"}
	rows := make([]map[string]string, 0, s.cfg.BatchSize)

	offset := 0
	for {
		batch, err := s.reports.List(ctx, models.ReportFilter{
			Status:   params.Statuses,
			ExamType: params.ExamType,
			Limit:    s.cfg.BatchSize,
			Offset:   offset,
		})
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, report := range batch {
			rows = append(rows, map[string]string{
				"ID":               report.ID,
				"Exam Type":        string(report.ExamType),
				"Status":           string(report.Status),
				"Patient":          report.Patient.Name,
				"Identifier":       report.Patient.Identifier,
				"Examination Date": formatOptionalDate(report.ExaminationDate),
				"Assigned Doctor":  derefString(report.AssignedDoctorID),
				"Revision":         fmt.Sprintf("%d", report.Revision),
				"Updated At":       report.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(batch) < s.cfg.BatchSize {
			break
		}
		offset += s.cfg.BatchSize
	}

	return export.Dataset{Headers: headers, Rows: rows}, "Examination Report Register", nil
}

func (s *ExportService) buildTransmissionDataset(ctx context.Context) (export.Dataset, string, error) {
	if s.transmissions == nil {
		return export.Dataset{}, "", fmt.Errorf("transmission log unavailable")
	}
	headers := []string{"ID", "Report", "Agency", "Status", "Attempts", "Artifact", "Last Error", "Sent At"}
	items, err := s.transmissions.ListRecent(ctx, 100)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(items))
	for _, tm := range items {
		rows = append(rows, map[string]string{
			"ID":         tm.ID,
			"Report":     tm.ReportID,
			"Agency":     string(tm.Agency),
			"Status":     string(tm.Status),
			"Attempts":   fmt.Sprintf("%d", tm.Attempts),
			"Artifact":   derefString(tm.ArtifactPath),
			"Last Error": derefString(tm.LastError),
			"Sent At":    formatOptionalTime(tm.SentAt),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, "Agency Transmission Log", nil
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

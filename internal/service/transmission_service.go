package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/schema"
	appErrors "github.com/clinsg/medexam-api/pkg/errors"
	"github.com/clinsg/medexam-api/pkg/export"
	"github.com/clinsg/medexam-api/pkg/jobs"
)

type transmissionStore interface {
	Create(ctx context.Context, tm *models.Transmission) error
	GetByID(ctx context.Context, id string) (*models.Transmission, error)
	ListByReport(ctx context.Context, reportID string) ([]models.Transmission, error)
	MarkSent(ctx context.Context, id string, attempts int, artifactPath string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error
}

type artifactStorage interface {
	Save(filename string, data []byte) (string, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// TransmissionConfig tunes the delivery worker pool.
type TransmissionConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// TransmissionService renders a submitted report into the agency document
// and records the delivery outcome. Rendering happens off the request path
// on a worker queue; a submission never waits for its transmission.
type TransmissionService struct {
	store    transmissionStore
	storage  artifactStorage
	renderer documentRenderer
	logger   *zap.Logger
	queue    *jobs.Queue
}

type transmissionJob struct {
	TransmissionID string
	Report         *models.Report
}

// NewTransmissionService constructs the service and its worker queue.
func NewTransmissionService(store transmissionStore, storage artifactStorage, cfg TransmissionConfig, logger *zap.Logger) *TransmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TransmissionService{
		store:    store,
		storage:  storage,
		renderer: export.NewDocumentRenderer(),
		logger:   logger,
	}
	svc.queue = jobs.NewQueue("agency-transmissions", svc.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *TransmissionService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *TransmissionService) Stop() {
	s.queue.Stop()
}

// Dispatch records a queued transmission for a submitted report and hands
// it to the workers.
func (s *TransmissionService) Dispatch(ctx context.Context, report *models.Report) error {
	spec, ok := schema.For(report.ExamType)
	if !ok {
		return fmt.Errorf("no schema registered for exam type %s", report.ExamType)
	}
	tm := &models.Transmission{
		ReportID: report.ID,
		Agency:   spec.Agency,
		Status:   models.TransmissionQueued,
	}
	if err := s.store.Create(ctx, tm); err != nil {
		return fmt.Errorf("record transmission: %w", err)
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      tm.ID,
		Type:    "render_and_send",
		Payload: transmissionJob{TransmissionID: tm.ID, Report: report.Clone()},
	})
}

// ListByReport returns the delivery history of a report.
func (s *TransmissionService) ListByReport(ctx context.Context, reportID string) ([]models.Transmission, error) {
	items, err := s.store.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transmissions")
	}
	return items, nil
}

func (s *TransmissionService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(transmissionJob)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	report := payload.Report

	data, err := s.render(report)
	if err == nil {
		filename := fmt.Sprintf("%s-%s.pdf", report.ExamType, report.ID)
		_, saveErr := s.storage.Save(filename, data)
		if saveErr == nil {
			if markErr := s.store.MarkSent(ctx, payload.TransmissionID, job.Attempt+1, filename, time.Now().UTC()); markErr != nil {
				s.logger.Error("failed to mark transmission sent",
					zap.String("transmission_id", payload.TransmissionID), zap.Error(markErr))
			}
			return nil
		}
		err = saveErr
	}

	if markErr := s.store.MarkFailed(ctx, payload.TransmissionID, job.Attempt+1, err.Error()); markErr != nil {
		s.logger.Error("failed to mark transmission failed",
			zap.String("transmission_id", payload.TransmissionID), zap.Error(markErr))
	}
	return err
}

// render maps the report onto its exam-type schema and produces the
// agency PDF.
func (s *TransmissionService) render(report *models.Report) ([]byte, error) {
	spec, ok := schema.For(report.ExamType)
	if !ok {
		return nil, fmt.Errorf("no schema registered for exam type %s", report.ExamType)
	}
	doc, err := schema.DecodeFormData(report.FormData)
	if err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}

	out := export.Document{
		Title:       spec.Title,
		Subtitle:    fmt.Sprintf("Agency: %s", spec.Agency),
		Declaration: spec.DeclarationText,
		Meta: []export.KeyValue{
			{Label: "Patient", Value: report.Patient.Name},
			{Label: "Identifier", Value: report.Patient.Identifier},
			{Label: "Date of birth", Value: formatDate(report.Patient.DateOfBirth)},
			{Label: "Examination date", Value: formatDate(report.ExaminationDate)},
			{Label: "Report ID", Value: report.ID},
		},
	}

	for _, section := range spec.Sections {
		rendered := export.DocumentSection{Title: section.Title}
		for _, field := range section.Fields {
			value, present := doc.Lookup(field.ID)
			if !present {
				continue
			}
			rendered.Items = append(rendered.Items, export.KeyValue{
				Label: field.Label,
				Value: formatFieldValue(value),
			})
		}
		if section.CertificationField != "" && doc.Bool(section.CertificationField) {
			rendered.Items = append(rendered.Items, export.KeyValue{Label: "Certified", Value: "Yes"})
		}
		if len(rendered.Items) > 0 {
			out.Sections = append(out.Sections, rendered)
		}
	}
	return s.renderer.Render(out)
}

func formatDate(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.Format("2006-01-02")
}

func formatFieldValue(value interface{}) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

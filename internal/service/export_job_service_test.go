package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinsg/medexam-api/internal/dto"
	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/repository"
	"github.com/clinsg/medexam-api/pkg/jobs"
)

type exportJobRepoStub struct {
	jobs      map[string]*models.ExportJob
	listCalls int
	updateErr error
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportJobRepoStub) Create(_ context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportJobRepoStub) GetByID(_ context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *exportJobRepoStub) Update(_ context.Context, id string, params repository.UpdateExportJobParams) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportJobRepoStub) ListQueued(_ context.Context, _ int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *exportJobRepoStub) ListFinishedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	r.listCalls++
	var finished []models.ExportJob
	for _, job := range r.jobs {
		if job.Status != models.ExportStatusFinished || job.FinishedAt == nil || !job.FinishedAt.Before(cutoff) {
			continue
		}
		finished = append(finished, *job)
		if len(finished) == limit {
			break
		}
	}
	return finished, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newExportJobServiceForTest(t *testing.T) (*ExportJobService, *exportJobRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newExportJobRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t)
	svc := NewExportJobService(repo, queue, exportSvc, zap.NewNop(), ExportJobServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return svc, repo, queue, exportSvc
}

func TestExportJobServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:     "register",
		Format:   "csv",
		Statuses: []string{"submitted"},
	}, "admin-1")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Contains(t, repo.jobs, resp.ID)
	assert.Equal(t, []models.ReportStatus{models.StatusSubmitted}, repo.jobs[resp.ID].Params.Statuses)
}

func TestExportJobServiceCreateJobRejectsUnknownType(t *testing.T) {
	svc, _, _, _ := newExportJobServiceForTest(t)
	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{Type: "inventory", Format: "csv"}, "admin-1")
	require.Error(t, err)

	_, err = svc.CreateJob(context.Background(), dto.ExportRequest{Type: "register", Format: "xlsx"}, "admin-1")
	require.Error(t, err)
}

func TestExportJobServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-1",
		Type:      models.ExportTypeRegister,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusFinished,
		Progress:  100,
		CreatedBy: "admin-1",
	}
	repo.jobs[job.ID] = job

	resp, err := svc.GetStatus(context.Background(), job.ID, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, job.Status, resp.Status)
	assert.Equal(t, job.Progress, resp.Progress)

	_, err = svc.GetStatus(context.Background(), job.ID, "doc-1", models.RoleDoctor)
	require.Error(t, err)
}

func TestExportJobServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-download",
		Type:      models.ExportTypeRegister,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusFinished,
		Progress:  100,
		CreatedBy: "admin-1",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	download.File.Close()
}

type exportGeneratorStub struct {
	result *ExportResult
	err    error
}

func (e exportGeneratorStub) Generate(context.Context, *models.ExportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	repo := &exportJobRepoStub{
		jobs: map[string]*models.ExportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ExportTypeRegister,
				Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
				Status:    models.ExportStatusQueued,
				CreatedBy: "admin-1",
			},
		},
	}
	exporter := exportGeneratorStub{result: &ExportResult{URL: "/api/v1/export/token"}}
	worker := NewExportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusFinished, repo.jobs["job-1"].Status)
	require.Equal(t, 100, repo.jobs["job-1"].Progress)
}

func TestExportWorkerHandleFailureExhaustsRetries(t *testing.T) {
	repo := &exportJobRepoStub{
		jobs: map[string]*models.ExportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ExportTypeRegister,
				Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
				Status:    models.ExportStatusQueued,
				CreatedBy: "admin-1",
			},
		},
	}
	exporter := exportGeneratorStub{err: errors.New("boom")}
	worker := NewExportWorker(repo, exporter, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusFailed, repo.jobs["job-1"].Status)
}

func TestExportJobServiceCleanupDrainsFullPages(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	past := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 150; i++ {
		id := uuid.NewString()
		repo.jobs[id] = &models.ExportJob{
			ID:         id,
			Status:     models.ExportStatusFinished,
			FinishedAt: &past,
		}
	}

	done := make(chan struct{})
	go func() {
		svc.cleanupExpired(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not drain the expired backlog")
	}

	for _, job := range repo.jobs {
		require.Equal(t, models.ExportStatusExpired, job.Status)
	}
	// 150 rows is one full page plus a partial one.
	require.LessOrEqual(t, repo.listCalls, 3)
}

func TestExportJobServiceCleanupBacksOffWhenRowsCannotExpire(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	repo.updateErr = errors.New("update unavailable")
	past := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 100; i++ {
		id := uuid.NewString()
		repo.jobs[id] = &models.ExportJob{
			ID:         id,
			Status:     models.ExportStatusFinished,
			FinishedAt: &past,
		}
	}

	done := make(chan struct{})
	go func() {
		svc.cleanupExpired(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup kept retrying a page it cannot expire")
	}
	require.Equal(t, 1, repo.listCalls)
}

func TestExportJobServiceCleanupHonorsContext(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	past := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 100; i++ {
		id := uuid.NewString()
		repo.jobs[id] = &models.ExportJob{
			ID:         id,
			Status:     models.ExportStatusFinished,
			FinishedAt: &past,
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.cleanupExpired(ctx)
	require.Zero(t, repo.listCalls)
}

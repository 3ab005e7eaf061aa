package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinsg/medexam-api/internal/dto"
	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/repository"
	"github.com/clinsg/medexam-api/internal/workflow"
	appErrors "github.com/clinsg/medexam-api/pkg/errors"
)

type reportRepoStub struct {
	reports map[string]*models.Report
	events  map[string][]models.SubmissionEvent
	filter  models.ReportFilter
	nextID  int
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{
		reports: make(map[string]*models.Report),
		events:  make(map[string][]models.SubmissionEvent),
	}
}

func (r *reportRepoStub) Create(ctx context.Context, report *models.Report, event *models.SubmissionEvent) error {
	r.nextID++
	if report.ID == "" {
		report.ID = "rep-" + string(rune('0'+r.nextID))
	}
	report.Revision = 1
	report.CreatedAt = time.Now().UTC()
	report.UpdatedAt = report.CreatedAt
	r.reports[report.ID] = report.Clone()
	r.appendEvents(report.ID, event)
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.Report, error) {
	if report, ok := r.reports[id]; ok {
		return report.Clone(), nil
	}
	return nil, sql.ErrNoRows
}

func (r *reportRepoStub) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	r.filter = filter
	result := make([]models.Report, 0, len(r.reports))
	for _, report := range r.reports {
		result = append(result, *report.Clone())
	}
	return result, nil
}

func (r *reportRepoStub) UpdateWithEvents(ctx context.Context, report *models.Report, expectedRevision int, events ...*models.SubmissionEvent) error {
	stored, ok := r.reports[report.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if stored.Revision != expectedRevision {
		return repository.ErrRevisionConflict
	}
	report.Revision = expectedRevision + 1
	report.UpdatedAt = time.Now().UTC()
	r.reports[report.ID] = report.Clone()
	r.appendEvents(report.ID, events...)
	return nil
}

func (r *reportRepoStub) ListEvents(ctx context.Context, reportID string) ([]models.SubmissionEvent, error) {
	return append([]models.SubmissionEvent(nil), r.events[reportID]...), nil
}

func (r *reportRepoStub) appendEvents(reportID string, events ...*models.SubmissionEvent) {
	for _, event := range events {
		event.ReportID = reportID
		event.CreatedAt = time.Now().UTC()
		r.events[reportID] = append(r.events[reportID], *event)
	}
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type dispatcherStub struct {
	reports []*models.Report
}

func (d *dispatcherStub) Dispatch(ctx context.Context, report *models.Report) error {
	d.reports = append(d.reports, report)
	return nil
}

var (
	nurse  = workflow.Actor{ID: "nurse-1", Role: models.RoleNurse}
	doctor = workflow.Actor{ID: "doc-1", Role: models.RoleDoctor}
)

func completeFMWForm() json.RawMessage {
	return json.RawMessage(`{
		"tests": {"pregnancy": "negative", "syphilis": "non-reactive"},
		"medicalDeclaration": {"certified": true, "fitForWork": true}
	}`)
}

func createDraft(t *testing.T, svc *SubmissionService, actor workflow.Actor, formData json.RawMessage) *models.Report {
	t.Helper()
	report, err := svc.CreateReport(context.Background(), dto.CreateReportRequest{
		ExamType: models.ExamFMWSixMonthly,
		Patient: dto.PatientPayload{
			Name:        "Tan Mei Ling",
			Identifier:  "S9012345A",
			DateOfBirth: "1990-01-01",
		},
		ExaminationDate: "2025-11-03",
		FormData:        formData,
	}, actor)
	require.NoError(t, err)
	return report
}

func TestCreateReportStartsAtDraftRevisionOne(t *testing.T) {
	repo := newReportRepoStub()
	audit := &auditStub{}
	svc := NewSubmissionService(repo, audit, nil)

	report := createDraft(t, svc, nurse, json.RawMessage(`{}`))
	require.Equal(t, models.StatusDraft, report.Status)
	require.Equal(t, 1, report.Revision)
	require.Equal(t, nurse.ID, report.CreatedBy)

	events, err := repo.ListEvents(context.Background(), report.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, models.EventCreated, events[0].Type)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionReportCreate, audit.logs[0].Action)
}

func TestCreateReportRejectsUnknownExamType(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)

	_, err := svc.CreateReport(context.Background(), dto.CreateReportRequest{
		ExamType: "UNKNOWN",
		Patient:  dto.PatientPayload{Name: "Tan Mei Ling", Identifier: "S9012345A"},
	}, nurse)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSaveDraftAllowsIncompleteForm(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := createDraft(t, svc, nurse, json.RawMessage(`{}`))

	outcome, err := svc.SaveDraft(context.Background(), report.ID, dto.SaveReportRequest{
		FormData: json.RawMessage(`{"tests": {"pregnancy": "negative"}}`),
		Revision: report.Revision,
	}, nurse)
	require.NoError(t, err)
	require.False(t, outcome.Failed())
	require.Equal(t, 2, outcome.Report.Revision)
}

func TestSaveDraftStaleRevisionConflicts(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := createDraft(t, svc, nurse, json.RawMessage(`{}`))

	_, err := svc.SaveDraft(context.Background(), report.ID, dto.SaveReportRequest{
		FormData: json.RawMessage(`{}`),
		Revision: report.Revision,
	}, nurse)
	require.NoError(t, err)

	// Second writer still holds revision 1.
	_, err = svc.SaveDraft(context.Background(), report.ID, dto.SaveReportRequest{
		FormData: json.RawMessage(`{}`),
		Revision: report.Revision,
	}, nurse)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConcurrentModification.Code, appErrors.FromError(err).Code)
}

func TestSaveDraftOnlyOwnerOrAdmin(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := createDraft(t, svc, nurse, json.RawMessage(`{}`))

	_, err := svc.SaveDraft(context.Background(), report.ID, dto.SaveReportRequest{
		FormData: json.RawMessage(`{}`),
		Revision: report.Revision,
	}, workflow.Actor{ID: "nurse-2", Role: models.RoleNurse})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitDirectValidatesBeforeTransition(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := createDraft(t, svc, doctor, json.RawMessage(`{}`))

	outcome, err := svc.SubmitDirect(context.Background(), report.ID, dto.SubmitReportRequest{Revision: report.Revision}, doctor)
	require.NoError(t, err)
	require.True(t, outcome.Failed())
	require.Contains(t, outcome.Validation.Errors, "tests.pregnancy")
	// A failed validation leaves the stored report untouched.
	require.Equal(t, models.StatusDraft, outcome.Report.Status)
	require.Equal(t, 1, outcome.Report.Revision)
}

func TestSubmitDirectHappyPath(t *testing.T) {
	repo := newReportRepoStub()
	dispatcher := &dispatcherStub{}
	svc := NewSubmissionService(repo, nil, nil, WithTransmissionDispatcher(dispatcher))
	report := createDraft(t, svc, doctor, completeFMWForm())

	outcome, err := svc.SubmitDirect(context.Background(), report.ID, dto.SubmitReportRequest{Revision: report.Revision}, doctor)
	require.NoError(t, err)
	require.False(t, outcome.Failed())
	require.Equal(t, models.StatusSubmitted, outcome.Report.Status)

	events, _ := repo.ListEvents(context.Background(), report.ID)
	require.Len(t, events, 2)
	require.Equal(t, models.EventSubmitted, events[1].Type)
	require.Len(t, dispatcher.reports, 1)
}

func TestSubmitDirectDeniedForNurse(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := createDraft(t, svc, nurse, completeFMWForm())

	_, err := svc.SubmitDirect(context.Background(), report.ID, dto.SubmitReportRequest{Revision: report.Revision}, nurse)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRouteForApprovalAssignsAndRoutes(t *testing.T) {
	repo := newReportRepoStub()
	svc := NewSubmissionService(repo, nil, nil)
	report := createDraft(t, svc, nurse, completeFMWForm())

	outcome, err := svc.RouteForApproval(context.Background(), report.ID, dto.RouteForApprovalRequest{
		AssignedDoctorID: doctor.ID,
		Revision:         report.Revision,
	}, nurse)
	require.NoError(t, err)
	require.False(t, outcome.Failed())
	require.Equal(t, models.StatusPendingApproval, outcome.Report.Status)
	require.NotNil(t, outcome.Report.AssignedDoctorID)
	require.Equal(t, doctor.ID, *outcome.Report.AssignedDoctorID)

	events, _ := repo.ListEvents(context.Background(), report.ID)
	require.Len(t, events, 3)
	require.Equal(t, models.EventAssigned, events[1].Type)
	require.Equal(t, models.EventSubmitted, events[2].Type)
}

func TestRouteForApprovalRequiresDoctor(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := createDraft(t, svc, nurse, completeFMWForm())

	_, err := svc.RouteForApproval(context.Background(), report.ID, dto.RouteForApprovalRequest{Revision: report.Revision}, nurse)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func routedReport(t *testing.T, svc *SubmissionService) *models.Report {
	t.Helper()
	report := createDraft(t, svc, nurse, completeFMWForm())
	outcome, err := svc.RouteForApproval(context.Background(), report.ID, dto.RouteForApprovalRequest{
		AssignedDoctorID: doctor.ID,
		Revision:         report.Revision,
	}, nurse)
	require.NoError(t, err)
	return outcome.Report
}

func TestAssignedDoctorCorrectsAndSubmitsRoutedReport(t *testing.T) {
	repo := newReportRepoStub()
	svc := NewSubmissionService(repo, nil, nil)
	report := routedReport(t, svc)

	correctedForm := json.RawMessage(`{
		"tests": {"pregnancy": "negative", "syphilis": "reactive"},
		"medicalDeclaration": {"certified": true, "fitForWork": false}
	}`)
	outcome, err := svc.SubmitDirect(context.Background(), report.ID, dto.SubmitReportRequest{
		FormData: correctedForm,
		Revision: report.Revision,
	}, doctor)
	require.NoError(t, err)
	require.False(t, outcome.Failed())
	require.Equal(t, models.StatusSubmitted, outcome.Report.Status)
	require.JSONEq(t, string(correctedForm), string(outcome.Report.FormData))

	events, _ := repo.ListEvents(context.Background(), report.ID)
	last := events[len(events)-1]
	require.Equal(t, models.EventSubmitted, last.Type)
	require.Contains(t, string(last.Details), `"corrected":true`)
}

func TestAssignedDoctorReRoutesWithCorrections(t *testing.T) {
	repo := newReportRepoStub()
	svc := NewSubmissionService(repo, nil, nil)
	report := routedReport(t, svc)

	outcome, err := svc.RouteForApproval(context.Background(), report.ID, dto.RouteForApprovalRequest{
		FormData: completeFMWForm(),
		Revision: report.Revision,
	}, doctor)
	require.NoError(t, err)
	require.False(t, outcome.Failed())
	require.Equal(t, models.StatusPendingApproval, outcome.Report.Status)
	require.Equal(t, report.Revision+1, outcome.Report.Revision)
}

func TestUnassignedDoctorMayNotSubmitRoutedReport(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := routedReport(t, svc)

	other := workflow.Actor{ID: "doc-2", Role: models.RoleDoctor}
	_, err := svc.SubmitDirect(context.Background(), report.ID, dto.SubmitReportRequest{
		Revision: report.Revision,
	}, other)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApproveRecordsTwoEventsAndDispatches(t *testing.T) {
	repo := newReportRepoStub()
	dispatcher := &dispatcherStub{}
	svc := NewSubmissionService(repo, nil, nil, WithTransmissionDispatcher(dispatcher))
	report := routedReport(t, svc)

	outcome, err := svc.Approve(context.Background(), report.ID, dto.ApproveReportRequest{
		Notes:    "reviewed in full",
		Revision: report.Revision,
	}, doctor)
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, outcome.Report.Status)
	require.NotNil(t, outcome.Report.ApprovedBy)
	require.Equal(t, doctor.ID, *outcome.Report.ApprovedBy)

	events, _ := repo.ListEvents(context.Background(), report.ID)
	types := make([]models.SubmissionEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	require.Equal(t, []models.SubmissionEventType{
		models.EventCreated, models.EventAssigned, models.EventSubmitted,
		models.EventApproved, models.EventSubmitted,
	}, types)
	require.Len(t, dispatcher.reports, 1)
}

func TestApproveOnlyAssignedDoctor(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := routedReport(t, svc)

	_, err := svc.Approve(context.Background(), report.ID, dto.ApproveReportRequest{Revision: report.Revision},
		workflow.Actor{ID: "doc-2", Role: models.RoleDoctor})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRejectRequiresReason(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := routedReport(t, svc)

	_, err := svc.Reject(context.Background(), report.ID, dto.RejectReportRequest{
		Reason:   "   ",
		Revision: report.Revision,
	}, doctor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRejectThenReopenPreservesFormData(t *testing.T) {
	repo := newReportRepoStub()
	svc := NewSubmissionService(repo, nil, nil)
	report := routedReport(t, svc)

	outcome, err := svc.Reject(context.Background(), report.ID, dto.RejectReportRequest{
		Reason:   "pregnancy result missing lab reference",
		Revision: report.Revision,
	}, doctor)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, outcome.Report.Status)
	require.NotNil(t, outcome.Report.RejectedReason)

	reopened, err := svc.Reopen(context.Background(), report.ID, dto.ReopenReportRequest{
		Revision: outcome.Report.Revision,
	}, nurse)
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, reopened.Report.Status)
	require.Nil(t, reopened.Report.RejectedReason)
	require.JSONEq(t, string(report.FormData), string(reopened.Report.FormData))
}

func TestSubmittedReportIsImmutable(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := createDraft(t, svc, doctor, completeFMWForm())
	outcome, err := svc.SubmitDirect(context.Background(), report.ID, dto.SubmitReportRequest{Revision: report.Revision}, doctor)
	require.NoError(t, err)

	_, err = svc.SaveDraft(context.Background(), report.ID, dto.SaveReportRequest{
		FormData: json.RawMessage(`{}`),
		Revision: outcome.Report.Revision,
	}, doctor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
}

func TestGetScopedToActor(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	report := createDraft(t, svc, nurse, completeFMWForm())

	detail, err := svc.Get(context.Background(), report.ID, nurse)
	require.NoError(t, err)
	require.Equal(t, report.ID, detail.Report.ID)
	require.Contains(t, detail.AllowedActions, string(workflow.ActionSave))
	require.Equal(t, []string{"pregnancy", "syphilis"}, detail.RequiredTests)

	_, err = svc.Get(context.Background(), report.ID, workflow.Actor{ID: "nurse-2", Role: models.RoleNurse})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

type historyCacheStub struct {
	entries map[string][]byte
	hits    int
	misses  int
}

func (h *historyCacheStub) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := h.entries[key]
	if !ok {
		h.misses++
		return false, nil
	}
	h.hits++
	return true, json.Unmarshal(raw, dest)
}

func (h *historyCacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	h.entries[key] = raw
	return nil
}

func TestGetHistoryServedFromRevisionKeyedCache(t *testing.T) {
	cache := &historyCacheStub{entries: map[string][]byte{}}
	svc := NewSubmissionService(newReportRepoStub(), nil, nil, WithHistoryCache(cache, time.Minute))
	report := createDraft(t, svc, nurse, completeFMWForm())

	first, err := svc.Get(context.Background(), report.ID, nurse)
	require.NoError(t, err)
	require.Len(t, first.History, 1)
	require.Equal(t, 1, cache.misses)

	second, err := svc.Get(context.Background(), report.ID, nurse)
	require.NoError(t, err)
	require.Len(t, second.History, 1)
	require.Equal(t, 1, cache.hits)

	// A save bumps the revision, so the next read keys past the old entry.
	_, err = svc.SaveDraft(context.Background(), report.ID, dto.SaveReportRequest{
		FormData: completeFMWForm(),
		Revision: report.Revision,
	}, nurse)
	require.NoError(t, err)

	third, err := svc.Get(context.Background(), report.ID, nurse)
	require.NoError(t, err)
	require.Len(t, third.History, 2)
}

func TestGetUnknownReport(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)
	_, err := svc.Get(context.Background(), "missing", nurse)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestListScopesByRole(t *testing.T) {
	repo := newReportRepoStub()
	svc := NewSubmissionService(repo, nil, nil)
	createDraft(t, svc, nurse, json.RawMessage(`{}`))

	_, err := svc.List(context.Background(), dto.ReportQuery{}, nurse)
	require.NoError(t, err)
	require.Equal(t, nurse.ID, repo.filter.CreatedBy)

	_, err = svc.List(context.Background(), dto.ReportQuery{AssignedToMe: true}, doctor)
	require.NoError(t, err)
	require.Equal(t, doctor.ID, repo.filter.AssignedDoctorID)

	_, err = svc.List(context.Background(), dto.ReportQuery{}, workflow.Actor{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Empty(t, repo.filter.CreatedBy)
}

func TestEvaluateAMTPreview(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil)

	resp, err := svc.EvaluateAMT(dto.AMTPreviewRequest{
		LicenceClass:    "4",
		DateOfBirth:     "1953-01-01",
		ExaminationDate: "2025-11-03",
	})
	require.NoError(t, err)
	require.True(t, resp.Verdict.Required)
	require.True(t, resp.Verdict.CanDetermine)
	require.Equal(t, 72, resp.Verdict.AgeOnExamDate)
	require.Equal(t, 73, resp.Verdict.AgeOnNextBirthday)
}

func TestSubmitRequiresPolicyFlaggedTests(t *testing.T) {
	svc := NewSubmissionService(newReportRepoStub(), nil, nil,
		WithPolicyFlags(map[string]bool{"hiv_required": true}))
	report := createDraft(t, svc, doctor, completeFMWForm())

	outcome, err := svc.SubmitDirect(context.Background(), report.ID, dto.SubmitReportRequest{Revision: report.Revision}, doctor)
	require.NoError(t, err)
	require.True(t, outcome.Failed())
	require.Contains(t, outcome.Validation.Errors, "tests.hiv")
	require.NotContains(t, outcome.Validation.Errors, "tests.chest_xray")
}

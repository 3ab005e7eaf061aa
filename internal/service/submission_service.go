package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinsg/medexam-api/internal/clinical"
	"github.com/clinsg/medexam-api/internal/dto"
	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/repository"
	"github.com/clinsg/medexam-api/internal/schema"
	"github.com/clinsg/medexam-api/internal/validation"
	"github.com/clinsg/medexam-api/internal/workflow"
	appErrors "github.com/clinsg/medexam-api/pkg/errors"
)

type reportStore interface {
	Create(ctx context.Context, report *models.Report, event *models.SubmissionEvent) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	UpdateWithEvents(ctx context.Context, report *models.Report, expectedRevision int, events ...*models.SubmissionEvent) error
	ListEvents(ctx context.Context, reportID string) ([]models.SubmissionEvent, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// transmissionDispatcher hands a freshly submitted report to the agency
// delivery pipeline. Dispatch failures never roll back the submission.
type transmissionDispatcher interface {
	Dispatch(ctx context.Context, report *models.Report) error
}

// transitionRecorder receives one observation per attempted transition.
type transitionRecorder interface {
	ObserveTransition(action, outcome string)
}

// cacheInvalidator drops derived read models after a report mutation.
type cacheInvalidator interface {
	InvalidateAll(ctx context.Context)
}

// historyCache stores submission history keyed by report id and revision.
// Events for a given revision never change, so revision-keyed entries are
// immutable and need no explicit invalidation.
type historyCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SubmissionOutcome is the result of a coordinator operation. A failed
// validation is data, not an error: Validation carries the field map and
// Report is the stored state, untouched.
type SubmissionOutcome struct {
	Report     *models.Report     `json:"report"`
	Validation *validation.Result `json:"validation,omitempty"`
}

// Failed reports whether validation blocked the operation.
func (o *SubmissionOutcome) Failed() bool {
	return o.Validation != nil && !o.Validation.IsValid()
}

// SubmissionService is the only component that combines validation, the
// state machine, persistence, and history append into one atomic operation.
// Every call re-validates from stored facts; a stale client-side verdict is
// never trusted.
type SubmissionService struct {
	repo        reportStore
	audit       auditLogger
	validator   *validation.Engine
	logger      *zap.Logger
	dispatcher  transmissionDispatcher
	metrics     transitionRecorder
	invalidator cacheInvalidator
	history     historyCache
	historyTTL  time.Duration
	policyFlags map[string]bool
}

// SubmissionServiceOption configures the service.
type SubmissionServiceOption func(*SubmissionService)

// WithTransmissionDispatcher wires the agency delivery pipeline.
func WithTransmissionDispatcher(d transmissionDispatcher) SubmissionServiceOption {
	return func(s *SubmissionService) { s.dispatcher = d }
}

// WithTransitionRecorder wires transition metrics.
func WithTransitionRecorder(r transitionRecorder) SubmissionServiceOption {
	return func(s *SubmissionService) { s.metrics = r }
}

// WithCacheInvalidator wires cached read-model invalidation after report
// mutations.
func WithCacheInvalidator(inv cacheInvalidator) SubmissionServiceOption {
	return func(s *SubmissionService) { s.invalidator = inv }
}

// WithHistoryCache wires a read-side cache for submission history lookups.
func WithHistoryCache(cache historyCache, ttl time.Duration) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.history = cache
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		s.historyTTL = ttl
	}
}

// WithPolicyFlags supplies the agency policy toggles that decide which
// clinical tests an exam requires. Flags are configuration, never client
// input.
func WithPolicyFlags(flags map[string]bool) SubmissionServiceOption {
	return func(s *SubmissionService) { s.policyFlags = flags }
}

// NewSubmissionService constructs the coordinator.
func NewSubmissionService(repo reportStore, audit auditLogger, logger *zap.Logger, opts ...SubmissionServiceOption) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SubmissionService{
		repo:      repo,
		audit:     audit,
		validator: validation.NewEngine(),
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateReport opens a new draft for a nurse or doctor author.
func (s *SubmissionService) CreateReport(ctx context.Context, req dto.CreateReportRequest, actor workflow.Actor) (*models.Report, error) {
	if actor.Role != models.RoleNurse && actor.Role != models.RoleDoctor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only nurses and doctors create reports")
	}

	dob, err := parseOptionalDate(req.Patient.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "patient date of birth is not a valid date")
	}
	examDate, err := parseOptionalDate(req.ExaminationDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "examination date is not a valid date")
	}

	report := &models.Report{
		ExamType: req.ExamType,
		Status:   models.StatusDraft,
		Patient: models.Patient{
			Name:        strings.TrimSpace(req.Patient.Name),
			Identifier:  strings.TrimSpace(req.Patient.Identifier),
			DateOfBirth: dob,
			Contact:     req.Patient.Contact,
		},
		ExaminationDate: examDate,
		FormData:        normalizeFormData(req.FormData),
		CreatedBy:       actor.ID,
	}

	if result := s.validator.ValidateDraft(report); !result.IsValid() {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "report cannot be created"), result.Errors)
	}

	event := s.event(models.EventCreated, actor, map[string]interface{}{"examType": report.ExamType})
	if err := s.repo.Create(ctx, report, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	s.emitAudit(ctx, actor, models.AuditActionReportCreate, report.ID, report.FormData)
	s.staleCaches(ctx)
	return report, nil
}

// SaveDraft applies edits to a draft. Drafts save freely; only structural
// checks apply.
func (s *SubmissionService) SaveDraft(ctx context.Context, id string, req dto.SaveReportRequest, actor workflow.Actor) (*SubmissionOutcome, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Status == models.StatusSubmitted {
		s.observe(workflow.ActionSave, "denied")
		return nil, appErrors.ErrFinalized
	}
	if _, err := workflow.Transition(report, workflow.ActionSave, actor); err != nil {
		s.observe(workflow.ActionSave, "denied")
		return nil, err
	}

	updated := report.Clone()
	if err := applyEdits(updated, req); err != nil {
		return nil, err
	}
	if result := s.validator.ValidateDraft(updated); !result.IsValid() {
		s.observe(workflow.ActionSave, "validation_failed")
		return &SubmissionOutcome{Report: report, Validation: result}, nil
	}

	event := s.event(models.EventUpdated, actor, nil)
	if err := s.persist(ctx, updated, req.Revision, event); err != nil {
		return nil, err
	}
	s.observe(workflow.ActionSave, "ok")
	s.emitAudit(ctx, actor, models.AuditActionReportSave, updated.ID, updated.FormData)
	return &SubmissionOutcome{Report: updated}, nil
}

// SubmitDirect is the doctor's self-certifying path: draft straight to
// submitted, never passing through pending_approval. The assigned doctor
// also uses it to resolve a routed report, optionally correcting the form
// data in the same call.
func (s *SubmissionService) SubmitDirect(ctx context.Context, id string, req dto.SubmitReportRequest, actor workflow.Actor) (*SubmissionOutcome, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := report.Clone()
	corrected := false
	if len(req.FormData) > 0 {
		updated.FormData = normalizeFormData(req.FormData)
		corrected = true
	}

	result := s.validator.Validate(updated, s.requirementSnapshot(updated))
	if !result.IsValid() {
		s.observe(workflow.ActionSubmitDirect, "validation_failed")
		return &SubmissionOutcome{Report: report, Validation: result}, nil
	}

	next, err := workflow.Transition(updated, workflow.ActionSubmitDirect, actor)
	if err != nil {
		s.observe(workflow.ActionSubmitDirect, "denied")
		return nil, err
	}

	updated.Status = next
	details := map[string]interface{}{"status": next}
	if corrected {
		details["corrected"] = true
	}
	event := s.event(models.EventSubmitted, actor, details)
	if err := s.persist(ctx, updated, req.Revision, event); err != nil {
		return nil, err
	}
	s.observe(workflow.ActionSubmitDirect, "ok")
	s.emitAudit(ctx, actor, models.AuditActionReportSubmit, updated.ID, nil)
	s.dispatch(ctx, updated)
	return &SubmissionOutcome{Report: updated}, nil
}

// RouteForApproval sends a nurse-authored draft to the named doctor, or
// lets the assigned doctor correct and re-route a report already pending
// approval. A changed assignment replaces the previous one and appends its
// own history event alongside the routing event.
func (s *SubmissionService) RouteForApproval(ctx context.Context, id string, req dto.RouteForApprovalRequest, actor workflow.Actor) (*SubmissionOutcome, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := report.Clone()
	corrected := false
	if len(req.FormData) > 0 {
		updated.FormData = normalizeFormData(req.FormData)
		corrected = true
	}

	result := s.validator.Validate(updated, s.requirementSnapshot(updated))
	if !result.IsValid() {
		s.observe(workflow.ActionRouteForApproval, "validation_failed")
		return &SubmissionOutcome{Report: report, Validation: result}, nil
	}

	var events []*models.SubmissionEvent
	doctorID := strings.TrimSpace(req.AssignedDoctorID)
	if doctorID != "" && (updated.AssignedDoctorID == nil || *updated.AssignedDoctorID != doctorID) {
		updated.AssignedDoctorID = &doctorID
		events = append(events, s.event(models.EventAssigned, actor, map[string]interface{}{"assignedDoctorId": doctorID}))
	}

	next, err := workflow.Transition(updated, workflow.ActionRouteForApproval, actor)
	if err != nil {
		s.observe(workflow.ActionRouteForApproval, "denied")
		return nil, err
	}

	updated.Status = next
	details := map[string]interface{}{"status": next}
	if corrected {
		details["corrected"] = true
	}
	events = append(events, s.event(models.EventSubmitted, actor, details))
	if err := s.persist(ctx, updated, req.Revision, events...); err != nil {
		return nil, err
	}
	s.observe(workflow.ActionRouteForApproval, "ok")
	s.emitAudit(ctx, actor, models.AuditActionReportRoute, updated.ID, nil)
	return &SubmissionOutcome{Report: updated}, nil
}

// Approve resolves a routed report: the assigned doctor approves and the
// report is submitted in the same operation, appending both events.
func (s *SubmissionService) Approve(ctx context.Context, id string, req dto.ApproveReportRequest, actor workflow.Actor) (*SubmissionOutcome, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	result := s.validator.Validate(report, s.requirementSnapshot(report))
	if !result.IsValid() {
		s.observe(workflow.ActionApprove, "validation_failed")
		return &SubmissionOutcome{Report: report, Validation: result}, nil
	}

	next, err := workflow.Transition(report, workflow.ActionApprove, actor)
	if err != nil {
		s.observe(workflow.ActionApprove, "denied")
		return nil, err
	}

	updated := report.Clone()
	updated.Status = next
	updated.ApprovedBy = &actor.ID
	approveDetails := map[string]interface{}{}
	if note := strings.TrimSpace(req.Notes); note != "" {
		approveDetails["notes"] = note
	}
	events := []*models.SubmissionEvent{
		s.event(models.EventApproved, actor, approveDetails),
		s.event(models.EventSubmitted, actor, map[string]interface{}{"status": next}),
	}
	if err := s.persist(ctx, updated, req.Revision, events...); err != nil {
		return nil, err
	}
	s.observe(workflow.ActionApprove, "ok")
	s.emitAudit(ctx, actor, models.AuditActionReportApprove, updated.ID, nil)
	s.dispatch(ctx, updated)
	return &SubmissionOutcome{Report: updated}, nil
}

// Reject returns a routed report to its author with a mandatory reason.
func (s *SubmissionService) Reject(ctx context.Context, id string, req dto.RejectReportRequest, actor workflow.Actor) (*SubmissionOutcome, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := workflow.Transition(report, workflow.ActionReject, actor)
	if err != nil {
		s.observe(workflow.ActionReject, "denied")
		return nil, err
	}

	updated := report.Clone()
	updated.Status = next
	updated.RejectedReason = &reason
	event := s.event(models.EventRejected, actor, map[string]interface{}{"reason": reason})
	if err := s.persist(ctx, updated, req.Revision, event); err != nil {
		return nil, err
	}
	s.observe(workflow.ActionReject, "ok")
	s.emitAudit(ctx, actor, models.AuditActionReportReject, updated.ID, nil)
	return &SubmissionOutcome{Report: updated}, nil
}

// Reopen returns a rejected report to draft, clearing the rejection state
// while preserving every recorded answer byte for byte.
func (s *SubmissionService) Reopen(ctx context.Context, id string, req dto.ReopenReportRequest, actor workflow.Actor) (*SubmissionOutcome, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := workflow.Transition(report, workflow.ActionReopen, actor)
	if err != nil {
		s.observe(workflow.ActionReopen, "denied")
		return nil, err
	}

	updated := report.Clone()
	previous := updated.Status
	updated.Status = next
	updated.RejectedReason = nil
	event := s.event(models.EventReopened, actor, map[string]interface{}{
		"action":         "reopened",
		"previousStatus": previous,
		"newStatus":      next,
	})
	if err := s.persist(ctx, updated, req.Revision, event); err != nil {
		return nil, err
	}
	s.observe(workflow.ActionReopen, "ok")
	s.emitAudit(ctx, actor, models.AuditActionReportReopen, updated.ID, nil)
	return &SubmissionOutcome{Report: updated}, nil
}

// Get returns a report with its history, allowed actions, and the current
// requirement snapshot, scoped to the actor.
func (s *SubmissionService) Get(ctx context.Context, id string, actor workflow.Actor) (*dto.ReportDetail, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(report, actor) {
		return nil, appErrors.ErrForbidden
	}
	events, err := s.loadHistory(ctx, report)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report history")
	}
	snap := s.requirementSnapshot(report)
	allowed := workflow.AllowedActions(report, actor)
	actions := make([]string, len(allowed))
	for i, a := range allowed {
		actions[i] = string(a)
	}
	return &dto.ReportDetail{
		Report:         report,
		History:        events,
		AllowedActions: actions,
		AMT:            snap.AMT,
		RequiredTests:  snap.RequiredTests,
	}, nil
}

// List returns reports visible to the actor: nurses their own, doctors
// their own plus those routed to them, admins everything.
func (s *SubmissionService) List(ctx context.Context, query dto.ReportQuery, actor workflow.Actor) ([]models.Report, error) {
	filter := models.ReportFilter{
		Status:   query.Status,
		ExamType: query.ExamType,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleNurse:
		filter.CreatedBy = actor.ID
	case models.RoleDoctor:
		if query.AssignedToMe {
			filter.AssignedDoctorID = actor.ID
		} else {
			filter.CreatedBy = actor.ID
		}
	default:
		return nil, appErrors.ErrForbidden
	}
	reports, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, nil
}

// EvaluateAMT answers the UI's requirement preview without touching any
// stored report.
func (s *SubmissionService) EvaluateAMT(req dto.AMTPreviewRequest) (*dto.AMTPreviewResponse, error) {
	dob, err := parseOptionalDate(req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date of birth is not a valid date")
	}
	examDate, err := parseOptionalDate(req.ExaminationDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "examination date is not a valid date")
	}
	input := clinical.AMTInput{
		LicenceClass:              req.LicenceClass,
		CognitiveImpairment:       req.CognitiveImpairment,
		PrivateDrivingInstructor:  answerFrom(req.IsPrivateDrivingInstructor),
		HoldsLTAVocationalLicence: answerFrom(req.HoldsLTAVocationalLicence),
	}
	if dob != nil {
		input.DateOfBirth = *dob
	}
	if examDate != nil {
		input.ExaminationDate = *examDate
	}
	verdict := clinical.EvaluateAMTRequirement(input)
	return &dto.AMTPreviewResponse{
		Verdict:         verdict,
		InstructorState: clinical.FollowUpState(input.NeedsInstructorAnswer(), input.PrivateDrivingInstructor),
		VocationalState: clinical.FollowUpState(input.NeedsVocationalAnswer(), input.HoldsLTAVocationalLicence),
	}, nil
}

// requirementSnapshot derives the clinical verdicts from stored report
// facts, never from anything the client claimed.
func (s *SubmissionService) requirementSnapshot(report *models.Report) validation.RequirementSnapshot {
	doc, err := schema.DecodeFormData(report.FormData)
	if err != nil {
		// Malformed form data is caught by validation; the snapshot stays neutral.
		return validation.RequirementSnapshot{}
	}

	input := clinical.AMTInput{
		LicenceClass:              doc.String("assessment.licenceClass"),
		CognitiveImpairment:       doc.Bool("assessment.cognitiveImpairment"),
		PrivateDrivingInstructor:  answerFrom(doc.String("amt.isPrivateDrivingInstructor")),
		HoldsLTAVocationalLicence: answerFrom(doc.String("amt.holdsLtaVocationalLicence")),
	}
	if report.Patient.DateOfBirth != nil {
		input.DateOfBirth = *report.Patient.DateOfBirth
	}
	if report.ExaminationDate != nil {
		input.ExaminationDate = *report.ExaminationDate
	}

	return validation.RequirementSnapshot{
		AMT:                   clinical.EvaluateAMTRequirement(input),
		NeedsInstructorAnswer: input.NeedsInstructorAnswer(),
		NeedsVocationalAnswer: input.NeedsVocationalAnswer(),
		RequiredTests:         clinical.EvaluateDynamicTestSet(report.ExamType, clinical.PanelFacts{PolicyFlags: s.policyFlags}),
	}
}

func (s *SubmissionService) load(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

func (s *SubmissionService) persist(ctx context.Context, report *models.Report, expectedRevision int, events ...*models.SubmissionEvent) error {
	err := s.repo.UpdateWithEvents(ctx, report, expectedRevision, events...)
	if err == nil {
		s.staleCaches(ctx)
		return nil
	}
	if errors.Is(err, repository.ErrRevisionConflict) {
		return appErrors.ErrConcurrentModification
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrNotFound
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report")
}

// loadHistory reads submission events through the revision-keyed cache.
// The report row itself is always read from the database so the revision
// used in the key is authoritative.
func (s *SubmissionService) loadHistory(ctx context.Context, report *models.Report) ([]models.SubmissionEvent, error) {
	if s.history == nil {
		return s.repo.ListEvents(ctx, report.ID)
	}
	key := fmt.Sprintf("report:%s:events:%d", report.ID, report.Revision)
	var cached []models.SubmissionEvent
	if hit, err := s.history.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	} else if err != nil {
		s.logger.Warn("history cache read failed", zap.String("report_id", report.ID), zap.Error(err))
	}
	events, err := s.repo.ListEvents(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	if err := s.history.Set(ctx, key, events, s.historyTTL); err != nil {
		s.logger.Warn("history cache write failed", zap.String("report_id", report.ID), zap.Error(err))
	}
	return events, nil
}

func (s *SubmissionService) staleCaches(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.InvalidateAll(ctx)
	}
}

func (s *SubmissionService) event(eventType models.SubmissionEventType, actor workflow.Actor, details map[string]interface{}) *models.SubmissionEvent {
	payload := json.RawMessage("{}")
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			payload = raw
		}
	}
	return &models.SubmissionEvent{
		Type:      eventType,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Details:   payload,
	}
}

func (s *SubmissionService) dispatch(ctx context.Context, report *models.Report) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, report); err != nil {
		s.logger.Warn("failed to dispatch agency transmission",
			zap.String("report_id", report.ID), zap.Error(err))
	}
}

func (s *SubmissionService) observe(action workflow.Action, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(action), outcome)
	}
}

func (s *SubmissionService) emitAudit(ctx context.Context, actor workflow.Actor, action, reportID string, newValues []byte) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "report",
		ResourceID: &reportID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "submission-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func canView(report *models.Report, actor workflow.Actor) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleDoctor:
		return report.CreatedBy == actor.ID ||
			(report.AssignedDoctorID != nil && *report.AssignedDoctorID == actor.ID)
	case models.RoleNurse:
		return report.CreatedBy == actor.ID
	default:
		return false
	}
}

func applyEdits(report *models.Report, req dto.SaveReportRequest) error {
	if req.Patient != nil {
		dob, err := parseOptionalDate(req.Patient.DateOfBirth)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "patient date of birth is not a valid date")
		}
		report.Patient = models.Patient{
			Name:        strings.TrimSpace(req.Patient.Name),
			Identifier:  strings.TrimSpace(req.Patient.Identifier),
			DateOfBirth: dob,
			Contact:     req.Patient.Contact,
		}
	}
	if req.ExaminationDate != nil {
		examDate, err := parseOptionalDate(*req.ExaminationDate)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "examination date is not a valid date")
		}
		report.ExaminationDate = examDate
	}
	if req.FormData != nil {
		report.FormData = normalizeFormData(req.FormData)
	}
	return nil
}

func normalizeFormData(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return append(json.RawMessage(nil), raw...)
}

func answerFrom(value string) clinical.Answer {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes":
		return clinical.AnswerYes
	case "no":
		return clinical.AnswerNo
	default:
		return clinical.AnswerUnknown
	}
}

func parseOptionalDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	ts = ts.UTC()
	return &ts, nil
}

package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinsg/medexam-api/internal/dto"
	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/service"
	"github.com/clinsg/medexam-api/internal/workflow"
	appErrors "github.com/clinsg/medexam-api/pkg/errors"
	"github.com/clinsg/medexam-api/pkg/response"
)

type submissionService interface {
	CreateReport(ctx context.Context, req dto.CreateReportRequest, actor workflow.Actor) (*models.Report, error)
	SaveDraft(ctx context.Context, id string, req dto.SaveReportRequest, actor workflow.Actor) (*service.SubmissionOutcome, error)
	SubmitDirect(ctx context.Context, id string, req dto.SubmitReportRequest, actor workflow.Actor) (*service.SubmissionOutcome, error)
	RouteForApproval(ctx context.Context, id string, req dto.RouteForApprovalRequest, actor workflow.Actor) (*service.SubmissionOutcome, error)
	Approve(ctx context.Context, id string, req dto.ApproveReportRequest, actor workflow.Actor) (*service.SubmissionOutcome, error)
	Reject(ctx context.Context, id string, req dto.RejectReportRequest, actor workflow.Actor) (*service.SubmissionOutcome, error)
	Reopen(ctx context.Context, id string, req dto.ReopenReportRequest, actor workflow.Actor) (*service.SubmissionOutcome, error)
	Get(ctx context.Context, id string, actor workflow.Actor) (*dto.ReportDetail, error)
	List(ctx context.Context, query dto.ReportQuery, actor workflow.Actor) ([]models.Report, error)
	EvaluateAMT(req dto.AMTPreviewRequest) (*dto.AMTPreviewResponse, error)
}

type transmissionLister interface {
	ListByReport(ctx context.Context, reportID string) ([]models.Transmission, error)
}

// ReportHandler exposes REST endpoints for examination report submissions.
type ReportHandler struct {
	service       submissionService
	transmissions transmissionLister
}

// NewReportHandler constructs the handler.
func NewReportHandler(service submissionService, transmissions transmissionLister) *ReportHandler {
	return &ReportHandler{service: service, transmissions: transmissions}
}

func (h *ReportHandler) actor(c *gin.Context) (workflow.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return workflow.Actor{}, false
	}
	return workflow.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func (h *ReportHandler) outcome(c *gin.Context, outcome *service.SubmissionOutcome, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Failed() {
		response.JSON(c, http.StatusUnprocessableEntity, outcome, nil)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Create godoc
// @Summary Open a new draft examination report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	report, err := h.service.CreateReport(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, report, nil)
}

// List godoc
// @Summary List examination reports visible to the caller
// @Tags Reports
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param examType query string false "Exam type"
// @Param assignedToMe query bool false "Doctors: list reports routed to me"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	query := dto.ReportQuery{
		ExamType:     models.ExamType(strings.ToUpper(strings.TrimSpace(c.Query("examType")))),
		AssignedToMe: c.Query("assignedToMe") == "true",
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				query.Status = append(query.Status, models.ReportStatus(part))
			}
		}
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		query.Offset = offset
	}
	reports, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}

// Get godoc
// @Summary Get a report with history and allowed actions
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Save godoc
// @Summary Save draft edits
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.SaveReportRequest true "Draft changes"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [put]
func (h *ReportHandler) Save(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.SaveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid draft payload"))
		return
	}
	outcome, err := h.service.SaveDraft(c.Request.Context(), c.Param("id"), req, actor)
	h.outcome(c, outcome, err)
}

// Submit godoc
// @Summary Submit a draft directly (doctors)
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.SubmitReportRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/submit [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	outcome, err := h.service.SubmitDirect(c.Request.Context(), c.Param("id"), req, actor)
	h.outcome(c, outcome, err)
}

// Route godoc
// @Summary Route a draft to a doctor for approval (nurses)
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.RouteForApprovalRequest true "Routing payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/route [post]
func (h *ReportHandler) Route(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.RouteForApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid routing payload"))
		return
	}
	outcome, err := h.service.RouteForApproval(c.Request.Context(), c.Param("id"), req, actor)
	h.outcome(c, outcome, err)
}

// Approve godoc
// @Summary Approve a routed report (assigned doctor)
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ApproveReportRequest true "Approval payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/approve [post]
func (h *ReportHandler) Approve(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.ApproveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
		return
	}
	outcome, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, actor)
	h.outcome(c, outcome, err)
}

// Reject godoc
// @Summary Reject a routed report with a reason (assigned doctor)
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.RejectReportRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/reject [post]
func (h *ReportHandler) Reject(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.RejectReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}
	outcome, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, actor)
	h.outcome(c, outcome, err)
}

// Reopen godoc
// @Summary Reopen a rejected report as a draft
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ReopenReportRequest true "Reopen payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/reopen [post]
func (h *ReportHandler) Reopen(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.ReopenReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reopen payload"))
		return
	}
	outcome, err := h.service.Reopen(c.Request.Context(), c.Param("id"), req, actor)
	h.outcome(c, outcome, err)
}

// Transmissions godoc
// @Summary List agency transmissions for a report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/transmissions [get]
func (h *ReportHandler) Transmissions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	// Visibility piggybacks on report access.
	if _, err := h.service.Get(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	if h.transmissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "transmission service not configured"))
		return
	}
	items, err := h.transmissions.ListByReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// EvaluateAMT godoc
// @Summary Preview the cognitive-screening requirement verdict
// @Tags Clinical
// @Accept json
// @Produce json
// @Param payload body dto.AMTPreviewRequest true "Assessment facts"
// @Success 200 {object} response.Envelope
// @Router /clinical/amt [post]
func (h *ReportHandler) EvaluateAMT(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	var req dto.AMTPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assessment payload"))
		return
	}
	verdict, err := h.service.EvaluateAMT(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verdict, nil)
}

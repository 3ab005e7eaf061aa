package dto

import "github.com/clinsg/medexam-api/internal/models"

// ExportRequest asks for an asynchronous register or delivery-log export.
type ExportRequest struct {
	Type     string   `json:"type" binding:"required"`
	Format   string   `json:"format" binding:"required"`
	ExamType string   `json:"examType,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
}

// ExportJobResponse acknowledges a queued export.
type ExportJobResponse struct {
	ID       string                 `json:"id"`
	Status   models.ExportJobStatus `json:"status"`
	Progress int                    `json:"progress"`
}

// ExportStatusResponse reports job progress and the download URL once ready.
type ExportStatusResponse struct {
	ID        string                 `json:"id"`
	Status    models.ExportJobStatus `json:"status"`
	Progress  int                    `json:"progress"`
	ResultURL *string                `json:"resultUrl,omitempty"`
	Error     *string                `json:"error,omitempty"`
}

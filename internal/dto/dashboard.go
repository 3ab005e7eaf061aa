package dto

import (
	"time"

	"github.com/clinsg/medexam-api/internal/models"
)

// ClinicOverviewResponse summarises clinic-wide workload for admins.
type ClinicOverviewResponse struct {
	StatusCounts        map[string]int        `json:"statusCounts"`
	PendingApprovals    []models.Report       `json:"pendingApprovals"`
	RecentTransmissions []models.Transmission `json:"recentTransmissions"`
	GeneratedAt         time.Time             `json:"generatedAt"`
}

// DoctorQueueResponse lists the reports waiting on a doctor's review.
type DoctorQueueResponse struct {
	PendingApprovals []models.Report `json:"pendingApprovals"`
	RejectedDrafts   []models.Report `json:"rejectedDrafts"`
	GeneratedAt      time.Time       `json:"generatedAt"`
}

package models

import "time"

// TransmissionStatus tracks delivery of a submitted report to its agency.
type TransmissionStatus string

const (
	TransmissionQueued TransmissionStatus = "QUEUED"
	TransmissionSent   TransmissionStatus = "SENT"
	TransmissionFailed TransmissionStatus = "FAILED"
)

// Transmission records one agency delivery attempt chain for a report.
type Transmission struct {
	ID           string             `db:"id" json:"id"`
	ReportID     string             `db:"report_id" json:"reportId"`
	Agency       Agency             `db:"agency" json:"agency"`
	Status       TransmissionStatus `db:"status" json:"status"`
	Attempts     int                `db:"attempts" json:"attempts"`
	ArtifactPath *string            `db:"artifact_path" json:"artifactPath,omitempty"`
	LastError    *string            `db:"last_error" json:"lastError,omitempty"`
	SentAt       *time.Time         `db:"sent_at" json:"sentAt,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updatedAt"`
}

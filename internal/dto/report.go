package dto

import (
	"encoding/json"

	"github.com/clinsg/medexam-api/internal/clinical"
	"github.com/clinsg/medexam-api/internal/models"
)

// PatientPayload carries patient identity fields. Dates travel as
// YYYY-MM-DD strings.
type PatientPayload struct {
	Name        string  `json:"name"`
	Identifier  string  `json:"identifier"`
	DateOfBirth string  `json:"dateOfBirth"`
	Contact     *string `json:"contact,omitempty"`
}

// CreateReportRequest opens a new draft report.
type CreateReportRequest struct {
	ExamType        models.ExamType `json:"examType"`
	Patient         PatientPayload  `json:"patient"`
	ExaminationDate string          `json:"examinationDate"`
	FormData        json.RawMessage `json:"formData"`
}

// SaveReportRequest applies edits to a draft. Nil sections are left
// untouched; Revision is the revision the client last saw.
type SaveReportRequest struct {
	Patient         *PatientPayload `json:"patient,omitempty"`
	ExaminationDate *string         `json:"examinationDate,omitempty"`
	FormData        json.RawMessage `json:"formData,omitempty"`
	Revision        int             `json:"revision"`
}

// SubmitReportRequest finalizes a report on the doctor's own authority.
// FormData, when present, carries last-minute corrections applied before
// the submission is validated; an assigned doctor uses this to fix and
// resubmit a routed report without bouncing it back to the nurse.
type SubmitReportRequest struct {
	FormData json.RawMessage `json:"formData,omitempty"`
	Revision int             `json:"revision"`
}

// RouteForApprovalRequest sends a draft to the named doctor. FormData,
// when present, carries corrections applied before routing.
type RouteForApprovalRequest struct {
	AssignedDoctorID string          `json:"assignedDoctorId"`
	FormData         json.RawMessage `json:"formData,omitempty"`
	Revision         int             `json:"revision"`
}

// ApproveReportRequest resolves a routed report with an optional note.
type ApproveReportRequest struct {
	Notes    string `json:"notes,omitempty"`
	Revision int    `json:"revision"`
}

// RejectReportRequest returns a routed report with a mandatory reason.
type RejectReportRequest struct {
	Reason   string `json:"reason"`
	Revision int    `json:"revision"`
}

// ReopenReportRequest puts a rejected report back into draft.
type ReopenReportRequest struct {
	Revision int `json:"revision"`
}

// ReportQuery mirrors the supported listing filters.
type ReportQuery struct {
	Status       []models.ReportStatus
	ExamType     models.ExamType
	AssignedToMe bool
	Limit        int
	Offset       int
}

// ReportDetail is the full read model: the report, its append-only
// history, what the caller may do next, and the current clinical
// requirement verdicts.
type ReportDetail struct {
	Report         *models.Report           `json:"report"`
	History        []models.SubmissionEvent `json:"history"`
	AllowedActions []string                 `json:"allowedActions"`
	AMT            clinical.AMTVerdict      `json:"amt"`
	RequiredTests  []string                 `json:"requiredTests"`
}

// AMTPreviewRequest asks for the cognitive-screening requirement verdict
// without persisting anything. Follow-up answers are "yes", "no", or
// empty for not yet answered.
type AMTPreviewRequest struct {
	LicenceClass               string `json:"licenceClass"`
	DateOfBirth                string `json:"dateOfBirth"`
	ExaminationDate            string `json:"examinationDate"`
	CognitiveImpairment        bool   `json:"cognitiveImpairment"`
	IsPrivateDrivingInstructor string `json:"isPrivateDrivingInstructor"`
	HoldsLTAVocationalLicence  string `json:"holdsLtaVocationalLicence"`
}

// AMTPreviewResponse carries the verdict plus the lifecycle state of each
// follow-up question so the UI knows what to ask next.
type AMTPreviewResponse struct {
	Verdict         clinical.AMTVerdict    `json:"verdict"`
	InstructorState clinical.QuestionState `json:"instructorQuestion"`
	VocationalState clinical.QuestionState `json:"vocationalQuestion"`
}

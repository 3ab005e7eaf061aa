package models

import (
	"encoding/json"
	"time"
)

// ExamType enumerates the supported medical examination categories.
type ExamType string

const (
	ExamMDWSixMonthly    ExamType = "MDW_SIX_MONTHLY"
	ExamFMWSixMonthly    ExamType = "FMW_SIX_MONTHLY"
	ExamWorkPermit       ExamType = "WORK_PERMIT"
	ExamFullMedical      ExamType = "FULL_MEDICAL"
	ExamAgedDrivers      ExamType = "AGED_DRIVERS"
	ExamDrivingTP        ExamType = "DRIVING_LICENCE_TP"
	ExamDrivingVocTPLTA  ExamType = "DRIVING_VOCATIONAL_TP_LTA"
	ExamVocationalLTA    ExamType = "VOCATIONAL_LICENCE_LTA"
	ExamICAPRStudentLTVP ExamType = "ICA_PR_STUDENT_LTVP"
)

// Agency identifies the receiving government body for a submitted report.
type Agency string

const (
	AgencyMOM Agency = "MOM"
	AgencyICA Agency = "ICA"
	AgencyTP  Agency = "TP"
	AgencyLTA Agency = "LTA"
	AgencySPF Agency = "SPF"
)

// ReportStatus captures the submission lifecycle states.
type ReportStatus string

const (
	StatusDraft           ReportStatus = "draft"
	StatusPendingApproval ReportStatus = "pending_approval"
	StatusSubmitted       ReportStatus = "submitted"
	StatusRejected        ReportStatus = "rejected"
)

// Patient holds the examinee particulars embedded in a report.
type Patient struct {
	Name        string     `db:"patient_name" json:"name"`
	Identifier  string     `db:"patient_identifier" json:"identifier"`
	DateOfBirth *time.Time `db:"patient_dob" json:"dateOfBirth,omitempty"`
	Contact     *string    `db:"patient_contact" json:"contact,omitempty"`
}

// Report is the mutable examination report aggregate.
type Report struct {
	ID               string          `db:"id" json:"id"`
	ExamType         ExamType        `db:"exam_type" json:"examType"`
	Status           ReportStatus    `db:"status" json:"status"`
	Patient          Patient         `db:"" json:"patient"`
	ExaminationDate  *time.Time      `db:"examination_date" json:"examinationDate,omitempty"`
	FormData         json.RawMessage `db:"form_data" json:"formData"`
	CreatedBy        string          `db:"created_by" json:"createdBy"`
	AssignedDoctorID *string         `db:"assigned_doctor_id" json:"assignedDoctorId,omitempty"`
	ApprovedBy       *string         `db:"approved_by" json:"approvedBy,omitempty"`
	RejectedReason   *string         `db:"rejected_reason" json:"rejectedReason,omitempty"`
	Revision         int             `db:"revision" json:"revision"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	clone := *r
	clone.FormData = append(json.RawMessage(nil), r.FormData...)
	if r.ExaminationDate != nil {
		ts := *r.ExaminationDate
		clone.ExaminationDate = &ts
	}
	if r.Patient.DateOfBirth != nil {
		ts := *r.Patient.DateOfBirth
		clone.Patient.DateOfBirth = &ts
	}
	if r.Patient.Contact != nil {
		v := *r.Patient.Contact
		clone.Patient.Contact = &v
	}
	if r.AssignedDoctorID != nil {
		v := *r.AssignedDoctorID
		clone.AssignedDoctorID = &v
	}
	if r.ApprovedBy != nil {
		v := *r.ApprovedBy
		clone.ApprovedBy = &v
	}
	if r.RejectedReason != nil {
		v := *r.RejectedReason
		clone.RejectedReason = &v
	}
	return &clone
}

// SubmissionEventType enumerates history entry kinds.
type SubmissionEventType string

const (
	EventCreated   SubmissionEventType = "created"
	EventUpdated   SubmissionEventType = "updated"
	EventSubmitted SubmissionEventType = "submitted"
	EventApproved  SubmissionEventType = "approved"
	EventRejected  SubmissionEventType = "rejected"
	EventReopened  SubmissionEventType = "reopened"
	EventAssigned  SubmissionEventType = "assigned"
)

// SubmissionEvent is one append-only history entry. Rows are never mutated
// or reordered after write; displays sort at read time.
type SubmissionEvent struct {
	ID        string              `db:"id" json:"id"`
	ReportID  string              `db:"report_id" json:"reportId"`
	Type      SubmissionEventType `db:"type" json:"type"`
	ActorID   string              `db:"actor_id" json:"actorId"`
	ActorRole UserRole            `db:"actor_role" json:"actorRole"`
	Details   json.RawMessage     `db:"details" json:"details,omitempty"`
	CreatedAt time.Time           `db:"created_at" json:"createdAt"`
}

// ReportFilter constrains report listing queries.
type ReportFilter struct {
	Status           []ReportStatus
	ExamType         ExamType
	CreatedBy        string
	AssignedDoctorID string
	PatientID        string
	Limit            int
	Offset           int
}

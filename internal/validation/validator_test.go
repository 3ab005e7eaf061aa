package validation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinsg/medexam-api/internal/clinical"
	"github.com/clinsg/medexam-api/internal/models"
)

func completePatient() (models.Patient, time.Time) {
	dob := time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)
	return models.Patient{Name: "Tan Mei Ling", Identifier: "S9012345A", DateOfBirth: &dob}, dob
}

func fmwReport(formData string) *models.Report {
	patient, _ := completePatient()
	examDate := time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC)
	return &models.Report{
		ID:              "rep-1",
		ExamType:        models.ExamFMWSixMonthly,
		Status:          models.StatusDraft,
		Patient:         patient,
		ExaminationDate: &examDate,
		FormData:        json.RawMessage(formData),
	}
}

func TestValidatePassesCompleteForm(t *testing.T) {
	report := fmwReport(`{
		"tests": {"pregnancy": "negative", "syphilis": "non-reactive"},
		"medicalDeclaration": {"certified": true, "fitForWork": true}
	}`)
	snap := RequirementSnapshot{RequiredTests: []string{"pregnancy", "syphilis"}}

	result := NewEngine().Validate(report, snap)
	require.True(t, result.IsValid())
	require.Empty(t, result.Fields)
}

func TestValidateBaseSubmissionFields(t *testing.T) {
	report := fmwReport(`{}`)
	report.Patient.Name = ""
	report.Patient.Identifier = ""
	report.ExaminationDate = nil

	result := NewEngine().Validate(report, RequirementSnapshot{})
	require.False(t, result.IsValid())
	require.Contains(t, result.Errors, "patient.name")
	require.Contains(t, result.Errors, "patient.identifier")
	require.Contains(t, result.Errors, "examinationDate")
	// First error follows declaration order, not entry order.
	require.Equal(t, "patient.name", result.First())
}

func TestValidateRequiredTestResults(t *testing.T) {
	report := fmwReport(`{
		"tests": {"pregnancy": "negative"},
		"medicalDeclaration": {"certified": true, "fitForWork": true}
	}`)
	snap := RequirementSnapshot{RequiredTests: []string{"pregnancy", "syphilis", "hiv"}}

	result := NewEngine().Validate(report, snap)
	require.False(t, result.IsValid())
	require.Contains(t, result.Errors, "tests.syphilis")
	require.Contains(t, result.Errors, "tests.hiv")
	require.NotContains(t, result.Errors, "tests.pregnancy")
	require.Equal(t, "tests.syphilis", result.First())
}

func TestValidateCheckedBoxRequiresRemarks(t *testing.T) {
	report := fmwReport(`{
		"tests": {"pregnancy": "negative", "syphilis": "non-reactive"},
		"abnormalityChecklist": {"suspectedAbuse": true},
		"medicalDeclaration": {"certified": true, "fitForWork": true}
	}`)
	snap := RequirementSnapshot{RequiredTests: []string{"pregnancy", "syphilis"}}

	result := NewEngine().Validate(report, snap)
	require.False(t, result.IsValid())
	require.Contains(t, result.Errors, "abnormalityChecklist.suspectedAbuseRemarks")

	// Unchecking the box clears the remarks requirement.
	report = fmwReport(`{
		"tests": {"pregnancy": "negative", "syphilis": "non-reactive"},
		"abnormalityChecklist": {"suspectedAbuse": false},
		"medicalDeclaration": {"certified": true, "fitForWork": true}
	}`)
	result = NewEngine().Validate(report, snap)
	require.True(t, result.IsValid())
}

func TestValidateCertificationDoesNotReplaceItemValidation(t *testing.T) {
	report := fmwReport(`{
		"tests": {"pregnancy": "negative", "syphilis": "non-reactive"},
		"abnormalityChecklist": {"suspectedAbuse": true},
		"medicalDeclaration": {"fitForWork": true}
	}`)
	snap := RequirementSnapshot{RequiredTests: []string{"pregnancy", "syphilis"}}

	result := NewEngine().Validate(report, snap)
	require.Contains(t, result.Errors, "abnormalityChecklist.suspectedAbuseRemarks")
	require.Contains(t, result.Errors, "medicalDeclaration.certified")
}

func TestValidateAMTFollowUps(t *testing.T) {
	patient, _ := completePatient()
	examDate := time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC)
	report := &models.Report{
		ID:              "rep-2",
		ExamType:        models.ExamDrivingTP,
		Patient:         patient,
		ExaminationDate: &examDate,
		FormData: json.RawMessage(`{
			"assessment": {"certified": true, "licenceClass": "2B"}
		}`),
	}
	snap := RequirementSnapshot{NeedsInstructorAnswer: true}

	result := NewEngine().Validate(report, snap)
	require.Contains(t, result.Errors, "amt.isPrivateDrivingInstructor")
	require.NotContains(t, result.Errors, "amt.holdsLtaVocationalLicence")
	require.NotContains(t, result.Errors, "amt.score")
}

func TestValidateAMTScoreWhenRequired(t *testing.T) {
	patient, _ := completePatient()
	examDate := time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC)
	report := &models.Report{
		ID:              "rep-3",
		ExamType:        models.ExamDrivingTP,
		Patient:         patient,
		ExaminationDate: &examDate,
		FormData: json.RawMessage(`{
			"assessment": {"certified": true, "licenceClass": "4"}
		}`),
	}
	snap := RequirementSnapshot{AMT: clinical.AMTVerdict{Required: true, CanDetermine: true}}

	result := NewEngine().Validate(report, snap)
	require.Contains(t, result.Errors, "amt.score")

	report.FormData = json.RawMessage(`{
		"assessment": {"certified": true, "licenceClass": "4"},
		"amt": {"score": 11}
	}`)
	result = NewEngine().Validate(report, snap)
	require.Equal(t, "AMT score must be between 0 and 10", result.Errors["amt.score"])

	report.FormData = json.RawMessage(`{
		"assessment": {"certified": true, "licenceClass": "4"},
		"amt": {"score": 8}
	}`)
	result = NewEngine().Validate(report, snap)
	require.True(t, result.IsValid())
}

func TestValidateDraft(t *testing.T) {
	report := fmwReport(`{`)
	result := NewEngine().ValidateDraft(report)
	require.False(t, result.IsValid())
	require.Contains(t, result.Errors, "formData")

	report = fmwReport(`{}`)
	result = NewEngine().ValidateDraft(report)
	require.True(t, result.IsValid())

	report.ExamType = models.ExamType("RETIRED_FORM")
	result = NewEngine().ValidateDraft(report)
	require.Contains(t, result.Errors, "examType")
}

func TestValidateNeverErrorsOnIndeterminateSnapshot(t *testing.T) {
	report := fmwReport(`{
		"tests": {"pregnancy": "negative", "syphilis": "non-reactive"},
		"medicalDeclaration": {"certified": true, "fitForWork": true}
	}`)
	snap := RequirementSnapshot{AMT: clinical.AMTVerdict{CanDetermine: false}}

	result := NewEngine().Validate(report, snap)
	require.True(t, result.IsValid())
}

package validation

import (
	"fmt"

	"github.com/clinsg/medexam-api/internal/clinical"
	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/schema"
)

// Result is a validation outcome returned as data, never as an error. Field
// order follows schema declaration order so the first entry is stable for UI
// focus and scrolling regardless of entry order.
type Result struct {
	Errors map[string]string `json:"errors"`
	Fields []string          `json:"fields"`
}

func newResult() *Result {
	return &Result{Errors: map[string]string{}}
}

// IsValid reports whether no field errors were recorded.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// First returns the first errored field in declaration order.
func (r *Result) First() string {
	if len(r.Fields) == 0 {
		return ""
	}
	return r.Fields[0]
}

func (r *Result) add(field, message string) {
	if _, exists := r.Errors[field]; exists {
		return
	}
	r.Errors[field] = message
	r.Fields = append(r.Fields, field)
}

// RequirementSnapshot carries the clinical requirement engine's verdicts
// into validation. An indeterminate AMT verdict is a normal state that makes
// the follow-up questions mandatory; it is never itself a validation error.
type RequirementSnapshot struct {
	AMT                   clinical.AMTVerdict
	NeedsInstructorAnswer bool
	NeedsVocationalAnswer bool
	RequiredTests         []string
}

// Engine validates report form data against the exam-type schema plus a
// requirement snapshot. It never panics or returns Go errors for incomplete
// answers; every finding is a field entry in the Result.
type Engine struct{}

// NewEngine constructs the validation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ValidateDraft applies the structural checks that even a draft save must
// pass: a known exam type and well-formed form data.
func (e *Engine) ValidateDraft(report *models.Report) *Result {
	result := newResult()
	if _, ok := schema.For(report.ExamType); !ok {
		result.add("examType", "unknown exam type")
		return result
	}
	if _, err := schema.DecodeFormData(report.FormData); err != nil {
		result.add("formData", "form data is not a valid document")
	}
	return result
}

// Validate applies the full rule set required for any transition other than
// save-as-draft.
func (e *Engine) Validate(report *models.Report, snap RequirementSnapshot) *Result {
	result := newResult()

	// Base submission requirements, independent of exam-specific fields.
	if report.Patient.Name == "" {
		result.add("patient.name", "patient name is required")
	}
	if report.Patient.Identifier == "" {
		result.add("patient.identifier", "NRIC/FIN or passport number is required")
	}
	if report.Patient.DateOfBirth == nil {
		result.add("patient.dateOfBirth", "date of birth is required")
	}
	examSchema, ok := schema.For(report.ExamType)
	if !ok {
		result.add("examType", "unknown exam type")
		return result
	}
	if report.ExaminationDate == nil {
		result.add("examinationDate", "examination date is required")
	}

	doc, err := schema.DecodeFormData(report.FormData)
	if err != nil {
		result.add("formData", "form data is not a valid document")
		return result
	}

	for _, section := range examSchema.Sections {
		if section.ID == "tests" {
			for _, testID := range snap.RequiredTests {
				field := "tests." + testID
				if doc.Blank(field) {
					result.add(field, "test result is required")
				}
			}
		}
		if section.CertificationField != "" && !doc.Bool(section.CertificationField) {
			result.add(section.CertificationField, "patient certification is required")
		}
		for _, field := range section.Fields {
			if field.Required && doc.Blank(field.ID) {
				result.add(field.ID, fmt.Sprintf("%s is required", field.Label))
			}
			if field.Kind == schema.KindBool && field.RemarksField != "" && doc.Bool(field.ID) && doc.Blank(field.RemarksField) {
				result.add(field.RemarksField, fmt.Sprintf("remarks are required when %q is checked", field.Label))
			}
		}
		if section.ID == "amt" {
			e.validateAMT(doc, snap, result)
		}
	}

	return result
}

// validateAMT enforces the conditional follow-up questions and, once the
// test is required, the recorded score. Follow-ups are mandatory only while
// the requirement engine cannot determine the verdict; answered questions
// are locked in and not re-asked.
func (e *Engine) validateAMT(doc schema.FormData, snap RequirementSnapshot, result *Result) {
	if snap.NeedsInstructorAnswer {
		result.add("amt.isPrivateDrivingInstructor", "answer is required to determine AMT applicability")
	}
	if snap.NeedsVocationalAnswer {
		result.add("amt.holdsLtaVocationalLicence", "answer is required to determine AMT applicability")
	}
	if !snap.AMT.Required {
		return
	}
	score, ok := doc.Number("amt.score")
	if !ok {
		result.add("amt.score", "AMT score is required")
		return
	}
	if score < 0 || score > 10 {
		result.add("amt.score", "AMT score must be between 0 and 10")
	}
}

package schema

import (
	"github.com/clinsg/medexam-api/internal/models"
)

// FieldKind describes how a form field is answered.
type FieldKind string

const (
	KindBool   FieldKind = "bool"
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
	KindSelect FieldKind = "select"
)

// FieldSpec declares one answerable item of an exam form. IDs are dotted
// paths into the report formData document ("medicalHistory.diabetes").
// RemarksField names a paired free-text field that becomes mandatory once a
// boolean item is checked.
type FieldSpec struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Kind         FieldKind `json:"kind"`
	Required     bool      `json:"required"`
	RemarksField string    `json:"remarksField,omitempty"`
}

// SectionSpec groups fields. A non-empty CertificationField names a boolean
// the patient must confirm before the section counts as complete; the
// certification gates progression but never replaces per-item validation.
type SectionSpec struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	CertificationField string      `json:"certificationField,omitempty"`
	Fields             []FieldSpec `json:"fields"`
}

// ExamSchema is the full declarative form definition for one exam type.
// Declaration order here fixes validation error ordering. DeclarationText is
// agency-supplied legal copy injected as configuration; some agencies have
// not finalised theirs and ship placeholder copy.
type ExamSchema struct {
	ExamType        models.ExamType `json:"examType"`
	Agency          models.Agency   `json:"agency"`
	Title           string          `json:"title"`
	DeclarationText string          `json:"declarationText,omitempty"`
	Sections        []SectionSpec   `json:"sections"`
}

// FieldByID returns the field definition for a dotted field id.
func (s *ExamSchema) FieldByID(id string) (FieldSpec, bool) {
	for _, section := range s.Sections {
		for _, field := range section.Fields {
			if field.ID == id {
				return field, true
			}
		}
	}
	return FieldSpec{}, false
}

// For resolves the registered schema for an exam type.
func For(examType models.ExamType) (*ExamSchema, bool) {
	s, ok := registry[examType]
	return s, ok
}

// ExamTypes lists every registered exam type.
func ExamTypes() []models.ExamType {
	types := make([]models.ExamType, 0, len(registry))
	for _, s := range ordered {
		types = append(types, s.ExamType)
	}
	return types
}

var (
	registry = map[models.ExamType]*ExamSchema{}
	ordered  []*ExamSchema
)

// Register installs a schema, replacing any prior definition for the exam
// type. Adding an exam type is a data change only; the validation engine and
// state machine never special-case exam types.
func Register(s *ExamSchema) {
	if _, exists := registry[s.ExamType]; !exists {
		ordered = append(ordered, s)
	} else {
		for i, prev := range ordered {
			if prev.ExamType == s.ExamType {
				ordered[i] = s
				break
			}
		}
	}
	registry[s.ExamType] = s
}

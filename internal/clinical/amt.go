package clinical

import (
	"fmt"
	"strings"
	"time"
)

// amtLicenceClasses are the heavy-vehicle classes whose holders take the
// Abbreviated Mental Test when their next birthday falls in the 70-74 window.
var amtLicenceClasses = map[string]struct{}{
	"4":   {},
	"4A":  {},
	"4P":  {},
	"4AP": {},
	"5":   {},
	"5P":  {},
}

// AMTInput carries the immutable facts the AMT requirement ruling needs.
type AMTInput struct {
	LicenceClass              string
	DateOfBirth               time.Time
	ExaminationDate           time.Time
	CognitiveImpairment       bool
	PrivateDrivingInstructor  Answer
	HoldsLTAVocationalLicence Answer
}

// AMTVerdict is the outcome of an AMT requirement evaluation. CanDetermine
// is false while an unanswered follow-up could still flip Required from
// false to true; callers treat that as "ask the question", not as an error.
type AMTVerdict struct {
	Required          bool     `json:"required"`
	CanDetermine      bool     `json:"canDetermine"`
	Reasons           []string `json:"reasons"`
	AgeOnExamDate     int      `json:"ageOnExamDate"`
	AgeOnNextBirthday int      `json:"ageOnNextBirthday"`
}

// NeedsInstructorAnswer reports whether the private-driving-instructor
// follow-up is currently blocking the verdict.
func (in AMTInput) NeedsInstructorAnswer() bool {
	v := EvaluateAMTRequirement(in)
	if v.CanDetermine {
		return false
	}
	ageNext := AgeOnNextBirthday(in.DateOfBirth, in.ExaminationDate)
	return ageNext >= 70 && ageNext <= 74 && !isAMTClass(in.LicenceClass) && !in.PrivateDrivingInstructor.Known()
}

// NeedsVocationalAnswer reports whether the LTA vocational licence follow-up
// is currently blocking the verdict.
func (in AMTInput) NeedsVocationalAnswer() bool {
	v := EvaluateAMTRequirement(in)
	if v.CanDetermine {
		return false
	}
	return AgeOnDate(in.DateOfBirth, in.ExaminationDate) >= 70 && !in.HoldsLTAVocationalLicence.Known()
}

// EvaluateAMTRequirement decides whether the Abbreviated Mental Test applies.
// It is pure: no side effects, identical output for identical input. When
// licence class, date of birth, or examination date is absent it returns a
// neutral verdict (not required, not determinable) so callers suppress the
// requirement UI instead of treating it as a failure.
func EvaluateAMTRequirement(in AMTInput) AMTVerdict {
	if strings.TrimSpace(in.LicenceClass) == "" || in.DateOfBirth.IsZero() || in.ExaminationDate.IsZero() {
		return AMTVerdict{}
	}

	verdict := AMTVerdict{
		AgeOnExamDate:     AgeOnDate(in.DateOfBirth, in.ExaminationDate),
		AgeOnNextBirthday: AgeOnNextBirthday(in.DateOfBirth, in.ExaminationDate),
	}

	if in.CognitiveImpairment {
		verdict.Required = true
		verdict.Reasons = append(verdict.Reasons, "cognitive impairment reported during examination")
	}

	inWindow := verdict.AgeOnNextBirthday >= 70 && verdict.AgeOnNextBirthday <= 74

	// Age alone rules the test out; no follow-up questions are needed.
	if !inWindow && verdict.AgeOnExamDate < 70 {
		verdict.CanDetermine = true
		return verdict
	}

	outstanding := false

	if inWindow {
		switch {
		case isAMTClass(in.LicenceClass):
			verdict.Required = true
			verdict.Reasons = append(verdict.Reasons,
				fmt.Sprintf("licence class %s holder turning %d on next birthday", in.LicenceClass, verdict.AgeOnNextBirthday))
		case in.PrivateDrivingInstructor == AnswerYes:
			verdict.Required = true
			verdict.Reasons = append(verdict.Reasons, "private driving instructor turning 70-74 on next birthday")
		case !in.PrivateDrivingInstructor.Known():
			outstanding = true
		}
	}

	if verdict.AgeOnExamDate >= 70 {
		switch {
		case in.HoldsLTAVocationalLicence == AnswerYes:
			verdict.Required = true
			verdict.Reasons = append(verdict.Reasons, "holds LTA vocational licence at age 70 or above")
		case !in.HoldsLTAVocationalLicence.Known():
			outstanding = true
		}
	}

	// A pending unknown only matters while the verdict could still flip.
	verdict.CanDetermine = verdict.Required || !outstanding
	return verdict
}

func isAMTClass(class string) bool {
	_, ok := amtLicenceClasses[strings.ToUpper(strings.TrimSpace(class))]
	return ok
}

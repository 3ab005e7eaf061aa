package schema

import "github.com/clinsg/medexam-api/internal/models"

// Built-in exam form definitions. The item lists here are representative
// configuration seeds; clinics extend them through Register without code
// changes elsewhere.

func init() {
	Register(&ExamSchema{
		ExamType: models.ExamMDWSixMonthly,
		Agency:   models.AgencyMOM,
		Title:    "Six-Monthly Medical Examination (MDW)",
		Sections: []SectionSpec{
			{
				ID:    "tests",
				Title: "Laboratory Tests",
			},
			{
				ID:                 "medicalDeclaration",
				Title:              "Medical Declaration",
				CertificationField: "medicalDeclaration.certified",
				Fields: []FieldSpec{
					{ID: "medicalDeclaration.fitForWork", Label: "Fit to continue work", Kind: KindBool, Required: true},
				},
			},
		},
	})

	Register(&ExamSchema{
		ExamType: models.ExamFMWSixMonthly,
		Agency:   models.AgencyMOM,
		Title:    "Six-Monthly Medical Examination (FMW)",
		Sections: []SectionSpec{
			{
				ID:    "tests",
				Title: "Laboratory Tests",
			},
			{
				ID:    "abnormalityChecklist",
				Title: "Abnormality Checklist",
				Fields: []FieldSpec{
					{ID: "abnormalityChecklist.suspectedAbuse", Label: "Signs of abuse or neglect", Kind: KindBool, RemarksField: "abnormalityChecklist.suspectedAbuseRemarks"},
					{ID: "abnormalityChecklist.suspectedAbuseRemarks", Label: "Abuse remarks", Kind: KindText},
				},
			},
			{
				ID:                 "medicalDeclaration",
				Title:              "Medical Declaration",
				CertificationField: "medicalDeclaration.certified",
				Fields: []FieldSpec{
					{ID: "medicalDeclaration.fitForWork", Label: "Fit to continue work", Kind: KindBool, Required: true},
				},
			},
		},
	})

	Register(&ExamSchema{
		ExamType: models.ExamWorkPermit,
		Agency:   models.AgencyMOM,
		Title:    "Work Permit Medical Examination",
		Sections: []SectionSpec{
			{ID: "tests", Title: "Laboratory Tests"},
			{
				ID:                 "medicalHistory",
				Title:              "Medical History",
				CertificationField: "medicalHistory.certified",
				Fields: []FieldSpec{
					{ID: "medicalHistory.tuberculosis", Label: "History of tuberculosis", Kind: KindBool, RemarksField: "medicalHistory.tuberculosisRemarks"},
					{ID: "medicalHistory.tuberculosisRemarks", Label: "Tuberculosis remarks", Kind: KindText},
					{ID: "medicalHistory.malaria", Label: "History of malaria", Kind: KindBool, RemarksField: "medicalHistory.malariaRemarks"},
					{ID: "medicalHistory.malariaRemarks", Label: "Malaria remarks", Kind: KindText},
				},
			},
		},
	})

	Register(&ExamSchema{
		ExamType: models.ExamFullMedical,
		Agency:   models.AgencyMOM,
		Title:    "Full Medical Examination",
		Sections: []SectionSpec{
			{
				ID:                 "medicalHistory",
				Title:              "Medical History",
				CertificationField: "medicalHistory.certified",
				Fields: []FieldSpec{
					{ID: "medicalHistory.diabetes", Label: "Diabetes mellitus", Kind: KindBool, RemarksField: "medicalHistory.diabetesRemarks"},
					{ID: "medicalHistory.diabetesRemarks", Label: "Diabetes remarks", Kind: KindText},
					{ID: "medicalHistory.hypertension", Label: "Hypertension", Kind: KindBool, RemarksField: "medicalHistory.hypertensionRemarks"},
					{ID: "medicalHistory.hypertensionRemarks", Label: "Hypertension remarks", Kind: KindText},
				},
			},
		},
	})

	Register(&ExamSchema{
		ExamType: models.ExamAgedDrivers,
		Agency:   models.AgencyTP,
		Title:    "Aged Drivers Medical Examination",
		Sections: []SectionSpec{
			drivingAssessmentSection(),
			amtSection(),
		},
	})

	Register(&ExamSchema{
		ExamType: models.ExamDrivingTP,
		Agency:   models.AgencyTP,
		Title:    "Driving Licence Medical Examination (TP)",
		Sections: []SectionSpec{
			drivingAssessmentSection(),
			amtSection(),
		},
	})

	Register(&ExamSchema{
		ExamType: models.ExamDrivingVocTPLTA,
		Agency:   models.AgencyLTA,
		Title:    "Driving & Vocational Licence Medical Examination (TP/LTA)",
		Sections: []SectionSpec{
			drivingAssessmentSection(),
			amtSection(),
		},
	})

	Register(&ExamSchema{
		ExamType: models.ExamVocationalLTA,
		Agency:   models.AgencyLTA,
		Title:    "Vocational Licence Medical Examination (LTA)",
		Sections: []SectionSpec{
			drivingAssessmentSection(),
			amtSection(),
		},
	})

	Register(&ExamSchema{
		ExamType: models.ExamICAPRStudentLTVP,
		Agency:   models.AgencyICA,
		Title:    "PR / Student's Pass / LTVP Medical Examination",
		// ICA has not issued final declaration copy; placeholder until then.
		DeclarationText: "Declaration text pending ICA confirmation.",
		Sections: []SectionSpec{
			{ID: "tests", Title: "Laboratory Tests"},
			{
				ID:                 "medicalDeclaration",
				Title:              "Medical Declaration",
				CertificationField: "medicalDeclaration.certified",
			},
		},
	})
}

func drivingAssessmentSection() SectionSpec {
	return SectionSpec{
		ID:                 "assessment",
		Title:              "Clinical Assessment",
		CertificationField: "assessment.certified",
		Fields: []FieldSpec{
			{ID: "assessment.licenceClass", Label: "Licence class", Kind: KindSelect, Required: true},
			{ID: "assessment.visualImpairment", Label: "Visual impairment", Kind: KindBool, RemarksField: "assessment.visualImpairmentRemarks"},
			{ID: "assessment.visualImpairmentRemarks", Label: "Visual impairment remarks", Kind: KindText},
			{ID: "assessment.cognitiveImpairment", Label: "Cognitive impairment observed", Kind: KindBool, RemarksField: "assessment.cognitiveImpairmentRemarks"},
			{ID: "assessment.cognitiveImpairmentRemarks", Label: "Cognitive impairment remarks", Kind: KindText},
		},
	}
}

func amtSection() SectionSpec {
	return SectionSpec{
		ID:    "amt",
		Title: "Abbreviated Mental Test",
		Fields: []FieldSpec{
			{ID: "amt.isPrivateDrivingInstructor", Label: "Private driving instructor", Kind: KindSelect},
			{ID: "amt.holdsLtaVocationalLicence", Label: "Holds LTA vocational licence", Kind: KindSelect},
			{ID: "amt.score", Label: "AMT score", Kind: KindNumber},
		},
	}
}

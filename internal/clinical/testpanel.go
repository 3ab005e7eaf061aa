package clinical

import "github.com/clinsg/medexam-api/internal/models"

// Known laboratory test identifiers used across exam panels.
const (
	TestPregnancy = "pregnancy"
	TestSyphilis  = "syphilis"
	TestHIV       = "hiv"
	TestChestXray = "chest_xray"
)

// TestRequirement describes one entry of an exam-type test panel. A test is
// mandatory when Always is set, or when its policy flag is present and true
// in the supplied facts. An absent flag means not required, which keeps old
// reports valid when new conditional tests are added to a panel.
type TestRequirement struct {
	TestID     string
	Always     bool
	PolicyFlag string
}

// PanelFacts carries the per-report policy flags MOM issues with each
// six-monthly exam notice.
type PanelFacts struct {
	PolicyFlags map[string]bool
}

// defaultPanels is configuration data, not control flow: adding an exam type
// or test means adding rows here, never touching the evaluator.
var defaultPanels = map[models.ExamType][]TestRequirement{
	models.ExamMDWSixMonthly: {
		{TestID: TestPregnancy, Always: true},
		{TestID: TestSyphilis, Always: true},
	},
	models.ExamFMWSixMonthly: {
		{TestID: TestPregnancy, Always: true},
		{TestID: TestSyphilis, Always: true},
		{TestID: TestHIV, PolicyFlag: "hiv_required"},
		{TestID: TestChestXray, PolicyFlag: "cxr_required"},
	},
	models.ExamWorkPermit: {
		{TestID: TestHIV, Always: true},
		{TestID: TestChestXray, Always: true},
	},
}

// PanelFor returns the configured test panel for an exam type, nil when the
// exam type has no dynamic panel.
func PanelFor(examType models.ExamType) []TestRequirement {
	return defaultPanels[examType]
}

// EvaluateDynamicTestSet returns exactly the subset of panel tests that is
// mandatory for the given facts, in panel declaration order.
func EvaluateDynamicTestSet(examType models.ExamType, facts PanelFacts) []string {
	panel := PanelFor(examType)
	if len(panel) == 0 {
		return nil
	}
	required := make([]string, 0, len(panel))
	for _, entry := range panel {
		if entry.Always {
			required = append(required, entry.TestID)
			continue
		}
		if entry.PolicyFlag != "" && facts.PolicyFlags[entry.PolicyFlag] {
			required = append(required, entry.TestID)
		}
	}
	return required
}

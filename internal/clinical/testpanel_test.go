package clinical

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clinsg/medexam-api/internal/models"
)

func TestDynamicTestSetFMW(t *testing.T) {
	// Both conditional flags present and true.
	required := EvaluateDynamicTestSet(models.ExamFMWSixMonthly, PanelFacts{
		PolicyFlags: map[string]bool{"hiv_required": true, "cxr_required": true},
	})
	require.Equal(t, []string{TestPregnancy, TestSyphilis, TestHIV, TestChestXray}, required)

	// One flag false, one true.
	required = EvaluateDynamicTestSet(models.ExamFMWSixMonthly, PanelFacts{
		PolicyFlags: map[string]bool{"hiv_required": false, "cxr_required": true},
	})
	require.Equal(t, []string{TestPregnancy, TestSyphilis, TestChestXray}, required)
}

func TestDynamicTestSetAbsentFlagsDefaultNotRequired(t *testing.T) {
	// Older reports carry no policy flags at all.
	required := EvaluateDynamicTestSet(models.ExamFMWSixMonthly, PanelFacts{})
	require.Equal(t, []string{TestPregnancy, TestSyphilis}, required)
}

func TestDynamicTestSetMDW(t *testing.T) {
	required := EvaluateDynamicTestSet(models.ExamMDWSixMonthly, PanelFacts{
		PolicyFlags: map[string]bool{"hiv_required": true},
	})
	require.Equal(t, []string{TestPregnancy, TestSyphilis}, required)
}

func TestDynamicTestSetUnknownExamType(t *testing.T) {
	require.Nil(t, EvaluateDynamicTestSet(models.ExamAgedDrivers, PanelFacts{}))
}

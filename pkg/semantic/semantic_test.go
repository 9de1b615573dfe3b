package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseSet() SemanticSet {
	return SemanticSet{SemanticSetID: "sset_1", Version: 1, CoverageThreshold: 0.8, ResidualTolerance: 0.1}
}

func TestEvaluate_MustViolationFails(t *testing.T) {
	r := Evaluate(baseSet(), ResidualReport{}, CoverageReport{Covered: 1}, ViolationsReport{
		Violations: []Violation{{StatementID: "s1", Severity: SeverityMust}},
	})
	assert.Equal(t, VerdictFail, r.Verdict)
}

func TestEvaluate_WaivedShouldViolationPasses(t *testing.T) {
	r := Evaluate(baseSet(), ResidualReport{}, CoverageReport{Covered: 1}, ViolationsReport{
		Violations: []Violation{{StatementID: "s1", Severity: SeverityShould, Waived: true}},
	})
	assert.Equal(t, VerdictPass, r.Verdict)
}

func TestEvaluate_UnwaivedShouldViolationFails(t *testing.T) {
	r := Evaluate(baseSet(), ResidualReport{}, CoverageReport{Covered: 1}, ViolationsReport{
		Violations: []Violation{{StatementID: "s1", Severity: SeverityShould, Waived: false}},
	})
	assert.Equal(t, VerdictFail, r.Verdict)
}

func TestEvaluate_CoverageBelowThresholdFails(t *testing.T) {
	r := Evaluate(baseSet(), ResidualReport{}, CoverageReport{Covered: 0.5}, ViolationsReport{})
	assert.Equal(t, VerdictFail, r.Verdict)
}

func TestEvaluate_ResidualAboveToleranceFails(t *testing.T) {
	r := Evaluate(baseSet(), ResidualReport{Norm: 0.5}, CoverageReport{Covered: 1}, ViolationsReport{})
	assert.Equal(t, VerdictFail, r.Verdict)
}

func TestEvaluate_CleanCandidatePasses(t *testing.T) {
	r := Evaluate(baseSet(), ResidualReport{Norm: 0.01}, CoverageReport{Covered: 0.95}, ViolationsReport{})
	assert.Equal(t, VerdictPass, r.Verdict)
}

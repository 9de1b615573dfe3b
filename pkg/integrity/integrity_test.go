package integrity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/governedloop/core/pkg/evidence"
)

func baseManifest() *evidence.Manifest {
	now := time.Now()
	return &evidence.Manifest{
		SchemaVersion:   1,
		BundleID:        "bundle_1",
		RunID:           "run_1",
		CandidateID:     "cand_1",
		OracleSuiteID:   "suite:SR-SUITE-CORE",
		OracleSuiteHash: "sha256:abc",
		RunStartedAt:    now,
		RunCompletedAt:  now.Add(time.Second),
		Results:         []evidence.Result{{OracleID: "lint", Status: evidence.VerdictPass}},
		Verdict:         evidence.VerdictPass,
	}
}

func TestCheck_MissingManifestYieldsEvidenceMissing(t *testing.T) {
	conds := Check(RunContext{})
	assert.Equal(t, []Condition{ConditionEvidenceMissing}, conds)
}

func TestCheck_SuiteHashMismatchYieldsOracleTamper(t *testing.T) {
	m := baseManifest()
	conds := Check(RunContext{
		RunID: "run_1", CandidateID: "cand_1", RequestedSuiteID: "suite:SR-SUITE-CORE",
		RequestedSuiteHash: "sha256:requested", RegisteredSuiteHash: "sha256:registered",
		ManifestJSON: []byte(`{"candidate_id":"cand_1","run_id":"run_1","oracle_suite_id":"suite:SR-SUITE-CORE"}`),
		Manifest:     m,
	})
	assert.Contains(t, conds, ConditionOracleTamper)
}

func TestCheck_MissingRequiredOracleYieldsOracleGap(t *testing.T) {
	m := baseManifest()
	conds := Check(RunContext{
		RunID: "run_1", CandidateID: "cand_1", RequestedSuiteID: "suite:SR-SUITE-CORE",
		RequestedSuiteHash: "sha256:abc", RegisteredSuiteHash: "sha256:abc",
		RequiredOracleIDs: []string{"lint", "typecheck"},
		ManifestJSON:      []byte(`{"candidate_id":"cand_1","run_id":"run_1","oracle_suite_id":"suite:SR-SUITE-CORE"}`),
		Manifest:          m,
	})
	assert.Contains(t, conds, ConditionOracleGap)
}

func TestCheck_HappyPathYieldsNoConditions(t *testing.T) {
	m := baseManifest()
	conds := Check(RunContext{
		RunID: "run_1", CandidateID: "cand_1", RequestedSuiteID: "suite:SR-SUITE-CORE",
		RequestedSuiteHash: "sha256:abc", RegisteredSuiteHash: "sha256:abc",
		RequiredOracleIDs: []string{"lint"},
		ManifestJSON:      []byte(`{"candidate_id":"cand_1","run_id":"run_1","oracle_suite_id":"suite:SR-SUITE-CORE"}`),
		Manifest:          m,
	})
	assert.Empty(t, conds)
}

func TestCheck_FlappingVerdictsYieldOracleFlake(t *testing.T) {
	m := baseManifest()
	conds := Check(RunContext{
		RunID: "run_1", CandidateID: "cand_1", RequestedSuiteID: "suite:SR-SUITE-CORE",
		RequestedSuiteHash: "sha256:abc", RegisteredSuiteHash: "sha256:abc",
		ManifestJSON:   []byte(`{"candidate_id":"cand_1","run_id":"run_1","oracle_suite_id":"suite:SR-SUITE-CORE"}`),
		Manifest:       m,
		RecentVerdicts: []evidence.Verdict{evidence.VerdictPass, evidence.VerdictFail, evidence.VerdictPass},
	})
	assert.Contains(t, conds, ConditionOracleFlake)
}

package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeVerdict_EmptyIsError(t *testing.T) {
	assert.Equal(t, VerdictError, ComputeVerdict(nil))
}

func TestComputeVerdict_AnyErrorWins(t *testing.T) {
	v := ComputeVerdict([]Result{{OracleID: "a", Status: VerdictPass}, {OracleID: "b", Status: VerdictError}})
	assert.Equal(t, VerdictError, v)
}

func TestComputeVerdict_FailWithoutErrorIsFail(t *testing.T) {
	v := ComputeVerdict([]Result{{OracleID: "a", Status: VerdictPass}, {OracleID: "b", Status: VerdictFail}})
	assert.Equal(t, VerdictFail, v)
}

func TestComputeVerdict_AllPassOrSkippedIsPass(t *testing.T) {
	v := ComputeVerdict([]Result{{OracleID: "a", Status: VerdictPass}, {OracleID: "b", Status: VerdictSkipped}})
	assert.Equal(t, VerdictPass, v)
}

func validManifest() *Manifest {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Manifest{
		SchemaVersion:   1,
		BundleID:        "bundle_1",
		RunID:           "run_1",
		CandidateID:     "cand_1",
		OracleSuiteID:   "suite:SR-SUITE-CORE",
		OracleSuiteHash: "sha256:" + hash64(),
		RunStartedAt:    now,
		RunCompletedAt:  now.Add(time.Minute),
		Results:         []Result{{OracleID: "lint", Status: VerdictPass}},
		Verdict:         VerdictPass,
	}
}

func hash64() string {
	s := ""
	for i := 0; i < 64; i++ {
		s += "a"
	}
	return s
}

func TestValidate_AcceptsWellFormedManifest(t *testing.T) {
	require.NoError(t, Validate(validManifest()))
}

func TestValidate_RejectsInvertedTimestamps(t *testing.T) {
	m := validManifest()
	m.RunCompletedAt = m.RunStartedAt.Add(-time.Minute)
	require.Error(t, Validate(m))
}

func TestValidate_RejectsDuplicateArtifactNames(t *testing.T) {
	m := validManifest()
	m.Artifacts = []Artifact{
		{Name: "report", ContentHash: "sha256:" + hash64(), ArtifactType: "text/plain"},
		{Name: "report", ContentHash: "sha256:" + hash64(), ArtifactType: "text/plain"},
	}
	require.Error(t, Validate(m))
}

func TestValidate_RejectsVerdictDisagreement(t *testing.T) {
	m := validManifest()
	m.Verdict = VerdictFail
	require.Error(t, Validate(m))
}

func TestSerialize_OrdersResultsByOracleID(t *testing.T) {
	m := validManifest()
	m.Results = []Result{{OracleID: "zz", Status: VerdictPass}, {OracleID: "aa", Status: VerdictPass}}

	out, err := Serialize(m)
	require.NoError(t, err)

	first := indexOf(t, out, `"aa"`)
	second := indexOf(t, out, `"zz"`)
	assert.Less(t, first, second)
}

func indexOf(t *testing.T, haystack []byte, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == needle {
			return i
		}
	}
	t.Fatalf("%q not found in %s", needle, haystack)
	return -1
}

func TestBundleHash_DeterministicAndOrderIndependentOverBlobMap(t *testing.T) {
	manifestBytes := []byte(`{"a":1}`)
	h1 := BundleHash(manifestBytes, map[string][]byte{"a": []byte("1"), "b": []byte("2")})
	h2 := BundleHash(manifestBytes, map[string][]byte{"b": []byte("2"), "a": []byte("1")})
	assert.Equal(t, h1, h2)
}

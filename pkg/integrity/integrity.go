// Package integrity implements the non-waivable condition checker
// (§4.7): a pure function over a completed run, its manifest, and its
// suite registration.
package integrity

import (
	"github.com/tidwall/gjson"

	"github.com/governedloop/core/pkg/evidence"
)

// Condition is one of the six non-waivable integrity conditions.
type Condition string

const (
	ConditionOracleTamper      Condition = "ORACLE_TAMPER"
	ConditionOracleGap         Condition = "ORACLE_GAP"
	ConditionOracleEnvMismatch Condition = "ORACLE_ENV_MISMATCH"
	ConditionOracleFlake       Condition = "ORACLE_FLAKE"
	ConditionEvidenceMissing  Condition = "EVIDENCE_MISSING"
	ConditionManifestInvalid  Condition = "MANIFEST_INVALID"
)

// RunContext is what the checker needs about the run under inspection.
type RunContext struct {
	RunID              string
	CandidateID        string
	RequestedSuiteID   string
	RequestedSuiteHash string
	RegisteredSuiteHash string
	RequiredOracleIDs  []string
	// ManifestJSON is nil when the evidence bundle could not be
	// retrieved at all (→ EVIDENCE_MISSING), distinct from a manifest
	// that fails validation (→ MANIFEST_INVALID).
	ManifestJSON    []byte
	Manifest        *evidence.Manifest
	EnvConstraints  EnvConstraints
	RecentVerdicts  []evidence.Verdict // most recent first, same (suite_hash, candidate)
}

// EnvConstraints is the subset of a suite's declared environment
// constraints the checker compares the run's fingerprint against.
type EnvConstraints struct {
	RequiredSandboxRuntime string
	RequiredOSKernelClass  string
}

// FlakeThreshold bounds how many recent verdict flips count as flaky
// before ORACLE_FLAKE is raised; 2 is a built-in constant, and
// pkg/config has no setting for it.
const FlakeThreshold = 2

// Check returns zero or more non-waivable conditions for rc.
func Check(rc RunContext) []Condition {
	var conditions []Condition

	if len(rc.ManifestJSON) == 0 {
		return append(conditions, ConditionEvidenceMissing)
	}

	if rc.RequestedSuiteHash != rc.RegisteredSuiteHash {
		conditions = append(conditions, ConditionOracleTamper)
	}

	if rc.Manifest == nil {
		return append(conditions, ConditionManifestInvalid)
	}
	if err := evidence.Validate(rc.Manifest); err != nil {
		conditions = append(conditions, ConditionManifestInvalid)
	}

	// Cheap tamper pre-check via gjson before trusting the fully
	// unmarshaled struct: a manifest whose raw bytes disagree with the
	// run it claims to belong to is tampered regardless of whether the
	// typed Manifest round-tripped cleanly.
	if gjson.GetBytes(rc.ManifestJSON, "candidate_id").String() != rc.CandidateID ||
		gjson.GetBytes(rc.ManifestJSON, "run_id").String() != rc.RunID ||
		gjson.GetBytes(rc.ManifestJSON, "oracle_suite_id").String() != rc.RequestedSuiteID {
		conditions = append(conditions, ConditionOracleTamper)
	}

	if rc.Manifest != nil {
		present := make(map[string]evidence.Verdict, len(rc.Manifest.Results))
		for _, r := range rc.Manifest.Results {
			present[r.OracleID] = r.Status
		}
		for _, id := range rc.RequiredOracleIDs {
			status, ok := present[id]
			if !ok || status == evidence.VerdictError || status == evidence.VerdictSkipped {
				conditions = append(conditions, ConditionOracleGap)
				break
			}
		}

		if fp := rc.Manifest.EnvironmentFingerprint; fp != nil {
			if rc.EnvConstraints.RequiredSandboxRuntime != "" {
				if v, _ := fp["sandbox_runtime"].(string); v != rc.EnvConstraints.RequiredSandboxRuntime {
					conditions = append(conditions, ConditionOracleEnvMismatch)
				}
			}
			if rc.EnvConstraints.RequiredOSKernelClass != "" {
				if v, _ := fp["os_kernel_class"].(string); v != rc.EnvConstraints.RequiredOSKernelClass {
					conditions = append(conditions, ConditionOracleEnvMismatch)
				}
			}
		}
	}

	if flips(rc.RecentVerdicts) >= FlakeThreshold {
		conditions = append(conditions, ConditionOracleFlake)
	}

	return dedupe(conditions)
}

func flips(verdicts []evidence.Verdict) int {
	count := 0
	for i := 1; i < len(verdicts); i++ {
		if verdicts[i] != verdicts[i-1] {
			count++
		}
	}
	return count
}

func dedupe(conditions []Condition) []Condition {
	seen := make(map[Condition]bool, len(conditions))
	out := make([]Condition, 0, len(conditions))
	for _, c := range conditions {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

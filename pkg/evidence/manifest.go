// Package evidence implements the canonical v1 evidence-bundle schema
// (§4.5): deterministic serialization, verdict computation, bundle
// hashing, and manifest validation.
package evidence

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/governedloop/core/pkg/errs"
)

// Verdict is the manifest-level and per-result outcome vocabulary.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictError   Verdict = "ERROR"
	VerdictSkipped Verdict = "SKIPPED"
)

// Result is one oracle's outcome within a run.
type Result struct {
	OracleID string  `json:"oracle_id" validate:"required"`
	Status   Verdict `json:"status" validate:"required,oneof=PASS FAIL ERROR SKIPPED"`
	Detail   string  `json:"detail,omitempty"`
}

// Artifact is one named output blob referenced by the manifest.
type Artifact struct {
	Name        string `json:"name" validate:"required"`
	ContentHash string `json:"content_hash" validate:"required"`
	ArtifactType string `json:"artifact_type" validate:"required"`
}

// Manifest is the canonical v1 evidence bundle manifest (§3's
// EvidenceBundle.manifest, §4.5's schema).
type Manifest struct {
	SchemaVersion    int               `json:"schema_version" validate:"eq=1"`
	BundleID         string            `json:"bundle_id" validate:"required"`
	RunID            string            `json:"run_id" validate:"required"`
	CandidateID      string            `json:"candidate_id" validate:"required"`
	OracleSuiteID    string            `json:"oracle_suite_id" validate:"required"`
	OracleSuiteHash  string            `json:"oracle_suite_hash" validate:"required"`
	RunStartedAt     time.Time         `json:"run_started_at" validate:"required"`
	RunCompletedAt   time.Time         `json:"run_completed_at" validate:"required"`
	EnvironmentFingerprint map[string]any `json:"environment_fingerprint,omitempty"`
	Results          []Result          `json:"results"`
	Verdict          Verdict           `json:"verdict" validate:"required,oneof=PASS FAIL ERROR SKIPPED"`
	Artifacts        []Artifact        `json:"artifacts,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
	StageContext     map[string]any    `json:"stage_context,omitempty"`
}

// ComputeVerdict implements §4.5's verdict function:
//
//	verdict(results) =
//	  if results empty  → ERROR
//	  else if any ERROR → ERROR
//	  else if any FAIL  → FAIL
//	  else              → PASS   // PASS and SKIPPED only
func ComputeVerdict(results []Result) Verdict {
	if len(results) == 0 {
		return VerdictError
	}
	sawFail := false
	for _, r := range results {
		if r.Status == VerdictError {
			return VerdictError
		}
		if r.Status == VerdictFail {
			sawFail = true
		}
	}
	if sawFail {
		return VerdictFail
	}
	return VerdictPass
}

var validate = validator.New()

// Validate rejects the rejection rules from §4.5: schema-version
// mismatch, wrong artifact_type (enforced by caller-supplied enum, not
// here — the core has no fixed artifact-type vocabulary), missing
// required ids, inverted timestamps, duplicate artifact names, or a
// declared verdict that disagrees with the computed one.
func Validate(m *Manifest) error {
	if err := validate.Struct(m); err != nil {
		return errs.NewValidationError("manifest", err.Error())
	}
	if m.RunStartedAt.After(m.RunCompletedAt) {
		return errs.NewValidationError("run_started_at", "must not be after run_completed_at")
	}
	seen := make(map[string]bool, len(m.Artifacts))
	for _, a := range m.Artifacts {
		if seen[a.Name] {
			return errs.NewValidationError("artifacts", "duplicate artifact name: "+a.Name)
		}
		seen[a.Name] = true
	}
	if computed := ComputeVerdict(m.Results); computed != m.Verdict {
		return errs.NewValidationError("verdict", "declared verdict "+string(m.Verdict)+" disagrees with computed "+string(computed))
	}
	return nil
}

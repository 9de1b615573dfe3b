// Package projection implements the projection engine (§4.3): a pure
// (state, event) -> state function applied in global_seq order from a
// checkpoint, plus Rebuild/StateHash for the replay-proof tests of §8.
// State and checkpoint are held in memory only; nothing is written to
// the database, and Rebuild replays the log from global_seq 0.
package projection

import (
	"github.com/governedloop/core/pkg/canon"
	"github.com/governedloop/core/pkg/graph"
	"github.com/governedloop/core/pkg/ids"
)

// Loop mirrors §3's Loop row.
type Loop struct {
	LoopID         string         `json:"loop_id"`
	Goal           string         `json:"goal"`
	WorkUnit       string         `json:"work_unit"`
	State          string         `json:"state"`
	Budgets        map[string]any `json:"budgets"`
	DirectiveRef   string         `json:"directive_ref,omitempty"`
	IterationCount int            `json:"iteration_count"`
}

// Iteration mirrors §3's Iteration row.
type Iteration struct {
	IterationID string `json:"iteration_id"`
	LoopID      string `json:"loop_id"`
	Sequence    int    `json:"sequence"`
	State       string `json:"state"`
	Summary     string `json:"summary,omitempty"`
}

// Candidate mirrors §3's Candidate row.
type Candidate struct {
	CandidateID          string `json:"candidate_id"`
	ContentHash          string `json:"content_hash"`
	ProducedByIterationID string `json:"produced_by_iteration_id,omitempty"`
	VerificationStatus   string `json:"verification_status"`
}

// Run mirrors §3's Run row.
type Run struct {
	RunID            string `json:"run_id"`
	CandidateID      string `json:"candidate_id"`
	OracleSuiteID    string `json:"oracle_suite_id"`
	OracleSuiteHash  string `json:"oracle_suite_hash"`
	State            string `json:"state"`
	EvidenceBundleHash string `json:"evidence_bundle_hash,omitempty"`
}

// Approval mirrors §3's Approval row.
type Approval struct {
	ApprovalID string   `json:"approval_id"`
	PortalID   string   `json:"portal_id"`
	Decision   string   `json:"decision"`
	SubjectRefs []string `json:"subject_refs,omitempty"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

// Exception mirrors §3's Exception row.
type Exception struct {
	ExceptionID string `json:"exception_id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Scope       string `json:"scope,omitempty"`
}

// FreezeRecord mirrors §3's FreezeRecord row.
type FreezeRecord struct {
	FreezeID          string `json:"freeze_id"`
	BaselineID        string `json:"baseline_id"`
	CandidateID       string `json:"candidate_id"`
	VerificationMode  string `json:"verification_mode"`
	ReleaseApprovalID string `json:"release_approval_id,omitempty"`
}

// Decision mirrors §3's Decision row.
type Decision struct {
	DecisionID   string `json:"decision_id"`
	Trigger      string `json:"trigger,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Decision     string `json:"decision"`
	IsPrecedent  bool   `json:"is_precedent"`
}

// GovernedArtifact tracks version history; only the current version is
// kept in full, prior versions are demoted.
type GovernedArtifact struct {
	ArtifactID        string `json:"artifact_id"`
	CurrentVersionRef string `json:"current_version_ref"`
	ContentHash       string `json:"content_hash"`
}

// State is the full in-memory projection, the union of every
// projections.* table from §6.
type State struct {
	Checkpoint int64 `json:"checkpoint"`

	Loops             map[string]*Loop             `json:"loops"`
	Iterations        map[string]*Iteration        `json:"iterations"`
	Candidates        map[string]*Candidate        `json:"candidates"`
	Runs              map[string]*Run              `json:"runs"`
	Approvals         map[string]*Approval         `json:"approvals"`
	Exceptions        map[string]*Exception        `json:"exceptions"`
	FreezeRecords     map[string]*FreezeRecord     `json:"freeze_records"`
	Decisions         map[string]*Decision         `json:"decisions"`
	GovernedArtifacts map[string]*GovernedArtifact `json:"governed_artifacts"`

	Graph    *graph.Graph     `json:"-"`
	Markers  []graph.Marker   `json:"staleness_markers"`
}

// NewState returns an empty projection state at checkpoint 0.
func NewState() *State {
	return &State{
		Loops:             make(map[string]*Loop),
		Iterations:        make(map[string]*Iteration),
		Candidates:        make(map[string]*Candidate),
		Runs:              make(map[string]*Run),
		Approvals:         make(map[string]*Approval),
		Exceptions:        make(map[string]*Exception),
		FreezeRecords:     make(map[string]*FreezeRecord),
		Decisions:         make(map[string]*Decision),
		GovernedArtifacts: make(map[string]*GovernedArtifact),
		Graph:             graph.New(),
	}
}

// stateSnapshot is the canonical, hashable view of a State: component
// tables named exactly as §8's replay-proof test enumerates them
// (loops, iterations, candidates, runs, approvals, freeze_records,
// decisions, exceptions, evidence_bundles stand in for runs' evidence
// hashes since bundles themselves live in the evidence store).
type stateSnapshot struct {
	Checkpoint        int64                        `json:"checkpoint"`
	Loops             map[string]*Loop             `json:"loops"`
	Iterations        map[string]*Iteration        `json:"iterations"`
	Candidates        map[string]*Candidate        `json:"candidates"`
	Runs              map[string]*Run              `json:"runs"`
	Approvals         map[string]*Approval         `json:"approvals"`
	Exceptions        map[string]*Exception        `json:"exceptions"`
	FreezeRecords     map[string]*FreezeRecord     `json:"freeze_records"`
	Decisions         map[string]*Decision         `json:"decisions"`
	GovernedArtifacts map[string]*GovernedArtifact `json:"governed_artifacts"`
	Markers           []graph.Marker               `json:"staleness_markers"`
}

// StateHash returns a deterministic content hash of s, used by the
// replay-proof tests (§8 invariants 13-14): two independently rebuilt
// states from the same event prefix must hash identically.
func (s *State) StateHash() (string, error) {
	snap := stateSnapshot{
		Checkpoint:        s.Checkpoint,
		Loops:             s.Loops,
		Iterations:        s.Iterations,
		Candidates:        s.Candidates,
		Runs:              s.Runs,
		Approvals:         s.Approvals,
		Exceptions:        s.Exceptions,
		FreezeRecords:     s.FreezeRecords,
		Decisions:         s.Decisions,
		GovernedArtifacts: s.GovernedArtifacts,
		Markers:           s.Markers,
	}
	b, err := canon.Marshal(snap)
	if err != nil {
		return "", err
	}
	return ids.ContentHash(b), nil
}

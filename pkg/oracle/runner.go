package oracle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/governedloop/core/pkg/errs"
	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/evidence"
	"github.com/governedloop/core/pkg/ids"
	"github.com/governedloop/core/pkg/integrity"
	"github.com/governedloop/core/pkg/obsv"
	"github.com/governedloop/core/pkg/ports"
)

// RunResult is what Runner.Run hands back to its caller (§6's
// OracleRunner port: run(candidate_id, suite_id, suite_hash) ->
// {run_id, evidence_hash, status, env_fingerprint}).
type RunResult struct {
	RunID               string
	EvidenceBundleHash  string
	Status              string
	EnvFingerprint       ports.EnvironmentFingerprint
	IntegrityConditions []integrity.Condition
}

// Runner implements §4.6's oracle execution algorithm.
type Runner struct {
	Events   eventlog.Store
	Registry ports.OracleSuiteRegistry
	Evidence ports.EvidenceStore
	Content  ports.ContentSource
	Sandbox  ports.Sandbox
	WorkDir  string // base dir for per-run scratch/workspace directories
}

// NewRunner constructs a Runner; workDir defaults to os.TempDir() when empty.
func NewRunner(events eventlog.Store, registry ports.OracleSuiteRegistry, ev ports.EvidenceStore, content ports.ContentSource, sandbox ports.Sandbox, workDir string) *Runner {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Runner{Events: events, Registry: registry, Evidence: ev, Content: content, Sandbox: sandbox, WorkDir: workDir}
}

// ErrSuiteHashMismatch is returned when the caller's asserted suite
// hash disagrees with the registry's resolved hash (§4.6 step 2).
var ErrSuiteHashMismatch = fmt.Errorf("asserted oracle suite hash does not match the registered hash")

// Run evaluates candidateID under suiteID, asserting assertedSuiteHash
// if non-empty (a pin carried over from whoever requested the run).
func (r *Runner) Run(ctx context.Context, candidateID, suiteID, assertedSuiteHash string) (RunResult, error) {
	suite, err := r.Registry.Get(ctx, suiteID)
	if err != nil {
		return RunResult{}, err
	}
	if assertedSuiteHash != "" && assertedSuiteHash != suite.SuiteHash {
		return RunResult{}, ErrSuiteHashMismatch
	}

	runID := ids.New(ids.KindRun)
	now := time.Now().UTC()

	if _, err := r.Events.Append(ctx, runID, "Run", 0, []eventlog.EventInput{{
		EventType:  "RunStarted",
		OccurredAt: now,
		ActorKind:  eventlog.ActorSystem,
		ActorID:    "oracle-runner",
		Payload: map[string]any{
			"candidate_id":      candidateID,
			"oracle_suite_id":   suiteID,
			"oracle_suite_hash": suite.SuiteHash,
		},
	}}); err != nil {
		return RunResult{}, err
	}

	workspaceDir, scratchDir, cleanup, err := r.materialiseWorkspace(ctx, candidateID, runID)
	if err != nil {
		return RunResult{}, err
	}
	defer cleanup()

	results := make([]evidence.Result, 0, len(suite.Oracles))
	blobs := make(map[string][]byte)
	var fingerprint ports.EnvironmentFingerprint

	for _, o := range suite.Oracles {
		status, detail, out := r.runOne(ctx, o, workspaceDir, scratchDir)
		results = append(results, evidence.Result{OracleID: o.OracleID, Status: status, Detail: detail})
		if len(out.Stdout) > 0 {
			name := o.OracleID + ".stdout"
			blobs[name] = []byte(out.Stdout)
		}
		fingerprint = out.Fingerprint
	}

	manifest := &evidence.Manifest{
		SchemaVersion:           1,
		BundleID:                ids.New(ids.KindBundle),
		RunID:                   runID,
		CandidateID:             candidateID,
		OracleSuiteID:           suiteID,
		OracleSuiteHash:         suite.SuiteHash,
		RunStartedAt:            now,
		RunCompletedAt:          time.Now().UTC(),
		EnvironmentFingerprint:  fingerprintMap(fingerprint, suite),
		Results:                 results,
		Verdict:                 evidence.ComputeVerdict(results),
	}
	for name := range blobs {
		manifest.Artifacts = append(manifest.Artifacts, evidence.Artifact{
			Name:         name,
			ContentHash:  ids.ContentHash(blobs[name]),
			ArtifactType: "log",
		})
	}
	if err := evidence.Validate(manifest); err != nil {
		return RunResult{}, err
	}

	manifestBytes, err := evidence.Serialize(manifest)
	if err != nil {
		return RunResult{}, err
	}
	bundleHash, err := r.Evidence.Store(ctx, manifestBytes, blobs)
	if err != nil {
		return RunResult{}, err
	}

	if _, err := r.Events.Append(ctx, runID, "Run", 1, []eventlog.EventInput{{
		EventType:  "EvidenceBundleRecorded",
		OccurredAt: time.Now().UTC(),
		ActorKind:  eventlog.ActorSystem,
		ActorID:    "oracle-runner",
		Refs: []eventlog.Ref{{
			Kind: "EvidenceBundle", ID: bundleHash, Rel: eventlog.RelProduces,
			Meta: map[string]any{"content_hash": bundleHash},
		}},
	}}); err != nil {
		return RunResult{}, err
	}

	status := "COMPLETED"
	if _, err := r.Events.Append(ctx, runID, "Run", 2, []eventlog.EventInput{{
		EventType:  "RunCompleted",
		OccurredAt: time.Now().UTC(),
		ActorKind:  eventlog.ActorSystem,
		ActorID:    "oracle-runner",
		Payload:    map[string]any{"evidence_bundle_hash": bundleHash, "status": status},
	}}); err != nil {
		return RunResult{}, err
	}

	requiredOracleIDs := make([]string, len(suite.Oracles))
	for i, o := range suite.Oracles {
		requiredOracleIDs[i] = o.OracleID
	}
	conditions := integrity.Check(integrity.RunContext{
		RunID:               runID,
		CandidateID:         candidateID,
		RequestedSuiteID:    suiteID,
		RequestedSuiteHash:  suite.SuiteHash,
		RegisteredSuiteHash: suite.SuiteHash,
		RequiredOracleIDs:   requiredOracleIDs,
		ManifestJSON:        manifestBytes,
		Manifest:            manifest,
		EnvConstraints: integrity.EnvConstraints{
			RequiredSandboxRuntime: suite.EnvironmentConstraints["sandbox_runtime"],
			RequiredOSKernelClass:  suite.EnvironmentConstraints["os_kernel_class"],
		},
	})

	obsv.RecordOracleRun(suiteID, status, manifest.RunCompletedAt.Sub(manifest.RunStartedAt).Seconds())

	return RunResult{
		RunID:               runID,
		EvidenceBundleHash:  bundleHash,
		Status:              status,
		EnvFingerprint:      fingerprint,
		IntegrityConditions: conditions,
	}, nil
}

func (r *Runner) runOne(ctx context.Context, o ports.Oracle, workspaceDir, scratchDir string) (evidence.Verdict, string, ports.SandboxRunResult) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	out, err := r.Sandbox.Run(ctx, ports.SandboxRunRequest{
		ImageDigest:  o.ImageDigest,
		WorkspaceDir: workspaceDir,
		ScratchDir:   scratchDir,
		Timeout:      timeout,
		AllowNetwork: o.AllowNetwork,
	})
	if err != nil {
		return evidence.VerdictError, err.Error(), out
	}
	if out.TimedOut {
		return evidence.VerdictError, "oracle timed out", out
	}
	if out.ExitCode == 0 {
		return evidence.VerdictPass, "", out
	}
	return evidence.VerdictFail, fmt.Sprintf("exit code %d", out.ExitCode), out
}

// materialiseWorkspace creates the per-run workspace (candidate content)
// and scratch directories, removed unconditionally when the run ends.
func (r *Runner) materialiseWorkspace(ctx context.Context, candidateID, runID string) (workspaceDir, scratchDir string, cleanup func(), err error) {
	base := filepath.Join(r.WorkDir, "oracle-run-"+runID)
	workspaceDir = filepath.Join(base, "workspace")
	scratchDir = filepath.Join(base, "scratch")
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return "", "", nil, &errs.InfrastructureError{Port: "Sandbox", Err: err}
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return "", "", nil, &errs.InfrastructureError{Port: "Sandbox", Err: err}
	}
	if r.Content != nil {
		contentHash := candidateID
		for _, part := range strings.Split(candidateID, "|") {
			if ids.ValidContentHash(part) {
				contentHash = part
			}
		}
		content, err := r.Content.Fetch(ctx, contentHash)
		if err == nil && len(content) > 0 {
			_ = os.WriteFile(filepath.Join(workspaceDir, "candidate"), content, 0o644)
		}
	}
	cleanup = func() { _ = os.RemoveAll(base) }
	return workspaceDir, scratchDir, cleanup, nil
}

func fingerprintMap(fp ports.EnvironmentFingerprint, suite ports.OracleSuite) map[string]any {
	m := map[string]any{
		"image_digest":    fp.ImageDigest,
		"sandbox_runtime": fp.SandboxRuntime,
		"os_kernel_class": fp.OSKernelClass,
		"timezone":        fp.Timezone,
	}
	if len(suite.EnvironmentConstraints) > 0 {
		m["constraints_hash"] = ids.ContentHash([]byte(fmt.Sprintf("%v", suite.EnvironmentConstraints)))
	}
	return m
}

package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/governedloop/core/pkg/errs"
	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/evidence"
	"github.com/governedloop/core/pkg/ports"
)

type fakeSandbox struct {
	exitCode int
	fail     bool
}

func (f *fakeSandbox) Run(ctx context.Context, req ports.SandboxRunRequest) (ports.SandboxRunResult, error) {
	if f.fail {
		return ports.SandboxRunResult{}, errs.ErrNotFound
	}
	return ports.SandboxRunResult{
		ExitCode: f.exitCode,
		Stdout:   "ok",
		Fingerprint: ports.EnvironmentFingerprint{
			ImageDigest:    req.ImageDigest,
			SandboxRuntime: "fake",
			OSKernelClass:  "linux",
			Timezone:       "UTC",
		},
	}, nil
}

func registerCoreSuite(t *testing.T, reg ports.OracleSuiteRegistry) ports.OracleSuite {
	t.Helper()
	suite := ports.OracleSuite{
		SuiteID:   "suite:SR-SUITE-CORE",
		SuiteHash: "sha256:" + fixedHex(),
		OCIImage:  "oracle-core:1",
		Oracles:   []ports.Oracle{{OracleID: "lint", ImageDigest: "oracle-core@sha256:deadbeef"}},
		Status:    "active",
	}
	require.NoError(t, reg.Register(context.Background(), suite))
	return suite
}

func fixedHex() string {
	return "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
}

func TestRunner_Run_HappyPathProducesPassVerdict(t *testing.T) {
	reg := NewMemoryRegistry()
	suite := registerCoreSuite(t, reg)

	r := NewRunner(eventlog.NewMemoryStore(), reg, evidence.NewMemoryStore(), nil, &fakeSandbox{exitCode: 0}, t.TempDir())
	result, err := r.Run(context.Background(), "cand_1", suite.SuiteID, "")
	require.NoError(t, err)
	require.Equal(t, "COMPLETED", result.Status)
	require.NotEmpty(t, result.EvidenceBundleHash)
	require.Empty(t, result.IntegrityConditions)
}

func TestRunner_Run_AssertedSuiteHashMismatch(t *testing.T) {
	reg := NewMemoryRegistry()
	suite := registerCoreSuite(t, reg)

	r := NewRunner(eventlog.NewMemoryStore(), reg, evidence.NewMemoryStore(), nil, &fakeSandbox{exitCode: 0}, t.TempDir())
	_, err := r.Run(context.Background(), "cand_1", suite.SuiteID, "sha256:wrong")
	require.ErrorIs(t, err, ErrSuiteHashMismatch)
}

func TestRunner_Run_NonZeroExitYieldsFailVerdictNoIntegrityCondition(t *testing.T) {
	reg := NewMemoryRegistry()
	suite := registerCoreSuite(t, reg)

	r := NewRunner(eventlog.NewMemoryStore(), reg, evidence.NewMemoryStore(), nil, &fakeSandbox{exitCode: 1}, t.TempDir())
	result, err := r.Run(context.Background(), "cand_1", suite.SuiteID, "")
	require.NoError(t, err)
	require.Empty(t, result.IntegrityConditions)
}

func TestRegistry_GetByHashAndDeprecate(t *testing.T) {
	reg := NewMemoryRegistry()
	suite := registerCoreSuite(t, reg)

	got, err := reg.GetByHash(context.Background(), suite.SuiteHash)
	require.NoError(t, err)
	require.Equal(t, suite.SuiteID, got.SuiteID)

	require.NoError(t, reg.Deprecate(context.Background(), suite.SuiteID))
	got, err = reg.Get(context.Background(), suite.SuiteID)
	require.NoError(t, err)
	require.Equal(t, "deprecated", got.Status)
}

// Package ports declares the capability contracts the core consumes
// (§6): EventStore, EvidenceStore, MessageBus, OracleRunner,
// OracleSuiteRegistry, IdentityProvider, SecretProvider, Clock, plus
// the Sandbox and WorkerInvoker ports implied by the oracle runtime
// and worker bridge. Concrete adapters live in their owning packages
// (pkg/eventlog, pkg/bus, ...); this package exists so cross-cutting
// consumers (pkg/governor, pkg/worker, pkg/oracle) can depend on the
// contract without importing every adapter package.
package ports

import (
	"context"
	"time"
)

// Clock is read only at I/O boundaries — never inside a projection
// apply function, per §4.3's determinism invariant.
type Clock interface {
	Now() time.Time
}

// IdentityProvider validates a bearer credential and returns the
// actor identity the core uses for actor_kind checks.
type IdentityProvider interface {
	Validate(ctx context.Context, token string) (ActorIdentity, error)
}

// ActorIdentity is what an IdentityProvider resolves a token to.
type ActorIdentity struct {
	ActorKind string
	ActorID   string
}

// SecretProvider exposes exact-match path addressing for secrets and
// envelope keys; auditable by the adapter, opaque to the core.
type SecretProvider interface {
	GetSecret(ctx context.Context, path string) ([]byte, error)
	StoreSecret(ctx context.Context, path string, value []byte) error
	DeleteSecret(ctx context.Context, path string) error
	GetEnvelopeKey(ctx context.Context, keyID string) ([]byte, error)
}

// EvidenceStore is content-addressed and idempotent: storing the same
// manifest+blobs twice is a no-op that returns the same hash.
type EvidenceStore interface {
	Store(ctx context.Context, manifestJSON []byte, blobs map[string][]byte) (bundleHash string, err error)
	Retrieve(ctx context.Context, bundleHash string) (manifestJSON []byte, blobs map[string][]byte, err error)
	Exists(ctx context.Context, bundleHash string) (bool, error)
}

// Sandbox executes one oracle image against a materialised workspace.
// Implementations (e.g. a testcontainers-go generic container adapter)
// own the container lifecycle; Run must terminate the container on
// return regardless of outcome.
type Sandbox interface {
	Run(ctx context.Context, req SandboxRunRequest) (SandboxRunResult, error)
}

// SandboxRunRequest describes one oracle invocation.
type SandboxRunRequest struct {
	ImageDigest     string
	WorkspaceDir    string // read-only mount
	ScratchDir      string // writable scratch
	Timeout         time.Duration
	AllowNetwork    bool
	Env             map[string]string
}

// SandboxRunResult captures what the oracle produced plus the
// environment fingerprint (§4.6 step 5).
type SandboxRunResult struct {
	ExitCode    int
	Stdout      string
	Stderr      string
	TimedOut    bool
	Fingerprint EnvironmentFingerprint
}

// EnvironmentFingerprint is part of the canonical manifest serializer's
// sorted-map encoding (§9 Open Question 2 supplement): image digest,
// sandbox runtime, OS kernel class, UTC timezone, plus resource limits
// and a content hash of the oracle's declared environment constraints.
type EnvironmentFingerprint struct {
	ImageDigest        string `json:"image_digest"`
	SandboxRuntime      string `json:"sandbox_runtime"`
	OSKernelClass       string `json:"os_kernel_class"`
	Timezone            string `json:"timezone"`
	CPULimit            string `json:"cpu_limit,omitempty"`
	MemLimit            string `json:"mem_limit,omitempty"`
	ConstraintsHash     string `json:"constraints_hash,omitempty"`
}

// ContentSource resolves a candidate's content-addressed bytes so the
// oracle runner can materialise a workspace (§4.6 step 3). Candidates
// themselves are produced and stored by the worker bridge; this port
// only reads them back by hash.
type ContentSource interface {
	Fetch(ctx context.Context, contentHash string) ([]byte, error)
}

// Oracle is one entry in an OracleSuite's declared oracle list.
type Oracle struct {
	OracleID     string
	ImageDigest  string
	AllowNetwork bool
	Timeout      time.Duration
}

// OracleSuite is the registered, content-hashed suite definition (§3).
type OracleSuite struct {
	SuiteID               string
	SuiteHash             string
	OCIImage              string
	EnvironmentConstraints map[string]string
	Oracles               []Oracle
	Status                string // active, deprecated, archived
}

// OracleSuiteRegistry is register/get/get_by_hash/list/deprecate over
// OracleSuite, unique on (id, hash), soft-deleteable.
type OracleSuiteRegistry interface {
	Register(ctx context.Context, suite OracleSuite) error
	Get(ctx context.Context, suiteID string) (OracleSuite, error)
	GetByHash(ctx context.Context, suiteHash string) (OracleSuite, error)
	List(ctx context.Context) ([]OracleSuite, error)
	Deprecate(ctx context.Context, suiteID string) error
}

// WorkerInvoker is opaque to the core: the default adapter is an HTTP
// callout, but the port only promises a deterministic context bundle
// in, a candidate content hash out.
type WorkerInvoker interface {
	Invoke(ctx context.Context, req WorkerInvokeRequest) (WorkerInvokeResult, error)
}

// WorkerInvokeRequest carries the deterministic context bundle
// compiled from an iteration's refs (sorted, content-hash addressed).
type WorkerInvokeRequest struct {
	IterationID string
	ContextRefs []ContextRef
}

// ContextRef is one sorted, content-addressed entry of a context bundle.
type ContextRef struct {
	Kind        string
	ID          string
	ContentHash string
}

// WorkerInvokeResult is what an external worker hands back.
type WorkerInvokeResult struct {
	CandidateContentHash string
	Summary              string
	Failed               bool
	FailureReason         string
}

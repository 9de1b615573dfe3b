// Package oracle implements the oracle execution runtime (§4.6): suite
// resolution and pinning, sandboxed per-oracle execution behind a
// circuit breaker, evidence bundle assembly, and the post-run integrity
// check (§4.7).
package oracle

import (
	"context"
	"sync"

	"github.com/governedloop/core/pkg/errs"
	"github.com/governedloop/core/pkg/ports"
)

// MemoryRegistry is an in-memory OracleSuiteRegistry for tests and for
// deployments that seed suites from config rather than a database.
type MemoryRegistry struct {
	mu      sync.RWMutex
	byID    map[string]ports.OracleSuite
	byHash  map[string]ports.OracleSuite
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID:   make(map[string]ports.OracleSuite),
		byHash: make(map[string]ports.OracleSuite),
	}
}

// Register records suite under its suite_id and its suite_hash.
// Re-registering an identical (suite_id, suite_hash) pair is a no-op.
// Registering a new hash under an existing suite_id replaces the suite
// that Get and List return for that id; only GetByHash still finds the
// earlier hash.
func (r *MemoryRegistry) Register(ctx context.Context, suite ports.OracleSuite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[suite.SuiteID]; ok && existing.SuiteHash == suite.SuiteHash {
		return nil // idempotent re-registration of the identical suite
	}
	r.byID[suite.SuiteID] = suite
	r.byHash[suite.SuiteHash] = suite
	return nil
}

func (r *MemoryRegistry) Get(ctx context.Context, suiteID string) (ports.OracleSuite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[suiteID]
	if !ok {
		return ports.OracleSuite{}, errs.ErrNotFound
	}
	return s, nil
}

func (r *MemoryRegistry) GetByHash(ctx context.Context, suiteHash string) (ports.OracleSuite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byHash[suiteHash]
	if !ok {
		return ports.OracleSuite{}, errs.ErrNotFound
	}
	return s, nil
}

func (r *MemoryRegistry) List(ctx context.Context) ([]ports.OracleSuite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.OracleSuite, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out, nil
}

func (r *MemoryRegistry) Deprecate(ctx context.Context, suiteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[suiteID]
	if !ok {
		return errs.ErrNotFound
	}
	s.Status = "deprecated"
	r.byID[suiteID] = s
	r.byHash[s.SuiteHash] = s
	return nil
}

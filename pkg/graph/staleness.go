package graph

import (
	"time"

	"github.com/governedloop/core/pkg/ids"
)

// ReasonCode is the closed set of staleness reasons from §3's
// StalenessMarker entity.
type ReasonCode string

const (
	ReasonGovernedArtifactChanged ReasonCode = "GOVERNED_ARTIFACT_CHANGED"
	ReasonOracleSuiteRebased      ReasonCode = "ORACLE_SUITE_REBASED"
	ReasonExceptionActivated      ReasonCode = "EXCEPTION_ACTIVATED"
	ReasonDependencyStale         ReasonCode = "DEPENDENCY_STALE"
	ReasonManualMark              ReasonCode = "MANUAL_MARK"
)

// Resolution is how a StalenessMarker may be cleared: MECHANICAL (any
// actor, recorded by event) or DECISION (HUMAN actor required).
type Resolution string

const (
	ResolutionMechanical Resolution = "MECHANICAL"
	ResolutionDecision   Resolution = "DECISION"
)

// Marker mirrors §3's StalenessMarker row.
type Marker struct {
	StaleID           string
	RootRef           string
	DependentRef      string
	ReasonCode        ReasonCode
	MarkedAt          time.Time
	ResolvedAt        *time.Time
	ResolutionEventID string
}

// PropagateStaleness marks root stale with reason, then marks every
// transitive dependent of root (bounded by maxDepth) with reason
// DEPENDENCY_STALE — exactly §4.4's propagation rule. With
// maxDepth=0 (§8 invariant 18), only the root is marked.
func PropagateStaleness(g *Graph, root string, reason ReasonCode, maxDepth int, markedAt time.Time) []Marker {
	markers := []Marker{{
		StaleID:      ids.New(ids.KindStaleness),
		RootRef:      root,
		DependentRef: root,
		ReasonCode:   reason,
		MarkedAt:     markedAt,
	}}

	if maxDepth <= 0 {
		return markers
	}

	for _, step := range g.GetDependents(root, maxDepth) {
		markers = append(markers, Marker{
			StaleID:      ids.New(ids.KindStaleness),
			RootRef:      root,
			DependentRef: step.Src,
			ReasonCode:   ReasonDependencyStale,
			MarkedAt:     markedAt,
		})
	}
	return markers
}

// IsStale reports whether node has at least one unresolved marker —
// §4.4's "a node counts as stale iff it has ≥1 unresolved marker".
func IsStale(markers []Marker, node string) bool {
	for _, m := range markers {
		if m.DependentRef == node && m.ResolvedAt == nil {
			return true
		}
	}
	return false
}

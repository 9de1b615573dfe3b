package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/governedloop/core/pkg/eventlog"
)

func TestPropagateStaleness_MaxDepthZeroMarksOnlyRoot(t *testing.T) {
	g := New()
	g.AddEdge("art_1", "cand_1", eventlog.RelDependsOn)
	g.AddEdge("cand_1", "run_1", eventlog.RelDependsOn)

	markers := PropagateStaleness(g, "art_1", ReasonGovernedArtifactChanged, 0, time.Now())

	assert.Len(t, markers, 1)
	assert.Equal(t, "art_1", markers[0].DependentRef)
	assert.Equal(t, ReasonGovernedArtifactChanged, markers[0].ReasonCode)
}

func TestPropagateStaleness_MarksTransitiveDependentsWithinDepth(t *testing.T) {
	g := New()
	// cand_1 depends_on art_1, run_1 depends_on cand_1: GetDependents(art_1)
	// walks incoming edges, i.e. who points at art_1.
	g.AddEdge("cand_1", "art_1", eventlog.RelDependsOn)
	g.AddEdge("run_1", "cand_1", eventlog.RelDependsOn)

	markers := PropagateStaleness(g, "art_1", ReasonGovernedArtifactChanged, 2, time.Now())

	var deps []string
	for _, m := range markers {
		deps = append(deps, m.DependentRef)
	}
	assert.ElementsMatch(t, []string{"art_1", "cand_1", "run_1"}, deps)

	for _, m := range markers {
		if m.DependentRef != "art_1" {
			assert.Equal(t, ReasonDependencyStale, m.ReasonCode)
		}
	}
}

func TestPropagateStaleness_DepthOneDoesNotReachSecondHop(t *testing.T) {
	g := New()
	g.AddEdge("cand_1", "art_1", eventlog.RelDependsOn)
	g.AddEdge("run_1", "cand_1", eventlog.RelDependsOn)

	markers := PropagateStaleness(g, "art_1", ReasonGovernedArtifactChanged, 1, time.Now())

	var deps []string
	for _, m := range markers {
		deps = append(deps, m.DependentRef)
	}
	assert.ElementsMatch(t, []string{"art_1", "cand_1"}, deps)
}

func TestIsStale_TrueOnlyWhileUnresolved(t *testing.T) {
	resolvedAt := time.Now()
	markers := []Marker{
		{DependentRef: "cand_1", ResolvedAt: nil},
		{DependentRef: "cand_2", ResolvedAt: &resolvedAt},
	}

	assert.True(t, IsStale(markers, "cand_1"))
	assert.False(t, IsStale(markers, "cand_2"))
	assert.False(t, IsStale(markers, "cand_3"))
}

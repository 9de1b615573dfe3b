package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_KindPrefixAndMonotonicOrder(t *testing.T) {
	a := New(KindLoop)
	b := New(KindLoop)

	assert.True(t, strings.HasPrefix(a, "loop_"))
	assert.True(t, strings.HasPrefix(b, "loop_"))
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "ids generated later in the same process must sort after earlier ones")
}

func TestContentHash_FormatAndValidation(t *testing.T) {
	h := ContentHash([]byte("hello world"))
	assert.True(t, strings.HasPrefix(h, "sha256:"))
	assert.Len(t, h, len("sha256:")+64)
	assert.True(t, ValidContentHash(h))

	assert.False(t, ValidContentHash("not-a-hash"))
	assert.False(t, ValidContentHash("sha256:tooshort"))
}

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	require.Equal(t, a, b)
}

func TestCandidateID_Shape(t *testing.T) {
	hash := ContentHash([]byte("candidate body"))
	id := CandidateID("iter_ABC", hash)
	parts := strings.Split(id, "|")
	require.Len(t, parts, 3)
	assert.Equal(t, "iter_ABC", parts[0])
	assert.Equal(t, hash, parts[1])
	assert.True(t, strings.HasPrefix(parts[2], "cand_"))
}

func TestCandidateID_NoProducingRef(t *testing.T) {
	hash := ContentHash([]byte("seeded"))
	id := CandidateID("", hash)
	parts := strings.Split(id, "|")
	require.Len(t, parts, 2)
	assert.Equal(t, hash, parts[0])
}

func TestEnvelopeHash_Deterministic(t *testing.T) {
	f := EnvelopeFields{
		EventID:    "evt_1",
		StreamID:   "loop_1",
		StreamKind: "loop",
		StreamSeq:  1,
		EventType:  "LoopCreated",
		OccurredAt: "2026-01-01T00:00:00Z",
		ActorKind:  "HUMAN",
		ActorID:    "user_1",
		Refs:       []string{"ref-a", "ref-b"},
	}
	h1 := EnvelopeHash(f)
	h2 := EnvelopeHash(f)
	assert.Equal(t, h1, h2)

	f.Refs = []string{"ref-b", "ref-a"}
	h3 := EnvelopeHash(f)
	assert.NotEqual(t, h1, h3, "ref order is part of the envelope identity")
}

func TestBundleHash_OrderIndependentOfMapIteration(t *testing.T) {
	manifest := []byte(`{"bundle_id":"b1"}`)
	blobs := map[string][]byte{
		"z.log":  []byte("zzz"),
		"a.json": []byte("aaa"),
	}
	h1 := BundleHash(manifest, blobs)
	h2 := BundleHash(manifest, blobs)
	assert.Equal(t, h1, h2)
}

// Package eventlog implements the append-only event log described in
// §4.1: append-with-expected-version, dense per-stream stream_seq,
// globally monotonic global_seq, and the co-transactional outbox hand-off.
package eventlog

import (
	"time"

	"github.com/governedloop/core/pkg/ids"
)

// ActorKind is the kind of the event's originator. Governance rules
// condition on this (§4.3, §8 invariants 5 and 6).
type ActorKind string

const (
	ActorHuman  ActorKind = "HUMAN"
	ActorAgent  ActorKind = "AGENT"
	ActorSystem ActorKind = "SYSTEM"
)

func (k ActorKind) Valid() bool {
	switch k {
	case ActorHuman, ActorAgent, ActorSystem:
		return true
	}
	return false
}

// EdgeRel is the closed set of typed relations a Ref may carry (§4.4).
type EdgeRel string

const (
	RelAbout         EdgeRel = "about"
	RelDependsOn     EdgeRel = "depends_on"
	RelProduces      EdgeRel = "produces"
	RelVerifies      EdgeRel = "verifies"
	RelApprovedBy    EdgeRel = "approved_by"
	RelAcknowledges  EdgeRel = "acknowledges"
	RelSupersedes    EdgeRel = "supersedes"
	RelReleases      EdgeRel = "releases"
	RelSupportedBy   EdgeRel = "supported_by"
	RelGovernedBy    EdgeRel = "governed_by"
	RelInScopeOf     EdgeRel = "in_scope_of"
	RelAffects       EdgeRel = "affects"
	RelStale         EdgeRel = "stale"
	RelRootCause     EdgeRel = "root_cause"
	RelRelatesTo     EdgeRel = "relates_to"
)

var validRels = map[EdgeRel]struct{}{
	RelAbout: {}, RelDependsOn: {}, RelProduces: {}, RelVerifies: {},
	RelApprovedBy: {}, RelAcknowledges: {}, RelSupersedes: {}, RelReleases: {},
	RelSupportedBy: {}, RelGovernedBy: {}, RelInScopeOf: {}, RelAffects: {},
	RelStale: {}, RelRootCause: {}, RelRelatesTo: {},
}

func (r EdgeRel) Valid() bool {
	_, ok := validRels[r]
	return ok
}

// ContentAddressedKinds are the ref kinds whose meta.content_hash must
// be present and must match the referenced artifact (§3, TypedRef row).
var ContentAddressedKinds = map[string]struct{}{
	"GovernedArtifact": {},
	"Candidate":        {},
	"OracleSuite":      {},
	"EvidenceBundle":   {},
	"Record":           {},
}

// Ref is a TypedRef embedded in an event: {kind, id, rel, meta}.
type Ref struct {
	Kind string         `json:"kind"`
	ID   string         `json:"id"`
	Rel  EdgeRel        `json:"rel"`
	Meta map[string]any `json:"meta,omitempty"`
}

// ContentHash returns meta["content_hash"] if present.
func (r Ref) ContentHash() (string, bool) {
	if r.Meta == nil {
		return "", false
	}
	v, ok := r.Meta["content_hash"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Validate enforces the content-hash-presence invariant for
// content-addressed ref kinds.
func (r Ref) Validate() error {
	if !r.Rel.Valid() {
		return errInvalidRel(r.Rel)
	}
	if _, needsHash := ContentAddressedKinds[r.Kind]; needsHash {
		hash, ok := r.ContentHash()
		if !ok || !ids.ValidContentHash(hash) {
			return errMissingContentHash(r.Kind, r.ID)
		}
	}
	return nil
}

// EventInput is what a caller supplies to Append; Append fills in
// stream_seq, global_seq, event_id, and envelope_hash.
type EventInput struct {
	EventType     string
	OccurredAt    time.Time
	ActorKind     ActorKind
	ActorID       string
	CorrelationID string
	CausationID   string
	Supersedes    []string
	Refs          []Ref
	Payload       map[string]any
}

// Event is a fully-assigned, stored event — the stable envelope of §6.
type Event struct {
	EventID       string         `json:"event_id"`
	StreamID      string         `json:"stream_id"`
	StreamKind    string         `json:"stream_kind"`
	StreamSeq     int            `json:"stream_seq"`
	GlobalSeq     int64          `json:"global_seq"`
	EventType     string         `json:"event_type"`
	OccurredAt    time.Time      `json:"occurred_at"`
	ActorKind     ActorKind      `json:"actor_kind"`
	ActorID       string         `json:"actor_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	CausationID   string         `json:"causation_id,omitempty"`
	Supersedes    []string       `json:"supersedes,omitempty"`
	Refs          []Ref          `json:"refs,omitempty"`
	Payload       map[string]any `json:"payload"`
	EnvelopeHash  string         `json:"envelope_hash"`
}

// RecomputeEnvelopeHash recomputes the hash over e's own fields for
// tamper detection on read (§4.1, §8 invariant 3).
func (e Event) RecomputeEnvelopeHash(canonicalPayload []byte) string {
	refStrs := make([]string, len(e.Refs))
	for i, r := range e.Refs {
		hash, _ := r.ContentHash()
		refStrs[i] = string(r.Kind) + "|" + r.ID + "|" + string(r.Rel) + "|" + hash
	}
	return ids.EnvelopeHash(ids.EnvelopeFields{
		EventID:       e.EventID,
		StreamID:      e.StreamID,
		StreamKind:    e.StreamKind,
		StreamSeq:     e.StreamSeq,
		EventType:     e.EventType,
		OccurredAt:    e.OccurredAt.UTC().Format(time.RFC3339Nano),
		ActorKind:     string(e.ActorKind),
		ActorID:       e.ActorID,
		CorrelationID: e.CorrelationID,
		CausationID:   e.CausationID,
		Supersedes:    e.Supersedes,
		Refs:          refStrs,
		PayloadHash:   ids.ContentHash(canonicalPayload),
	})
}

package projection

import (
	"log/slog"

	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/graph"
)

// Apply is the pure (state, event) -> state function of §4.3: the only
// permitted clock reading is event.OccurredAt, the only permitted
// randomness is derived from event.EventID, and an unknown event_type
// is a logged no-op rather than an error, per §7's forward-compatibility
// rule. Apply also feeds every event into the dependency graph (§4.4),
// since nodes/edges are derived from the same refs regardless of event
// type.
func Apply(s *State, e eventlog.Event, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	s.Graph.ApplyEvent(e)
	defer func() { s.Checkpoint = e.GlobalSeq }()

	switch e.EventType {
	case "LoopCreated":
		s.Loops[e.StreamID] = &Loop{
			LoopID:       e.StreamID,
			Goal:         str(e.Payload, "goal"),
			WorkUnit:     str(e.Payload, "work_unit"),
			State:        "CREATED",
			Budgets:      asMap(e.Payload, "budgets"),
			DirectiveRef: str(e.Payload, "directive_ref"),
		}

	case "LoopActivated":
		setLoopState(s, e.StreamID, "ACTIVE")
	case "LoopPaused":
		setLoopState(s, e.StreamID, "PAUSED")
	case "LoopResumed":
		setLoopState(s, e.StreamID, "ACTIVE")
	case "LoopClosed":
		setLoopState(s, e.StreamID, "CLOSED")

	case "IterationStarted":
		if e.ActorKind != eventlog.ActorSystem {
			log.Warn("IterationStarted with non-SYSTEM actor, ignoring", "event_id", e.EventID)
			return
		}
		s.Iterations[e.StreamID] = &Iteration{
			IterationID: e.StreamID,
			LoopID:      str(e.Payload, "loop_id"),
			Sequence:    int(number(e.Payload, "sequence")),
			State:       "STARTED",
		}
		if loop, ok := s.Loops[str(e.Payload, "loop_id")]; ok {
			loop.IterationCount++
		}

	case "IterationCompleted":
		if it, ok := s.Iterations[e.StreamID]; ok {
			it.State = "COMPLETED"
			it.Summary = str(e.Payload, "summary")
		}
	case "IterationFailed":
		if it, ok := s.Iterations[e.StreamID]; ok {
			it.State = "FAILED"
			it.Summary = str(e.Payload, "summary")
		}

	case "CandidateMaterialized":
		s.Candidates[e.StreamID] = &Candidate{
			CandidateID:           e.StreamID,
			ContentHash:           str(e.Payload, "content_hash"),
			ProducedByIterationID: str(e.Payload, "produced_by_iteration_id"),
			VerificationStatus:    "UNVERIFIED",
		}

	case "CandidateVerificationComputed":
		if c, ok := s.Candidates[e.StreamID]; ok {
			c.VerificationStatus = str(e.Payload, "verification_status")
		}

	case "RunStarted":
		s.Runs[e.StreamID] = &Run{
			RunID:           e.StreamID,
			CandidateID:     str(e.Payload, "candidate_id"),
			OracleSuiteID:   str(e.Payload, "oracle_suite_id"),
			OracleSuiteHash: str(e.Payload, "oracle_suite_hash"),
			State:           "STARTED",
		}
	case "RunCompleted":
		if r, ok := s.Runs[e.StreamID]; ok {
			r.State = "COMPLETED"
			r.EvidenceBundleHash = str(e.Payload, "evidence_bundle_hash")
		}
	case "RunFailed":
		if r, ok := s.Runs[e.StreamID]; ok {
			r.State = "FAILED"
		}

	case "EvidenceBundleRecorded":
		// No direct table: the bundle hash is attached to the run by
		// RunCompleted; this event exists for the audit trail and graph
		// edges only.

	case "GovernedArtifactVersionRecorded":
		s.GovernedArtifacts[e.StreamID] = &GovernedArtifact{
			ArtifactID:        e.StreamID,
			CurrentVersionRef: str(e.Payload, "version_ref"),
			ContentHash:       str(e.Payload, "content_hash"),
		}

	case "FreezeRecordCreated":
		if e.ActorKind != eventlog.ActorHuman {
			log.Warn("FreezeRecordCreated with non-HUMAN actor, ignoring", "event_id", e.EventID)
			return
		}
		s.FreezeRecords[e.StreamID] = &FreezeRecord{
			FreezeID:          e.StreamID,
			BaselineID:        str(e.Payload, "baseline_id"),
			CandidateID:       str(e.Payload, "candidate_id"),
			VerificationMode:  str(e.Payload, "verification_mode"),
			ReleaseApprovalID: str(e.Payload, "release_approval_id"),
		}

	case "ApprovalRecorded":
		if e.ActorKind != eventlog.ActorHuman {
			log.Warn("ApprovalRecorded with non-HUMAN actor, ignoring", "event_id", e.EventID)
			return
		}
		s.Approvals[e.StreamID] = &Approval{
			ApprovalID:   e.StreamID,
			PortalID:     str(e.Payload, "portal_id"),
			Decision:     str(e.Payload, "decision"),
			SubjectRefs:  strSlice(e.Payload, "subject_refs"),
			EvidenceRefs: strSlice(e.Payload, "evidence_refs"),
		}

	case "DeviationCreated", "DeferralCreated", "WaiverCreated":
		if e.ActorKind != eventlog.ActorHuman {
			log.Warn("exception creation with non-HUMAN actor, ignoring", "event_id", e.EventID, "event_type", e.EventType)
			return
		}
		kind := map[string]string{
			"DeviationCreated": "DEVIATION",
			"DeferralCreated":  "DEFERRAL",
			"WaiverCreated":    "WAIVER",
		}[e.EventType]
		s.Exceptions[e.StreamID] = &Exception{
			ExceptionID: e.StreamID,
			Kind:        kind,
			Status:      "CREATED",
			Scope:       str(e.Payload, "scope"),
		}

	case "ExceptionActivated":
		setExceptionStatus(s, e.StreamID, "ACTIVE")
	case "ExceptionResolved":
		setExceptionStatus(s, e.StreamID, "RESOLVED")
	case "ExceptionExpired":
		setExceptionStatus(s, e.StreamID, "EXPIRED")

	case "NodeMarkedStale":
		s.Markers = append(s.Markers, graph.Marker{
			StaleID:      str(e.Payload, "stale_id"),
			RootRef:      str(e.Payload, "root_ref"),
			DependentRef: str(e.Payload, "dependent_ref"),
			ReasonCode:   graph.ReasonCode(str(e.Payload, "reason_code")),
			MarkedAt:     e.OccurredAt,
		})

	case "StalenessResolved":
		staleID := str(e.Payload, "stale_id")
		resolvedAt := e.OccurredAt
		for i := range s.Markers {
			if s.Markers[i].StaleID == staleID {
				s.Markers[i].ResolvedAt = &resolvedAt
				s.Markers[i].ResolutionEventID = e.EventID
			}
		}

	case "DecisionRecorded":
		if e.ActorKind != eventlog.ActorHuman {
			log.Warn("DecisionRecorded with non-HUMAN actor, ignoring", "event_id", e.EventID)
			return
		}
		s.Decisions[e.StreamID] = &Decision{
			DecisionID:  e.StreamID,
			Trigger:     str(e.Payload, "trigger"),
			Scope:       str(e.Payload, "scope"),
			Decision:    str(e.Payload, "decision"),
			IsPrecedent: boolean(e.Payload, "is_precedent"),
		}

	default:
		log.Info("projection: unknown event type, skipping", "event_type", e.EventType, "event_id", e.EventID)
	}
}

func setLoopState(s *State, loopID, state string) {
	if l, ok := s.Loops[loopID]; ok {
		l.State = state
	}
}

func setExceptionStatus(s *State, exceptionID, status string) {
	if ex, ok := s.Exceptions[exceptionID]; ok {
		ex.Status = status
	}
}

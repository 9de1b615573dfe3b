// Package verification implements the verification computer (§4.8):
// combines a candidate's completed runs, active waiver exceptions, and
// integrity conditions into VERIFIED_STRICT / VERIFIED_WITH_EXCEPTIONS
// / UNVERIFIED.
package verification

import (
	"github.com/governedloop/core/pkg/evidence"
	"github.com/governedloop/core/pkg/integrity"
	"github.com/governedloop/core/pkg/ports"
)

const (
	StatusVerifiedStrict         = "VERIFIED_STRICT"
	StatusVerifiedWithExceptions = "VERIFIED_WITH_EXCEPTIONS"
	StatusUnverified              = "UNVERIFIED"
)

// Profile is the active verification profile (§4.8): STRICT-CORE by
// default, enumerating the suites a candidate must pass.
type Profile struct {
	ProfileID        string
	RequiredSuiteIDs []string
}

// Waiver is an active waiver exception scoped to one oracle within one suite.
type Waiver struct {
	ExceptionID string
	SuiteID     string
	OracleID    string
}

// Input is everything Compute needs for one candidate.
type Input struct {
	CandidateID           string
	Profile               Profile
	Suites                map[string]ports.OracleSuite   // suite_id -> registered suite
	LatestManifestBySuite map[string]*evidence.Manifest  // suite_id -> most recent completed run's manifest, nil if none
	ActiveWaivers         []Waiver
	IntegrityConditions   []integrity.Condition // conditions already detected on the candidate's runs
}

// SuiteSummary is the per-suite verdict basis recorded on
// CandidateVerificationComputed.
type SuiteSummary struct {
	SuiteID        string
	SuiteHash      string
	OraclesPassed  []string
	OraclesWaived  []string
	Gap            bool
	Tamper         bool
}

// Result is the derived verification basis, the payload of
// CandidateVerificationComputed.
type Result struct {
	Status            string
	ProfileID         string
	SuiteSummaries    []SuiteSummary
	WaivedOracleIDs   []string
	IntegrityConditions []string
}

// Compute implements §4.8's five-step algorithm.
func Compute(in Input) Result {
	waivedBy := make(map[string]map[string]bool, len(in.Suites))
	for _, w := range in.ActiveWaivers {
		if waivedBy[w.SuiteID] == nil {
			waivedBy[w.SuiteID] = make(map[string]bool)
		}
		waivedBy[w.SuiteID][w.OracleID] = true
	}

	var conditions []string
	for _, c := range in.IntegrityConditions {
		conditions = append(conditions, string(c))
	}

	var summaries []SuiteSummary
	var waivedOracleIDs []string
	requiredPassCount := 0
	allRequiredPassed := true

	for _, suiteID := range in.Profile.RequiredSuiteIDs {
		suite, known := in.Suites[suiteID]
		if !known {
			conditions = append(conditions, "ORACLE_GAP")
			summaries = append(summaries, SuiteSummary{SuiteID: suiteID, Gap: true})
			continue
		}
		manifest := in.LatestManifestBySuite[suiteID]
		if manifest == nil {
			conditions = append(conditions, "ORACLE_GAP")
			summaries = append(summaries, SuiteSummary{SuiteID: suiteID, SuiteHash: suite.SuiteHash, Gap: true})
			continue
		}
		if manifest.CandidateID != in.CandidateID || manifest.OracleSuiteID != suiteID || manifest.OracleSuiteHash != suite.SuiteHash {
			conditions = append(conditions, "ORACLE_TAMPER")
			summaries = append(summaries, SuiteSummary{SuiteID: suiteID, SuiteHash: suite.SuiteHash, Tamper: true})
			continue
		}

		present := make(map[string]evidence.Verdict, len(manifest.Results))
		for _, r := range manifest.Results {
			present[r.OracleID] = r.Status
		}

		summary := SuiteSummary{SuiteID: suiteID, SuiteHash: suite.SuiteHash}
		for _, o := range suite.Oracles {
			status, ok := present[o.OracleID]
			if !ok {
				conditions = append(conditions, "ORACLE_GAP")
				summary.Gap = true
				continue
			}
			if waivedBy[suiteID][o.OracleID] {
				summary.OraclesWaived = append(summary.OraclesWaived, o.OracleID)
				waivedOracleIDs = append(waivedOracleIDs, o.OracleID)
				continue
			}
			requiredPassCount++
			if status == evidence.VerdictPass {
				summary.OraclesPassed = append(summary.OraclesPassed, o.OracleID)
			} else {
				allRequiredPassed = false
			}
		}
		summaries = append(summaries, summary)
	}

	conditions = dedupe(conditions)

	status := StatusUnverified
	if len(conditions) == 0 && requiredPassCount > 0 && allRequiredPassed {
		if len(waivedOracleIDs) == 0 {
			status = StatusVerifiedStrict
		} else {
			status = StatusVerifiedWithExceptions
		}
	}

	return Result{
		Status:              status,
		ProfileID:           in.Profile.ProfileID,
		SuiteSummaries:      summaries,
		WaivedOracleIDs:      waivedOracleIDs,
		IntegrityConditions: conditions,
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

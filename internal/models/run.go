// internal/models/run.go
package models

import "time"

type RunStatus string

const (
	RunStatusPending     RunStatus = "PENDING"
	RunStatusCollecting  RunStatus = "COLLECTING"
	RunStatusScoring     RunStatus = "SCORING"
	RunStatusRanked      RunStatus = "RANKED"
	RunStatusBriefing    RunStatus = "BRIEFING"
	RunStatusDone        RunStatus = "DONE"
	RunStatusDonePartial RunStatus = "DONE_PARTIAL"
	RunStatusFailed      RunStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunStatusDone || s == RunStatusDonePartial || s == RunStatusFailed
}

// DiscoveryRequest asks for one resonance discovery run: one anchor brand
// scored against a candidate pool.
type DiscoveryRequest struct {
	AnchorID       string   `json:"anchorId"`
	CountryCode    string   `json:"countryCode"`
	CandidateIDs   []string `json:"candidateIds"`
	RetainFraction float64  `json:"retainFraction,omitempty"`
	DeadlineMs     int      `json:"deadlineMs,omitempty"`
}

// RunDiagnostic is the structured explanation attached to FAILED runs and to
// partial outcomes: stage, counts, first error observed.
type RunDiagnostic struct {
	Stage      string         `json:"stage"`
	Counts     map[string]int `json:"counts"`
	FirstError string         `json:"firstError,omitempty"`
}

// Exclusion records one candidate dropped from the run and why.
type Exclusion struct {
	CandidateID string `json:"candidateId"`
	Reason      string `json:"reason"`
}

// WorkflowRun is one discovery request's full lifecycle. Mutated only by the
// orchestrator; terminal once DONE/DONE_PARTIAL/FAILED; retained afterwards
// so outcome feedback can be attributed to the weight version that scored it.
type WorkflowRun struct {
	ID             string           `json:"id"`
	AnchorID       string           `json:"anchorId"`
	CountryCode    string           `json:"countryCode"`
	CandidateIDs   []string         `json:"candidateIds"`
	RetainFraction float64          `json:"retainFraction"`
	WeightVersion  string           `json:"weightVersion"`
	Status         RunStatus        `json:"status"`
	Ranked         []ResonanceScore `json:"ranked,omitempty"`
	Briefs         []BriefResult    `json:"briefs,omitempty"`
	Exclusions     []Exclusion      `json:"exclusions,omitempty"`
	Diagnostic     *RunDiagnostic   `json:"diagnostic,omitempty"`
	StartedAt      time.Time        `json:"startedAt"`
	CompletedAt    time.Time        `json:"completedAt,omitempty"`
}

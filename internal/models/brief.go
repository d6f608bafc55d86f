// internal/models/brief.go
package models

type BriefStatus string

const (
	BriefStatusGenerated BriefStatus = "GENERATED"
	BriefStatusFailed    BriefStatus = "FAILED"
)

// CollaborationBrief is the structured partnership brief for one retained
// candidate. Immutable once produced.
type CollaborationBrief struct {
	CandidateID string              `json:"candidateId"`
	Title       string              `json:"title"`
	Ideas       []CollaborationIdea `json:"ideas"`
	NextSteps   []string            `json:"nextSteps"`
}

type CollaborationIdea struct {
	Description     string `json:"description"`
	EstimatedImpact string `json:"estimatedImpact"`
}

// BriefResult is a retained candidate's briefing outcome: a generated brief,
// or an explicit failure marker so the run never silently omits a candidate.
type BriefResult struct {
	CandidateID string              `json:"candidateId"`
	Status      BriefStatus         `json:"status"`
	Brief       *CollaborationBrief `json:"brief,omitempty"`
	Error       string              `json:"error,omitempty"`
}

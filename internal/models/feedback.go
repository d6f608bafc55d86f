// internal/models/feedback.go
package models

import "time"

// OutcomeFeedback is an externally observed partnership outcome for one
// briefed candidate, supplied out of band after the run completed.
type OutcomeFeedback struct {
	RunID       string    `json:"runId"`
	CandidateID string    `json:"candidateId"`
	Success     bool      `json:"success"`
	ObservedAt  time.Time `json:"observedAt"`
}

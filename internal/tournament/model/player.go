package model

import "time"

// Player holds the per-round scoring fields this service owns.
type Player struct {
	ID             string     `json:"id"`
	ProblemID      string     `json:"problemId"`
	TestsPassed    int        `json:"testsPassed"`
	SubmissionTime *time.Time `json:"submissionTime,omitempty"`
}

// HasSubmitted reports whether the player submitted in the current round.
func (p Player) HasSubmitted() bool {
	return p.SubmissionTime != nil
}

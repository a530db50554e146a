package model

// EventType names a room lifecycle or submission event.
type EventType string

const (
	EventTournamentStarted EventType = "tournament.started"
	EventRoundStarted      EventType = "round.started"
	EventRoundResolved     EventType = "round.resolved"
	EventResultDeclared    EventType = "result.declared"
	EventPlayerLeft        EventType = "player.left"
	EventTournamentEnded   EventType = "tournament.ended"
	EventSubmissionJudged  EventType = "submission.judged"
)

// RoomEvent is published after a room transition commits.
type RoomEvent struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"roomId"`
	State     RoomState `json:"state"`
	RoundNo   int       `json:"roundNo"`
	Players   []string  `json:"players,omitempty"`
	PlayerID  string    `json:"playerId,omitempty"`
	CreatedAt int64     `json:"createdAt"`
}

// SubmissionEvent is published after a submission is judged and recorded.
type SubmissionEvent struct {
	Type         EventType `json:"type"`
	SubmissionID string    `json:"submissionId"`
	PlayerID     string    `json:"playerId"`
	ProblemID    string    `json:"problemId"`
	LanguageID   string    `json:"languageId"`
	PassedCount  int       `json:"passedCount"`
	TotalCount   int       `json:"totalCount"`
	Aborted      bool      `json:"aborted,omitempty"`
	ArchiveKey   string    `json:"archiveKey,omitempty"`
	CreatedAt    int64     `json:"createdAt"`
}

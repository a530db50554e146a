package model

import (
	"errors"
	"time"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
)

// PlayerRef is an opaque reference into the player store.
type PlayerRef struct {
	ID string `json:"id"`
}

// Room is one tournament instance. Rooms are created by an external
// membership service; this service only moves them through RoomState.
type Room struct {
	RoomID         string
	Name           string
	Admin          string
	State          RoomState
	Participants   []PlayerRef
	Players        []PlayerRef
	OldPlayers     []PlayerRef
	RoundNo        int
	RoundStartTime *time.Time
	Version        int64
	UpdatedAt      time.Time
}

// Flags are the legacy booleans derived from State.
type Flags struct {
	IsStarted        bool `json:"isStarted"`
	RoundStarted     bool `json:"roundStarted"`
	ResultCalculated bool `json:"resultCalculated"`
	ResultDeclared   bool `json:"resultDeclared"`
}

// Flags derives the boolean view of the room state.
func (r *Room) Flags() Flags {
	return r.State.Flags()
}

// RemovePlayer drops every ref with id from Players and reports whether any was removed.
func (r *Room) RemovePlayer(id string) bool {
	kept := make([]PlayerRef, 0, len(r.Players))
	for _, p := range r.Players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(r.Players)
	r.Players = kept
	return removed
}

// CloneRefs returns a copy of refs that never aliases the input. A nil input yields an empty slice.
func CloneRefs(refs []PlayerRef) []PlayerRef {
	out := make([]PlayerRef, len(refs))
	copy(out, refs)
	return out
}

// RefIDs returns the ids of refs in order.
func RefIDs(refs []PlayerRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}

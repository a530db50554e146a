package model

import "fmt"

// RoomState is the explicit lifecycle state of a room.
type RoomState string

const (
	StateNotStarted      RoomState = "not_started"
	StateStarted         RoomState = "started"
	StateRoundInProgress RoomState = "round_in_progress"
	StateRoundResolved   RoomState = "round_resolved"
	StateResultDeclared  RoomState = "result_declared"
	StateEnded           RoomState = "ended"
)

// Valid reports whether s is a known state.
func (s RoomState) Valid() bool {
	switch s {
	case StateNotStarted, StateStarted, StateRoundInProgress, StateRoundResolved, StateResultDeclared, StateEnded:
		return true
	}
	return false
}

// Flags derives the legacy boolean view.
func (s RoomState) Flags() Flags {
	switch s {
	case StateStarted:
		return Flags{IsStarted: true}
	case StateRoundInProgress:
		return Flags{IsStarted: true, RoundStarted: true}
	case StateRoundResolved:
		return Flags{IsStarted: true, ResultCalculated: true}
	case StateResultDeclared:
		return Flags{IsStarted: true, ResultCalculated: true, ResultDeclared: true}
	default:
		return Flags{}
	}
}

// Op is a state machine operation.
type Op string

const (
	OpStartTournament Op = "startTournament"
	OpStartRound      Op = "startRound"
	OpCalculateResult Op = "calculateResult"
	OpDeclareResult   Op = "declareResult"
	OpLeave           Op = "leaveTournament"
	OpEndTournament   Op = "endTournament"
)

// Step is the outcome of applying an Op to a state.
type Step struct {
	Next RoomState
	// Noop means the operation is accepted but must not change the room.
	Noop bool
	// Reseed marks startTournament on an already started room.
	Reseed bool
}

// TransitionError is returned for an Op that is not allowed from a state.
type TransitionError struct {
	Op   Op
	From RoomState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not allowed in state %s", e.Op, e.From)
}

var transitions = map[Op]map[RoomState]Step{
	OpStartTournament: {
		StateNotStarted:      {Next: StateStarted},
		StateEnded:           {Next: StateStarted},
		StateStarted:         {Next: StateStarted, Reseed: true},
		StateRoundResolved:   {Next: StateStarted, Reseed: true},
		StateResultDeclared:  {Next: StateStarted, Reseed: true},
		// the running round keeps its start time and is resolved against the re-seeded roster
		StateRoundInProgress: {Next: StateRoundInProgress, Reseed: true},
	},
	OpStartRound: {
		StateStarted:        {Next: StateRoundInProgress},
		StateRoundResolved:  {Next: StateRoundInProgress},
		StateResultDeclared: {Next: StateRoundInProgress},
	},
	OpCalculateResult: {
		StateRoundInProgress: {Next: StateRoundResolved},
		StateRoundResolved:   {Next: StateRoundResolved, Noop: true},
		StateResultDeclared:  {Next: StateResultDeclared, Noop: true},
	},
	OpDeclareResult: {
		StateRoundResolved:  {Next: StateResultDeclared},
		StateResultDeclared: {Next: StateResultDeclared},
	},
}

// Transition applies op to from. leaveTournament keeps any state and endTournament
// moves any state to ended; everything else follows the transition table.
func Transition(op Op, from RoomState) (Step, error) {
	if !from.Valid() {
		return Step{}, &TransitionError{Op: op, From: from}
	}
	switch op {
	case OpLeave:
		return Step{Next: from}, nil
	case OpEndTournament:
		return Step{Next: StateEnded}, nil
	}
	step, ok := transitions[op][from]
	if !ok {
		return Step{}, &TransitionError{Op: op, From: from}
	}
	return step, nil
}

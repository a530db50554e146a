package model_test

import (
	"errors"
	"testing"

	"codeduel/internal/tournament/model"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		op       model.Op
		from     model.RoomState
		wantNext model.RoomState
		noop     bool
		reseed   bool
		reject   bool
	}{
		{op: model.OpStartTournament, from: model.StateNotStarted, wantNext: model.StateStarted},
		{op: model.OpStartTournament, from: model.StateEnded, wantNext: model.StateStarted},
		{op: model.OpStartTournament, from: model.StateStarted, wantNext: model.StateStarted, reseed: true},
		{op: model.OpStartTournament, from: model.StateResultDeclared, wantNext: model.StateStarted, reseed: true},
		{op: model.OpStartTournament, from: model.StateRoundInProgress, wantNext: model.StateRoundInProgress, reseed: true},

		{op: model.OpStartRound, from: model.StateStarted, wantNext: model.StateRoundInProgress},
		{op: model.OpStartRound, from: model.StateRoundResolved, wantNext: model.StateRoundInProgress},
		{op: model.OpStartRound, from: model.StateResultDeclared, wantNext: model.StateRoundInProgress},
		{op: model.OpStartRound, from: model.StateNotStarted, reject: true},
		{op: model.OpStartRound, from: model.StateRoundInProgress, reject: true},
		{op: model.OpStartRound, from: model.StateEnded, reject: true},

		{op: model.OpCalculateResult, from: model.StateRoundInProgress, wantNext: model.StateRoundResolved},
		{op: model.OpCalculateResult, from: model.StateRoundResolved, wantNext: model.StateRoundResolved, noop: true},
		{op: model.OpCalculateResult, from: model.StateResultDeclared, wantNext: model.StateResultDeclared, noop: true},
		{op: model.OpCalculateResult, from: model.StateStarted, reject: true},
		{op: model.OpCalculateResult, from: model.StateNotStarted, reject: true},

		{op: model.OpDeclareResult, from: model.StateRoundResolved, wantNext: model.StateResultDeclared},
		{op: model.OpDeclareResult, from: model.StateResultDeclared, wantNext: model.StateResultDeclared},
		{op: model.OpDeclareResult, from: model.StateRoundInProgress, reject: true},

		{op: model.OpLeave, from: model.StateRoundInProgress, wantNext: model.StateRoundInProgress},
		{op: model.OpLeave, from: model.StateNotStarted, wantNext: model.StateNotStarted},

		{op: model.OpEndTournament, from: model.StateRoundInProgress, wantNext: model.StateEnded},
		{op: model.OpEndTournament, from: model.StateEnded, wantNext: model.StateEnded},

		{op: model.OpEndTournament, from: model.RoomState("bogus"), reject: true},
	}

	for _, tc := range cases {
		t.Run(string(tc.op)+"/"+string(tc.from), func(t *testing.T) {
			step, err := model.Transition(tc.op, tc.from)
			if tc.reject {
				var te *model.TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("expected TransitionError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if step.Next != tc.wantNext || step.Noop != tc.noop || step.Reseed != tc.reseed {
				t.Fatalf("unexpected step: %+v", step)
			}
		})
	}
}

func TestStateFlags(t *testing.T) {
	cases := []struct {
		state model.RoomState
		want  model.Flags
	}{
		{model.StateNotStarted, model.Flags{}},
		{model.StateEnded, model.Flags{}},
		{model.StateStarted, model.Flags{IsStarted: true}},
		{model.StateRoundInProgress, model.Flags{IsStarted: true, RoundStarted: true}},
		{model.StateRoundResolved, model.Flags{IsStarted: true, ResultCalculated: true}},
		{model.StateResultDeclared, model.Flags{IsStarted: true, ResultCalculated: true, ResultDeclared: true}},
	}
	for _, tc := range cases {
		if got := tc.state.Flags(); got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.state, tc.want, got)
		}
	}
}

func TestRoomRemovePlayer(t *testing.T) {
	room := &model.Room{
		Participants: []model.PlayerRef{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Players:      []model.PlayerRef{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		OldPlayers:   []model.PlayerRef{{ID: "b"}},
	}
	if !room.RemovePlayer("b") {
		t.Fatalf("expected removal")
	}
	if room.RemovePlayer("zz") {
		t.Fatalf("unexpected removal")
	}
	if len(room.Players) != 2 || room.Players[0].ID != "a" || room.Players[1].ID != "c" {
		t.Fatalf("unexpected players: %+v", room.Players)
	}
	if len(room.Participants) != 3 || len(room.OldPlayers) != 1 {
		t.Fatalf("participants and old players must be untouched")
	}
}

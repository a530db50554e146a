package bracket_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"testing"
	"time"

	"codeduel/internal/tournament/bracket"
	"codeduel/internal/tournament/model"
)

// seqRand returns queued values, then zeros.
type seqRand struct {
	values []int
}

func (r *seqRand) IntN(n int) int {
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

func refs(ids ...string) []model.PlayerRef {
	out := make([]model.PlayerRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.PlayerRef{ID: id})
	}
	return out
}

func TestShuffleIsPermutation(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7}
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 50; trial++ {
		out := bracket.Shuffle(in, rng)
		if len(out) != len(in) {
			t.Fatalf("length changed: %v", out)
		}
		sorted := append([]int(nil), out...)
		sort.Ints(sorted)
		if fmt.Sprint(sorted) != fmt.Sprint(in) {
			t.Fatalf("not a permutation: %v", out)
		}
	}
	if fmt.Sprint(in) != "[1 2 3 4 5 6 7]" {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestShuffleUniform(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	counts := map[string]int{}
	const trials = 60000
	for i := 0; i < trials; i++ {
		counts[fmt.Sprint(bracket.Shuffle([]string{"a", "b", "c"}, rng))]++
	}
	if len(counts) != 6 {
		t.Fatalf("expected 6 permutations, got %d", len(counts))
	}
	expected := trials / 6
	for perm, n := range counts {
		if n < expected*9/10 || n > expected*11/10 {
			t.Fatalf("permutation %s frequency %d too far from %d", perm, n, expected)
		}
	}
}

func TestShuffleEdgeCases(t *testing.T) {
	if out := bracket.Shuffle([]int(nil), nil); len(out) != 0 {
		t.Fatalf("expected empty result")
	}
	if out := bracket.Shuffle([]int{9}, nil); len(out) != 1 || out[0] != 9 {
		t.Fatalf("unexpected single result: %v", out)
	}
}

type resetRecorder struct {
	problems map[string]string
	missing  map[string]bool
	failOn   string
}

func (r *resetRecorder) reset(ctx context.Context, playerID, problemID string) error {
	if r.missing[playerID] {
		return model.ErrPlayerNotFound
	}
	if playerID == r.failOn {
		return errors.New("db down")
	}
	r.problems[playerID] = problemID
	return nil
}

func TestAssignPairsShareProblem(t *testing.T) {
	rec := &resetRecorder{problems: map[string]string{}}
	assigner := bracket.NewAssigner(nil, &seqRand{values: []int{1, 0, 1}})

	got, err := assigner.Assign(context.Background(), refs("a", "b", "c", "d", "e"), rec.reset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 assignments, got %+v", got)
	}
	want := map[string]string{"a": "0001", "b": "0001", "c": "0000", "d": "0000", "e": "0001"}
	for id, pid := range want {
		if rec.problems[id] != pid {
			t.Fatalf("player %s: expected %s, got %s", id, pid, rec.problems[id])
		}
	}
}

func TestAssignSkipsMissingPlayer(t *testing.T) {
	rec := &resetRecorder{problems: map[string]string{}, missing: map[string]bool{"a": true}}
	assigner := bracket.NewAssigner([]string{"X"}, nil)

	got, err := assigner.Assign(context.Background(), refs("a", "b", "c"), rec.reset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].PlayerID != "b" || got[1].PlayerID != "c" {
		t.Fatalf("unexpected assignments: %+v", got)
	}
	if _, ok := rec.problems["a"]; ok {
		t.Fatalf("missing player should not be reset")
	}
}

func TestAssignPropagatesStoreError(t *testing.T) {
	rec := &resetRecorder{problems: map[string]string{}, failOn: "c"}
	_, err := bracket.NewAssigner(nil, nil).Assign(context.Background(), refs("a", "b", "c", "d"), rec.reset)
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected store error, got %v", err)
	}
}

func at(sec int) *time.Time {
	ts := time.Date(2024, 1, 1, 0, 0, sec, 0, time.UTC)
	return &ts
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name      string
		roster    []model.PlayerRef
		standings map[string]model.Player
		want      string
	}{
		{
			name:   "tie goes to earlier submission",
			roster: refs("a", "b"),
			standings: map[string]model.Player{
				"a": {ID: "a", TestsPassed: 3, SubmissionTime: at(1)},
				"b": {ID: "b", TestsPassed: 3, SubmissionTime: at(2)},
			},
			want: "a",
		},
		{
			name:   "tie with later first player",
			roster: refs("a", "b"),
			standings: map[string]model.Player{
				"a": {ID: "a", TestsPassed: 3, SubmissionTime: at(5)},
				"b": {ID: "b", TestsPassed: 3, SubmissionTime: at(2)},
			},
			want: "b",
		},
		{
			name:   "exact time tie goes to second",
			roster: refs("a", "b"),
			standings: map[string]model.Player{
				"a": {ID: "a", TestsPassed: 3, SubmissionTime: at(2)},
				"b": {ID: "b", TestsPassed: 3, SubmissionTime: at(2)},
			},
			want: "b",
		},
		{
			name:   "more tests wins regardless of time",
			roster: refs("a", "b"),
			standings: map[string]model.Player{
				"a": {ID: "a", TestsPassed: 1, SubmissionTime: at(1)},
				"b": {ID: "b", TestsPassed: 4, SubmissionTime: at(9)},
			},
			want: "b",
		},
		{
			name:   "non submitter loses",
			roster: refs("a", "b"),
			standings: map[string]model.Player{
				"a": {ID: "a", TestsPassed: 5},
				"b": {ID: "b", TestsPassed: 0, SubmissionTime: at(3)},
			},
			want: "b",
		},
		{
			name:   "first submitter wins over absent second",
			roster: refs("a", "b"),
			standings: map[string]model.Player{
				"a": {ID: "a", SubmissionTime: at(3)},
			},
			want: "a",
		},
		{
			name:      "neither submitted first wins",
			roster:    refs("a", "b"),
			standings: map[string]model.Player{},
			want:      "a",
		},
		{
			name:   "trailing singleton with score advances",
			roster: refs("a", "b", "c"),
			standings: map[string]model.Player{
				"a": {ID: "a", TestsPassed: 2, SubmissionTime: at(1)},
				"b": {ID: "b", TestsPassed: 1, SubmissionTime: at(1)},
				"c": {ID: "c", TestsPassed: 1},
			},
			want: "a,c",
		},
		{
			name:   "trailing singleton without score eliminated",
			roster: refs("a", "b", "c"),
			standings: map[string]model.Player{
				"c": {ID: "c", TestsPassed: 0, SubmissionTime: at(1)},
			},
			want: "a",
		},
		{
			name:      "empty roster",
			roster:    nil,
			standings: nil,
			want:      "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := strings.Join(model.RefIDs(bracket.Resolve(tc.roster, tc.standings)), ",")
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

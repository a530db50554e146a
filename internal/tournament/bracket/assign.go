package bracket

import (
	"context"
	"errors"

	"codeduel/internal/tournament/model"
	"codeduel/pkg/utils/logger"

	"go.uber.org/zap"
)

// DefaultProblems is the problem pool used when none is configured.
var DefaultProblems = []string{"0000", "0001"}

// ResetFunc sets playerID's problem and clears its round score.
// It returns model.ErrPlayerNotFound when the player has no backing record.
type ResetFunc func(ctx context.Context, playerID, problemID string) error

// Assignment is the problem handed to one player.
type Assignment struct {
	PlayerID  string `json:"playerId"`
	ProblemID string `json:"problemId"`
}

// Assigner picks one problem per pair.
type Assigner struct {
	problems []string
	rng      Rand
}

func NewAssigner(problems []string, rng Rand) *Assigner {
	if len(problems) == 0 {
		problems = DefaultProblems
	}
	if rng == nil {
		rng = DefaultRand
	}
	pool := make([]string, len(problems))
	copy(pool, problems)
	return &Assigner{problems: pool, rng: rng}
}

func (a *Assigner) pick() string {
	return a.problems[a.rng.IntN(len(a.problems))]
}

// Assign walks roster two at a time. Both members of a pair get the same problem;
// a trailing odd player gets its own draw. A player without a backing record is
// skipped with a warning and pairing continues. Any other reset error is returned.
func (a *Assigner) Assign(ctx context.Context, roster []model.PlayerRef, reset ResetFunc) ([]Assignment, error) {
	assignments := make([]Assignment, 0, len(roster))
	for i := 0; i < len(roster); i += 2 {
		problemID := a.pick()
		end := i + 2
		if end > len(roster) {
			end = len(roster)
		}
		for _, ref := range roster[i:end] {
			if ref.ID == "" {
				logger.Warn(ctx, "skip player with empty id", zap.Int("index", i))
				continue
			}
			if err := reset(ctx, ref.ID, problemID); err != nil {
				if errors.Is(err, model.ErrPlayerNotFound) {
					logger.Warn(ctx, "skip unknown player during assignment", zap.String("player_id", ref.ID))
					continue
				}
				return assignments, err
			}
			assignments = append(assignments, Assignment{PlayerID: ref.ID, ProblemID: problemID})
		}
	}
	return assignments, nil
}

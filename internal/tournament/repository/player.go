package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"codeduel/internal/common/db"
	"codeduel/internal/tournament/model"
)

// PlayerRepository defines persistence of the per-round player fields.
type PlayerRepository interface {
	GetByID(ctx context.Context, tx db.Transaction, playerID string) (*model.Player, error)
	// GetByIDs returns the players that exist; unknown ids are simply absent from the map.
	GetByIDs(ctx context.Context, tx db.Transaction, playerIDs []string) (map[string]model.Player, error)
	// ResetForRound assigns problemID and clears testsPassed and submissionTime.
	ResetForRound(ctx context.Context, tx db.Transaction, playerID, problemID string) error
	// RecordSubmission stores the score and time of the latest judged submission.
	RecordSubmission(ctx context.Context, tx db.Transaction, playerID string, testsPassed int, at time.Time) error
}

// MySQLPlayerRepository implements PlayerRepository with MySQL.
type MySQLPlayerRepository struct {
	db db.Database
}

func NewPlayerRepository(database db.Database) *MySQLPlayerRepository {
	return &MySQLPlayerRepository{db: database}
}

const playerColumns = "player_id, problem_id, tests_passed, submission_time"

func (r *MySQLPlayerRepository) GetByID(ctx context.Context, tx db.Transaction, playerID string) (*model.Player, error) {
	if playerID == "" {
		return nil, errors.New("playerID is required")
	}
	query := "SELECT " + playerColumns + " FROM players WHERE player_id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, playerID)
	player := &model.Player{}
	if err := row.Scan(&player.ID, &player.ProblemID, &player.TestsPassed, &player.SubmissionTime); err != nil {
		if db.IsNoRows(err) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return player, nil
}

func (r *MySQLPlayerRepository) GetByIDs(ctx context.Context, tx db.Transaction, playerIDs []string) (map[string]model.Player, error) {
	players := make(map[string]model.Player, len(playerIDs))
	if len(playerIDs) == 0 {
		return players, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(playerIDs)), ",")
	args := make([]interface{}, 0, len(playerIDs))
	for _, id := range playerIDs {
		args = append(args, id)
	}
	query := "SELECT " + playerColumns + " FROM players WHERE player_id IN (" + placeholders + ")"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.ProblemID, &p.TestsPassed, &p.SubmissionTime); err != nil {
			return nil, err
		}
		players[p.ID] = p
	}
	return players, rows.Err()
}

func (r *MySQLPlayerRepository) ResetForRound(ctx context.Context, tx db.Transaction, playerID, problemID string) error {
	query := "UPDATE players SET problem_id = ?, tests_passed = 0, submission_time = NULL WHERE player_id = ?"
	return r.updateExisting(ctx, tx, playerID, query, problemID, playerID)
}

func (r *MySQLPlayerRepository) RecordSubmission(ctx context.Context, tx db.Transaction, playerID string, testsPassed int, at time.Time) error {
	if testsPassed < 0 {
		return errors.New("testsPassed must not be negative")
	}
	query := "UPDATE players SET tests_passed = ?, submission_time = ? WHERE player_id = ?"
	return r.updateExisting(ctx, tx, playerID, query, testsPassed, at, playerID)
}

// updateExisting runs an UPDATE and maps a missing row to ErrPlayerNotFound.
// MySQL reports changed rows, so zero affected rows needs an existence check.
func (r *MySQLPlayerRepository) updateExisting(ctx context.Context, tx db.Transaction, playerID, query string, args ...interface{}) error {
	if playerID == "" {
		return errors.New("playerID is required")
	}
	q := db.GetQuerier(r.db, tx)
	result, err := q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists int
	if err := q.QueryRow(ctx, "SELECT 1 FROM players WHERE player_id = ? LIMIT 1", playerID).Scan(&exists); err != nil {
		if db.IsNoRows(err) {
			return model.ErrPlayerNotFound
		}
		return err
	}
	return nil
}

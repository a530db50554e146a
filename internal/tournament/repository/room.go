package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codeduel/internal/common/cache"
	"codeduel/internal/common/db"
	"codeduel/internal/tournament/model"
)

const (
	defaultRoomCacheTTL      = 10 * time.Minute
	defaultRoomCacheEmptyTTL = 30 * time.Second
	roomCacheKeyPrefix       = "tournament:room:"
)

// ErrRoomVersionConflict is returned when a room changed between read and write.
var ErrRoomVersionConflict = errors.New("room version conflict")

// RoomRepository defines room persistence.
type RoomRepository interface {
	// GetByID loads a room. With a transaction the row is locked for update;
	// without one the read goes through the snapshot cache.
	GetByID(ctx context.Context, tx db.Transaction, roomID string) (*model.Room, error)
	// Update writes room if its Version still matches and bumps Version on success.
	Update(ctx context.Context, tx db.Transaction, room *model.Room) error
	// InvalidateCache drops the cached snapshot of roomID.
	InvalidateCache(ctx context.Context, roomID string)
	// ListExpiredRounds returns ids of rooms whose round started before the given time.
	ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// MySQLRoomRepository implements RoomRepository with MySQL and an optional Redis snapshot cache.
type MySQLRoomRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewRoomRepository(database db.Database, cacheClient cache.Cache) *MySQLRoomRepository {
	return NewRoomRepositoryWithTTL(database, cacheClient, defaultRoomCacheTTL, defaultRoomCacheEmptyTTL)
}

func NewRoomRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl, emptyTTL time.Duration) *MySQLRoomRepository {
	if ttl <= 0 {
		ttl = defaultRoomCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultRoomCacheEmptyTTL
	}
	return &MySQLRoomRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

const roomColumns = "room_id, name, admin, state, round_no, round_start_time, participants, players, old_players, version, updated_at"

func (r *MySQLRoomRepository) GetByID(ctx context.Context, tx db.Transaction, roomID string) (*model.Room, error) {
	if roomID == "" {
		return nil, errors.New("roomID is required")
	}
	if r.cache != nil && tx == nil {
		room, err := cache.GetWithCached[*model.Room](
			ctx,
			r.cache,
			roomCacheKey(roomID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(room *model.Room) bool { return room == nil },
			marshalRoom,
			unmarshalRoom,
			func(ctx context.Context) (*model.Room, error) {
				room, err := r.getByIDFromDB(ctx, nil, roomID)
				if errors.Is(err, model.ErrRoomNotFound) {
					return nil, nil
				}
				return room, err
			},
		)
		if err != nil {
			return nil, err
		}
		if room == nil {
			return nil, model.ErrRoomNotFound
		}
		return room, nil
	}
	return r.getByIDFromDB(ctx, tx, roomID)
}

func (r *MySQLRoomRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, roomID string) (*model.Room, error) {
	query := "SELECT " + roomColumns + " FROM rooms WHERE room_id = ? LIMIT 1"
	if tx != nil {
		query += " FOR UPDATE"
	}
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, roomID)

	room := &model.Room{}
	var state string
	var participants, players, oldPlayers []byte
	if err := row.Scan(
		&room.RoomID,
		&room.Name,
		&room.Admin,
		&state,
		&room.RoundNo,
		&room.RoundStartTime,
		&participants,
		&players,
		&oldPlayers,
		&room.Version,
		&room.UpdatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, model.ErrRoomNotFound
		}
		return nil, err
	}
	room.State = model.RoomState(state)

	var err error
	if room.Participants, err = decodeRefs(participants); err != nil {
		return nil, fmt.Errorf("decode participants of room %s: %w", roomID, err)
	}
	if room.Players, err = decodeRefs(players); err != nil {
		return nil, fmt.Errorf("decode players of room %s: %w", roomID, err)
	}
	if room.OldPlayers, err = decodeRefs(oldPlayers); err != nil {
		return nil, fmt.Errorf("decode old players of room %s: %w", roomID, err)
	}
	return room, nil
}

func (r *MySQLRoomRepository) Update(ctx context.Context, tx db.Transaction, room *model.Room) error {
	if room == nil {
		return errors.New("room is nil")
	}
	if room.RoomID == "" {
		return errors.New("roomID is required")
	}
	players, err := encodeRefs(room.Players)
	if err != nil {
		return err
	}
	oldPlayers, err := encodeRefs(room.OldPlayers)
	if err != nil {
		return err
	}

	query := `
		UPDATE rooms
		SET state = ?, round_no = ?, round_start_time = ?, players = ?, old_players = ?, version = version + 1
		WHERE room_id = ? AND version = ?
	`
	result, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		string(room.State),
		room.RoundNo,
		room.RoundStartTime,
		players,
		oldPlayers,
		room.RoomID,
		room.Version,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRoomVersionConflict
	}
	room.Version++
	if tx == nil {
		r.InvalidateCache(ctx, room.RoomID)
	}
	return nil
}

func (r *MySQLRoomRepository) InvalidateCache(ctx context.Context, roomID string) {
	if r.cache == nil || roomID == "" {
		return
	}
	_ = r.cache.Del(ctx, roomCacheKey(roomID))
}

func (r *MySQLRoomRepository) ListExpiredRounds(ctx context.Context, before time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT room_id FROM rooms
		WHERE state = ? AND round_start_time IS NOT NULL AND round_start_time < ?
		ORDER BY round_start_time
		LIMIT ?
	`
	rows, err := r.db.Query(ctx, query, string(model.StateRoundInProgress), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func roomCacheKey(roomID string) string {
	return roomCacheKeyPrefix + roomID
}

func decodeRefs(raw []byte) ([]model.PlayerRef, error) {
	if len(raw) == 0 {
		return []model.PlayerRef{}, nil
	}
	refs := []model.PlayerRef{}
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func encodeRefs(refs []model.PlayerRef) ([]byte, error) {
	if refs == nil {
		refs = []model.PlayerRef{}
	}
	return json.Marshal(refs)
}

// roomSnapshot is the cached JSON form of a room.
type roomSnapshot struct {
	RoomID         string            `json:"roomId"`
	Name           string            `json:"name"`
	Admin          string            `json:"admin"`
	State          model.RoomState   `json:"state"`
	Participants   []model.PlayerRef `json:"participants"`
	Players        []model.PlayerRef `json:"players"`
	OldPlayers     []model.PlayerRef `json:"oldPlayers"`
	RoundNo        int               `json:"roundNo"`
	RoundStartTime *time.Time        `json:"roundStartTime,omitempty"`
	Version        int64             `json:"version"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func marshalRoom(room *model.Room) string {
	if room == nil {
		return ""
	}
	data, err := json.Marshal(roomSnapshot(*room))
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalRoom(raw string) (*model.Room, error) {
	var snap roomSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	room := model.Room(snap)
	return &room, nil
}

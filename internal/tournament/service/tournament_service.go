package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"codeduel/internal/common/db"
	"codeduel/internal/tournament/bracket"
	"codeduel/internal/tournament/model"
	"codeduel/internal/tournament/repository"
	appErr "codeduel/pkg/errors"
	"codeduel/pkg/utils/contextkey"
	"codeduel/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultOpTimeout = 10 * time.Second

// Config holds tournament service dependencies and settings.
type Config struct {
	// Database runs each transition in a transaction. Nil runs without one.
	Database   db.Database
	RoomRepo   repository.RoomRepository
	PlayerRepo repository.PlayerRepository
	// Locker serializes transitions per room. Defaults to an in-process lock.
	Locker    RoomLocker
	LockWait  time.Duration
	Publisher repository.EventPublisher
	Problems  []string
	Rand      bracket.Rand
	Timeout   time.Duration
	Now       func() time.Time
}

// Service is the room state machine.
type Service struct {
	database   db.Database
	roomRepo   repository.RoomRepository
	playerRepo repository.PlayerRepository
	locker     RoomLocker
	lockWait   time.Duration
	publisher  repository.EventPublisher
	assigner   *bracket.Assigner
	rng        bracket.Rand
	timeout    time.Duration
	now        func() time.Time
}

// Details is the read-only room snapshot.
type Details struct {
	RoomID       string            `json:"roomId"`
	RoomName     string            `json:"roomName"`
	Admin        string            `json:"admin"`
	State        model.RoomState   `json:"state"`
	Participants []model.PlayerRef `json:"participants"`
	Players      []model.PlayerRef `json:"players"`
	OldPlayers   []model.PlayerRef `json:"oldPlayers"`
	RoundNo      int               `json:"roundNo"`
	model.Flags
	RoundStartTime *time.Time `json:"roundStartTime,omitempty"`
	Version        int64      `json:"version"`
}

// TransitionResult is returned by every state machine operation.
type TransitionResult struct {
	Message string          `json:"message"`
	State   model.RoomState `json:"state"`
	RoundNo int             `json:"roundNo"`
}

// RoundStartResult describes a freshly started round.
type RoundStartResult struct {
	TransitionResult
	StartTime   time.Time            `json:"startTime"`
	Players     []model.PlayerRef    `json:"players"`
	Assignments []bracket.Assignment `json:"assignments"`
}

// CalculateResult carries the round winners.
type CalculateResult struct {
	TransitionResult
	Winners           []model.PlayerRef `json:"winners"`
	AlreadyCalculated bool              `json:"alreadyCalculated"`
}

// RoundTime is the start time of the current round.
type RoundTime struct {
	StartTime *time.Time `json:"startTime"`
}

func NewService(cfg Config) (*Service, error) {
	if cfg.RoomRepo == nil {
		return nil, fmt.Errorf("room repository is required")
	}
	if cfg.PlayerRepo == nil {
		return nil, fmt.Errorf("player repository is required")
	}
	locker := cfg.Locker
	if locker == nil {
		locker = NewLocalRoomLocker()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = bracket.DefaultRand
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		database:   cfg.Database,
		roomRepo:   cfg.RoomRepo,
		playerRepo: cfg.PlayerRepo,
		locker:     locker,
		lockWait:   cfg.LockWait,
		publisher:  cfg.Publisher,
		assigner:   bracket.NewAssigner(cfg.Problems, rng),
		rng:        rng,
		timeout:    timeout,
		now:        now,
	}, nil
}

// errUnchanged is returned by an applyFunc that left the room as it was; the write is skipped.
var errUnchanged = errors.New("room unchanged")

// applyFunc mutates room inside the transition's transaction. It is not called for no-op steps.
type applyFunc func(ctx context.Context, tx db.Transaction, room *model.Room, step model.Step) error

// StartTournament seeds the roster from the participants.
func (s *Service) StartTournament(ctx context.Context, roomID string) (*TransitionResult, error) {
	room, _, err := s.transition(ctx, roomID, model.OpStartTournament, func(ctx context.Context, tx db.Transaction, room *model.Room, step model.Step) error {
		if step.Reseed {
			logger.Warn(ctx, "tournament restarted, players re-seeded from participants",
				zap.String("from_state", string(room.State)),
				zap.Int("dropped_players", len(room.Participants)-len(room.Players)),
			)
		}
		room.Players = model.CloneRefs(room.Participants)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishRoomEvent(ctx, model.EventTournamentStarted, room, "")
	return &TransitionResult{Message: "Tournament started successfully", State: room.State, RoundNo: room.RoundNo}, nil
}

// StartRound shuffles the roster, assigns problems and stamps the round start.
func (s *Service) StartRound(ctx context.Context, roomID string) (*RoundStartResult, error) {
	var assignments []bracket.Assignment
	room, _, err := s.transition(ctx, roomID, model.OpStartRound, func(ctx context.Context, tx db.Transaction, room *model.Room, step model.Step) error {
		shuffled := bracket.Shuffle(room.Players, s.rng)
		assigned, err := s.assigner.Assign(ctx, shuffled, func(ctx context.Context, playerID, problemID string) error {
			return s.playerRepo.ResetForRound(ctx, tx, playerID, problemID)
		})
		if err != nil {
			return appErr.Wrapf(err, appErr.DatabaseError, "assign problems failed")
		}
		assignments = assigned
		start := s.now()
		room.RoundNo++
		room.Players = shuffled
		room.RoundStartTime = &start
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishRoomEvent(ctx, model.EventRoundStarted, room, "")
	logger.Info(ctx, "round started", zap.Int("round_no", room.RoundNo), zap.Int("players", len(room.Players)))
	return &RoundStartResult{
		TransitionResult: TransitionResult{Message: "Round started successfully", State: room.State, RoundNo: room.RoundNo},
		StartTime:        *room.RoundStartTime,
		Players:          model.CloneRefs(room.Players),
		Assignments:      assignments,
	}, nil
}

// CalculateResult resolves the running round. Calling it again before the next
// round reports the stored winners without recomputing.
func (s *Service) CalculateResult(ctx context.Context, roomID string) (*CalculateResult, error) {
	room, step, err := s.transition(ctx, roomID, model.OpCalculateResult, func(ctx context.Context, tx db.Transaction, room *model.Room, step model.Step) error {
		standings, err := s.playerRepo.GetByIDs(ctx, tx, model.RefIDs(room.Players))
		if err != nil {
			return appErr.Wrapf(err, appErr.DatabaseError, "load standings failed")
		}
		room.OldPlayers = model.CloneRefs(room.Players)
		room.Players = bracket.Resolve(room.Players, standings)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result := &CalculateResult{
		TransitionResult: TransitionResult{State: room.State, RoundNo: room.RoundNo},
		Winners:          model.CloneRefs(room.Players),
	}
	if step.Noop {
		result.Message = "Result already calculated"
		result.AlreadyCalculated = true
		return result, nil
	}
	result.Message = "Result calculated successfully"
	s.publishRoomEvent(ctx, model.EventRoundResolved, room, "")
	return result, nil
}

// DeclareResult publishes the resolved round to participants.
func (s *Service) DeclareResult(ctx context.Context, roomID string) (*CalculateResult, error) {
	room, _, err := s.transition(ctx, roomID, model.OpDeclareResult, nil)
	if err != nil {
		return nil, err
	}
	s.publishRoomEvent(ctx, model.EventResultDeclared, room, "")
	return &CalculateResult{
		TransitionResult: TransitionResult{Message: "Result declared successfully", State: room.State, RoundNo: room.RoundNo},
		Winners:          model.CloneRefs(room.Players),
	}, nil
}

// LeaveTournament removes playerID from the current roster only.
func (s *Service) LeaveTournament(ctx context.Context, roomID, playerID string) (*TransitionResult, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, appErr.ValidationError("playerId", "required")
	}
	removed := false
	room, _, err := s.transition(ctx, roomID, model.OpLeave, func(ctx context.Context, tx db.Transaction, room *model.Room, step model.Step) error {
		removed = room.RemovePlayer(playerID)
		if !removed {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	message := "Left tournament successfully"
	if removed {
		s.publishRoomEvent(ctx, model.EventPlayerLeft, room, playerID)
	} else {
		message = "Player was not in the current round"
	}
	return &TransitionResult{Message: message, State: room.State, RoundNo: room.RoundNo}, nil
}

// EndTournament hard-resets the room.
func (s *Service) EndTournament(ctx context.Context, roomID string) (*TransitionResult, error) {
	room, _, err := s.transition(ctx, roomID, model.OpEndTournament, func(ctx context.Context, tx db.Transaction, room *model.Room, step model.Step) error {
		room.RoundNo = 0
		room.Players = []model.PlayerRef{}
		room.OldPlayers = []model.PlayerRef{}
		room.RoundStartTime = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishRoomEvent(ctx, model.EventTournamentEnded, room, "")
	return &TransitionResult{Message: "Tournament ended successfully", State: room.State, RoundNo: room.RoundNo}, nil
}

// GetDetails returns the room snapshot.
func (s *Service) GetDetails(ctx context.Context, roomID string) (*Details, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &Details{
		RoomID:         room.RoomID,
		RoomName:       room.Name,
		Admin:          room.Admin,
		State:          room.State,
		Participants:   model.CloneRefs(room.Participants),
		Players:        model.CloneRefs(room.Players),
		OldPlayers:     model.CloneRefs(room.OldPlayers),
		RoundNo:        room.RoundNo,
		Flags:          room.Flags(),
		RoundStartTime: room.RoundStartTime,
		Version:        room.Version,
	}, nil
}

// GetTime returns when the current round started.
func (s *Service) GetTime(ctx context.Context, roomID string) (*RoundTime, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &RoundTime{StartTime: room.RoundStartTime}, nil
}

// CloseExpiredRounds resolves rounds that started more than olderThan ago and returns how many it closed.
func (s *Service) CloseExpiredRounds(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	ids, err := s.roomRepo.ListExpiredRounds(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.DatabaseError, "list expired rounds failed")
	}
	closed := 0
	for _, id := range ids {
		roomCtx := context.WithValue(ctx, contextkey.RoomID, id)
		result, err := s.CalculateResult(roomCtx, id)
		if err != nil {
			logger.Warn(roomCtx, "auto close round failed", zap.Error(err))
			continue
		}
		if !result.AlreadyCalculated {
			closed++
			logger.Info(roomCtx, "round auto closed", zap.Int("round_no", result.RoundNo), zap.Int("winners", len(result.Winners)))
		}
	}
	return closed, nil
}

func (s *Service) loadRoom(ctx context.Context, roomID string) (*model.Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, appErr.ValidationError("roomId", "required")
	}
	tctx := withTimeout(ctx, s.timeout)
	defer tctx.cancel()
	room, err := s.roomRepo.GetByID(tctx.ctx, nil, roomID)
	if err != nil {
		return nil, translateError(err)
	}
	return room, nil
}

// transition runs op on roomID under the room lock and inside one transaction:
// lock, read for update, check the transition table, apply, versioned write.
func (s *Service) transition(ctx context.Context, roomID string, op model.Op, apply applyFunc) (*model.Room, model.Step, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, model.Step{}, appErr.ValidationError("roomId", "required")
	}
	ctx = context.WithValue(ctx, contextkey.RoomID, roomID)
	tctx := withTimeout(ctx, s.timeout)
	defer tctx.cancel()

	unlock, err := lockWithWait(tctx.ctx, s.locker, roomID, s.lockWait)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return nil, model.Step{}, appErr.Wrapf(err, appErr.RoomBusy, "room %s is busy", roomID)
		}
		return nil, model.Step{}, appErr.Wrapf(err, appErr.LockFailed, "lock room %s failed", roomID)
	}
	defer unlock()

	var (
		room      *model.Room
		step      model.Step
		unchanged bool
	)
	err = s.withTransaction(tctx.ctx, func(tx db.Transaction) error {
		current, err := s.roomRepo.GetByID(tctx.ctx, tx, roomID)
		if err != nil {
			return err
		}
		step, err = model.Transition(op, current.State)
		if err != nil {
			return err
		}
		if step.Noop {
			room = current
			return nil
		}
		if apply != nil {
			err := apply(tctx.ctx, tx, current, step)
			if errors.Is(err, errUnchanged) {
				unchanged = true
				room = current
				return nil
			}
			if err != nil {
				return err
			}
		}
		current.State = step.Next
		if err := s.roomRepo.Update(tctx.ctx, tx, current); err != nil {
			return err
		}
		room = current
		return nil
	})
	if err != nil {
		return nil, model.Step{}, translateError(err)
	}
	if !step.Noop && !unchanged {
		s.roomRepo.InvalidateCache(ctx, roomID)
	}
	return room, step, nil
}

func (s *Service) withTransaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	if s.database == nil {
		return fn(nil)
	}
	return s.database.Transaction(ctx, fn)
}

func (s *Service) publishRoomEvent(ctx context.Context, eventType model.EventType, room *model.Room, playerID string) {
	if s.publisher == nil || room == nil {
		return
	}
	event := model.RoomEvent{
		Type:      eventType,
		RoomID:    room.RoomID,
		State:     room.State,
		RoundNo:   room.RoundNo,
		Players:   model.RefIDs(room.Players),
		PlayerID:  playerID,
		CreatedAt: s.now().Unix(),
	}
	if err := s.publisher.PublishRoomEvent(ctx, event); err != nil {
		logger.Warn(ctx, "publish room event failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

// translateError maps repository and state machine errors to coded errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var (
		transitionErr *model.TransitionError
		codedErr      *appErr.Error
	)
	switch {
	case errors.Is(err, model.ErrRoomNotFound):
		return appErr.Wrap(err, appErr.RoomNotFound)
	case errors.Is(err, model.ErrPlayerNotFound):
		return appErr.Wrap(err, appErr.PlayerNotFound)
	case errors.Is(err, repository.ErrRoomVersionConflict):
		return appErr.Wrap(err, appErr.RoomVersionConflict)
	case errors.As(err, &transitionErr):
		return appErr.Wrap(err, appErr.InvalidRoomTransition)
	case errors.As(err, &codedErr):
		return err
	default:
		return appErr.Wrapf(err, appErr.DatabaseError, "room store failed")
	}
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}

package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	gatewaymw "codeduel/internal/gateway/middleware"
	"codeduel/internal/tournament/service"
	pkgerrors "codeduel/pkg/errors"
	"codeduel/pkg/utils/logger"
	"codeduel/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWatchInterval = time.Second
	watchWriteWait       = 5 * time.Second
)

// TournamentService is the room state machine seen by the HTTP layer.
type TournamentService interface {
	StartTournament(ctx context.Context, roomID string) (*service.TransitionResult, error)
	StartRound(ctx context.Context, roomID string) (*service.RoundStartResult, error)
	CalculateResult(ctx context.Context, roomID string) (*service.CalculateResult, error)
	DeclareResult(ctx context.Context, roomID string) (*service.CalculateResult, error)
	LeaveTournament(ctx context.Context, roomID, playerID string) (*service.TransitionResult, error)
	EndTournament(ctx context.Context, roomID string) (*service.TransitionResult, error)
	GetDetails(ctx context.Context, roomID string) (*service.Details, error)
	GetTime(ctx context.Context, roomID string) (*service.RoundTime, error)
}

// WatchConfig controls the live room feed.
type WatchConfig struct {
	Interval       time.Duration `yaml:"interval"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// TournamentController handles tournament HTTP endpoints.
type TournamentController struct {
	service       TournamentService
	watchInterval time.Duration
	upgrader      websocket.Upgrader
}

func NewTournamentController(svc TournamentService, watch WatchConfig) *TournamentController {
	interval := watch.Interval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	upgrader := websocket.Upgrader{}
	if len(watch.AllowedOrigins) > 0 {
		origins := watch.AllowedOrigins
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || gatewaymw.OriginAllowed(origin, origins)
		}
	}
	return &TournamentController{service: svc, watchInterval: interval, upgrader: upgrader}
}

// RoomRequest is the body of every room operation.
type RoomRequest struct {
	RoomID string `json:"roomId" binding:"required"`
}

// LeaveRequest names the player leaving. PlayerID defaults to the authenticated player.
type LeaveRequest struct {
	RoomID   string `json:"roomId" binding:"required"`
	PlayerID string `json:"playerId"`
}

func bindRoom(c *gin.Context) (string, bool) {
	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RoomID) == "" {
		response.BadRequest(c, "roomId is required")
		return "", false
	}
	return strings.TrimSpace(req.RoomID), true
}

func (h *TournamentController) Start(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	result, err := h.service.StartTournament(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, result.Message, result)
}

func (h *TournamentController) StartRound(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	result, err := h.service.StartRound(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, result.Message, result)
}

func (h *TournamentController) Calculate(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	result, err := h.service.CalculateResult(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, result.Message, result)
}

func (h *TournamentController) Declare(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	result, err := h.service.DeclareResult(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, result.Message, result)
}

func (h *TournamentController) Leave(c *gin.Context) {
	var req LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RoomID) == "" {
		response.BadRequest(c, "roomId is required")
		return
	}
	playerID, err := gatewaymw.ResolvePlayerID(c, req.PlayerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.LeaveTournament(c.Request.Context(), strings.TrimSpace(req.RoomID), playerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, result.Message, result)
}

func (h *TournamentController) End(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	result, err := h.service.EndTournament(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, result.Message, result)
}

func (h *TournamentController) Details(c *gin.Context) {
	roomID := strings.TrimSpace(c.Query("roomId"))
	if roomID == "" {
		response.BadRequest(c, "roomId is required")
		return
	}
	details, err := h.service.GetDetails(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, details)
}

func (h *TournamentController) Time(c *gin.Context) {
	roomID := strings.TrimSpace(c.Query("roomId"))
	if roomID == "" {
		response.BadRequest(c, "roomId is required")
		return
	}
	t, err := h.service.GetTime(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// Watch upgrades to a websocket and pushes the room snapshot whenever its version changes.
func (h *TournamentController) Watch(c *gin.Context) {
	roomID := strings.TrimSpace(c.Query("roomId"))
	if roomID == "" {
		response.BadRequest(c, "roomId is required")
		return
	}
	ctx := c.Request.Context()
	details, err := h.service.GetDetails(ctx, roomID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeSnapshot(conn, details); err != nil {
		return
	}
	last := details.Version

	ticker := time.NewTicker(h.watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next, err := h.service.GetDetails(ctx, roomID)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.RoomNotFound) {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room removed"),
					time.Now().Add(watchWriteWait))
				return
			}
			logger.Debug(ctx, "watch poll failed", zap.Error(err))
			continue
		}
		if next.Version == last {
			continue
		}
		last = next.Version
		if err := writeSnapshot(conn, next); err != nil {
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, details *service.Details) error {
	_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
	return conn.WriteJSON(details)
}

package controller

import (
	"context"

	gatewaymw "codeduel/internal/gateway/middleware"
	"codeduel/internal/match/service"
	"codeduel/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// MatchService is the submission surface seen by the HTTP layer.
type MatchService interface {
	Submit(ctx context.Context, input service.SubmitInput) (*service.SubmitResult, error)
	GetProblemID(ctx context.Context, playerID string) (string, error)
	CheckExecutor(ctx context.Context) (*service.ExecutorHealth, error)
}

// MatchController handles match HTTP endpoints.
type MatchController struct {
	matchService MatchService
}

func NewMatchController(matchService MatchService) *MatchController {
	return &MatchController{matchService: matchService}
}

// SubmitRequest defines the submission payload. PlayerID defaults to the authenticated player.
type SubmitRequest struct {
	Script     string `json:"script" binding:"required"`
	LanguageID string `json:"languageId" binding:"required"`
	ProblemID  string `json:"problemId" binding:"required"`
	PlayerID   string `json:"playerId"`
}

// ProblemResponse carries the player's assigned problem.
type ProblemResponse struct {
	PlayerID  string `json:"playerId"`
	ProblemID string `json:"problemId"`
}

// Submit judges a script against the problem's test cases.
func (h *MatchController) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "script, languageId and problemId are required")
		return
	}
	playerID, err := gatewaymw.ResolvePlayerID(c, req.PlayerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.matchService.Submit(c.Request.Context(), service.SubmitInput{
		PlayerID:   playerID,
		ProblemID:  req.ProblemID,
		LanguageID: req.LanguageID,
		Script:     req.Script,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Problem returns the problem assigned to the player for the current round.
func (h *MatchController) Problem(c *gin.Context) {
	playerID, err := gatewaymw.ResolvePlayerID(c, c.Query("playerId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	problemID, err := h.matchService.GetProblemID(c.Request.Context(), playerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ProblemResponse{PlayerID: playerID, ProblemID: problemID})
}

// ExecutorHealth probes the execution backend.
func (h *MatchController) ExecutorHealth(c *gin.Context) {
	health, err := h.matchService.CheckExecutor(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, health)
}

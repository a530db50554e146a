package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"codeduel/internal/judge/executor"
	judgeModel "codeduel/internal/judge/model"
	judgeService "codeduel/internal/judge/service"
	"codeduel/internal/tournament/model"
	"codeduel/internal/tournament/repository"
	appErr "codeduel/pkg/errors"
	"codeduel/pkg/utils/contextkey"
	"codeduel/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	rateKeyPrefix       = "match:rate:player:"
	defaultMaxCodeBytes = 64 * 1024

	healthProbeLanguage = "python3"
	healthProbeScript   = `print("hello")`
	healthProbeOutput   = "hello"
)

// RateLimiter counts hits on key and fails once max is exceeded within window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) error
}

// RateLimitConfig holds submission throttling settings. A zero Max disables it.
type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// TimeoutConfig holds timeouts for calls around judging.
type TimeoutConfig struct {
	DB      time.Duration `yaml:"db"`
	Storage time.Duration `yaml:"storage"`
	MQ      time.Duration `yaml:"mq"`
}

// Config holds match service dependencies and settings.
type Config struct {
	Judge      judgeService.Judge
	Executor   executor.Executor
	PlayerRepo repository.PlayerRepository
	// Archiver, Publisher and Limiter are optional.
	Archiver  *SourceArchiver
	Publisher repository.EventPublisher
	Limiter   RateLimiter

	MaxCodeBytes int
	RateLimit    RateLimitConfig
	Timeouts     TimeoutConfig
	Now          func() time.Time
}

// MatchService judges player submissions and records their score for the round.
type MatchService struct {
	judge      judgeService.Judge
	executor   executor.Executor
	playerRepo repository.PlayerRepository
	archiver   *SourceArchiver
	publisher  repository.EventPublisher
	limiter    RateLimiter

	maxCodeBytes int
	rateLimit    RateLimitConfig
	timeouts     TimeoutConfig
	now          func() time.Time
}

// SubmitInput describes one submission.
type SubmitInput struct {
	PlayerID   string
	ProblemID  string
	LanguageID string
	Script     string
}

// SubmitResult is the verdict returned to the player.
type SubmitResult struct {
	SubmissionID  string                    `json:"submissionId"`
	PassedCount   int                       `json:"passedCount"`
	TotalCount    int                       `json:"totalCount"`
	FailedSamples []judgeModel.FailedSample `json:"failedSamples,omitempty"`
	Aborted       bool                      `json:"aborted,omitempty"`
}

// ExecutorHealth reports the outcome of the execution backend probe.
type ExecutorHealth struct {
	Healthy   bool   `json:"healthy"`
	Output    string `json:"output"`
	LatencyMs int64  `json:"latencyMs"`
}

func NewMatchService(cfg Config) (*MatchService, error) {
	if cfg.Judge == nil {
		return nil, fmt.Errorf("judge is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.PlayerRepo == nil {
		return nil, fmt.Errorf("player repository is required")
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MatchService{
		judge:        cfg.Judge,
		executor:     cfg.Executor,
		playerRepo:   cfg.PlayerRepo,
		archiver:     cfg.Archiver,
		publisher:    cfg.Publisher,
		limiter:      cfg.Limiter,
		maxCodeBytes: cfg.MaxCodeBytes,
		rateLimit:    cfg.RateLimit,
		timeouts:     cfg.Timeouts,
		now:          cfg.Now,
	}, nil
}

// Submit judges the script and stores the passed count and submission time on the player.
func (s *MatchService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, contextkey.UserID, input.PlayerID)
	if err := s.checkRateLimit(ctx, input.PlayerID); err != nil {
		return nil, err
	}

	dbCtx := withTimeout(ctx, s.timeouts.DB)
	_, err := s.playerRepo.GetByID(dbCtx.ctx, nil, input.PlayerID)
	dbCtx.cancel()
	if err != nil {
		return nil, translatePlayerError(err)
	}

	result, err := s.judge.Judge(ctx, input.Script, input.LanguageID, input.ProblemID)
	if err != nil {
		return nil, err
	}

	submittedAt := s.now()
	dbCtx = withTimeout(ctx, s.timeouts.DB)
	err = s.playerRepo.RecordSubmission(dbCtx.ctx, nil, input.PlayerID, result.PassedCount, submittedAt)
	dbCtx.cancel()
	if err != nil {
		return nil, translatePlayerError(err)
	}

	submissionID := uuid.NewString()
	archiveKey := s.archive(ctx, input, submissionID)
	s.publish(ctx, input, submissionID, archiveKey, result, submittedAt)

	logger.Info(ctx, "submission judged",
		zap.String("submission_id", submissionID),
		zap.String("problem_id", input.ProblemID),
		zap.Int("passed", result.PassedCount),
		zap.Int("total", result.TotalCount),
		zap.Bool("aborted", result.Aborted),
	)
	return &SubmitResult{
		SubmissionID:  submissionID,
		PassedCount:   result.PassedCount,
		TotalCount:    result.TotalCount,
		FailedSamples: result.FailedSamples,
		Aborted:       result.Aborted,
	}, nil
}

// GetProblemID returns the problem assigned to playerID for the current round.
func (s *MatchService) GetProblemID(ctx context.Context, playerID string) (string, error) {
	if strings.TrimSpace(playerID) == "" {
		return "", appErr.ValidationError("playerId", "required")
	}
	dbCtx := withTimeout(ctx, s.timeouts.DB)
	defer dbCtx.cancel()
	player, err := s.playerRepo.GetByID(dbCtx.ctx, nil, playerID)
	if err != nil {
		return "", translatePlayerError(err)
	}
	return player.ProblemID, nil
}

// CheckExecutor runs a fixed hello-world script on the execution backend.
func (s *MatchService) CheckExecutor(ctx context.Context) (*ExecutorHealth, error) {
	start := time.Now()
	output, err := s.executor.Execute(ctx, healthProbeScript, healthProbeLanguage, "")
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ExecutorUnavailable, "execution backend probe failed")
	}
	return &ExecutorHealth{
		Healthy:   strings.TrimSpace(output) == healthProbeOutput,
		Output:    output,
		LatencyMs: latency,
	}, nil
}

func (s *MatchService) validate(input SubmitInput) error {
	if strings.TrimSpace(input.PlayerID) == "" {
		return appErr.ValidationError("playerId", "required")
	}
	if strings.TrimSpace(input.ProblemID) == "" {
		return appErr.ValidationError("problemId", "required")
	}
	if strings.TrimSpace(input.LanguageID) == "" {
		return appErr.ValidationError("languageId", "required")
	}
	if strings.TrimSpace(input.Script) == "" {
		return appErr.ValidationError("script", "required")
	}
	if len(input.Script) > s.maxCodeBytes {
		return appErr.New(appErr.CodeTooLarge).WithMessage(fmt.Sprintf("script exceeds %d bytes", s.maxCodeBytes))
	}
	return nil
}

func (s *MatchService) checkRateLimit(ctx context.Context, playerID string) error {
	if s.limiter == nil || s.rateLimit.Max <= 0 {
		return nil
	}
	err := s.limiter.Allow(ctx, rateKeyPrefix+playerID, s.rateLimit.Max, s.rateLimit.Window)
	if err == nil {
		return nil
	}
	if appErr.Is(err, appErr.TooManyRequests) {
		return appErr.New(appErr.SubmitTooFrequently).WithMessage("submit too frequently")
	}
	return err
}

func (s *MatchService) archive(ctx context.Context, input SubmitInput, submissionID string) string {
	if s.archiver == nil {
		return ""
	}
	storageCtx := withTimeout(ctx, s.timeouts.Storage)
	defer storageCtx.cancel()
	key, err := s.archiver.Archive(storageCtx.ctx, input.PlayerID, submissionID, input.Script)
	if err != nil {
		logger.Warn(ctx, "archive submission failed", zap.String("submission_id", submissionID), zap.Error(err))
		return ""
	}
	return key
}

func (s *MatchService) publish(ctx context.Context, input SubmitInput, submissionID, archiveKey string, result *judgeModel.SubmissionResult, at time.Time) {
	if s.publisher == nil {
		return
	}
	mqCtx := withTimeout(ctx, s.timeouts.MQ)
	defer mqCtx.cancel()
	err := s.publisher.PublishSubmissionEvent(mqCtx.ctx, model.SubmissionEvent{
		Type:         model.EventSubmissionJudged,
		SubmissionID: submissionID,
		PlayerID:     input.PlayerID,
		ProblemID:    input.ProblemID,
		LanguageID:   input.LanguageID,
		PassedCount:  result.PassedCount,
		TotalCount:   result.TotalCount,
		Aborted:      result.Aborted,
		ArchiveKey:   archiveKey,
		CreatedAt:    at.Unix(),
	})
	if err != nil {
		logger.Warn(ctx, "publish submission event failed", zap.String("submission_id", submissionID), zap.Error(err))
	}
}

func translatePlayerError(err error) error {
	if errors.Is(err, model.ErrPlayerNotFound) {
		return appErr.Wrap(err, appErr.PlayerNotFound)
	}
	return appErr.Wrapf(err, appErr.DatabaseError, "player store failed")
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

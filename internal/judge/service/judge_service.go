package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"codeduel/internal/judge/executor"
	"codeduel/internal/judge/model"
	"codeduel/internal/judge/normalize"
	"codeduel/internal/judge/testcase"
	appErr "codeduel/pkg/errors"
	"codeduel/pkg/utils/logger"

	"github.com/zeromicro/go-zero/core/mr"
	"go.uber.org/zap"
)

// Judge runs a submission against every test case of a problem.
type Judge interface {
	Judge(ctx context.Context, script, languageID, problemID string) (*model.SubmissionResult, error)
}

// Config holds pipeline dependencies and settings.
type Config struct {
	Provider testcase.Provider
	Executor executor.Executor
	// Concurrency is the number of test cases in flight. Values below 2 run strictly sequentially.
	Concurrency int
}

// Service is the judging pipeline.
type Service struct {
	provider    testcase.Provider
	executor    executor.Executor
	concurrency int
}

// caseOutcome is the verdict of one visited test case.
type caseOutcome struct {
	visited bool
	passed  bool
	abort   bool
	sample  *model.FailedSample
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("test case provider is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		provider:    cfg.Provider,
		executor:    cfg.Executor,
		concurrency: concurrency,
	}, nil
}

// Judge lists the problem's test cases and executes script against each in ascending serial order.
// Only a header listing failure is returned as an error; per-case faults are folded into the result.
func (s *Service) Judge(ctx context.Context, script, languageID, problemID string) (*model.SubmissionResult, error) {
	if strings.TrimSpace(script) == "" {
		return nil, appErr.ValidationError("script", "required")
	}
	if strings.TrimSpace(languageID) == "" {
		return nil, appErr.ValidationError("languageId", "required")
	}
	if strings.TrimSpace(problemID) == "" {
		return nil, appErr.ValidationError("problemId", "required")
	}

	headers, err := s.provider.ListHeaders(ctx, problemID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.TestCaseFetchFailed, "list test cases of %s failed", problemID)
	}
	sorted := make([]model.TestCaseHeader, len(headers))
	copy(sorted, headers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Serial < sorted[j].Serial })

	outcomes := make([]caseOutcome, len(sorted))
	if s.concurrency > 1 && len(sorted) > 1 {
		s.runConcurrent(ctx, script, languageID, problemID, sorted, outcomes)
	} else {
		for i, h := range sorted {
			outcomes[i] = s.runCase(ctx, script, languageID, problemID, h.Serial)
			if outcomes[i].abort {
				break
			}
		}
	}

	result := aggregate(outcomes)
	if result.Aborted {
		logger.Warn(ctx, "judging aborted, execution backend unavailable",
			zap.String("problem_id", problemID),
			zap.Int("passed", result.PassedCount),
			zap.Int("total", result.TotalCount),
		)
	}
	return result, nil
}

func (s *Service) runConcurrent(ctx context.Context, script, languageID, problemID string, headers []model.TestCaseHeader, outcomes []caseOutcome) {
	var aborted atomic.Bool
	mr.ForEach(func(source chan<- int) {
		for i := range headers {
			source <- i
		}
	}, func(i int) {
		if aborted.Load() {
			return
		}
		outcome := s.runCase(ctx, script, languageID, problemID, headers[i].Serial)
		if outcome.abort {
			aborted.Store(true)
		}
		outcomes[i] = outcome
	}, mr.WithWorkers(s.concurrency))
}

func (s *Service) runCase(ctx context.Context, script, languageID, problemID string, serial int) caseOutcome {
	tc, err := s.provider.Fetch(ctx, problemID, serial)
	if err != nil {
		logger.Warn(ctx, "fetch test case failed",
			zap.String("problem_id", problemID), zap.Int("serial", serial), zap.Error(err))
		return caseOutcome{visited: true, sample: errorSample(serial, "", "", fmt.Sprintf("fetch test case failed: %v", err))}
	}

	input := normalize.Canonical(tc.Input)
	expected := normalize.Canonical(tc.ExpectedOutput)

	actual, err := s.executor.Execute(ctx, script, languageID, input)
	if err != nil {
		logger.Debug(ctx, "execution failed",
			zap.String("problem_id", problemID), zap.Int("serial", serial), zap.Error(err))
		return caseOutcome{
			visited: true,
			abort:   executor.IsBackendUnavailable(err),
			sample:  errorSample(serial, input, expected, err.Error()),
		}
	}

	if actual == expected {
		return caseOutcome{visited: true, passed: true}
	}
	logger.Debug(ctx, "test case mismatch", zap.String("problem_id", problemID), zap.Int("serial", serial))
	return caseOutcome{
		visited: true,
		sample: &model.FailedSample{
			Serial:   serial,
			Input:    normalize.Truncate(input, model.MaxSampleFieldLen),
			Expected: normalize.Truncate(expected, model.MaxSampleFieldLen),
			Actual:   normalize.Truncate(actual, model.MaxSampleFieldLen),
		},
	}
}

// aggregate folds outcomes in serial order and stops at the first abort,
// so concurrent and sequential runs report the same result.
func aggregate(outcomes []caseOutcome) *model.SubmissionResult {
	result := &model.SubmissionResult{TotalCount: len(outcomes)}
	for _, o := range outcomes {
		if !o.visited {
			continue
		}
		if o.passed {
			result.PassedCount++
		} else if o.sample != nil && len(result.FailedSamples) < model.MaxFailedSamples {
			result.FailedSamples = append(result.FailedSamples, *o.sample)
		}
		if o.abort {
			result.Aborted = true
			break
		}
	}
	return result
}

func errorSample(serial int, input, expected, reason string) *model.FailedSample {
	return &model.FailedSample{
		Serial:   serial,
		Input:    normalize.Truncate(input, model.MaxSampleFieldLen),
		Expected: normalize.Truncate(expected, model.MaxSampleFieldLen),
		Error:    normalize.Truncate(reason, model.MaxSampleFieldLen),
	}
}

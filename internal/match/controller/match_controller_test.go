package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gatewaymw "codeduel/internal/gateway/middleware"
	"codeduel/internal/match/controller"
	"codeduel/internal/match/service"
	pkgerrors "codeduel/pkg/errors"

	"github.com/gin-gonic/gin"
)

type fakeMatch struct {
	last service.SubmitInput
	err  error
}

func (f *fakeMatch) Submit(ctx context.Context, input service.SubmitInput) (*service.SubmitResult, error) {
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return &service.SubmitResult{SubmissionID: "s1", PassedCount: 1, TotalCount: 2}, nil
}

func (f *fakeMatch) GetProblemID(ctx context.Context, playerID string) (string, error) {
	if playerID == "ghost" {
		return "", pkgerrors.New(pkgerrors.PlayerNotFound)
	}
	return "0001", nil
}

func (f *fakeMatch) CheckExecutor(ctx context.Context) (*service.ExecutorHealth, error) {
	return &service.ExecutorHealth{Healthy: true, Output: "hello"}, nil
}

func newRouter(svc controller.MatchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := controller.NewMatchController(svc)
	api := router.Group("/api/v1/match")
	api.Use(gatewaymw.AuthMiddleware(nil, gatewaymw.AuthPolicy{Mode: gatewaymw.ModePublic}))
	api.POST("/submit", h.Submit)
	api.GET("/problem", h.Problem)
	api.GET("/executor/health", h.ExecutorHealth)
	return router
}

func TestMatchRoutes(t *testing.T) {
	svc := &fakeMatch{}
	router := newRouter(svc)

	cases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   pkgerrors.ErrorCode
	}{
		{name: "submit", method: http.MethodPost, path: "/api/v1/match/submit", body: `{"script":"x","languageId":"c","problemId":"0000","playerId":"p1"}`, wantStatus: 200, wantCode: pkgerrors.Success},
		{name: "submit missing fields", method: http.MethodPost, path: "/api/v1/match/submit", body: `{"script":"x"}`, wantStatus: 400, wantCode: pkgerrors.InvalidParams},
		{name: "submit without player", method: http.MethodPost, path: "/api/v1/match/submit", body: `{"script":"x","languageId":"c","problemId":"0000"}`, wantStatus: 400, wantCode: pkgerrors.ValidationFailed},
		{name: "problem", method: http.MethodGet, path: "/api/v1/match/problem?playerId=p1", wantStatus: 200, wantCode: pkgerrors.Success},
		{name: "problem unknown player", method: http.MethodGet, path: "/api/v1/match/problem?playerId=ghost", wantStatus: 404, wantCode: pkgerrors.PlayerNotFound},
		{name: "health", method: http.MethodGet, path: "/api/v1/match/executor/health", wantStatus: 200, wantCode: pkgerrors.Success},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			var env struct {
				Code pkgerrors.ErrorCode `json:"code"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if w.Code != tc.wantStatus || env.Code != tc.wantCode {
				t.Fatalf("expected %d/%d, got %d/%d: %s", tc.wantStatus, tc.wantCode, w.Code, env.Code, w.Body.String())
			}
		})
	}
	if svc.last.PlayerID != "p1" || svc.last.LanguageID != "c" {
		t.Fatalf("unexpected submit input: %+v", svc.last)
	}
}

func TestSubmitThrottled(t *testing.T) {
	router := newRouter(&fakeMatch{err: pkgerrors.New(pkgerrors.SubmitTooFrequently)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/match/submit", strings.NewReader(`{"script":"x","languageId":"c","problemId":"0000","playerId":"p1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

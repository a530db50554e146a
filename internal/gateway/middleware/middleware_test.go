package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeduel/internal/gateway/middleware"
	"codeduel/internal/gateway/service"
	pkgerrors "codeduel/pkg/errors"

	"github.com/gin-gonic/gin"
)

func TestResolvePlayerID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService("secret", "", nil)
	token, err := auth.Issue("p1", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	cases := []struct {
		name      string
		mode      string
		header    string
		requested string
		want      string
		wantCode  pkgerrors.ErrorCode
	}{
		{name: "public with id", mode: middleware.ModePublic, requested: "p2", want: "p2"},
		{name: "public without id", mode: middleware.ModePublic, wantCode: pkgerrors.ValidationFailed},
		{name: "jwt default", mode: middleware.ModeJWT, header: "Bearer " + token, want: "p1"},
		{name: "jwt same id", mode: middleware.ModeJWT, header: "Bearer " + token, requested: "p1", want: "p1"},
		{name: "jwt other id", mode: middleware.ModeJWT, header: "Bearer " + token, requested: "p2", wantCode: pkgerrors.Forbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			var gotErr error
			router := gin.New()
			router.Use(middleware.AuthMiddleware(auth, middleware.AuthPolicy{Mode: tc.mode}))
			router.GET("/", func(c *gin.Context) {
				got, gotErr = middleware.ResolvePlayerID(c, tc.requested)
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(httptest.NewRecorder(), req)
			if tc.wantCode != 0 {
				if !pkgerrors.Is(gotErr, tc.wantCode) {
					t.Fatalf("expected %d, got %v", tc.wantCode, gotErr)
				}
				return
			}
			if gotErr != nil || got != tc.want {
				t.Fatalf("expected %q, got %q %v", tc.want, got, gotErr)
			}
		})
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(service.NewAuthService("secret", "", nil), middleware.AuthPolicy{Mode: middleware.ModeJWT}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CORSMiddleware(middleware.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://duel.example"}}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{name: "allowed preflight", method: http.MethodOptions, origin: "https://duel.example", wantStatus: http.StatusNoContent, wantAllow: "https://duel.example"},
		{name: "blocked preflight", method: http.MethodOptions, origin: "https://evil.example", wantStatus: http.StatusForbidden},
		{name: "allowed get", method: http.MethodGet, origin: "https://duel.example", wantStatus: http.StatusOK, wantAllow: "https://duel.example"},
		{name: "no origin", method: http.MethodGet, wantStatus: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Fatalf("unexpected allow origin %q", got)
			}
		})
	}
}

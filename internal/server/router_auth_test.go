package server

import (
	contextpkg "context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/documents/positioning", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: auth.ErrExpiredSessionToken},
		users:    stubUserResolver{},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
	if recorder.Body.String() != `{"code":"auth.unauthorized","error":"unauthorized"}` {
		t.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/documents/positioning", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: errors.New("signature mismatch")},
		users:    stubUserResolver{},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
}

func TestAuthorizeRequestStoresCanonicalUserAndAdminFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)

	testCases := []struct {
		name      string
		claims    auth.SessionClaims
		wantAdmin bool
	}{
		{name: "member", claims: auth.SessionClaims{UserID: "rep-1", UserRoles: []string{"member"}}, wantAdmin: false},
		{name: "admin-role", claims: auth.SessionClaims{UserID: "rep-1", UserRoles: []string{"Admin"}}, wantAdmin: true},
		{name: "admin-email", claims: auth.SessionClaims{UserID: "rep-1", UserEmail: "ops@example.com"}, wantAdmin: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(recorder)
			ctx.Request = httptest.NewRequest(http.MethodGet, "/quiz", http.NoBody)

			handler := &httpHandler{
				sessions:    stubSessionValidator{claims: testCase.claims},
				users:       stubUserResolver{userID: "canonical-1"},
				adminPolicy: auth.NewAdminPolicy([]string{"admin"}, []string{"ops@example.com"}),
				logger:      zap.NewNop(),
			}

			handler.authorizeRequest(ctx)

			if ctx.IsAborted() {
				t.Fatalf("request should not be aborted, status %d", recorder.Code)
			}
			if got := ctx.GetString(userIDContextKey); got != "canonical-1" {
				t.Fatalf("expected canonical user id, got %q", got)
			}
			if got := ctx.GetBool(adminContextKey); got != testCase.wantAdmin {
				t.Fatalf("expected admin=%t, got %t", testCase.wantAdmin, got)
			}
		})
	}
}

func TestAuthorizeRequestRejectsUnresolvableIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/quiz", http.NoBody)

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{claims: auth.SessionClaims{UserID: "rep-1"}},
		users:    stubUserResolver{err: errors.New("directory unavailable")},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d", recorder.Code)
	}
	if logs.FilterMessage("failed to resolve user identity").Len() != 1 {
		t.Fatalf("expected identity failure to be logged, got %v", logs.All())
	}
}

func TestRequireAdminRejectsMembers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/citations", http.NoBody)
	ctx.Set(adminContextKey, false)

	handler := &httpHandler{logger: zap.NewNop()}
	handler.requireAdmin(ctx)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"code":"auth.admin_required","error":"admin access required"}` {
		t.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

type stubSessionValidator struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessionValidator) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

type stubUserResolver struct {
	userID string
	err    error
}

func (s stubUserResolver) ResolveCanonicalUserID(contextpkg.Context, auth.SessionClaims) (string, error) {
	return s.userID, s.err
}

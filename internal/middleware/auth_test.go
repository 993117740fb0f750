package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ledger/internal/auth"
)

func rejectingHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	})
}

func assertUnauthorized(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["success"] != false || body["errorCode"] != "UNAUTHORIZED" {
		t.Fatalf("unexpected envelope: %v", body)
	}
}

func TestAuthMissingHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Auth("secret")(rejectingHandler(t)).ServeHTTP(rr, req)
	assertUnauthorized(t, rr)
}

func TestAuthInvalidHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	Auth("secret")(rejectingHandler(t)).ServeHTTP(rr, req)
	assertUnauthorized(t, rr)
}

func TestAuthInvalidToken(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	Auth("secret")(rejectingHandler(t)).ServeHTTP(rr, req)
	assertUnauthorized(t, rr)
}

func TestAuthRejectsRefreshToken(t *testing.T) {
	token, err := auth.GenerateToken("secret", "client-1", auth.RefreshToken, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	Auth("secret")(rejectingHandler(t)).ServeHTTP(rr, req)
	assertUnauthorized(t, rr)
}

func TestAuthValidToken(t *testing.T) {
	token, err := auth.GenerateToken("secret", "client-1", auth.AccessToken, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := auth.SubjectFromContext(r.Context())
		if !ok || subject != "client-1" {
			t.Fatalf("expected client-1 in context")
		}
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAuthQueryTokenOnlyForUpgrade(t *testing.T) {
	token, err := auth.GenerateToken("secret", "client-1", auth.AccessToken, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	Auth("secret")(rejectingHandler(t)).ServeHTTP(rr, req)
	assertUnauthorized(t, rr)

	called := false
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req = httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatal("expected upgrade request with query token to pass")
	}
}

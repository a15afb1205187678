package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tablemate/tablemate-server/internal/identity"
)

type authFixture struct {
	handler  *AuthHandler
	repo     *identity.MemoryPartyRepo
	sessions *identity.MemorySessionRepo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	repo := identity.NewMemoryPartyRepo()
	sessions := identity.NewMemorySessionRepo()
	auth := identity.NewUserAuth(4)
	return &authFixture{
		handler:  NewAuthHandler(repo, sessions, auth, time.Hour),
		repo:     repo,
		sessions: sessions,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func (f *authFixture) register(t *testing.T, username string) {
	t.Helper()
	w := postJSON(t, f.handler.Register, RegisterRequest{
		Username:    username,
		Password:    "correct-horse",
		DisplayName: username,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", w.Code, w.Body.String())
	}
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice")

	user, err := f.repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if user.PasswordHash == "" || user.PasswordHash == "correct-horse" {
		t.Error("password was not hashed")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice")

	w := postJSON(t, f.handler.Register, RegisterRequest{
		Username:    "alice",
		Password:    "another-pass",
		DisplayName: "Other Alice",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{name: "short username", req: RegisterRequest{Username: "al", Password: "correct-horse", DisplayName: "A"}},
		{name: "short password", req: RegisterRequest{Username: "alice", Password: "short", DisplayName: "A"}},
		{name: "missing display name", req: RegisterRequest{Username: "alice", Password: "correct-horse"}},
		{name: "bad email", req: RegisterRequest{Username: "alice", Password: "correct-horse", DisplayName: "A", Email: "not-an-email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, f.handler.Register, tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice")

	w := postJSON(t, f.handler.Login, LoginRequest{Username: "alice", Password: "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected session token")
	}
	if resp.User.Username != "alice" {
		t.Errorf("username = %q", resp.User.Username)
	}

	// The session must be retrievable and a cookie must be set.
	if _, err := f.sessions.Get(context.Background(), resp.Token); err != nil {
		t.Errorf("session lookup: %v", err)
	}
	foundCookie := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" && c.Value == resp.Token {
			foundCookie = true
		}
	}
	if !foundCookie {
		t.Error("expected session cookie")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice")

	w := postJSON(t, f.handler.Login, LoginRequest{Username: "alice", Password: "wrong-horse"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", w.Code)
	}

	w = postJSON(t, f.handler.Login, LoginRequest{Username: "nobody", Password: "correct-horse"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: status = %d, want 401", w.Code)
	}
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	session, err := f.sessions.Create(context.Background(), "user-1", time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	w := httptest.NewRecorder()
	f.handler.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if _, err := f.sessions.Get(context.Background(), session.Token); err == nil {
		t.Error("session still valid after logout")
	}
}

func TestGetCurrentUser(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	f.handler.GetCurrentUser(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", w.Code)
	}

	u := &identity.User{ID: "user-1", Username: "alice"}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(identity.WithUser(req.Context(), u))
	w = httptest.NewRecorder()
	f.handler.GetCurrentUser(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRegisterPushToken(t *testing.T) {
	f := newAuthFixture(t)
	u := &identity.User{Username: "alice"}
	if err := f.repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	send := func(token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(PushTokenRequest{Token: token})
		req := httptest.NewRequest(http.MethodPost, "/", &buf)
		req = req.WithContext(identity.WithUser(req.Context(), u))
		w := httptest.NewRecorder()
		f.handler.RegisterPushToken(w, req)
		return w
	}

	if w := send("ExponentPushToken[abc]"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// Registering the same token again must not duplicate it.
	if w := send("ExponentPushToken[abc]"); w.Code != http.StatusOK {
		t.Fatalf("repeat status = %d", w.Code)
	}

	got, err := f.repo.Get(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.PushTokens) != 1 {
		t.Errorf("push tokens = %v, want one entry", got.PushTokens)
	}
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := ExtractToken(req); got != "" {
		t.Errorf("empty request: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-header")
	if got := ExtractToken(req); got != "tok-header" {
		t.Errorf("header token: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "tok-cookie"})
	if got := ExtractToken(req); got != "tok-cookie" {
		t.Errorf("cookie token: got %q", got)
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tablemate/tablemate-server/internal/identity"
)

// SessionTTL is the default session duration.
const SessionTTL = 30 * 24 * time.Hour

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	repo       identity.PartyRepo
	sessions   identity.SessionRepo
	auth       *identity.UserAuth
	sessionTTL time.Duration
	validate   *validator.Validate
}

// NewAuthHandler creates a new authentication handler. A non-positive
// sessionTTL falls back to SessionTTL.
func NewAuthHandler(repo identity.PartyRepo, sessions identity.SessionRepo, auth *identity.UserAuth, sessionTTL time.Duration) *AuthHandler {
	if sessionTTL <= 0 {
		sessionTTL = SessionTTL
	}
	return &AuthHandler{
		repo:       repo,
		sessions:   sessions,
		auth:       auth,
		sessionTTL: sessionTTL,
		validate:   validator.New(),
	}
}

// RegisterRequest is the request body for account creation.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=40"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"required,max=80"`
	Email       string `json:"email" validate:"omitempty,email"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url"`
}

// userPayload is the public representation of a user.
type userPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

func toUserPayload(u *identity.User) userPayload {
	return userPayload{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteBadRequest(w, ReasonInvalidField, err.Error())
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		WriteInternalError(w, "failed to hash password")
		return
	}

	user := &identity.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		AvatarURL:    req.AvatarURL,
		PasswordHash: hash,
	}
	if err := h.repo.Create(r.Context(), user); err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			WriteConflict(w, "username is already taken")
			return
		}
		WriteInternalError(w, "failed to create user")
		return
	}

	WriteJSON(w, http.StatusCreated, toUserPayload(user))
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      userPayload `json:"user"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteBadRequest(w, ReasonMissingField, "username and password required")
		return
	}

	ctx := r.Context()

	user, err := h.auth.Authenticate(ctx, h.repo, req.Username, req.Password)
	if err != nil {
		WriteUnauthorized(w, ReasonInvalidCredentials, "invalid username or password")
		return
	}

	session, err := h.sessions.Create(ctx, user.ID, h.sessionTTL)
	if err != nil {
		WriteInternalError(w, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		User:      toUserPayload(user),
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	if token == "" {
		WriteUnauthorized(w, ReasonUnauthenticated, "no session token provided")
		return
	}

	h.sessions.Delete(r.Context(), token)

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		MaxAge:   -1,
	})

	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// GetCurrentUser handles GET /api/auth/me.
func (h *AuthHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		WriteUnauthorized(w, ReasonUnauthenticated, "authentication required")
		return
	}
	WriteJSON(w, http.StatusOK, toUserPayload(user))
}

// PushTokenRequest registers a device push token for the current user.
type PushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// RegisterPushToken handles POST /api/auth/push-token.
func (h *AuthHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		WriteUnauthorized(w, ReasonUnauthenticated, "authentication required")
		return
	}

	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteBadRequest(w, ReasonMissingField, "token is required")
		return
	}

	if err := h.repo.AddPushToken(r.Context(), user.ID, req.Token); err != nil {
		WriteInternalError(w, "failed to save push token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExtractToken gets the session token from Authorization header or cookie.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	cookie, err := r.Cookie("session")
	if err == nil {
		return cookie.Value
	}

	return ""
}

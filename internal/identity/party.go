// Package identity provides user management, authentication, and session handling.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidPassword = errors.New("invalid password")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
)

// User represents an account in the app.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialized
	PushTokens   []string  `json:"-"` // device push tokens, never serialized
	CreatedAt    time.Time `json:"created_at"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (u *User) Clone() *User {
	cp := *u
	if u.PushTokens != nil {
		cp.PushTokens = append([]string(nil), u.PushTokens...)
	}
	return &cp
}

// PartyRepo provides user storage operations. Implementations return
// copies from the read methods; a returned *User is never shared with
// other callers.
type PartyRepo interface {
	// Create creates a new user. Returns ErrUserExists if username is taken.
	Create(ctx context.Context, user *User) error

	// Get retrieves a user by ID. Returns ErrUserNotFound if not found.
	Get(ctx context.Context, id string) (*User, error)

	// GetByUsername retrieves a user by username. Returns ErrUserNotFound if not found.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error

	// AddPushToken registers a device push token for the user, ignoring
	// duplicates. The read-check-append runs as one atomic operation so
	// concurrent registrations cannot drop each other's tokens.
	AddPushToken(ctx context.Context, userID, token string) error
}

// MemoryPartyRepo is an in-memory implementation of PartyRepo.
type MemoryPartyRepo struct {
	mu         sync.RWMutex
	users      map[string]*User
	byUsername map[string]string // username -> id
}

// NewMemoryPartyRepo creates a new in-memory user repository.
func NewMemoryPartyRepo() *MemoryPartyRepo {
	return &MemoryPartyRepo{
		users:      make(map[string]*User),
		byUsername: make(map[string]string),
	}
}

func (r *MemoryPartyRepo) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return ErrUserExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	r.users[user.ID] = user.Clone()
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *MemoryPartyRepo) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	// Return a copy
	return user.Clone(), nil
}

func (r *MemoryPartyRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.users[id].Clone(), nil
}

func (r *MemoryPartyRepo) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryPartyRepo) AddPushToken(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	for _, t := range user.PushTokens {
		if t == token {
			return nil
		}
	}
	user.PushTokens = append(user.PushTokens, token)
	return nil
}

// Compile-time interface check
var _ PartyRepo = (*MemoryPartyRepo)(nil)

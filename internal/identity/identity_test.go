package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryPartyRepoCreateAndGet(t *testing.T) {
	repo := NewMemoryPartyRepo()
	ctx := context.Background()

	u := &User{Username: "alice", DisplayName: "Alice"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if u.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	got, err := repo.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("username = %q", got.Username)
	}

	byName, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != u.ID {
		t.Errorf("id mismatch: %q vs %q", byName.ID, u.ID)
	}
}

func TestMemoryPartyRepoDuplicateUsername(t *testing.T) {
	repo := NewMemoryPartyRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &User{Username: "alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, &User{Username: "alice"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestMemoryPartyRepoUnknownUser(t *testing.T) {
	repo := NewMemoryPartyRepo()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "no-such-id"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Get: expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername: expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryPartyRepoUpdate(t *testing.T) {
	repo := NewMemoryPartyRepo()
	ctx := context.Background()

	u := &User{Username: "alice"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	u.PushTokens = append(u.PushTokens, "ExponentPushToken[abc]")
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.PushTokens) != 1 {
		t.Errorf("push tokens = %v", got.PushTokens)
	}
}

func TestMemoryPartyRepoReturnsCopies(t *testing.T) {
	repo := NewMemoryPartyRepo()
	ctx := context.Background()

	u := &User{Username: "alice", PushTokens: []string{"ExponentPushToken[abc]"}}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Mutating the returned value must not leak into stored state.
	got.DisplayName = "Mallory"
	got.PushTokens[0] = "ExponentPushToken[evil]"
	got.PushTokens = append(got.PushTokens, "ExponentPushToken[extra]")

	stored, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if stored.DisplayName == "Mallory" {
		t.Error("stored display name mutated through returned pointer")
	}
	if len(stored.PushTokens) != 1 || stored.PushTokens[0] != "ExponentPushToken[abc]" {
		t.Errorf("stored push tokens mutated: %v", stored.PushTokens)
	}

	// Mutating the value passed to Create must not leak either.
	u.Username = "someone-else"
	stored, err = repo.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Username != "alice" {
		t.Errorf("stored username = %q, want alice", stored.Username)
	}
}

func TestAddPushToken(t *testing.T) {
	repo := NewMemoryPartyRepo()
	ctx := context.Background()

	u := &User{Username: "alice"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.AddPushToken(ctx, u.ID, "ExponentPushToken[abc]"); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Duplicate registrations are ignored.
	if err := repo.AddPushToken(ctx, u.ID, "ExponentPushToken[abc]"); err != nil {
		t.Fatalf("add duplicate: %v", err)
	}

	got, err := repo.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.PushTokens) != 1 {
		t.Errorf("push tokens = %v, want one entry", got.PushTokens)
	}

	if err := repo.AddPushToken(ctx, "no-such-id", "tok"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAddPushTokenConcurrent(t *testing.T) {
	repo := NewMemoryPartyRepo()
	ctx := context.Background()

	u := &User{Username: "alice"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 50
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			if err := repo.AddPushToken(ctx, u.ID, fmt.Sprintf("ExponentPushToken[%d]", n)); err != nil {
				t.Errorf("add: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	got, err := repo.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.PushTokens) != workers {
		t.Errorf("push tokens = %d, want %d (lost updates)", len(got.PushTokens), workers)
	}
}

func TestUserAuthRoundTrip(t *testing.T) {
	auth := NewUserAuth(4) // minimum cost keeps the test fast

	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := auth.VerifyPassword(hash, "correct-horse"); err != nil {
		t.Errorf("verify: %v", err)
	}
	if err := auth.VerifyPassword(hash, "wrong-horse"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	repo := NewMemoryPartyRepo()
	auth := NewUserAuth(4)
	ctx := context.Background()

	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := repo.Create(ctx, &User{Username: "alice", PasswordHash: hash}); err != nil {
		t.Fatalf("create: %v", err)
	}

	user, err := auth.Authenticate(ctx, repo, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("username = %q", user.Username)
	}

	if _, err := auth.Authenticate(ctx, repo, "alice", "wrong-horse"); err == nil {
		t.Error("expected error for wrong password")
	}
	if _, err := auth.Authenticate(ctx, repo, "nobody", "correct-horse"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMemorySessionRepo(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()

	session, err := repo.Create(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if session.IsExpired() {
		t.Error("fresh session reported as expired")
	}

	got, err := repo.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("user id = %q", got.UserID)
	}

	if err := repo.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	s := &Session{ExpiresAt: time.Now().Add(-time.Minute)}
	if !s.IsExpired() {
		t.Error("past session reported as valid")
	}
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()

	if _, ok := UserFromContext(ctx); ok {
		t.Error("empty context reported a user")
	}

	u := &User{ID: "user-1"}
	ctx = WithUser(ctx, u)
	got, ok := UserFromContext(ctx)
	if !ok || got.ID != "user-1" {
		t.Errorf("got %+v, ok=%v", got, ok)
	}
}

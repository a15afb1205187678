package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tablemate/tablemate-server/internal/httpclient"
	"github.com/tablemate/tablemate-server/internal/identity"
)

func seedRecipients(t *testing.T, tokens map[string][]string) identity.PartyRepo {
	t.Helper()
	repo := identity.NewMemoryPartyRepo()
	for id, userTokens := range tokens {
		err := repo.Create(context.Background(), &identity.User{
			ID:         id,
			Username:   id,
			PushTokens: userTokens,
		})
		if err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
	return repo
}

func TestDispatcherDeliversToAllTokens(t *testing.T) {
	var mu sync.Mutex
	var received []pushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg pushMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode push: %v", err)
		}
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	parties := seedRecipients(t, map[string][]string{
		"bob":   {"ExponentPushToken[b1]", "ExponentPushToken[b2]"},
		"carol": {"ExponentPushToken[c1]"},
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(httpclient.New(httpclient.Options{}), parties, logger, srv.URL)

	d.Notify(context.Background(), Event{
		Type:       EventPlanConfirmed,
		PlanID:     "p1",
		Title:      "friday dinner",
		Body:       "Your group picked Basil House",
		Recipients: []string{"bob", "carol"},
	})
	d.Flush()

	if len(received) != 1 {
		t.Fatalf("received %d push calls, want 1", len(received))
	}
	msg := received[0]
	if len(msg.To) != 3 {
		t.Errorf("tokens = %v, want all 3", msg.To)
	}
	if msg.Title != "friday dinner" || msg.Sound != "default" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Data["type"] != EventPlanConfirmed || msg.Data["planId"] != "p1" {
		t.Errorf("data = %v", msg.Data)
	}
}

func TestDispatcherSkipsUnknownAndTokenlessUsers(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	parties := seedRecipients(t, map[string][]string{"bob": nil})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(httpclient.New(httpclient.Options{}), parties, logger, srv.URL)

	d.Notify(context.Background(), Event{
		Type:       EventPlanInvite,
		Recipients: []string{"bob", "ghost"},
	})
	d.Flush()

	if calls != 0 {
		t.Errorf("push gateway called %d times with no deliverable tokens", calls)
	}
}

func TestDispatcherSwallowsGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	parties := seedRecipients(t, map[string][]string{"bob": {"ExponentPushToken[b1]"}})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(httpclient.New(httpclient.Options{}), parties, logger, srv.URL)

	// Must not panic or block; the failure is logged only.
	d.Notify(context.Background(), Event{
		Type:       EventPlanCancelled,
		Recipients: []string{"bob"},
	})
	d.Flush()
}

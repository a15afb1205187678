package plans

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tablemate/tablemate-server/internal/store"
	"github.com/tablemate/tablemate-server/internal/store/memory"
)

func newSwipePlan(t *testing.T, planStore store.PlanStore, inviteeIDs ...string) *store.Plan {
	t.Helper()
	invites := make([]store.Invite, 0, len(inviteeIDs))
	for _, id := range inviteeIDs {
		invites = append(invites, store.Invite{UserID: id, Status: store.InviteStatusPending})
	}
	p := &store.Plan{
		OwnerID: "alice",
		Type:    store.PlanTypeGroupSwipe,
		Status:  store.PlanStatusVoting,
		Title:   "swipe night",
		RestaurantOptions: []store.RestaurantOption{
			{ID: "r1", Name: "Basil House"},
			{ID: "r2", Name: "Lemongrass"},
			{ID: "r3", Name: "Taqueria Sur"},
		},
		Invites: invites,
		Votes:   map[string][]string{},
	}
	if err := planStore.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	return p
}

func TestSubmitConfirmsOnLastSwipe(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := newSwipePlan(t, planStore, "bob")

	result, err := engine.Submit(context.Background(), p.ID, "alice", []string{"r1", "r2"})
	if err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	if result.Confirmed {
		t.Fatal("confirmed after one of two submissions")
	}
	if result.Plan.Status != store.PlanStatusVoting {
		t.Errorf("status = %s, want voting", result.Plan.Status)
	}

	result, err = engine.Submit(context.Background(), p.ID, "bob", []string{"r1", "r3"})
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if !result.Confirmed {
		t.Fatal("last submission should confirm the plan")
	}
	if result.Plan.Status != store.PlanStatusConfirmed {
		t.Errorf("status = %s, want confirmed", result.Plan.Status)
	}
	if result.Plan.Restaurant == nil || result.Plan.Restaurant.ID != "r1" {
		t.Errorf("winner = %+v, want r1 (two distinct voters)", result.Plan.Restaurant)
	}
}

func TestSubmitTieGoesToEarliestOption(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := newSwipePlan(t, planStore, "bob")

	if _, err := engine.Submit(context.Background(), p.ID, "alice", []string{"r3"}); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	result, err := engine.Submit(context.Background(), p.ID, "bob", []string{"r2"})
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if result.Plan.Restaurant.ID != "r2" {
		t.Errorf("winner = %s, want r2 (earliest option on a tie)", result.Plan.Restaurant.ID)
	}
}

func TestSubmitEmptyVotesIsValid(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := newSwipePlan(t, planStore, "bob")

	if _, err := engine.Submit(context.Background(), p.ID, "alice", nil); err != nil {
		t.Fatalf("alice empty submit: %v", err)
	}
	result, err := engine.Submit(context.Background(), p.ID, "bob", nil)
	if err != nil {
		t.Fatalf("bob empty submit: %v", err)
	}
	if !result.Confirmed {
		t.Fatal("round should complete even when nobody liked anything")
	}
	if result.Plan.Restaurant.ID != "r1" {
		t.Errorf("winner = %s, want r1 (first option when all counts are zero)", result.Plan.Restaurant.ID)
	}
}

func TestSubmitImplicitlyAcceptsPendingInvite(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := newSwipePlan(t, planStore, "bob", "carol")

	result, err := engine.Submit(context.Background(), p.ID, "bob", []string{"r1"})
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	inv := result.Plan.InviteFor("bob")
	if inv.Status != store.InviteStatusAccepted {
		t.Errorf("bob status = %s, want accepted after first swipe", inv.Status)
	}
	if inv.RespondedAt == nil {
		t.Error("respondedAt not set on implicit acceptance")
	}
	if result.Plan.InviteFor("carol").Status != store.InviteStatusPending {
		t.Error("carol's invite should be untouched")
	}
}

func TestSubmitDeduplicatesVotes(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := newSwipePlan(t, planStore, "bob")

	result, err := engine.Submit(context.Background(), p.ID, "alice", []string{"r1", "r1", "r1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(result.Plan.Votes["r1"]) != 1 {
		t.Errorf("r1 voters = %v, want alice once", result.Plan.Votes["r1"])
	}
}

func TestSubmitRejections(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := newSwipePlan(t, planStore, "bob")

	if _, err := engine.Submit(context.Background(), p.ID, "mallory", []string{"r1"}); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger: got %v, want ErrNotParticipant", err)
	}
	if _, err := engine.Submit(context.Background(), p.ID, "alice", []string{"r9"}); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("unknown option: got %v, want ErrUnknownOption", err)
	}

	// A rejected submission must leave no trace.
	got, _ := planStore.Get(context.Background(), p.ID)
	if got.HasSwiped("alice") {
		t.Error("rejected submission was recorded")
	}

	if _, err := engine.Submit(context.Background(), p.ID, "alice", []string{"r1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := engine.Submit(context.Background(), p.ID, "alice", []string{"r2"}); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("duplicate: got %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmitRejectedOnPlannedPlan(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := &store.Plan{
		OwnerID: "alice",
		Type:    store.PlanTypePlanned,
		Status:  store.PlanStatusVoting,
		Title:   "planned dinner",
		Invites: []store.Invite{{UserID: "bob", Status: store.InviteStatusAccepted}},
	}
	if err := planStore.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := engine.Submit(context.Background(), p.ID, "bob", nil); !errors.Is(err, ErrWrongPlanType) {
		t.Errorf("swipe on planned plan: got %v, want ErrWrongPlanType", err)
	}
}

func TestSubmitRejectedAfterConfirmation(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := newSwipePlan(t, planStore, "bob", "carol")

	for _, user := range []string{"alice", "bob", "carol"} {
		if _, err := engine.Submit(context.Background(), p.ID, user, []string{"r1"}); err != nil {
			t.Fatalf("%s submit: %v", user, err)
		}
	}

	_, err := engine.Submit(context.Background(), p.ID, "alice", []string{"r2"})
	if !errors.Is(err, ErrPlanTerminal) && !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("submit after confirmation: got %v", err)
	}

	got, _ := planStore.Get(context.Background(), p.ID)
	if got.Status != store.PlanStatusConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
}

// Racing submissions from different users must all be recorded and the
// round must confirm exactly once.
func TestSubmitConcurrent(t *testing.T) {
	planStore := memory.New()
	engine := NewSwipeEngine(planStore)
	p := newSwipePlan(t, planStore, "bob", "carol", "dave")

	users := []string{"alice", "bob", "carol", "dave"}
	confirmed := make(chan bool, len(users))
	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			result, err := engine.Submit(context.Background(), p.ID, user, []string{"r2"})
			if err != nil {
				t.Errorf("%s submit: %v", user, err)
				return
			}
			confirmed <- result.Confirmed
		}(user)
	}
	wg.Wait()
	close(confirmed)

	confirmations := 0
	for c := range confirmed {
		if c {
			confirmations++
		}
	}
	if confirmations != 1 {
		t.Errorf("confirmed %d times, want exactly once", confirmations)
	}

	got, _ := planStore.Get(context.Background(), p.ID)
	if got.Status != store.PlanStatusConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
	if len(got.Votes["r2"]) != len(users) {
		t.Errorf("r2 voters = %v, want all %d", got.Votes["r2"], len(users))
	}
	if got.Restaurant == nil || got.Restaurant.ID != "r2" {
		t.Errorf("winner = %+v, want r2", got.Restaurant)
	}
}

// Package testutil provides shared test helpers for plan store driver tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tablemate/tablemate-server/internal/store"
)

// TestPlan creates a group-swipe plan with two invitees and two options.
func TestPlan() *store.Plan {
	return &store.Plan{
		OwnerID: "alice",
		Type:    store.PlanTypeGroupSwipe,
		Status:  store.PlanStatusVoting,
		Title:   "friday dinner",
		Date:    "2026-03-06",
		Time:    "19:30",
		Cuisine: "thai",
		Budget:  "$$",
		RestaurantOptions: []store.RestaurantOption{
			{ID: "r1", Name: "Basil House"},
			{ID: "r2", Name: "Lemongrass"},
		},
		Invites: []store.Invite{
			{UserID: "bob", Name: "Bob", Status: store.InviteStatusPending},
			{UserID: "carol", Name: "Carol", Status: store.InviteStatusPending},
		},
		Votes: map[string][]string{},
	}
}

// RunPlanStoreTests runs the standard test suite against a driver.
func RunPlanStoreTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}
	defer driver.Close()

	planStore, ok := driver.(store.PlanStore)
	if !ok {
		t.Fatalf("%s driver does not implement PlanStore", driverName)
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		plan := TestPlan()
		if err := planStore.Create(ctx, plan); err != nil {
			t.Fatalf("create: %v", err)
		}
		if plan.ID == "" {
			t.Fatal("expected id to be assigned on create")
		}

		got, err := planStore.Get(ctx, plan.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Title != "friday dinner" {
			t.Errorf("title = %q, want %q", got.Title, "friday dinner")
		}
		if len(got.Invites) != 2 || got.Invites[0].UserID != "bob" {
			t.Errorf("invites not round-tripped: %+v", got.Invites)
		}
		if len(got.RestaurantOptions) != 2 {
			t.Errorf("options not round-tripped: %+v", got.RestaurantOptions)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := planStore.Get(ctx, "no-such-plan")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateAppliesMutation", func(t *testing.T) {
		plan := TestPlan()
		if err := planStore.Create(ctx, plan); err != nil {
			t.Fatalf("create: %v", err)
		}

		updated, err := planStore.Update(ctx, plan.ID, func(p *store.Plan) error {
			p.Title = "saturday dinner"
			p.SwipesCompleted = append(p.SwipesCompleted, "bob")
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Title != "saturday dinner" {
			t.Errorf("title = %q after update", updated.Title)
		}

		got, _ := planStore.Get(ctx, plan.ID)
		if len(got.SwipesCompleted) != 1 || got.SwipesCompleted[0] != "bob" {
			t.Errorf("swipesCompleted = %v after update", got.SwipesCompleted)
		}
	})

	t.Run("UpdateAbortsOnMutateError", func(t *testing.T) {
		plan := TestPlan()
		if err := planStore.Create(ctx, plan); err != nil {
			t.Fatalf("create: %v", err)
		}

		boom := errors.New("precondition failed")
		_, err := planStore.Update(ctx, plan.ID, func(p *store.Plan) error {
			p.Title = "should not persist"
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected mutate error to propagate, got %v", err)
		}

		got, _ := planStore.Get(ctx, plan.ID)
		if got.Title != "friday dinner" {
			t.Errorf("rejected update leaked: title = %q", got.Title)
		}
	})

	t.Run("ConcurrentUpdatesAllApply", func(t *testing.T) {
		plan := TestPlan()
		if err := planStore.Create(ctx, plan); err != nil {
			t.Fatalf("create: %v", err)
		}

		users := []string{"bob", "carol", "alice"}
		var wg sync.WaitGroup
		for _, u := range users {
			wg.Add(1)
			go func(userID string) {
				defer wg.Done()
				_, err := planStore.Update(ctx, plan.ID, func(p *store.Plan) error {
					if p.HasSwiped(userID) {
						return errors.New("duplicate")
					}
					p.SwipesCompleted = append(p.SwipesCompleted, userID)
					return nil
				})
				if err != nil {
					t.Errorf("update for %s: %v", userID, err)
				}
			}(u)
		}
		wg.Wait()

		got, _ := planStore.Get(ctx, plan.ID)
		if len(got.SwipesCompleted) != len(users) {
			t.Errorf("swipesCompleted = %v, want all of %v", got.SwipesCompleted, users)
		}
	})

	t.Run("ListVisibleTo", func(t *testing.T) {
		mine := TestPlan()
		mine.OwnerID = "dave"
		mine.Invites = []store.Invite{{UserID: "erin", Name: "Erin", Status: store.InviteStatusPending}}
		if err := planStore.Create(ctx, mine); err != nil {
			t.Fatalf("create: %v", err)
		}
		other := TestPlan()
		other.OwnerID = "frank"
		other.Invites = []store.Invite{{UserID: "grace", Name: "Grace", Status: store.InviteStatusPending}}
		other.CreatedAt = time.Now().Add(-time.Minute)
		if err := planStore.Create(ctx, other); err != nil {
			t.Fatalf("create: %v", err)
		}

		forOwner, err := planStore.ListVisibleTo(ctx, "dave")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(forOwner) != 1 || forOwner[0].ID != mine.ID {
			t.Errorf("owner visibility wrong: %d plans", len(forOwner))
		}

		forInvitee, err := planStore.ListVisibleTo(ctx, "erin")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(forInvitee) != 1 || forInvitee[0].ID != mine.ID {
			t.Errorf("invitee visibility wrong: %d plans", len(forInvitee))
		}

		forStranger, err := planStore.ListVisibleTo(ctx, "mallory")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(forStranger) != 0 {
			t.Errorf("stranger sees %d plans, want 0", len(forStranger))
		}
	})
}

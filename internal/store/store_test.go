package store_test

import (
	"testing"
	"time"

	"github.com/tablemate/tablemate-server/internal/store"
)

func TestRegistryUnknownDriver(t *testing.T) {
	_, err := store.New(&store.DriverConfig{Driver: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestPlanHelpers(t *testing.T) {
	plan := &store.Plan{
		OwnerID: "alice",
		Status:  store.PlanStatusVoting,
		RestaurantOptions: []store.RestaurantOption{
			{ID: "r1", Name: "Basil House"},
		},
		Invites: []store.Invite{
			{UserID: "bob", Status: store.InviteStatusPending},
		},
		SwipesCompleted: []string{"alice"},
	}

	if plan.IsTerminal() {
		t.Error("voting plan reported terminal")
	}
	plan.Status = store.PlanStatusCancelled
	if !plan.IsTerminal() {
		t.Error("cancelled plan not reported terminal")
	}

	if inv := plan.InviteFor("bob"); inv == nil || inv.Status != store.InviteStatusPending {
		t.Errorf("InviteFor(bob) = %+v", inv)
	}
	if plan.InviteFor("alice") != nil {
		t.Error("owner should have no invite entry")
	}

	members := plan.MemberIDs()
	if len(members) != 2 || members[0] != "alice" || members[1] != "bob" {
		t.Errorf("MemberIDs = %v", members)
	}

	if !plan.HasSwiped("alice") || plan.HasSwiped("bob") {
		t.Error("HasSwiped wrong")
	}
	if !plan.HasOption("r1") || plan.HasOption("r9") {
		t.Error("HasOption wrong")
	}
}

func TestPlanCloneIsDeep(t *testing.T) {
	deadline := time.Now().Add(24 * time.Hour)
	plan := &store.Plan{
		ID:      "p1",
		OwnerID: "alice",
		Invites: []store.Invite{{UserID: "bob", Status: store.InviteStatusPending}},
		Votes:   map[string][]string{"r1": {"alice"}},
		RestaurantOptions: []store.RestaurantOption{
			{ID: "r1", Name: "Basil House"},
		},
		SwipesCompleted: []string{"alice"},
		RSVPDeadline:    &deadline,
	}

	clone := plan.Clone()
	clone.Invites[0].Status = store.InviteStatusAccepted
	clone.Votes["r1"] = append(clone.Votes["r1"], "bob")
	clone.SwipesCompleted[0] = "mallory"
	clone.RestaurantOptions[0].Name = "changed"
	*clone.RSVPDeadline = time.Time{}

	if plan.Invites[0].Status != store.InviteStatusPending {
		t.Error("clone shares invites slice")
	}
	if len(plan.Votes["r1"]) != 1 {
		t.Error("clone shares votes map")
	}
	if plan.SwipesCompleted[0] != "alice" {
		t.Error("clone shares swipesCompleted slice")
	}
	if plan.RestaurantOptions[0].Name != "Basil House" {
		t.Error("clone shares options slice")
	}
	if plan.RSVPDeadline.IsZero() {
		t.Error("clone shares deadline pointer")
	}
}

package plans

import (
	"context"
	"time"

	"github.com/tablemate/tablemate-server/internal/store"
)

// transitions is the plan status state machine. completed and cancelled
// are terminal: they have no outgoing edges.
var transitions = map[store.PlanStatus][]store.PlanStatus{
	store.PlanStatusVoting:    {store.PlanStatusConfirmed, store.PlanStatusCancelled},
	store.PlanStatusConfirmed: {store.PlanStatusCompleted, store.PlanStatusCancelled},
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to store.PlanStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Lifecycle owns plan status transitions that are requested explicitly
// (owner cancel/complete/confirm) or triggered by the system (auto-cancel
// when the last participant leaves).
type Lifecycle struct {
	store store.PlanStore
	now   func() time.Time
}

// NewLifecycle creates a lifecycle controller over the given store.
func NewLifecycle(planStore store.PlanStore) *Lifecycle {
	return &Lifecycle{store: planStore, now: time.Now}
}

// UpdateStatus performs an owner-requested transition. cancelled and
// completed are reachable per the state machine; confirmed is additionally
// restricted to planned plans (group-swipe plans confirm only through the
// consensus engine) and requires an attached restaurant.
func (l *Lifecycle) UpdateStatus(ctx context.Context, planID, callerID string, target store.PlanStatus) (*store.Plan, error) {
	return l.store.Update(ctx, planID, func(p *store.Plan) error {
		if !IsOwner(p, callerID) {
			return ErrNotOwner
		}
		if p.IsTerminal() {
			return ErrPlanTerminal
		}
		if target == store.PlanStatusConfirmed {
			if p.Type != store.PlanTypePlanned {
				return ErrInvalidTransition
			}
			if p.Restaurant == nil {
				return ErrRestaurantRequired
			}
		}
		return applyTransition(p, target, l.now())
	})
}

// applyTransition moves the plan to target if the state machine allows it.
// Shared by owner-requested transitions and system auto-cancellation.
func applyTransition(p *store.Plan, target store.PlanStatus, now time.Time) error {
	if p.IsTerminal() {
		return ErrPlanTerminal
	}
	if !CanTransition(p.Status, target) {
		return ErrInvalidTransition
	}
	p.Status = target
	if target == store.PlanStatusCancelled {
		p.CancelledAt = &now
	}
	return nil
}

package plans

import (
	"context"
	"fmt"
	"time"

	"github.com/tablemate/tablemate-server/internal/store"
)

// SwipeEngine records one-time swipe submissions on group-swipe plans and
// confirms the plan once every expected participant has voted.
type SwipeEngine struct {
	store store.PlanStore
	now   func() time.Time
}

// NewSwipeEngine creates a swipe consensus engine over the given store.
func NewSwipeEngine(planStore store.PlanStore) *SwipeEngine {
	return &SwipeEngine{store: planStore, now: time.Now}
}

// SwipeResult reports the outcome of a swipe submission.
type SwipeResult struct {
	Plan *store.Plan
	// Confirmed is true when this submission was the last one outstanding
	// and the plan transitioned to confirmed with a winning restaurant.
	Confirmed bool
}

// Submit records userID's final set of liked options. Everything — the
// duplicate-submission precondition, vote recording, implicit invite
// acceptance, the completion check, and the confirm transition — applies as
// one conditional update keyed on the current plan state. Two racing
// duplicate submissions by the same user therefore have exactly one winner,
// while submissions by different users are all recorded and the completion
// check always sees the post-write state.
func (e *SwipeEngine) Submit(ctx context.Context, planID, userID string, votes []string) (*SwipeResult, error) {
	result := &SwipeResult{}
	plan, err := e.store.Update(ctx, planID, func(p *store.Plan) error {
		if !IsParticipant(p, userID) {
			return ErrNotParticipant
		}
		if p.Type != store.PlanTypeGroupSwipe {
			return ErrWrongPlanType
		}
		if p.IsTerminal() {
			return ErrPlanTerminal
		}
		if p.Status != store.PlanStatusVoting {
			return ErrInvalidTransition
		}
		if p.HasSwiped(userID) {
			return ErrAlreadySubmitted
		}

		// Validate the whole submission before touching anything.
		seen := make(map[string]bool, len(votes))
		liked := make([]string, 0, len(votes))
		for _, optionID := range votes {
			if seen[optionID] {
				continue
			}
			seen[optionID] = true
			if !p.HasOption(optionID) {
				return fmt.Errorf("%w: %s", ErrUnknownOption, optionID)
			}
			liked = append(liked, optionID)
		}

		p.SwipesCompleted = append(p.SwipesCompleted, userID)
		if p.Votes == nil {
			p.Votes = make(map[string][]string)
		}
		for _, optionID := range liked {
			p.Votes[optionID] = append(p.Votes[optionID], userID)
		}

		// First vote from a pending invitee is their acceptance.
		if inv := p.InviteFor(userID); inv != nil && inv.Status == store.InviteStatusPending {
			inv.Status = store.InviteStatusAccepted
			now := e.now()
			inv.RespondedAt = &now
		}

		if allSwiped(p) {
			winner := tally(p)
			p.Restaurant = &winner
			if err := applyTransition(p, store.PlanStatusConfirmed, e.now()); err != nil {
				return err
			}
			result.Confirmed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Plan = plan
	return result, nil
}

// allSwiped reports whether every expected participant — the owner and all
// invitees, whatever their invite status — has submitted.
func allSwiped(p *store.Plan) bool {
	for _, id := range p.MemberIDs() {
		if !p.HasSwiped(id) {
			return false
		}
	}
	return true
}

// tally picks the option with the strictly greatest distinct-voter count.
// Ties go to the earliest option in RestaurantOptions order, so the result
// is deterministic regardless of vote arrival order.
func tally(p *store.Plan) store.RestaurantOption {
	winner := p.RestaurantOptions[0]
	best := len(p.Votes[winner.ID])
	for _, opt := range p.RestaurantOptions[1:] {
		if n := len(p.Votes[opt.ID]); n > best {
			winner = opt
			best = n
		}
	}
	return winner
}

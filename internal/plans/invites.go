package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tablemate/tablemate-server/internal/identity"
	"github.com/tablemate/tablemate-server/internal/store"
)

// RSVPAction is an invitee's explicit response on a planned plan.
type RSVPAction string

const (
	RSVPAccept  RSVPAction = "accept"
	RSVPDecline RSVPAction = "decline"
)

// InviteManager creates invite lists at plan creation and processes
// RSVP and leave actions.
type InviteManager struct {
	store   store.PlanStore
	parties identity.PartyRepo
	now     func() time.Time
}

// NewInviteManager creates an invite manager.
func NewInviteManager(planStore store.PlanStore, parties identity.PartyRepo) *InviteManager {
	return &InviteManager{store: planStore, parties: parties, now: time.Now}
}

// BuildInvites resolves invitee ids into pending invites with denormalized
// name/avatar snapshots. The owner and duplicate ids are skipped; an unknown
// user fails the whole list so a plan is never created with dangling invites.
func (m *InviteManager) BuildInvites(ctx context.Context, ownerID string, inviteeIDs []string) ([]store.Invite, error) {
	invites := make([]store.Invite, 0, len(inviteeIDs))
	seen := map[string]bool{ownerID: true}
	for _, id := range inviteeIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		user, err := m.parties.Get(ctx, id)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownInvitee, id)
			}
			return nil, err
		}
		invites = append(invites, store.Invite{
			UserID:    user.ID,
			Name:      user.DisplayName,
			AvatarURL: user.AvatarURL,
			Status:    store.InviteStatusPending,
		})
	}
	return invites, nil
}

// RSVP records an invitee's accept or decline on a planned plan. Group-swipe
// invites are accepted implicitly by the first swipe instead.
func (m *InviteManager) RSVP(ctx context.Context, planID, userID string, action RSVPAction) (*store.Plan, error) {
	return m.store.Update(ctx, planID, func(p *store.Plan) error {
		inv := p.InviteFor(userID)
		if inv == nil {
			return ErrNotInvitee
		}
		if p.Type != store.PlanTypePlanned {
			return ErrWrongPlanType
		}
		if p.IsTerminal() {
			return ErrPlanTerminal
		}
		if inv.Status != store.InviteStatusPending {
			return ErrInviteNotPending
		}

		switch action {
		case RSVPAccept:
			inv.Status = store.InviteStatusAccepted
		case RSVPDecline:
			inv.Status = store.InviteStatusDeclined
		default:
			return fmt.Errorf("invalid rsvp action %q", action)
		}
		now := m.now()
		inv.RespondedAt = &now
		return nil
	})
}

// LeaveResult reports the outcome of a leave action.
type LeaveResult struct {
	Plan *store.Plan
	// AutoCancelled is true when the departing user was the last active
	// participant and the plan transitioned to cancelled.
	AutoCancelled bool
}

// Leave removes a non-owner participant from the plan: their invite is
// deleted and any votes they cast are stripped. If no active participants
// remain the plan auto-cancels. The whole of this, including the
// auto-cancel decision, is one conditional update, so a concurrent delegate
// or cancel on the same plan cannot interleave.
func (m *InviteManager) Leave(ctx context.Context, planID, userID string) (*LeaveResult, error) {
	result := &LeaveResult{}
	plan, err := m.store.Update(ctx, planID, func(p *store.Plan) error {
		if IsOwner(p, userID) {
			return ErrOwnerCannotLeave
		}
		if p.IsTerminal() {
			return ErrPlanTerminal
		}
		if p.InviteFor(userID) == nil {
			return ErrNotInvitee
		}
		if !CanLeave(p, userID) {
			return ErrNotParticipant
		}

		removeInvite(p, userID)
		stripVotes(p, userID)

		if countActiveParticipants(p) == 0 {
			if err := applyTransition(p, store.PlanStatusCancelled, m.now()); err != nil {
				return err
			}
			result.AutoCancelled = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Plan = plan
	return result, nil
}

func removeInvite(p *store.Plan, userID string) {
	invites := p.Invites[:0]
	for _, inv := range p.Invites {
		if inv.UserID != userID {
			invites = append(invites, inv)
		}
	}
	p.Invites = invites
}

func stripVotes(p *store.Plan, userID string) {
	for optionID, voters := range p.Votes {
		kept := voters[:0]
		for _, v := range voters {
			if v != userID {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(p.Votes, optionID)
		} else {
			p.Votes[optionID] = kept
		}
	}

	swipes := p.SwipesCompleted[:0]
	for _, id := range p.SwipesCompleted {
		if id != userID {
			swipes = append(swipes, id)
		}
	}
	p.SwipesCompleted = swipes
}

// countActiveParticipants counts invitees still expected at the table:
// accepted ones, plus pending ones on group-swipe plans (they accept by
// casting their first vote). The owner is not counted; a plan whose owner
// is the only one left has nobody to dine with.
func countActiveParticipants(p *store.Plan) int {
	n := 0
	for i := range p.Invites {
		switch p.Invites[i].Status {
		case store.InviteStatusAccepted:
			n++
		case store.InviteStatusPending:
			if p.Type == store.PlanTypeGroupSwipe {
				n++
			}
		}
	}
	return n
}

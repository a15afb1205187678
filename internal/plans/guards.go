package plans

import (
	"github.com/tablemate/tablemate-server/internal/store"
)

// Authorization guards. Pure predicates over a plan snapshot, no side
// effects; callers evaluate them inside the store's atomic update so the
// answer and the mutation apply to the same state.

// IsOwner reports whether userID owns the plan.
func IsOwner(p *store.Plan, userID string) bool {
	return p.OwnerID == userID
}

// IsParticipant reports whether userID is the owner or has any invite
// entry, regardless of its status.
func IsParticipant(p *store.Plan, userID string) bool {
	return IsOwner(p, userID) || p.InviteFor(userID) != nil
}

// IsAcceptedParticipant reports whether userID is the owner or an invitee
// who accepted. On group-swipe plans a pending invitee also counts: their
// first vote is the acceptance act, so they may already take participant
// actions.
func IsAcceptedParticipant(p *store.Plan, userID string) bool {
	if IsOwner(p, userID) {
		return true
	}
	inv := p.InviteFor(userID)
	if inv == nil {
		return false
	}
	if inv.Status == store.InviteStatusAccepted {
		return true
	}
	return p.Type == store.PlanTypeGroupSwipe && inv.Status == store.InviteStatusPending
}

// IsEligibleForDelegation reports whether userID may receive ownership:
// a non-owner invitee whose invite is explicitly accepted. Unlike
// IsAcceptedParticipant, a pending group-swipe invitee does not qualify;
// ownership only moves to someone who has committed to the plan.
func IsEligibleForDelegation(p *store.Plan, userID string) bool {
	if IsOwner(p, userID) {
		return false
	}
	inv := p.InviteFor(userID)
	return inv != nil && inv.Status == store.InviteStatusAccepted
}

// CanLeave reports whether userID may leave the plan: a non-owner
// accepted participant on a plan that has not reached a terminal state.
func CanLeave(p *store.Plan, userID string) bool {
	if IsOwner(p, userID) || p.IsTerminal() {
		return false
	}
	return IsAcceptedParticipant(p, userID)
}

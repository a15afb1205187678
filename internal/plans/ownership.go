package plans

import (
	"context"

	"github.com/tablemate/tablemate-server/internal/store"
)

// minMembersForDelegation is the smallest plan (owner + invitees) on which
// ownership can be handed over. On a two-person plan there is no baton to
// pass; the departing owner simply cancels.
const minMembersForDelegation = 3

// OwnershipManager validates and performs delegation of plan ownership to
// an accepted participant.
type OwnershipManager struct {
	store store.PlanStore
}

// NewOwnershipManager creates an ownership manager over the given store.
func NewOwnershipManager(planStore store.PlanStore) *OwnershipManager {
	return &OwnershipManager{store: planStore}
}

// Delegate transfers ownership from callerID to newOwnerID. The membership
// check, the target's invite status check, and the swap all apply as one
// conditional update, so a concurrent leave by the target (or a concurrent
// cancel) cannot interleave with a successful delegation.
func (m *OwnershipManager) Delegate(ctx context.Context, planID, callerID, newOwnerID string) (*store.Plan, error) {
	return m.store.Update(ctx, planID, func(p *store.Plan) error {
		if !IsOwner(p, callerID) {
			return ErrNotOwner
		}
		if p.IsTerminal() {
			return ErrPlanTerminal
		}
		if len(p.Invites)+1 < minMembersForDelegation {
			return ErrTooFewMembers
		}

		if !IsEligibleForDelegation(p, newOwnerID) {
			return ErrDelegateNotAccepted
		}

		// The new owner stops being an invitee; everyone else is untouched.
		p.OwnerID = newOwnerID
		removeInvite(p, newOwnerID)
		return nil
	})
}

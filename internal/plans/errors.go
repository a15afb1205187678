package plans

import "errors"

// Domain errors. Every business rule is checked inside the store's atomic
// update, so any of these aborts the request with no partial write.
// Handlers map them to HTTP statuses and reason codes.
var (
	// Authorization (403)
	ErrNotOwner         = errors.New("caller is not the plan owner")
	ErrNotParticipant   = errors.New("caller is not a participant of the plan")
	ErrNotInvitee       = errors.New("caller has no invite on the plan")
	ErrOwnerCannotLeave = errors.New("owner cannot leave their own plan")

	// Validation (400)
	ErrPlanTerminal        = errors.New("plan is already completed or cancelled")
	ErrInviteNotPending    = errors.New("invite has already been responded to")
	ErrAlreadySubmitted    = errors.New("swipe already submitted")
	ErrUnknownOption       = errors.New("vote references an option not on the plan")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRestaurantRequired  = errors.New("a restaurant must be attached before confirming")
	ErrTooFewMembers       = errors.New("delegation requires at least three plan members")
	ErrDelegateNotAccepted = errors.New("delegation target has not accepted their invite")
	ErrWrongPlanType       = errors.New("operation not supported for this plan type")
	ErrUnknownInvitee      = errors.New("invitee is not a known user")
)

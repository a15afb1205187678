package plans

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tablemate/tablemate-server/internal/api"
	"github.com/tablemate/tablemate-server/internal/identity"
	"github.com/tablemate/tablemate-server/internal/notify"
	"github.com/tablemate/tablemate-server/internal/store"
)

// RSVPRequest is the body for POST /api/plans/{planID}/rsvp.
type RSVPRequest struct {
	Action string `json:"action" validate:"required,oneof=accept decline"`
}

// HandleRSVP records an invitee's accept or decline on a planned plan.
func (h *Handler) HandleRSVP(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	var req RSVPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "action must be accept or decline")
		return
	}

	ctx := r.Context()
	plan, err := h.invites.RSVP(ctx, chi.URLParam(r, "planID"), caller.ID, RSVPAction(req.Action))
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	body := caller.DisplayName + " accepted your invite"
	if RSVPAction(req.Action) == RSVPDecline {
		body = caller.DisplayName + " declined your invite"
	}
	h.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventRSVPResponse,
		PlanID:     plan.ID,
		Title:      plan.Title,
		Body:       body,
		Recipients: []string{plan.OwnerID},
		Data:       map[string]string{"action": req.Action, "userId": caller.ID},
	})

	api.WriteJSON(w, http.StatusOK, NewPlanPayload(plan))
}

// SwipeRequest is the body for POST /api/plans/{planID}/swipe. Votes are
// the restaurant option ids the caller swiped right on; an empty list is
// a valid submission meaning none appealed.
type SwipeRequest struct {
	Votes []string `json:"votes"`
}

// SwipeResponse wraps the updated plan with whether this submission
// completed the round.
type SwipeResponse struct {
	Plan      PlanPayload `json:"plan"`
	Confirmed bool        `json:"confirmed"`
}

// HandleSwipe records a member's one-shot vote submission on a
// group-swipe plan and, when it is the last outstanding one, confirms
// the plan with the winning restaurant.
func (h *Handler) HandleSwipe(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	var req SwipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	result, err := h.engine.Submit(ctx, chi.URLParam(r, "planID"), caller.ID, req.Votes)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	if result.Confirmed {
		h.notifier.Notify(ctx, notify.Event{
			Type:       notify.EventPlanConfirmed,
			PlanID:     result.Plan.ID,
			Title:      result.Plan.Title,
			Body:       "Your group picked " + result.Plan.Restaurant.Name,
			Recipients: result.Plan.MemberIDs(),
		})
	}

	api.WriteJSON(w, http.StatusOK, SwipeResponse{
		Plan:      NewPlanPayload(result.Plan),
		Confirmed: result.Confirmed,
	})
}

// UpdateStatusRequest is the body for PUT /api/plans/{planID}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed completed cancelled"`
}

// HandleUpdateStatus lets the owner move the plan through its lifecycle.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "status must be confirmed, completed or cancelled")
		return
	}

	ctx := r.Context()
	plan, err := h.lifecycle.UpdateStatus(ctx, chi.URLParam(r, "planID"), caller.ID, store.PlanStatus(req.Status))
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	if ev, ok := statusEvent(plan); ok {
		h.notifier.Notify(ctx, ev)
	}

	api.WriteJSON(w, http.StatusOK, NewPlanPayload(plan))
}

func statusEvent(p *store.Plan) (notify.Event, bool) {
	ev := notify.Event{
		PlanID:     p.ID,
		Title:      p.Title,
		Recipients: p.MemberIDs(),
	}
	switch p.Status {
	case store.PlanStatusConfirmed:
		ev.Type = notify.EventPlanConfirmed
		ev.Body = "Your dining plan is confirmed"
	case store.PlanStatusCompleted:
		ev.Type = notify.EventPlanCompleted
		ev.Body = "Your dining plan is complete"
	case store.PlanStatusCancelled:
		ev.Type = notify.EventPlanCancelled
		ev.Body = "Your dining plan was cancelled"
	default:
		return notify.Event{}, false
	}
	return ev, true
}

// DelegateRequest is the body for POST /api/plans/{planID}/delegate.
type DelegateRequest struct {
	NewOwnerID string `json:"newOwnerId" validate:"required"`
}

// HandleDelegate transfers plan ownership to an accepted invitee.
func (h *Handler) HandleDelegate(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	var req DelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonMissingField, "newOwnerId is required")
		return
	}

	ctx := r.Context()
	plan, err := h.ownership.Delegate(ctx, chi.URLParam(r, "planID"), caller.ID, req.NewOwnerID)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	h.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventOwnerDelegated,
		PlanID:     plan.ID,
		Title:      plan.Title,
		Body:       caller.DisplayName + " made you the plan owner",
		Recipients: []string{plan.OwnerID},
	})

	api.WriteJSON(w, http.StatusOK, NewPlanPayload(plan))
}

// LeaveResponse is returned from POST /api/plans/{planID}/leave.
type LeaveResponse struct {
	OK            bool        `json:"ok"`
	AutoCancelled bool        `json:"autoCancelled"`
	Plan          PlanPayload `json:"plan"`
}

// HandleLeave removes the caller from the plan, cancelling it when they
// were the last active participant.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	ctx := r.Context()
	result, err := h.invites.Leave(ctx, chi.URLParam(r, "planID"), caller.ID)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	ev := notify.Event{
		Type:       notify.EventParticipantLeft,
		PlanID:     result.Plan.ID,
		Title:      result.Plan.Title,
		Body:       caller.DisplayName + " left the plan",
		Recipients: []string{result.Plan.OwnerID},
	}
	if result.AutoCancelled {
		ev.Type = notify.EventPlanCancelled
		ev.Body = "Your dining plan was cancelled: everyone left"
	}
	h.notifier.Notify(ctx, ev)

	api.WriteJSON(w, http.StatusOK, LeaveResponse{
		OK:            true,
		AutoCancelled: result.AutoCancelled,
		Plan:          NewPlanPayload(result.Plan),
	})
}

// Routes mounts the plan endpoints on a chi router. Callers are expected
// to have passed session authentication already.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Route("/{planID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/", h.HandleUpdate)
		r.Put("/status", h.HandleUpdateStatus)
		r.Post("/rsvp", h.HandleRSVP)
		r.Post("/swipe", h.HandleSwipe)
		r.Post("/delegate", h.HandleDelegate)
		r.Post("/leave", h.HandleLeave)
	})
	return r
}

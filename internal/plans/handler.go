package plans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tablemate/tablemate-server/internal/api"
	"github.com/tablemate/tablemate-server/internal/appctx"
	"github.com/tablemate/tablemate-server/internal/identity"
	"github.com/tablemate/tablemate-server/internal/notify"
	"github.com/tablemate/tablemate-server/internal/store"
)

// Handler exposes the plan endpoints. Each handler is a thin adapter: load
// the caller from context, delegate to a manager (which runs its business
// rules inside the store's atomic update), fire best-effort notifications,
// and return the updated plan representation.
type Handler struct {
	store     store.PlanStore
	invites   *InviteManager
	engine    *SwipeEngine
	lifecycle *Lifecycle
	ownership *OwnershipManager
	notifier  notify.Notifier
	validate  *validator.Validate
}

// NewHandler creates the plan endpoints handler.
func NewHandler(planStore store.PlanStore, parties identity.PartyRepo, notifier notify.Notifier) *Handler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Handler{
		store:     planStore,
		invites:   NewInviteManager(planStore, parties),
		engine:    NewSwipeEngine(planStore),
		lifecycle: NewLifecycle(planStore),
		ownership: NewOwnershipManager(planStore),
		notifier:  notifier,
		validate:  validator.New(),
	}
}

// PlanPayload is the API representation of a plan. swipesCompleted and
// votes are exposed only for group-swipe plans; restaurant only once the
// plan is confirmed or completed.
type PlanPayload struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Type    string `json:"type"`
	Status  string `json:"status"`

	Title   string `json:"title"`
	Date    string `json:"date,omitempty"`
	Time    string `json:"time,omitempty"`
	Cuisine string `json:"cuisine,omitempty"`
	Budget  string `json:"budget,omitempty"`

	RestaurantOptions []store.RestaurantOption `json:"restaurantOptions,omitempty"`
	Invites           []store.Invite           `json:"invites"`

	SwipesCompleted *[]string            `json:"swipesCompleted,omitempty"`
	Votes           *map[string][]string `json:"votes,omitempty"`

	Restaurant   *store.RestaurantOption `json:"restaurant,omitempty"`
	RSVPDeadline *time.Time              `json:"rsvpDeadline,omitempty"`
	CancelledAt  *time.Time              `json:"cancelledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPlanPayload converts a stored plan into its API shape.
func NewPlanPayload(p *store.Plan) PlanPayload {
	payload := PlanPayload{
		ID:                p.ID,
		OwnerID:           p.OwnerID,
		Type:              string(p.Type),
		Status:            string(p.Status),
		Title:             p.Title,
		Date:              p.Date,
		Time:              p.Time,
		Cuisine:           p.Cuisine,
		Budget:            p.Budget,
		RestaurantOptions: p.RestaurantOptions,
		Invites:           p.Invites,
		Restaurant:        p.Restaurant,
		RSVPDeadline:      p.RSVPDeadline,
		CancelledAt:       p.CancelledAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if payload.Invites == nil {
		payload.Invites = []store.Invite{}
	}
	if p.Type == store.PlanTypeGroupSwipe {
		swipes := p.SwipesCompleted
		if swipes == nil {
			swipes = []string{}
		}
		votes := p.Votes
		if votes == nil {
			votes = map[string][]string{}
		}
		payload.SwipesCompleted = &swipes
		payload.Votes = &votes
	}
	return payload
}

// CreatePlanRequest is the request body for plan creation.
type CreatePlanRequest struct {
	Title   string `json:"title" validate:"required,max=120"`
	Type    string `json:"type" validate:"required,oneof=planned group-swipe"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Cuisine string `json:"cuisine"`
	Budget  string `json:"budget"`

	RSVPDeadline      *time.Time               `json:"rsvpDeadline"`
	InviteeIDs        []string                 `json:"inviteeIds"`
	RestaurantOptions []store.RestaurantOption `json:"restaurantOptions"`
}

// HandleCreate handles POST /api/plans.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, err.Error())
		return
	}

	planType := store.PlanType(req.Type)

	// Planned plans carry an RSVP deadline from the start; group-swipe
	// plans confirm by consensus and ignore it.
	if planType == store.PlanTypePlanned && req.RSVPDeadline == nil {
		api.WriteBadRequest(w, api.ReasonMissingRSVPDeadline, "rsvpDeadline is required for planned plans")
		return
	}

	if planType == store.PlanTypeGroupSwipe {
		if len(req.RestaurantOptions) == 0 {
			api.WriteBadRequest(w, api.ReasonMissingField, "group-swipe plans need at least one restaurant option")
			return
		}
		seen := make(map[string]bool, len(req.RestaurantOptions))
		for _, opt := range req.RestaurantOptions {
			if opt.ID == "" || opt.Name == "" {
				api.WriteBadRequest(w, api.ReasonInvalidField, "restaurant options need id and name")
				return
			}
			if seen[opt.ID] {
				api.WriteBadRequest(w, api.ReasonInvalidField, "duplicate restaurant option id: "+opt.ID)
				return
			}
			seen[opt.ID] = true
		}
	}

	ctx := r.Context()

	invites, err := h.invites.BuildInvites(ctx, caller.ID, req.InviteeIDs)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}

	plan := &store.Plan{
		ID:                uuid.New().String(),
		OwnerID:           caller.ID,
		Type:              planType,
		Status:            store.PlanStatusVoting,
		Title:             req.Title,
		Date:              req.Date,
		Time:              req.Time,
		Cuisine:           req.Cuisine,
		Budget:            req.Budget,
		RestaurantOptions: req.RestaurantOptions,
		Invites:           invites,
		Votes:             map[string][]string{},
	}
	if planType == store.PlanTypePlanned {
		plan.RSVPDeadline = req.RSVPDeadline
	}

	if err := h.store.Create(ctx, plan); err != nil {
		appctx.GetLogger(ctx).Error("failed to create plan", "error", err)
		api.WriteInternalError(w, "failed to create plan")
		return
	}

	recipients := make([]string, 0, len(invites))
	for _, inv := range invites {
		recipients = append(recipients, inv.UserID)
	}
	h.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventPlanInvite,
		PlanID:     plan.ID,
		Title:      plan.Title,
		Body:       caller.DisplayName + " invited you to a dining plan",
		Recipients: recipients,
	})

	api.WriteJSON(w, http.StatusCreated, NewPlanPayload(plan))
}

// HandleList handles GET /api/plans.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	result, err := h.store.ListVisibleTo(r.Context(), caller.ID)
	if err != nil {
		appctx.GetLogger(r.Context()).Error("failed to list plans", "user_id", caller.ID, "error", err)
		api.WriteInternalError(w, "failed to list plans")
		return
	}

	payloads := make([]PlanPayload, 0, len(result))
	for _, p := range result {
		payloads = append(payloads, NewPlanPayload(p))
	}
	api.WriteJSON(w, http.StatusOK, payloads)
}

// HandleGet handles GET /api/plans/{planID}. Plans are visible only to
// their members; everyone else sees 404 rather than 403 so plan ids do
// not leak membership.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	plan, err := h.store.Get(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	if !IsParticipant(plan, caller.ID) {
		api.WriteNotFound(w, "plan not found")
		return
	}

	api.WriteJSON(w, http.StatusOK, NewPlanPayload(plan))
}

// UpdatePlanRequest carries the owner-editable descriptive fields. Absent
// fields are left unchanged.
type UpdatePlanRequest struct {
	Title   *string `json:"title"`
	Date    *string `json:"date"`
	Time    *string `json:"time"`
	Cuisine *string `json:"cuisine"`
	Budget  *string `json:"budget"`

	RSVPDeadline *time.Time              `json:"rsvpDeadline"`
	Restaurant   *store.RestaurantOption `json:"restaurant"`
}

// HandleUpdate handles PUT /api/plans/{planID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.UserFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Title != nil && *req.Title == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "title cannot be empty")
		return
	}

	plan, err := h.store.Update(r.Context(), chi.URLParam(r, "planID"), func(p *store.Plan) error {
		if !IsOwner(p, caller.ID) {
			return ErrNotOwner
		}
		if p.IsTerminal() {
			return ErrPlanTerminal
		}
		if req.Title != nil {
			p.Title = *req.Title
		}
		if req.Date != nil {
			p.Date = *req.Date
		}
		if req.Time != nil {
			p.Time = *req.Time
		}
		if req.Cuisine != nil {
			p.Cuisine = *req.Cuisine
		}
		if req.Budget != nil {
			p.Budget = *req.Budget
		}
		if req.RSVPDeadline != nil {
			if p.Type != store.PlanTypePlanned {
				return ErrWrongPlanType
			}
			p.RSVPDeadline = req.RSVPDeadline
		}
		if req.Restaurant != nil {
			// Attaching a restaurant directly is how planned plans get
			// one; group-swipe winners come from the consensus engine.
			if p.Type != store.PlanTypePlanned {
				return ErrWrongPlanType
			}
			if p.Status != store.PlanStatusVoting {
				return ErrInvalidTransition
			}
			p.Restaurant = req.Restaurant
		}
		return nil
	})
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, NewPlanPayload(plan))
}

// writeDomainError maps domain errors onto the HTTP error taxonomy.
func (h *Handler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.WriteNotFound(w, "plan not found")
	case errors.Is(err, ErrNotOwner):
		api.WriteForbidden(w, api.ReasonNotOwner, err.Error())
	case errors.Is(err, ErrNotParticipant):
		api.WriteForbidden(w, api.ReasonNotParticipant, err.Error())
	case errors.Is(err, ErrNotInvitee):
		api.WriteForbidden(w, api.ReasonNotInvitee, err.Error())
	case errors.Is(err, ErrOwnerCannotLeave):
		api.WriteForbidden(w, api.ReasonOwnerCannotLeave, err.Error())
	case errors.Is(err, ErrPlanTerminal):
		api.WriteBadRequest(w, api.ReasonPlanTerminal, err.Error())
	case errors.Is(err, ErrInviteNotPending):
		api.WriteBadRequest(w, api.ReasonInviteNotPending, err.Error())
	case errors.Is(err, ErrAlreadySubmitted):
		api.WriteBadRequest(w, api.ReasonAlreadySubmitted, err.Error())
	case errors.Is(err, ErrUnknownOption):
		api.WriteBadRequest(w, api.ReasonUnknownOption, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		api.WriteBadRequest(w, api.ReasonInvalidTransition, err.Error())
	case errors.Is(err, ErrRestaurantRequired):
		api.WriteBadRequest(w, api.ReasonRestaurantRequired, err.Error())
	case errors.Is(err, ErrTooFewMembers):
		api.WriteBadRequest(w, api.ReasonTooFewMembers, err.Error())
	case errors.Is(err, ErrDelegateNotAccepted):
		api.WriteBadRequest(w, api.ReasonDelegateNotAccepted, err.Error())
	case errors.Is(err, ErrWrongPlanType):
		api.WriteBadRequest(w, api.ReasonWrongPlanType, err.Error())
	case errors.Is(err, ErrUnknownInvitee):
		api.WriteBadRequest(w, api.ReasonUnknownInvitee, err.Error())
	default:
		appctx.GetLogger(ctx).Error("plan operation failed", "error", err)
		api.WriteInternalError(w, "plan operation failed")
	}
}

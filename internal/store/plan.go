package store

import (
	"time"
)

// PlanType selects how a plan reaches confirmation: explicit RSVP for
// planned plans, swipe voting for group-swipe plans.
type PlanType string

const (
	PlanTypePlanned    PlanType = "planned"
	PlanTypeGroupSwipe PlanType = "group-swipe"
)

// PlanStatus is the plan lifecycle state. voting may move to confirmed or
// cancelled; confirmed may move to completed or cancelled; completed and
// cancelled are terminal.
type PlanStatus string

const (
	PlanStatusVoting    PlanStatus = "voting"
	PlanStatusConfirmed PlanStatus = "confirmed"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// InviteStatus tracks a single invitee's RSVP state.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusDeclined InviteStatus = "declined"
)

// RestaurantOption is one candidate restaurant attached to a plan.
// Display metadata is a snapshot from the places provider at creation time.
type RestaurantOption struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Cuisine  string  `json:"cuisine,omitempty"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
}

// Invite is a per-user participation record embedded in a plan.
// Name and AvatarURL are denormalized snapshots taken at invite time.
type Invite struct {
	UserID      string       `json:"userId"`
	Name        string       `json:"name"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	Status      InviteStatus `json:"status"`
	RespondedAt *time.Time   `json:"respondedAt,omitempty"`
}

// Plan is the aggregate for one proposed dining event and its group
// decision state. The owner never appears in Invites, invite entries are
// unique per user, vote keys are always option ids from RestaurantOptions,
// and Restaurant is set exactly when the status is confirmed or completed.
type Plan struct {
	ID      string     `json:"id"`
	OwnerID string     `json:"ownerId"`
	Type    PlanType   `json:"type"`
	Status  PlanStatus `json:"status"`

	Title   string `json:"title"`
	Date    string `json:"date,omitempty"`
	Time    string `json:"time,omitempty"`
	Cuisine string `json:"cuisine,omitempty"`
	Budget  string `json:"budget,omitempty"`

	RestaurantOptions []RestaurantOption `json:"restaurantOptions,omitempty"`
	Invites           []Invite           `json:"invites"`

	// SwipesCompleted lists users who submitted their one-time vote.
	// Votes maps option id to the distinct voters who liked it.
	SwipesCompleted []string            `json:"swipesCompleted,omitempty"`
	Votes           map[string][]string `json:"votes,omitempty"`

	// Restaurant is the winning/attached restaurant once confirmed.
	Restaurant *RestaurantOption `json:"restaurant,omitempty"`

	RSVPDeadline *time.Time `json:"rsvpDeadline,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version is the optimistic concurrency token used by drivers that
	// implement Update as compare-and-set. Not part of the API payload.
	Version int64 `json:"-"`
}

// IsTerminal reports whether the plan reached a final state.
func (p *Plan) IsTerminal() bool {
	return p.Status == PlanStatusCompleted || p.Status == PlanStatusCancelled
}

// InviteFor returns the invite entry for userID, or nil.
func (p *Plan) InviteFor(userID string) *Invite {
	for i := range p.Invites {
		if p.Invites[i].UserID == userID {
			return &p.Invites[i]
		}
	}
	return nil
}

// MemberIDs returns the owner plus every invitee, regardless of status.
func (p *Plan) MemberIDs() []string {
	ids := make([]string, 0, len(p.Invites)+1)
	ids = append(ids, p.OwnerID)
	for i := range p.Invites {
		ids = append(ids, p.Invites[i].UserID)
	}
	return ids
}

// HasSwiped reports whether userID already submitted a swipe.
func (p *Plan) HasSwiped(userID string) bool {
	for _, id := range p.SwipesCompleted {
		if id == userID {
			return true
		}
	}
	return false
}

// HasOption reports whether optionID is one of the plan's restaurant options.
func (p *Plan) HasOption(optionID string) bool {
	for i := range p.RestaurantOptions {
		if p.RestaurantOptions[i].ID == optionID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the plan. Drivers hand out clones so callers
// can never mutate stored state outside Update.
func (p *Plan) Clone() *Plan {
	c := *p
	if p.RestaurantOptions != nil {
		c.RestaurantOptions = append([]RestaurantOption(nil), p.RestaurantOptions...)
	}
	if p.Invites != nil {
		c.Invites = append([]Invite(nil), p.Invites...)
	}
	if p.SwipesCompleted != nil {
		c.SwipesCompleted = append([]string(nil), p.SwipesCompleted...)
	}
	if p.Votes != nil {
		c.Votes = make(map[string][]string, len(p.Votes))
		for k, v := range p.Votes {
			c.Votes[k] = append([]string(nil), v...)
		}
	}
	if p.Restaurant != nil {
		r := *p.Restaurant
		c.Restaurant = &r
	}
	if p.RSVPDeadline != nil {
		t := *p.RSVPDeadline
		c.RSVPDeadline = &t
	}
	if p.CancelledAt != nil {
		t := *p.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

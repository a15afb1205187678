// Package notify delivers push notifications for plan lifecycle events.
// Delivery is strictly best-effort: failures are logged and never surface
// to the request that triggered them.
package notify

import (
	"context"
	"sync"
)

// Event types emitted by the plans subsystem.
const (
	EventPlanInvite      = "plan_invite"
	EventRSVPResponse    = "rsvp_response"
	EventPlanConfirmed   = "plan_confirmed"
	EventPlanCancelled   = "plan_cancelled"
	EventPlanCompleted   = "plan_completed"
	EventOwnerDelegated  = "owner_delegated"
	EventParticipantLeft = "participant_left"
)

// Event is one notification to a set of users.
type Event struct {
	Type       string            `json:"type"`
	PlanID     string            `json:"planId"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Recipients []string          `json:"-"`
	Data       map[string]string `json:"data,omitempty"`
}

// Notifier dispatches an event. Implementations must not block the caller
// beyond enqueueing and must swallow delivery errors.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Nop is a Notifier that discards everything.
type Nop struct{}

// Notify discards the event.
func (Nop) Notify(ctx context.Context, ev Event) {}

// Recorder is a Notifier that captures events for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify records the event.
func (r *Recorder) Notify(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

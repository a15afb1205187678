// Package memory implements an in-memory plan store. It is the default for
// tests and serializes Update through a single mutex, which makes every
// read-check-write cycle trivially atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tablemate/tablemate-server/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements store.Driver and store.PlanStore in memory.
type Driver struct {
	mu    sync.RWMutex
	plans map[string]*store.Plan
}

// NewDriver creates a new in-memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return &Driver{plans: make(map[string]*store.Plan)}, nil
}

// New creates an in-memory plan store without going through the registry.
// Convenient for tests.
func New() *Driver {
	return &Driver{plans: make(map[string]*store.Plan)}
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close is a no-op for the memory driver.
func (d *Driver) Close() error { return nil }

// Create stores a new plan, assigning an id and timestamps if unset.
func (d *Driver) Create(ctx context.Context, plan *store.Plan) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if _, ok := d.plans[plan.ID]; ok {
		return store.ErrAlreadyExists
	}
	now := time.Now()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	plan.Version = 1

	d.plans[plan.ID] = plan.Clone()
	return nil
}

// Get returns a copy of the plan with the given id.
func (d *Driver) Get(ctx context.Context, id string) (*store.Plan, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	plan, ok := d.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return plan.Clone(), nil
}

// Update applies mutate to the current state of the plan under the store
// lock. If mutate returns an error nothing is written.
func (d *Driver) Update(ctx context.Context, id string, mutate func(*store.Plan) error) (*store.Plan, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	next.UpdatedAt = time.Now()
	next.Version = current.Version + 1
	d.plans[id] = next

	return next.Clone(), nil
}

// ListVisibleTo returns plans the user owns or is invited to, newest first.
func (d *Driver) ListVisibleTo(ctx context.Context, userID string) ([]*store.Plan, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*store.Plan
	for _, plan := range d.plans {
		if plan.OwnerID == userID || plan.InviteFor(userID) != nil {
			result = append(result, plan.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.PlanStore = (*Driver)(nil)

// Package store provides persistence primitives and driver abstractions
// for the plan aggregate.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("concurrent update conflict")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string
}

// PlanStore defines operations for plan persistence.
//
// Update is the atomic conditional update every state-changing operation
// is built on: mutate runs against the current stored state, and any error
// it returns aborts the write entirely. Two racing updates to the same plan
// never both apply against the same snapshot.
type PlanStore interface {
	Create(ctx context.Context, plan *Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
	Update(ctx context.Context, id string, mutate func(*Plan) error) (*Plan, error)
	ListVisibleTo(ctx context.Context, userID string) ([]*Plan, error)
}

// Package sqlite implements a SQLite-based plan store using GORM.
//
// Update uses optimistic versioning: the row is read, mutated, and written
// back with "WHERE id = ? AND version = ?". A lost race shows up as zero
// affected rows and the cycle retries against the fresh state, so the
// compare-and-set semantics match the in-memory driver.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tablemate/tablemate-server/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// maxUpdateRetries bounds the CAS retry loop. A plan sees at most a handful
// of writers (its members), so conflicts beyond this indicate a bug.
const maxUpdateRetries = 8

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// planRecord is the persisted shape of a plan. Embedded collections
// (options, invites, votes) are stored as JSON columns.
type planRecord struct {
	ID      string `gorm:"primaryKey"`
	OwnerID string `gorm:"index"`
	Type    string
	Status  string `gorm:"index"`

	Title   string
	Date    string
	Time    string
	Cuisine string
	Budget  string

	RestaurantOptions datatypes.JSON
	Invites           datatypes.JSON
	SwipesCompleted   datatypes.JSON
	Votes             datatypes.JSON
	Restaurant        datatypes.JSON

	RSVPDeadline *time.Time
	CancelledAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Version int64
}

// TableName keeps the table name stable regardless of struct naming.
func (planRecord) TableName() string { return "plans" }

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "sqlite" }

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(d.dataDir, "tablemate.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.AutoMigrate(&planRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create stores a new plan.
func (d *Driver) Create(ctx context.Context, plan *store.Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	now := time.Now()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	plan.Version = 1

	rec, err := toRecord(plan)
	if err != nil {
		return err
	}

	result := d.db.WithContext(ctx).Create(rec)
	return result.Error
}

// Get retrieves a plan by id.
func (d *Driver) Get(ctx context.Context, id string) (*store.Plan, error) {
	var rec planRecord
	result := d.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return fromRecord(&rec)
}

// Update applies mutate under optimistic versioning. Domain rejections from
// mutate abort immediately without a write and without retrying.
func (d *Driver) Update(ctx context.Context, id string, mutate func(*store.Plan) error) (*store.Plan, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		plan, err := d.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		expectedVersion := plan.Version
		if err := mutate(plan); err != nil {
			return nil, err
		}

		plan.UpdatedAt = time.Now()
		plan.Version = expectedVersion + 1

		rec, err := toRecord(plan)
		if err != nil {
			return nil, err
		}

		result := d.db.WithContext(ctx).
			Model(&planRecord{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Select("*").
			Updates(rec)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 1 {
			return plan, nil
		}
		// Lost the race; reload and try again.
	}
	return nil, store.ErrConflict
}

// ListVisibleTo returns plans the user owns or is invited to, newest first.
// Invitee membership is matched against the denormalized invites JSON.
func (d *Driver) ListVisibleTo(ctx context.Context, userID string) ([]*store.Plan, error) {
	var recs []planRecord
	needle, err := json.Marshal(userID)
	if err != nil {
		return nil, err
	}
	// The invites column holds entries like {"userId":"<id>",...}; a LIKE
	// match on the quoted id is a candidate filter only, membership is
	// re-checked on the decoded plan.
	result := d.db.WithContext(ctx).
		Where("owner_id = ? OR invites LIKE ?", userID, "%\"userId\":"+string(needle)+"%").
		Order("created_at DESC").
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}

	plans := make([]*store.Plan, 0, len(recs))
	for i := range recs {
		plan, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		if plan.OwnerID != userID && plan.InviteFor(userID) == nil {
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func toRecord(p *store.Plan) (*planRecord, error) {
	rec := &planRecord{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		Type:         string(p.Type),
		Status:       string(p.Status),
		Title:        p.Title,
		Date:         p.Date,
		Time:         p.Time,
		Cuisine:      p.Cuisine,
		Budget:       p.Budget,
		RSVPDeadline: p.RSVPDeadline,
		CancelledAt:  p.CancelledAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Version:      p.Version,
	}

	var err error
	if rec.RestaurantOptions, err = marshalJSON(p.RestaurantOptions); err != nil {
		return nil, err
	}
	if rec.Invites, err = marshalJSON(p.Invites); err != nil {
		return nil, err
	}
	if rec.SwipesCompleted, err = marshalJSON(p.SwipesCompleted); err != nil {
		return nil, err
	}
	if rec.Votes, err = marshalJSON(p.Votes); err != nil {
		return nil, err
	}
	if p.Restaurant != nil {
		if rec.Restaurant, err = marshalJSON(p.Restaurant); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func fromRecord(rec *planRecord) (*store.Plan, error) {
	p := &store.Plan{
		ID:           rec.ID,
		OwnerID:      rec.OwnerID,
		Type:         store.PlanType(rec.Type),
		Status:       store.PlanStatus(rec.Status),
		Title:        rec.Title,
		Date:         rec.Date,
		Time:         rec.Time,
		Cuisine:      rec.Cuisine,
		Budget:       rec.Budget,
		RSVPDeadline: rec.RSVPDeadline,
		CancelledAt:  rec.CancelledAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		Version:      rec.Version,
	}

	if err := unmarshalJSON(rec.RestaurantOptions, &p.RestaurantOptions); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(rec.Invites, &p.Invites); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(rec.SwipesCompleted, &p.SwipesCompleted); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(rec.Votes, &p.Votes); err != nil {
		return nil, err
	}
	if len(rec.Restaurant) > 0 {
		var r store.RestaurantOption
		if err := json.Unmarshal(rec.Restaurant, &r); err != nil {
			return nil, err
		}
		p.Restaurant = &r
	}
	if p.Invites == nil {
		p.Invites = []store.Invite{}
	}
	return p, nil
}

func marshalJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func unmarshalJSON(data datatypes.JSON, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.PlanStore = (*Driver)(nil)

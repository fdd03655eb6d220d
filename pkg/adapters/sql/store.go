// Package sql persists flows in a relational database through gorm.
// SQLite and PostgreSQL are supported.
package sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// activeSlot is the primary key of the single active_flow row.
const activeSlot = 1

// FlowRecord is the chatbot_flows row. The graph is stored as JSON columns.
type FlowRecord struct {
	ID        string         `gorm:"primaryKey;size:64"`
	Name      string         `gorm:"size:255"`
	Version   int            `gorm:"not null;default:1"`
	Nodes     datatypes.JSON `gorm:"not null"`
	Edges     datatypes.JSON `gorm:"not null"`
	IsActive  bool           `gorm:"not null;default:false;index"`
	CreatedAt time.Time      `gorm:"autoCreateTime:false;index"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:false"`
}

func (FlowRecord) TableName() string { return "chatbot_flows" }

// ActiveFlowRecord is the one-row pointer to the active flow.
// Activation locks and rewrites it inside a transaction.
type ActiveFlowRecord struct {
	Slot      int    `gorm:"primaryKey;autoIncrement:false"`
	FlowID    string `gorm:"size:64"`
	UpdatedAt time.Time
}

func (ActiveFlowRecord) TableName() string { return "active_flow" }

// Store implements ports.FlowRepository on gorm.
type Store struct {
	db *gorm.DB
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	logger *slog.Logger
}

// WithLogger routes gorm warnings to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *openConfig) {
		c.logger = logger
	}
}

// Open connects to the database and migrates the schema.
// driver is "sqlite" (dsn is a file path) or "postgres" (dsn is a connection string).
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	cfg := &openConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	gormLog := gormLogger.New(
		slog.NewLogLogger(cfg.logger.Handler(), slog.LevelWarn),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; one connection keeps transactions serialized.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db)
}

// New wraps an open gorm connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&FlowRecord{}, &ActiveFlowRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run auto-migration: %w", err)
	}

	slot := ActiveFlowRecord{Slot: activeSlot}
	if err := db.Where(ActiveFlowRecord{Slot: activeSlot}).FirstOrCreate(&slot).Error; err != nil {
		return nil, fmt.Errorf("failed to init active flow pointer: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// List returns all flows ordered by creation time, then id.
func (s *Store) List(ctx context.Context) ([]*domain.Flow, error) {
	var records []FlowRecord
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	active, err := s.ActiveID(ctx)
	if err != nil {
		return nil, err
	}

	flows := make([]*domain.Flow, 0, len(records))
	for i := range records {
		f, err := records[i].toDomain()
		if err != nil {
			return nil, err
		}
		f.IsActive = f.ID == active
		flows = append(flows, f)
	}
	return flows, nil
}

// Get retrieves a flow by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Flow, error) {
	var rec FlowRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(id, err)
	}

	f, err := rec.toDomain()
	if err != nil {
		return nil, err
	}
	active, err := s.ActiveID(ctx)
	if err != nil {
		return nil, err
	}
	f.IsActive = f.ID == active
	return f, nil
}

// Put upserts the flow. The is_active column is left untouched.
func (s *Store) Put(ctx context.Context, flow *domain.Flow) error {
	rec, err := fromDomain(flow)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"version",
			"nodes",
			"edges",
			"created_at",
			"updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
	}
	return nil
}

// Delete removes the flow and clears the pointer in the same transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&FlowRecord{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete flow %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
		}

		return tx.Model(&ActiveFlowRecord{}).
			Where("slot = ? AND flow_id = ?", activeSlot, id).
			Updates(map[string]any{"flow_id": "", "updated_at": time.Now()}).Error
	})
}

// ActiveID reads the pointer row.
func (s *Store) ActiveID(ctx context.Context) (string, error) {
	var slot ActiveFlowRecord
	if err := s.db.WithContext(ctx).First(&slot, "slot = ?", activeSlot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active flow: %w", err)
	}
	return slot.FlowID, nil
}

// Activate locks the pointer row, runs guard and swaps both the pointer and
// the is_active flags in one transaction.
func (s *Store) Activate(ctx context.Context, id string, guard ports.ActivationGuard) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot ActiveFlowRecord
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&slot, "slot = ?", activeSlot).Error; err != nil {
			return fmt.Errorf("failed to lock active flow: %w", err)
		}

		var rec FlowRecord
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			return notFound(id, err)
		}

		if guard != nil {
			f, err := rec.toDomain()
			if err != nil {
				return err
			}
			if err := guard(f); err != nil {
				return err
			}
		}

		if err := tx.Model(&FlowRecord{}).Where("is_active = ? AND id <> ?", true, id).
			Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&FlowRecord{}).Where("id = ?", id).
			Update("is_active", true).Error; err != nil {
			return err
		}

		return tx.Model(&ActiveFlowRecord{}).Where("slot = ?", activeSlot).
			Updates(map[string]any{"flow_id": id, "updated_at": time.Now()}).Error
	})
}

func notFound(id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to load flow %s: %w", id, err)
}

func fromDomain(f *domain.Flow) (*FlowRecord, error) {
	nodes, err := json.Marshal(nonNil(f.Nodes))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edges, err := json.Marshal(nonNil(f.Edges))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edges: %w", err)
	}

	return &FlowRecord{
		ID:        f.ID,
		Name:      f.Name,
		Version:   f.Version,
		Nodes:     datatypes.JSON(nodes),
		Edges:     datatypes.JSON(edges),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}, nil
}

func (r *FlowRecord) toDomain() (*domain.Flow, error) {
	f := &domain.Flow{
		ID:        r.ID,
		Name:      r.Name,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Nodes, &f.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes of flow %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Edges, &f.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges of flow %s: %w", r.ID, err)
	}
	return f, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

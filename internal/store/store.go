/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store is the persistence collaborator of the scheduling engine:
// it loads the in-memory snapshots the engine passes operate on and commits
// run updates one at a time.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opsfloor/lineplan/internal/cache"
	"github.com/opsfloor/lineplan/internal/engine"
	"github.com/opsfloor/lineplan/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidCancel indicates cancellation from a terminal status.
	ErrInvalidCancel = errors.New("run cannot be cancelled from its current status")
)

// Store provides gorm-backed access to the scheduling data set.
type Store struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// New creates a store. The cache may be nil.
func New(database *gorm.DB, catalogCache *cache.Cache, logger zerolog.Logger) *Store {
	return &Store{
		db:     database,
		cache:  catalogCache,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// Snapshot loads the full current equipment, product, line, and run
// collections. Catalog reads go through the redis cache when available;
// runs always come from the database.
func (s *Store) Snapshot(ctx context.Context) (*engine.Snapshot, error) {
	equipment, ok := s.cacheEquipment(ctx)
	if !ok {
		if err := s.db.WithContext(ctx).Find(&equipment).Error; err != nil {
			return nil, fmt.Errorf("load equipment: %w", err)
		}
		if err := s.cache.SetEquipment(ctx, equipment); err != nil {
			s.logger.Debug().Err(err).Msg("failed to cache equipment catalog")
		}
	}

	products, ok := s.cacheProducts(ctx)
	if !ok {
		if err := s.db.WithContext(ctx).Find(&products).Error; err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		if err := s.cache.SetProducts(ctx, products); err != nil {
			s.logger.Debug().Err(err).Msg("failed to cache product catalog")
		}
	}

	lines, ok := s.cacheLines(ctx)
	if !ok {
		if err := s.db.WithContext(ctx).Find(&lines).Error; err != nil {
			return nil, fmt.Errorf("load lines: %w", err)
		}
		if err := s.cache.SetLines(ctx, lines); err != nil {
			s.logger.Debug().Err(err).Msg("failed to cache line catalog")
		}
	}

	var runs []models.ScheduledRun
	if err := s.db.WithContext(ctx).Order("starts_at ASC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	return engine.NewSnapshot(equipment, products, lines, runs), nil
}

func (s *Store) cacheEquipment(ctx context.Context) ([]models.Equipment, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.GetEquipment(ctx)
}

func (s *Store) cacheProducts(ctx context.Context) ([]models.Product, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.GetProducts(ctx)
}

func (s *Store) cacheLines(ctx context.Context) ([]models.ProductionLine, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.GetLines(ctx)
}

// CommitRun persists one run update and returns the stored record. The run
// must already exist; the engine never creates runs.
func (s *Store) CommitRun(ctx context.Context, run models.ScheduledRun) (models.ScheduledRun, error) {
	var existing models.ScheduledRun
	err := s.db.WithContext(ctx).Where("id = ?", run.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ScheduledRun{}, fmt.Errorf("commit run %s: %w", run.ID, ErrNotFound)
	}
	if err != nil {
		return models.ScheduledRun{}, fmt.Errorf("commit run %s: %w", run.ID, err)
	}

	run.CreatedAt = existing.CreatedAt
	run.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(&run).Error; err != nil {
		return models.ScheduledRun{}, fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return run, nil
}

// CreateRun inserts a new pending run on behalf of the scheduling UI.
func (s *Store) CreateRun(ctx context.Context, run models.ScheduledRun) (models.ScheduledRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunPending
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return models.ScheduledRun{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, runID string) (models.ScheduledRun, error) {
	var run models.ScheduledRun
	err := s.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ScheduledRun{}, ErrNotFound
	}
	if err != nil {
		return models.ScheduledRun{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by start time, optionally restricted to one
// calendar day in loc.
func (s *Store) ListRuns(ctx context.Context, day *time.Time, loc *time.Location) ([]models.ScheduledRun, error) {
	query := s.db.WithContext(ctx).Order("starts_at ASC")
	if day != nil {
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		query = query.Where("starts_at >= ? AND starts_at < ?", dayStart, dayStart.AddDate(0, 0, 1))
	}
	var runs []models.ScheduledRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", runID).Delete(&models.ScheduledRun{})
	if result.Error != nil {
		return fmt.Errorf("delete run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelRun marks a run cancelled. Only pending and in-progress runs can be
// cancelled; cancellation is terminal and never applied by the clock.
func (s *Store) CancelRun(ctx context.Context, runID string) (models.ScheduledRun, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return models.ScheduledRun{}, err
	}
	if !run.CanCancel() {
		return models.ScheduledRun{}, ErrInvalidCancel
	}
	run.Status = models.RunCancelled
	return s.CommitRun(ctx, run)
}

// ListEquipment returns the equipment catalog.
func (s *Store) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	var equipment []models.Equipment
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&equipment).Error; err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return equipment, nil
}

// ListProducts returns the product catalog.
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ListLines returns the production line catalog.
func (s *Store) ListLines(ctx context.Context) ([]models.ProductionLine, error) {
	var lines []models.ProductionLine
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	return lines, nil
}

// GetLine loads one production line.
func (s *Store) GetLine(ctx context.Context, lineID string) (models.ProductionLine, error) {
	var line models.ProductionLine
	err := s.db.WithContext(ctx).Where("id = ?", lineID).First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ProductionLine{}, ErrNotFound
	}
	if err != nil {
		return models.ProductionLine{}, fmt.Errorf("get line: %w", err)
	}
	return line, nil
}

// GetProduct loads one product.
func (s *Store) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// InvalidateCatalogs drops cached catalog entries after catalog mutations.
func (s *Store) InvalidateCatalogs(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

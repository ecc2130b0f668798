package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jstittsworth/hr-optimizer/internal/models"
	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
	"github.com/jstittsworth/hr-optimizer/pkg/database"
)

var ErrRunNotFound = errors.New("run not found")

// RunFilter narrows List results. Zero values mean no restriction.
type RunFilter struct {
	SessionID string
	Page      int
	PerPage   int
}

// RunStore persists run reports in the relational database.
type RunStore struct {
	db *database.DB
}

func NewRunStore(db *database.DB) *RunStore {
	return &RunStore{db: db}
}

// Save records a finished run. Saving the same run ID twice updates the row.
func (s *RunStore) Save(ctx context.Context, report *pipeline.Report) (*models.Run, error) {
	run, err := models.NewRun(report)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run, nil
}

func (s *RunStore) Get(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	return &run, nil
}

// GetReport loads a run and decodes its stored report.
func (s *RunStore) GetReport(ctx context.Context, id string) (*pipeline.Report, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return run.DecodeReport()
}

// List returns runs newest first along with the unpaginated total.
func (s *RunStore) List(ctx context.Context, filter RunFilter) ([]models.Run, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 100 {
		filter.PerPage = 20
	}

	scoped := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&models.Run{})
		if filter.SessionID != "" {
			query = query.Where("session_id = ?", filter.SessionID)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	var runs []models.Run
	err := scoped().
		Omit("report").
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PerPage).
		Limit(filter.PerPage).
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}

// deleteBatchSize keeps IN lists under SQLite's bound variable limit.
const deleteBatchSize = 500

// DeleteOlderThan removes runs created before cutoff and returns their IDs.
func (s *RunStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Run{}).
		Where("created_at < ?", cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired runs: %w", err)
	}

	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.db.WithContext(ctx).Where("id IN ?", ids[start:end]).Delete(&models.Run{}).Error; err != nil {
			return nil, fmt.Errorf("failed to delete runs: %w", err)
		}
	}
	return ids, nil
}

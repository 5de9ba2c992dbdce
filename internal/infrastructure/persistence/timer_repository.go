package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/timetracking"
	"github.com/tally/backend/internal/infrastructure/persistence/models"
)

// GormTimerRepository implements TimerRepository using GORM
type GormTimerRepository struct {
	db *gorm.DB
}

// NewGormTimerRepository creates a new GormTimerRepository
func NewGormTimerRepository(db *gorm.DB) *GormTimerRepository {
	return &GormTimerRepository{db: db}
}

// FindByID finds a timer by its ID
func (r *GormTimerRepository) FindByID(ctx context.Context, id uuid.UUID) (*timetracking.Timer, error) {
	var model models.TimerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRunningByProject finds the running timer of a project
func (r *GormTimerRepository) FindRunningByProject(ctx context.Context, projectID uuid.UUID) (*timetracking.Timer, error) {
	var model models.TimerModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a timer. A second timer on the same project
// violates the unique project index and is reported as already running.
func (r *GormTimerRepository) Save(ctx context.Context, timer *timetracking.Timer) error {
	err := r.db.WithContext(ctx).Save(models.TimerModelFromDomain(timer)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return timetracking.ErrTimerAlreadyRunning
	}
	return err
}

// Delete removes a timer
func (r *GormTimerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.TimerModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormTimerRepository implements TimerRepository
var _ timetracking.TimerRepository = (*GormTimerRepository)(nil)

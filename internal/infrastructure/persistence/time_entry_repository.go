package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/timetracking"
	"github.com/tally/backend/internal/infrastructure/persistence/models"
)

// GormTimeEntryRepository implements TimeEntryRepository using GORM
type GormTimeEntryRepository struct {
	db *gorm.DB
}

// NewGormTimeEntryRepository creates a new GormTimeEntryRepository
func NewGormTimeEntryRepository(db *gorm.DB) *GormTimeEntryRepository {
	return &GormTimeEntryRepository{db: db}
}

// FindByID finds a time entry by its ID
func (r *GormTimeEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*timetracking.TimeEntry, error) {
	var model models.TimeEntryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds time entries matching the filter. A non-positive page size
// returns every match.
func (r *GormTimeEntryRepository) FindAll(ctx context.Context, filter timetracking.TimeEntryFilter) ([]timetracking.TimeEntry, error) {
	var rows []models.TimeEntryModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.TimeEntryModel{}), filter)
	query = applyPagination(query, filter.Filter)
	query = applyOrdering(query, filter.Filter, TimeEntrySortFields, "start_time")

	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return timeEntriesToDomain(rows), nil
}

// Count counts time entries matching the filter
func (r *GormTimeEntryRepository) Count(ctx context.Context, filter timetracking.TimeEntryFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.TimeEntryModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByInvoice finds the entries billed on an invoice
func (r *GormTimeEntryRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]timetracking.TimeEntry, error) {
	var rows []models.TimeEntryModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("start_time ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return timeEntriesToDomain(rows), nil
}

// Save creates or updates a time entry
func (r *GormTimeEntryRepository) Save(ctx context.Context, entry *timetracking.TimeEntry) error {
	return r.db.WithContext(ctx).Save(models.TimeEntryModelFromDomain(entry)).Error
}

// SaveBatch creates or updates multiple time entries
func (r *GormTimeEntryRepository) SaveBatch(ctx context.Context, entries []*timetracking.TimeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.TimeEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.TimeEntryModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Save(rows).Error
}

// MarkInvoiced links entries to an invoice only while they are still
// uninvoiced. If another invoice claimed any of them first nothing is
// written and ErrConcurrencyConflict is returned.
func (r *GormTimeEntryRepository) MarkInvoiced(ctx context.Context, invoiceID uuid.UUID, entries []*timetracking.TimeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.TimeEntryModel{}).
			Where("id IN ? AND invoice_id IS NULL", ids).
			Updates(map[string]any{
				"invoice_id": invoiceID,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != int64(len(ids)) {
			return shared.ErrConcurrencyConflict
		}
		return nil
	})
}

func (r *GormTimeEntryRepository) applyFilter(query *gorm.DB, filter timetracking.TimeEntryFilter) *gorm.DB {
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.From != nil {
		query = query.Where("start_time >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("start_time < ?", filter.To.UTC())
	}
	if filter.Billable != nil {
		query = query.Where("billable = ?", *filter.Billable)
	}
	if filter.Uninvoiced {
		query = query.Where("invoice_id IS NULL")
	}
	return query
}

func timeEntriesToDomain(rows []models.TimeEntryModel) []timetracking.TimeEntry {
	entries := make([]timetracking.TimeEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries
}

// Ensure GormTimeEntryRepository implements TimeEntryRepository
var _ timetracking.TimeEntryRepository = (*GormTimeEntryRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/shared/valueobject"
	"github.com/tally/backend/internal/domain/timetracking"
	"github.com/tally/backend/internal/infrastructure/persistence/models"
)

var berlin = timetracking.BerlinCalendar()

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func local(date, hhmm string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, berlin.Location())
	if err != nil {
		panic(err)
	}
	return t
}

func newEntry(t *testing.T, projectID uuid.UUID, start, end time.Time, billable bool) *timetracking.TimeEntry {
	t.Helper()
	rounded, err := timetracking.RoundTimerToQuarters(start, end, berlin)
	require.NoError(t, err)
	e, err := timetracking.NewTimeEntry(timetracking.TimeEntryParams{
		ProjectID: projectID,
		RawStart:  start,
		RawEnd:    end,
		Billable:  billable,
	}, rounded)
	require.NoError(t, err)
	return e
}

func newIssuedInvoice(t *testing.T, number, total string) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(number, "Acme GmbH", valueobject.MustMoney(total, valueobject.EUR), nil)
	require.NoError(t, err)
	require.NoError(t, inv.Issue(local("2024-03-01", "09:00")))
	return inv
}

func TestGormTimerRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTimerRepository(db)
	ctx := context.Background()
	projectID := uuid.New()

	timer, err := timetracking.StartTimer(projectID, "client call", local("2024-03-12", "09:04"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, timer))

	t.Run("finds the running timer of a project", func(t *testing.T) {
		found, err := repo.FindRunningByProject(ctx, projectID)
		require.NoError(t, err)
		assert.Equal(t, timer.ID, found.ID)
		assert.Equal(t, "client call", found.Description)
		assert.True(t, found.StartedAt.Equal(timer.StartedAt))
	})

	t.Run("a second timer on the project is refused", func(t *testing.T) {
		second, err := timetracking.StartTimer(projectID, "", local("2024-03-12", "10:00"))
		require.NoError(t, err)
		err = repo.Save(ctx, second)
		assert.ErrorIs(t, err, timetracking.ErrTimerAlreadyRunning)
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := repo.FindRunningByProject(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, timer.ID))
		_, err := repo.FindByID(ctx, timer.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, timer.ID), shared.ErrNotFound)
	})
}

func TestGormTimeEntryRepository_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTimeEntryRepository(db)
	ctx := context.Background()
	projectID := uuid.New()
	otherProject := uuid.New()

	march11 := newEntry(t, projectID, local("2024-03-11", "23:50"), local("2024-03-12", "00:20"), true)
	march12 := newEntry(t, projectID, local("2024-03-12", "09:04"), local("2024-03-12", "10:29"), true)
	internal := newEntry(t, projectID, local("2024-03-12", "13:00"), local("2024-03-12", "13:20"), false)
	march13 := newEntry(t, projectID, local("2024-03-13", "08:00"), local("2024-03-13", "09:00"), true)
	other := newEntry(t, otherProject, local("2024-03-12", "11:00"), local("2024-03-12", "12:00"), true)
	require.NoError(t, repo.SaveBatch(ctx, []*timetracking.TimeEntry{march11, march12, internal, march13, other}))

	from := local("2024-03-12", "00:00")
	to := local("2024-03-13", "00:00")

	t.Run("period is inclusive-exclusive on the rounded start", func(t *testing.T) {
		entries, err := repo.FindAll(ctx, timetracking.TimeEntryFilter{
			Filter:    shared.Filter{OrderBy: "start_time", OrderDir: "asc"},
			ProjectID: &projectID,
			From:      &from,
			To:        &to,
		})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, march12.ID, entries[0].ID)
		assert.Equal(t, internal.ID, entries[1].ID)
		assert.Equal(t, "1.5", entries[0].DurationHours.String())
	})

	t.Run("billable and uninvoiced", func(t *testing.T) {
		billable := true
		filter := timetracking.TimeEntryFilter{ProjectID: &projectID, Billable: &billable, Uninvoiced: true}
		entries, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, entries, 3)

		count, err := repo.Count(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("paging", func(t *testing.T) {
		page, err := repo.FindAll(ctx, timetracking.TimeEntryFilter{
			Filter:    shared.Filter{Page: 2, PageSize: 3, OrderBy: "start_time", OrderDir: "asc"},
			ProjectID: &projectID,
		})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, march13.ID, page[0].ID)
	})

	t.Run("invoiced entries drop out and come back on release", func(t *testing.T) {
		invoiceID := uuid.New()
		require.NoError(t, march12.MarkInvoiced(invoiceID))
		require.NoError(t, repo.Save(ctx, march12))

		billed, err := repo.FindByInvoice(ctx, invoiceID)
		require.NoError(t, err)
		require.Len(t, billed, 1)
		assert.Equal(t, march12.ID, billed[0].ID)

		entries, err := repo.FindAll(ctx, timetracking.TimeEntryFilter{ProjectID: &projectID, Uninvoiced: true})
		require.NoError(t, err)
		assert.Len(t, entries, 3)

		march12.ReleaseInvoice(invoiceID)
		require.NoError(t, repo.Save(ctx, march12))
		billed, err = repo.FindByInvoice(ctx, invoiceID)
		require.NoError(t, err)
		assert.Empty(t, billed)
	})
}

func TestGormTimeEntryRepository_MarkInvoiced(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTimeEntryRepository(db)
	ctx := context.Background()
	projectID := uuid.New()

	first := newEntry(t, projectID, local("2024-03-12", "09:00"), local("2024-03-12", "10:00"), true)
	second := newEntry(t, projectID, local("2024-03-12", "11:00"), local("2024-03-12", "12:00"), true)
	require.NoError(t, repo.SaveBatch(ctx, []*timetracking.TimeEntry{first, second}))

	// Both invoices loaded the same uninvoiced entries.
	winner, loser := uuid.New(), uuid.New()
	staleFirst, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)

	require.NoError(t, repo.MarkInvoiced(ctx, winner, []*timetracking.TimeEntry{first}))

	err = repo.MarkInvoiced(ctx, loser, []*timetracking.TimeEntry{second, staleFirst})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	billed, err := repo.FindByInvoice(ctx, winner)
	require.NoError(t, err)
	require.Len(t, billed, 1)
	assert.Equal(t, first.ID, billed[0].ID)
	assert.Equal(t, first.Version+1, billed[0].Version)

	billed, err = repo.FindByInvoice(ctx, loser)
	require.NoError(t, err)
	assert.Empty(t, billed, "a lost race writes nothing")

	require.NoError(t, repo.MarkInvoiced(ctx, loser, []*timetracking.TimeEntry{second}))
	billed, err = repo.FindByInvoice(ctx, loser)
	require.NoError(t, err)
	assert.Len(t, billed, 1)
}

func TestGormInvoiceRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newIssuedInvoice(t, "INV-2024-001", "1000.00")
	require.NoError(t, repo.Save(ctx, inv))

	t.Run("round trip", func(t *testing.T) {
		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-2024-001", found.InvoiceNumber)
		assert.Equal(t, invoicing.InvoiceStatusIssued, found.Status)
		assert.Equal(t, valueobject.EUR, found.Currency)
		assert.True(t, found.TotalAmount.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, inv.Version, found.Version)
		assert.NotNil(t, found.Warnings)
	})

	t.Run("number lookups", func(t *testing.T) {
		exists, err := repo.ExistsByNumber(ctx, "INV-2024-001")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByNumber(ctx, "INV-2024-999")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = repo.FindByNumber(ctx, "INV-2024-999")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("duplicate number", func(t *testing.T) {
		dup := newIssuedInvoice(t, "INV-2024-001", "5.00")
		assert.ErrorIs(t, repo.Save(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("optimistic lock", func(t *testing.T) {
		current, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		stale, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)

		state, err := invoicing.ValidateInvoice(current.Total(), []invoicing.PaymentRecord{}, invoicing.DefaultValidationConfig())
		require.NoError(t, err)
		require.NoError(t, current.ApplyBillingState(state))
		require.NoError(t, repo.SaveWithLock(ctx, current))

		require.NoError(t, stale.ApplyBillingState(state))
		assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

		reloaded, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, current.Version, reloaded.Version)
		assert.Equal(t, invoicing.BillingStatusUnderbilled, reloaded.BillingStatus)
		assert.NotEmpty(t, reloaded.Warnings)
	})

	t.Run("filters", func(t *testing.T) {
		other, err := invoicing.NewInvoice("INV-2024-002", "Globex Ltd", valueobject.MustMoney("50", valueobject.EUR), nil)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, other))

		draft := invoicing.InvoiceStatusDraft
		found, err := repo.FindAll(ctx, invoicing.InvoiceFilter{Filter: shared.DefaultFilter(), Status: &draft})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "INV-2024-002", found[0].InvoiceNumber)

		found, err = repo.FindAll(ctx, invoicing.InvoiceFilter{Filter: shared.DefaultFilter(), ClientName: "acme"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, inv.ID, found[0].ID)

		count, err := repo.Count(ctx, invoicing.InvoiceFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func TestGormPaymentRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()
	invoiceID := uuid.New()

	later, err := invoicing.NewPaymentRecord(invoiceID, valueobject.MustMoney("600.00", valueobject.EUR),
		invoicing.PaymentKindPayment, berlin.CivilDate(local("2024-03-14", "00:30")), "second")
	require.NoError(t, err)
	earlier, err := invoicing.NewPaymentRecord(invoiceID, valueobject.MustMoney("498.60", valueobject.EUR),
		invoicing.PaymentKindRefund, berlin.CivilDate(local("2024-03-12", "23:59")), "first")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, later))
	require.NoError(t, repo.Save(ctx, earlier))

	payments, err := repo.FindByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	assert.Equal(t, earlier.ID, payments[0].ID)
	assert.Equal(t, "2024-03-12", payments[0].DateKey())
	assert.Equal(t, invoicing.PaymentKindRefund, payments[0].Kind)
	assert.True(t, payments[0].Amount.Equals(valueobject.MustMoney("498.60", valueobject.EUR)))
	assert.Equal(t, "2024-03-14", payments[1].DateKey())

	none, err := repo.FindByInvoice(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormBillingScope_RollsBack(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormBillingScope(db)
	ctx := context.Background()
	inv := newIssuedInvoice(t, "INV-RB", "10.00")

	boom := errors.New("boom")
	err := scope.Execute(ctx, func(repos appinvoicing.TransactionalRepositories) error {
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewGormInvoiceRepository(db).FindByID(ctx, inv.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

// MeterReadings is the carried-forward baseline of a room's meters.
type MeterReadings struct {
	Electricity *int64 `db:"electricity_new"`
	Water       *int64 `db:"water_new"`
}

// UtilityRepository handles monthly metering cycles and their invoices.
type UtilityRepository struct {
	db *sqlx.DB
}

// NewUtilityRepository constructs the repository.
func NewUtilityRepository(db *sqlx.DB) *UtilityRepository {
	return &UtilityRepository{db: db}
}

func (r *UtilityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindCycle returns the cycle for a calendar month, or nil when none exists.
func (r *UtilityRepository) FindCycle(ctx context.Context, exec sqlx.ExtContext, month, year int) (*models.UtilityCycle, error) {
	const query = `SELECT id, month, year, status, created_at FROM utility_invoice_cycles
        WHERE month = $1 AND year = $2`
	var cycle models.UtilityCycle
	if err := sqlx.GetContext(ctx, r.exec(exec), &cycle, query, month, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find utility cycle: %w", err)
	}
	return &cycle, nil
}

// FindCycleByID returns a cycle by its ID.
func (r *UtilityRepository) FindCycleByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.UtilityCycle, error) {
	const query = `SELECT id, month, year, status, created_at FROM utility_invoice_cycles WHERE id = $1`
	var cycle models.UtilityCycle
	if err := sqlx.GetContext(ctx, r.exec(exec), &cycle, query, id); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// CreateCycle inserts a DRAFT cycle.
func (r *UtilityRepository) CreateCycle(ctx context.Context, exec sqlx.ExtContext, cycle *models.UtilityCycle) error {
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	if cycle.Status == "" {
		cycle.Status = models.UtilityCycleDraft
	}
	if cycle.CreatedAt.IsZero() {
		cycle.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO utility_invoice_cycles (id, month, year, status, created_at)
        VALUES (:id, :month, :year, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, cycle); err != nil {
		return fmt.Errorf("create utility cycle: %w", err)
	}
	return nil
}

// UpdateCycleStatus transitions a cycle, e.g. DRAFT to PUBLISHED.
func (r *UtilityRepository) UpdateCycleStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.UtilityCycleStatus) error {
	const query = `UPDATE utility_invoice_cycles SET status = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update utility cycle status: %w", err)
	}
	return nil
}

// CreateUtilityDetail inserts the UTILITY satellite row for an invoice.
func (r *UtilityRepository) CreateUtilityDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.UtilityInvoice) error {
	if detail.ID == "" {
		detail.ID = uuid.NewString()
	}
	const query = `INSERT INTO utility_invoices (id, invoice_id, cycle_id, room_id,
        electricity_old, electricity_new, water_old, water_new)
        VALUES (:id, :invoice_id, :cycle_id, :room_id,
        :electricity_old, :electricity_new, :water_old, :water_new)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, detail); err != nil {
		return fmt.Errorf("create utility detail: %w", err)
	}
	return nil
}

// UpdateReadings records the meter values entered for one detail row.
func (r *UtilityRepository) UpdateReadings(ctx context.Context, exec sqlx.ExtContext, id string, electricityNew, waterNew int64) error {
	const query = `UPDATE utility_invoices SET electricity_new = $2, water_new = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, electricityNew, waterNew); err != nil {
		return fmt.Errorf("update utility readings: %w", err)
	}
	return nil
}

// LatestPublishedReadings returns the room's meter values from its most recent
// published cycle, or nil readings when the room was never billed.
func (r *UtilityRepository) LatestPublishedReadings(ctx context.Context, exec sqlx.ExtContext, roomID string) (*MeterReadings, error) {
	const query = `SELECT ui.electricity_new, ui.water_new
        FROM utility_invoices ui
        JOIN utility_invoice_cycles c ON c.id = ui.cycle_id
        WHERE ui.room_id = $1 AND c.status = $2
        ORDER BY c.year DESC, c.month DESC
        LIMIT 1`
	var readings MeterReadings
	if err := sqlx.GetContext(ctx, r.exec(exec), &readings, query, roomID, models.UtilityCyclePublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &MeterReadings{}, nil
		}
		return nil, fmt.Errorf("latest published readings: %w", err)
	}
	return &readings, nil
}

// ListCycleDetails returns every utility detail row of a cycle.
func (r *UtilityRepository) ListCycleDetails(ctx context.Context, exec sqlx.ExtContext, cycleID string) ([]models.UtilityInvoice, error) {
	const query = `SELECT id, invoice_id, cycle_id, room_id,
        electricity_old, electricity_new, water_old, water_new
        FROM utility_invoices WHERE cycle_id = $1 ORDER BY room_id ASC`
	var details []models.UtilityInvoice
	if err := sqlx.SelectContext(ctx, r.exec(exec), &details, query, cycleID); err != nil {
		return nil, fmt.Errorf("list cycle details: %w", err)
	}
	return details, nil
}

// UpdateInvoiceTotal sets the computed amount and publishes the parent invoice.
func (r *UtilityRepository) UpdateInvoiceTotal(ctx context.Context, exec sqlx.ExtContext, invoiceID string, total int64) error {
	const query = `UPDATE invoices SET total_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, invoiceID, total, models.InvoicePublished); err != nil {
		return fmt.Errorf("publish utility invoice: %w", err)
	}
	return nil
}

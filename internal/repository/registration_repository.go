package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

const registrationColumns = `id, student_id, semester_id, type, desired_room_id, desired_building_id,
	priority_category, status, invoice_id, admin_note, created_at, updated_at`

// ExpiredHold identifies a registration rejected by the hold reaper.
type ExpiredHold struct {
	ID        string `db:"id"`
	StudentID string `db:"student_id"`
}

// RegistrationRepository handles persistence of housing registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a registration row, typically inside the submit transaction.
func (r *RegistrationRepository) Create(ctx context.Context, exec sqlx.ExtContext, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	if registration.Status == "" {
		registration.Status = models.RegistrationPending
	}
	now := time.Now().UTC()
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now

	const query = `INSERT INTO registrations (id, student_id, semester_id, type, desired_room_id,
        desired_building_id, priority_category, status, invoice_id, admin_note, created_at, updated_at)
        VALUES (:id, :student_id, :semester_id, :type, :desired_room_id,
        :desired_building_id, :priority_category, :status, :invoice_id, :admin_note, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// SetInvoiceID back-links the room-fee invoice created in the same transaction.
func (r *RegistrationRepository) SetInvoiceID(ctx context.Context, exec sqlx.ExtContext, id, invoiceID string) error {
	const query = `UPDATE registrations SET invoice_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, invoiceID); err != nil {
		return fmt.Errorf("link registration invoice: %w", err)
	}
	return nil
}

// FindByID returns a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1`, registrationColumns)
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// LockByInvoiceID locks and returns the registration owning an invoice. Used by
// the payment transaction so the reaper and a concurrent payment serialise on
// the row.
func (r *RegistrationRepository) LockByInvoiceID(ctx context.Context, exec sqlx.ExtContext, invoiceID string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE invoice_id = $1 FOR UPDATE`, registrationColumns)
	var registration models.Registration
	if err := sqlx.GetContext(ctx, r.exec(exec), &registration, query, invoiceID); err != nil {
		return nil, err
	}
	return &registration, nil
}

// LockByID locks and returns a registration row.
func (r *RegistrationRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1 FOR UPDATE`, registrationColumns)
	var registration models.Registration
	if err := sqlx.GetContext(ctx, r.exec(exec), &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// UpdateStatus transitions a registration and records the admin note.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus, adminNote *string) error {
	const query = `UPDATE registrations SET status = $2, admin_note = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, adminNote); err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	return nil
}

// List returns registrations filtered by the provided criteria.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	base := `FROM registrations reg
JOIN students s ON s.id = reg.student_id
LEFT JOIN rooms rm ON rm.id = reg.desired_room_id`
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("reg.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("reg.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("reg.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("reg.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "reg.created_at",
		"student_name": "s.full_name",
		"status":       "reg.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "reg.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT reg.id, reg.student_id, reg.semester_id, reg.type, reg.desired_room_id,
        reg.desired_building_id, reg.priority_category, reg.status, reg.invoice_id, reg.admin_note,
        reg.created_at, reg.updated_at,
        s.full_name AS student_name, s.gender AS student_gender, rm.name AS room_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return registrations, total, nil
}

// ListPendingUnassigned returns the batch matcher's input: pending registrations
// of the semester without an invoice hold, oldest first.
func (r *RegistrationRepository) ListPendingUnassigned(ctx context.Context, semesterID string) ([]models.PendingAssignment, error) {
	const query = `SELECT reg.id, reg.student_id, reg.semester_id, reg.type, reg.desired_room_id,
        reg.desired_building_id, reg.priority_category, reg.status, reg.invoice_id, reg.admin_note,
        reg.created_at, reg.updated_at,
        s.full_name AS student_name, s.gender AS student_gender
        FROM registrations reg
        JOIN students s ON s.id = reg.student_id
        WHERE reg.semester_id = $1 AND reg.status = $2 AND reg.invoice_id IS NULL
        ORDER BY reg.created_at ASC`
	var pending []models.PendingAssignment
	if err := r.db.SelectContext(ctx, &pending, query, semesterID, models.RegistrationPending); err != nil {
		return nil, fmt.Errorf("list pending registrations: %w", err)
	}
	return pending, nil
}

// ExpireUnpaidHolds rejects every pending NORMAL registration whose room hold
// outlived the cutoff. The single UPDATE takes row locks, so a payment
// committing concurrently either wins (status no longer PENDING, row skipped)
// or loses (row rejected before the payment checks its precondition).
func (r *RegistrationRepository) ExpireUnpaidHolds(ctx context.Context, cutoff time.Time, note string) ([]ExpiredHold, error) {
	const query = `UPDATE registrations
        SET status = $1, admin_note = $2, updated_at = NOW()
        WHERE status = $3 AND type = $4 AND desired_room_id IS NOT NULL
          AND invoice_id IS NOT NULL AND created_at < $5
        RETURNING id, student_id`
	var expired []ExpiredHold
	if err := r.db.SelectContext(ctx, &expired, query,
		models.RegistrationRejected, note, models.RegistrationPending, models.RegistrationTypeNormal, cutoff); err != nil {
		return nil, fmt.Errorf("expire unpaid holds: %w", err)
	}
	return expired, nil
}

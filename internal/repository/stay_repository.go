package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

// StayRepository handles the occupancy facts backing room capacity.
type StayRepository struct {
	db *sqlx.DB
}

// NewStayRepository constructs the repository.
func NewStayRepository(db *sqlx.DB) *StayRepository {
	return &StayRepository{db: db}
}

func (r *StayRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an ACTIVE stay record inside an approval or payment
// transaction.
func (r *StayRepository) Create(ctx context.Context, exec sqlx.ExtContext, stay *models.StayRecord) error {
	if stay.ID == "" {
		stay.ID = uuid.NewString()
	}
	if stay.Status == "" {
		stay.Status = models.StayActive
	}
	if stay.CreatedAt.IsZero() {
		stay.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO stay_records (id, student_id, room_id, semester_id, start_date, end_date, status, created_at)
        VALUES (:id, :student_id, :room_id, :semester_id, :start_date, :end_date, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, stay); err != nil {
		return fmt.Errorf("create stay record: %w", err)
	}
	return nil
}

// CountActiveByRoom returns the live occupant count of a room for a semester.
func (r *StayRepository) CountActiveByRoom(ctx context.Context, exec sqlx.ExtContext, roomID, semesterID string) (int, error) {
	const query = `SELECT COUNT(*) FROM stay_records WHERE room_id = $1 AND semester_id = $2 AND status = $3`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, roomID, semesterID, models.StayActive); err != nil {
		return 0, fmt.Errorf("count active stays: %w", err)
	}
	return count, nil
}

// ExistsActiveForStudent reports whether the student already holds an ACTIVE
// stay for the semester.
func (r *StayRepository) ExistsActiveForStudent(ctx context.Context, exec sqlx.ExtContext, studentID, semesterID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM stay_records WHERE student_id = $1 AND semester_id = $2 AND status = $3)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, studentID, semesterID, models.StayActive); err != nil {
		return false, fmt.Errorf("check active stay: %w", err)
	}
	return exists, nil
}

// ListActiveByRoom returns the current occupants of a room for a semester.
func (r *StayRepository) ListActiveByRoom(ctx context.Context, roomID, semesterID string) ([]models.StayRecord, error) {
	const query = `SELECT id, student_id, room_id, semester_id, start_date, end_date, status, created_at
        FROM stay_records WHERE room_id = $1 AND semester_id = $2 AND status = $3 ORDER BY created_at ASC`
	var stays []models.StayRecord
	if err := r.db.SelectContext(ctx, &stays, query, roomID, semesterID, models.StayActive); err != nil {
		return nil, fmt.Errorf("list active stays: %w", err)
	}
	return stays, nil
}

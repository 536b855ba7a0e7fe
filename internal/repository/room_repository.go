package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

// RoomRepository handles room reads and status updates. Occupancy is always
// derived from ACTIVE stay records.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a room by its ID.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, building_id, name, max_capacity, price_per_semester, status, created_at, updated_at
        FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// GetAvailabilityForUpdate locks the room row and returns it annotated with the
// semester's occupancy and occupant genders. Callers must run this inside a
// transaction; the lock serialises concurrent capacity checks on the room.
func (r *RoomRepository) GetAvailabilityForUpdate(ctx context.Context, exec sqlx.ExtContext, roomID, semesterID string) (*models.RoomAvailability, error) {
	target := r.exec(exec)

	const lockQuery = `SELECT r.id, r.building_id, b.name AS building_name, r.name, r.max_capacity,
        r.price_per_semester, r.status, b.gender_restriction
        FROM rooms r
        JOIN buildings b ON b.id = r.building_id
        WHERE r.id = $1
        FOR UPDATE OF r`
	var availability models.RoomAvailability
	if err := sqlx.GetContext(ctx, target, &availability, lockQuery, roomID); err != nil {
		return nil, err
	}

	const occupancyQuery = `SELECT COUNT(sr.id) AS occupancy,
        COALESCE(STRING_AGG(DISTINCT s.gender, ','), '') AS occupant_genders
        FROM stay_records sr
        JOIN students s ON s.id = sr.student_id
        WHERE sr.room_id = $1 AND sr.semester_id = $2 AND sr.status = $3`
	var occupancy struct {
		Occupancy       int    `db:"occupancy"`
		OccupantGenders string `db:"occupant_genders"`
	}
	if err := sqlx.GetContext(ctx, target, &occupancy, occupancyQuery, roomID, semesterID, models.StayActive); err != nil {
		return nil, fmt.Errorf("count room occupancy: %w", err)
	}
	availability.Occupancy = occupancy.Occupancy
	availability.OccupantGenders = occupancy.OccupantGenders
	return &availability, nil
}

// ListAvailability returns every non-inactive room with remaining capacity for
// the semester, annotated with occupancy and occupant genders.
func (r *RoomRepository) ListAvailability(ctx context.Context, semesterID string) ([]models.RoomAvailability, error) {
	const query = `SELECT r.id, r.building_id, b.name AS building_name, r.name, r.max_capacity,
        r.price_per_semester, r.status, b.gender_restriction,
        COUNT(sr.id) AS occupancy,
        COALESCE(STRING_AGG(DISTINCT s.gender, ','), '') AS occupant_genders
        FROM rooms r
        JOIN buildings b ON b.id = r.building_id
        LEFT JOIN stay_records sr ON sr.room_id = r.id AND sr.semester_id = $1 AND sr.status = $2
        LEFT JOIN students s ON s.id = sr.student_id
        WHERE r.status = $3
        GROUP BY r.id, b.id
        HAVING COUNT(sr.id) < r.max_capacity
        ORDER BY r.name ASC`
	var rooms []models.RoomAvailability
	if err := r.db.SelectContext(ctx, &rooms, query, semesterID, models.StayActive, models.RoomAvailable); err != nil {
		return nil, fmt.Errorf("list room availability: %w", err)
	}
	return rooms, nil
}

// UpdateStatus transitions a room between AVAILABLE and FULL.
func (r *RoomRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RoomStatus) error {
	const query = `UPDATE rooms SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	return nil
}

// ListActiveRooms returns all rooms not marked INACTIVE, for the utility cycle
// bootstrap.
func (r *RoomRepository) ListActiveRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, building_id, name, max_capacity, price_per_semester, status, created_at, updated_at
        FROM rooms WHERE status <> $1 ORDER BY name ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, models.RoomInactive); err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	return rooms, nil
}

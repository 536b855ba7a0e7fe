package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

// NotificationRepository persists in-app notification rows and resolves
// notification targets into student IDs.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// InsertBatch writes one notification row per student.
func (r *NotificationRepository) InsertBatch(ctx context.Context, studentIDs []string, title, body string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]models.Notification, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		rows = append(rows, models.Notification{
			ID:        uuid.NewString(),
			StudentID: studentID,
			Title:     title,
			Body:      body,
			CreatedAt: now,
		})
	}
	const query = `INSERT INTO notifications (id, student_id, title, body, created_at)
        VALUES (:id, :student_id, :title, :body, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, rows); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

// ResolveTarget expands a target into the concrete student IDs it addresses.
// ROOM and BUILDING scopes resolve against ACTIVE stays of the semester.
func (r *NotificationRepository) ResolveTarget(ctx context.Context, target models.NotificationTarget, semesterID string) ([]string, error) {
	switch target.Scope {
	case models.ScopeIndividual:
		return target.IDs, nil
	case models.ScopeRoom:
		const query = `SELECT DISTINCT sr.student_id FROM stay_records sr
            WHERE sr.room_id = ANY($1) AND sr.semester_id = $2 AND sr.status = $3`
		var ids []string
		if err := r.db.SelectContext(ctx, &ids, query, pq.Array(target.IDs), semesterID, models.StayActive); err != nil {
			return nil, fmt.Errorf("resolve room target: %w", err)
		}
		return ids, nil
	case models.ScopeBuilding:
		const query = `SELECT DISTINCT sr.student_id FROM stay_records sr
            JOIN rooms rm ON rm.id = sr.room_id
            WHERE rm.building_id = ANY($1) AND sr.semester_id = $2 AND sr.status = $3`
		var ids []string
		if err := r.db.SelectContext(ctx, &ids, query, pq.Array(target.IDs), semesterID, models.StayActive); err != nil {
			return nil, fmt.Errorf("resolve building target: %w", err)
		}
		return ids, nil
	case models.ScopeAll:
		const query = `SELECT id FROM students WHERE active = TRUE`
		var ids []string
		if err := r.db.SelectContext(ctx, &ids, query); err != nil {
			return nil, fmt.Errorf("resolve all target: %w", err)
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unknown notification scope %q", target.Scope)
	}
}

// ListByStudent returns a student's notifications, newest first.
func (r *NotificationRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const query = `SELECT id, student_id, title, body, read_at, created_at
        FROM notifications WHERE student_id = $1 ORDER BY created_at DESC LIMIT $2`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

const semesterColumns = `id, name, start_date, end_date, is_active,
	normal_open_at, normal_close_at, priority_open_at, priority_close_at,
	renewal_open_at, renewal_close_at, created_at, updated_at`

// SemesterRepository reads the semester calendar. Semesters are managed by an
// external admin surface, so this repository is read-only.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// FindActive returns the single active semester.
func (r *SemesterRepository) FindActive(ctx context.Context) (*models.Semester, error) {
	query := fmt.Sprintf(`SELECT %s FROM semesters WHERE is_active = TRUE LIMIT 1`, semesterColumns)
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindByID returns a semester by its ID.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	query := fmt.Sprintf(`SELECT %s FROM semesters WHERE id = $1`, semesterColumns)
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

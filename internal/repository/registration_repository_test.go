package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRegistrationRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(0, 1))

	registration := &models.Registration{
		StudentID:  "stu-1",
		SemesterID: "sem-1",
		Type:       models.RegistrationTypeNormal,
	}
	err := repo.Create(context.Background(), nil, registration)
	require.NoError(t, err)
	require.NotEmpty(t, registration.ID)
	require.Equal(t, models.RegistrationPending, registration.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryLockByInvoiceID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	invoiceID := "inv-1"
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "semester_id", "type", "desired_room_id", "desired_building_id",
		"priority_category", "status", "invoice_id", "admin_note", "created_at", "updated_at",
	}).AddRow("reg-1", "stu-1", "sem-1", models.RegistrationTypeNormal, "room-1", nil,
		nil, models.RegistrationPending, invoiceID, nil, time.Now(), time.Now())

	mock.ExpectQuery(`SELECT .+ FROM registrations WHERE invoice_id = \$1 FOR UPDATE`).
		WithArgs(invoiceID).
		WillReturnRows(rows)

	registration, err := repo.LockByInvoiceID(context.Background(), nil, invoiceID)
	require.NoError(t, err)
	require.Equal(t, "reg-1", registration.ID)
	require.Equal(t, models.RegistrationPending, registration.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryExpireUnpaidHolds(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id"}).
		AddRow("reg-1", "stu-1").
		AddRow("reg-2", "stu-2")

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE registrations")).
		WithArgs(models.RegistrationRejected, "expired", models.RegistrationPending, models.RegistrationTypeNormal, cutoff).
		WillReturnRows(rows)

	expired, err := repo.ExpireUnpaidHolds(context.Background(), cutoff, "expired")
	require.NoError(t, err)
	require.Len(t, expired, 2)
	require.Equal(t, "stu-1", expired[0].StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryListPendingUnassignedOrdersByAge(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "student_id", "semester_id", "type", "desired_room_id", "desired_building_id",
		"priority_category", "status", "invoice_id", "admin_note", "created_at", "updated_at",
		"student_name", "student_gender",
	}).
		AddRow("reg-old", "stu-1", "sem-1", models.RegistrationTypeNormal, nil, nil,
			nil, models.RegistrationPending, nil, nil, time.Now().Add(-time.Hour), time.Now(), "An", models.GenderMale).
		AddRow("reg-new", "stu-2", "sem-1", models.RegistrationTypeNormal, nil, nil,
			nil, models.RegistrationPending, nil, nil, time.Now(), time.Now(), "Binh", models.GenderMale)

	mock.ExpectQuery(`SELECT .+ FROM registrations reg\s+JOIN students s ON s\.id = reg\.student_id\s+WHERE reg\.semester_id = \$1 AND reg\.status = \$2 AND reg\.invoice_id IS NULL\s+ORDER BY reg\.created_at ASC`).
		WithArgs("sem-1", models.RegistrationPending).
		WillReturnRows(rows)

	pending, err := repo.ListPendingUnassigned(context.Background(), "sem-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "reg-old", pending[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

func TestStayRepositoryExistsActiveForStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStayRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("stu-1", "sem-1", models.StayActive).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsActiveForStudent(context.Background(), nil, "stu-1", "sem-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStayRepositoryCountActiveByRoom(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStayRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM stay_records`).
		WithArgs("room-1", "sem-1", models.StayActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountActiveByRoom(context.Background(), nil, "room-1", "sem-1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStayRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStayRepository(db)

	mock.ExpectExec("INSERT INTO stay_records").
		WillReturnResult(sqlmock.NewResult(0, 1))

	stay := &models.StayRecord{StudentID: "stu-1", RoomID: "room-1", SemesterID: "sem-1"}
	err := repo.Create(context.Background(), nil, stay)
	require.NoError(t, err)
	require.NotEmpty(t, stay.ID)
	require.Equal(t, models.StayActive, stay.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

func TestUtilityRepositoryFindCycleMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUtilityRepository(db)

	mock.ExpectQuery(`SELECT id, month, year, status, created_at FROM utility_invoice_cycles`).
		WithArgs(3, 2026).
		WillReturnRows(sqlmock.NewRows([]string{"id", "month", "year", "status", "created_at"}))

	cycle, err := repo.FindCycle(context.Background(), nil, 3, 2026)
	require.NoError(t, err)
	require.Nil(t, cycle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUtilityRepositoryLatestPublishedReadingsFallsBackToNil(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUtilityRepository(db)

	mock.ExpectQuery(`SELECT ui\.electricity_new, ui\.water_new`).
		WithArgs("room-1", models.UtilityCyclePublished).
		WillReturnRows(sqlmock.NewRows([]string{"electricity_new", "water_new"}))

	readings, err := repo.LatestPublishedReadings(context.Background(), nil, "room-1")
	require.NoError(t, err)
	require.Nil(t, readings.Electricity)
	require.Nil(t, readings.Water)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUtilityRepositoryLatestPublishedReadings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUtilityRepository(db)

	rows := sqlmock.NewRows([]string{"electricity_new", "water_new"}).AddRow(int64(1200), int64(340))
	mock.ExpectQuery(`ORDER BY c\.year DESC, c\.month DESC`).
		WithArgs("room-1", models.UtilityCyclePublished).
		WillReturnRows(rows)

	readings, err := repo.LatestPublishedReadings(context.Background(), nil, "room-1")
	require.NoError(t, err)
	require.Equal(t, int64(1200), *readings.Electricity)
	require.Equal(t, int64(340), *readings.Water)
	require.NoError(t, mock.ExpectationsWereMet())
}

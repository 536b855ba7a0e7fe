package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

func TestRoomRepositoryGetAvailabilityForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	lockRows := sqlmock.NewRows([]string{
		"id", "building_id", "building_name", "name", "max_capacity",
		"price_per_semester", "status", "gender_restriction",
	}).AddRow("room-1", "bld-1", "B1", "101", 4, int64(5000000), models.RoomAvailable, models.RestrictionMixed)
	mock.ExpectQuery(`SELECT .+ FROM rooms r\s+JOIN buildings b ON b\.id = r\.building_id\s+WHERE r\.id = \$1\s+FOR UPDATE OF r`).
		WithArgs("room-1").
		WillReturnRows(lockRows)

	occupancyRows := sqlmock.NewRows([]string{"occupancy", "occupant_genders"}).
		AddRow(2, "FEMALE")
	mock.ExpectQuery(`SELECT COUNT\(sr\.id\) AS occupancy`).
		WithArgs("room-1", "sem-1", models.StayActive).
		WillReturnRows(occupancyRows)

	availability, err := repo.GetAvailabilityForUpdate(context.Background(), nil, "room-1", "sem-1")
	require.NoError(t, err)
	require.Equal(t, 2, availability.Occupancy)
	require.Equal(t, []models.Gender{models.GenderFemale}, availability.OccupantGenderList())
	require.False(t, availability.AcceptsOccupant(models.GenderMale))
	require.True(t, availability.AcceptsOccupant(models.GenderFemale))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryListAvailabilityExcludesFullRooms(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "building_id", "building_name", "name", "max_capacity",
		"price_per_semester", "status", "gender_restriction", "occupancy", "occupant_genders",
	}).AddRow("room-1", "bld-1", "B1", "101", 4, int64(5000000), models.RoomAvailable, models.RestrictionMale, 1, "MALE")

	mock.ExpectQuery(`HAVING COUNT\(sr\.id\) < r\.max_capacity`).
		WithArgs("sem-1", models.StayActive, models.RoomAvailable).
		WillReturnRows(rows)

	rooms, err := repo.ListAvailability(context.Background(), "sem-1")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, 3, rooms[0].MaxCapacity-rooms[0].Occupancy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec(`UPDATE rooms SET status = \$2, updated_at = NOW\(\) WHERE id = \$1`).
		WithArgs("room-1", models.RoomFull).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), nil, "room-1", models.RoomFull)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

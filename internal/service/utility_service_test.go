package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/repository"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

type utilityStoreStub struct {
	cycle          *models.UtilityCycle
	readings       map[string]*repository.MeterReadings
	details        []models.UtilityInvoice
	createdDetails []models.UtilityInvoice
	totals         map[string]int64
	statusUpdates  []models.UtilityCycleStatus
	recorded       []string
}

func (s *utilityStoreStub) FindCycle(ctx context.Context, exec sqlx.ExtContext, month, year int) (*models.UtilityCycle, error) {
	return s.cycle, nil
}

func (s *utilityStoreStub) FindCycleByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.UtilityCycle, error) {
	return s.cycle, nil
}

func (s *utilityStoreStub) CreateCycle(ctx context.Context, exec sqlx.ExtContext, cycle *models.UtilityCycle) error {
	cycle.ID = "cycle-1"
	s.cycle = cycle
	return nil
}

func (s *utilityStoreStub) UpdateCycleStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.UtilityCycleStatus) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *utilityStoreStub) CreateUtilityDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.UtilityInvoice) error {
	s.createdDetails = append(s.createdDetails, *detail)
	return nil
}

func (s *utilityStoreStub) LatestPublishedReadings(ctx context.Context, exec sqlx.ExtContext, roomID string) (*repository.MeterReadings, error) {
	if readings, ok := s.readings[roomID]; ok {
		return readings, nil
	}
	return &repository.MeterReadings{}, nil
}

func (s *utilityStoreStub) UpdateReadings(ctx context.Context, exec sqlx.ExtContext, id string, electricityNew, waterNew int64) error {
	s.recorded = append(s.recorded, id)
	return nil
}

func (s *utilityStoreStub) ListCycleDetails(ctx context.Context, exec sqlx.ExtContext, cycleID string) ([]models.UtilityInvoice, error) {
	return s.details, nil
}

func (s *utilityStoreStub) UpdateInvoiceTotal(ctx context.Context, exec sqlx.ExtContext, invoiceID string, total int64) error {
	if s.totals == nil {
		s.totals = make(map[string]int64)
	}
	s.totals[invoiceID] = total
	return nil
}

type utilityRoomListerStub struct {
	rooms []models.Room
}

func (s *utilityRoomListerStub) ListActiveRooms(ctx context.Context) ([]models.Room, error) {
	return s.rooms, nil
}

type utilityInvoiceCreatorStub struct {
	created int
}

func (s *utilityInvoiceCreatorStub) Create(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error {
	s.created++
	invoice.ID = fmt.Sprintf("inv-%d", s.created)
	return nil
}

func i64(v int64) *int64 { return &v }

func utilityDetail(invoiceID string, eOld, eNew, wOld, wNew *int64) models.UtilityInvoice {
	return models.UtilityInvoice{
		InvoiceID:      invoiceID,
		CycleID:        "cycle-1",
		RoomID:         "room-" + invoiceID,
		ElectricityOld: eOld,
		ElectricityNew: eNew,
		WaterOld:       wOld,
		WaterNew:       wNew,
	}
}

func TestUtilityServiceEnsureCurrentCycleIsIdempotent(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	cycles := &utilityStoreStub{cycle: &models.UtilityCycle{ID: "cycle-1", Month: 3, Year: 2026, Status: models.UtilityCycleDraft}}
	invoices := &utilityInvoiceCreatorStub{}
	svc := NewUtilityService(cycles, &utilityRoomListerStub{}, invoices, &notifierStub{}, db, nil, UtilityConfig{})

	result, err := svc.EnsureCurrentCycle(context.Background(), time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "cycle-1", result.CycleID)
	assert.Zero(t, invoices.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUtilityServiceEnsureCurrentCycleCarriesForwardReadings(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	cycles := &utilityStoreStub{readings: map[string]*repository.MeterReadings{
		"room-1": {Electricity: i64(1200), Water: i64(340)},
	}}
	invoices := &utilityInvoiceCreatorStub{}
	rooms := &utilityRoomListerStub{rooms: []models.Room{
		{ID: "room-1", Status: models.RoomAvailable},
		{ID: "room-2", Status: models.RoomAvailable},
	}}
	svc := NewUtilityService(cycles, rooms, invoices, &notifierStub{}, db, nil, UtilityConfig{})

	result, err := svc.EnsureCurrentCycle(context.Background(), time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 3, result.Month)
	assert.Equal(t, 2026, result.Year)
	assert.Equal(t, 2, result.Invoices)
	assert.Equal(t, 2, invoices.created)

	require.Len(t, cycles.createdDetails, 2)
	first := cycles.createdDetails[0]
	assert.Equal(t, "room-1", first.RoomID)
	require.NotNil(t, first.ElectricityOld)
	assert.Equal(t, int64(1200), *first.ElectricityOld)
	require.NotNil(t, first.WaterOld)
	assert.Equal(t, int64(340), *first.WaterOld)

	second := cycles.createdDetails[1]
	assert.Nil(t, second.ElectricityOld)
	assert.Nil(t, second.WaterOld)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUtilityServicePublishCyclePricesCompleteDetails(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	cycles := &utilityStoreStub{
		cycle: &models.UtilityCycle{ID: "cycle-1", Month: 3, Year: 2026, Status: models.UtilityCycleDraft},
		details: []models.UtilityInvoice{
			utilityDetail("a", i64(100), i64(150), i64(10), i64(14)),
			utilityDetail("b", i64(100), nil, i64(10), i64(12)),
			utilityDetail("c", i64(100), i64(90), i64(10), i64(12)),
		},
	}
	notifier := &notifierStub{}
	svc := NewUtilityService(cycles, &utilityRoomListerStub{}, &utilityInvoiceCreatorStub{}, notifier, db, nil,
		UtilityConfig{ElectricityPrice: 3000, WaterPrice: 10000})

	result, err := svc.PublishCycle(context.Background(), "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 2, result.Skipped)

	// 50 kWh * 3000 + 4 m3 * 10000
	assert.Equal(t, int64(190000), cycles.totals["a"])
	require.Len(t, cycles.statusUpdates, 1)
	assert.Equal(t, models.UtilityCyclePublished, cycles.statusUpdates[0])

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.ScopeRoom, notifier.sent[0].Scope)
	assert.Equal(t, []string{"room-a"}, notifier.sent[0].IDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUtilityServicePublishCycleRejectsRepublish(t *testing.T) {
	db, _, cleanup := newTxMock(t)
	defer cleanup()

	cycles := &utilityStoreStub{cycle: &models.UtilityCycle{ID: "cycle-1", Status: models.UtilityCyclePublished}}
	svc := NewUtilityService(cycles, &utilityRoomListerStub{}, &utilityInvoiceCreatorStub{}, &notifierStub{}, db, nil, UtilityConfig{})

	_, err := svc.PublishCycle(context.Background(), "cycle-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUtilityServiceRecordReadings(t *testing.T) {
	db, _, cleanup := newTxMock(t)
	defer cleanup()

	cycles := &utilityStoreStub{cycle: &models.UtilityCycle{ID: "cycle-1", Status: models.UtilityCycleDraft}}
	svc := NewUtilityService(cycles, &utilityRoomListerStub{}, &utilityInvoiceCreatorStub{}, &notifierStub{}, db, nil, UtilityConfig{})

	require.NoError(t, svc.RecordReadings(context.Background(), "cycle-1", "detail-1", 1250, 352))
	assert.Equal(t, []string{"detail-1"}, cycles.recorded)
}

func TestUtilityServiceRecordReadingsRejectsPublishedCycle(t *testing.T) {
	db, _, cleanup := newTxMock(t)
	defer cleanup()

	cycles := &utilityStoreStub{cycle: &models.UtilityCycle{ID: "cycle-1", Status: models.UtilityCyclePublished}}
	svc := NewUtilityService(cycles, &utilityRoomListerStub{}, &utilityInvoiceCreatorStub{}, &notifierStub{}, db, nil, UtilityConfig{})

	err := svc.RecordReadings(context.Background(), "cycle-1", "detail-1", 1250, 352)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, cycles.recorded)
}

func TestUtilityServiceRecordReadingsRejectsNegativeValues(t *testing.T) {
	db, _, cleanup := newTxMock(t)
	defer cleanup()

	cycles := &utilityStoreStub{cycle: &models.UtilityCycle{ID: "cycle-1", Status: models.UtilityCycleDraft}}
	svc := NewUtilityService(cycles, &utilityRoomListerStub{}, &utilityInvoiceCreatorStub{}, &notifierStub{}, db, nil, UtilityConfig{})

	err := svc.RecordReadings(context.Background(), "cycle-1", "detail-1", -1, 352)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

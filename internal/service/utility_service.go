package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/repository"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

type utilityStore interface {
	FindCycle(ctx context.Context, exec sqlx.ExtContext, month, year int) (*models.UtilityCycle, error)
	FindCycleByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.UtilityCycle, error)
	CreateCycle(ctx context.Context, exec sqlx.ExtContext, cycle *models.UtilityCycle) error
	UpdateCycleStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.UtilityCycleStatus) error
	CreateUtilityDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.UtilityInvoice) error
	LatestPublishedReadings(ctx context.Context, exec sqlx.ExtContext, roomID string) (*repository.MeterReadings, error)
	ListCycleDetails(ctx context.Context, exec sqlx.ExtContext, cycleID string) ([]models.UtilityInvoice, error)
	UpdateInvoiceTotal(ctx context.Context, exec sqlx.ExtContext, invoiceID string, total int64) error
	UpdateReadings(ctx context.Context, exec sqlx.ExtContext, id string, electricityNew, waterNew int64) error
}

type utilityRoomLister interface {
	ListActiveRooms(ctx context.Context) ([]models.Room, error)
}

type utilityInvoiceCreator interface {
	Create(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error
}

// UtilityConfig carries unit prices for meter deltas.
type UtilityConfig struct {
	ElectricityPrice int64
	WaterPrice       int64
}

// UtilityService bootstraps monthly metering cycles and publishes their
// invoices once readings are entered.
type UtilityService struct {
	cycles   utilityStore
	rooms    utilityRoomLister
	invoices utilityInvoiceCreator
	notifier NotificationSender
	tx       txProvider
	logger   *zap.Logger
	cfg      UtilityConfig
}

// NewUtilityService wires utility billing dependencies.
func NewUtilityService(
	cycles utilityStore,
	rooms utilityRoomLister,
	invoices utilityInvoiceCreator,
	notifier NotificationSender,
	tx txProvider,
	logger *zap.Logger,
	cfg UtilityConfig,
) *UtilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UtilityService{
		cycles:   cycles,
		rooms:    rooms,
		invoices: invoices,
		notifier: notifier,
		tx:       tx,
		logger:   logger,
		cfg:      cfg,
	}
}

// EnsureCurrentCycle creates the cycle for now's calendar month if it does not
// exist, with one draft invoice per active room. Old meter readings are carried
// from the room's last published invoice. Idempotent per month.
func (s *UtilityService) EnsureCurrentCycle(ctx context.Context, now time.Time) (*dto.CycleBootstrapResult, error) {
	month := int(now.Month())
	year := now.Year()

	existing, err := s.cycles.FindCycle(ctx, nil, month, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check utility cycle")
	}
	if existing != nil {
		return &dto.CycleBootstrapResult{CycleID: existing.ID, Month: month, Year: year, Created: false}, nil
	}

	rooms, err := s.rooms.ListActiveRooms(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() { _ = tx.Rollback() }()

	cycle := &models.UtilityCycle{Month: month, Year: year, Status: models.UtilityCycleDraft}
	if err := s.cycles.CreateCycle(ctx, tx, cycle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create utility cycle")
	}

	for _, room := range rooms {
		readings, err := s.cycles.LatestPublishedReadings(ctx, tx, room.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meter baseline")
		}
		invoice := &models.Invoice{Category: models.InvoiceUtility, Status: models.InvoiceDraft}
		if err := s.invoices.Create(ctx, tx, invoice); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create utility invoice")
		}
		detail := &models.UtilityInvoice{
			InvoiceID:      invoice.ID,
			CycleID:        cycle.ID,
			RoomID:         room.ID,
			ElectricityOld: readings.Electricity,
			WaterOld:       readings.Water,
		}
		if err := s.cycles.CreateUtilityDetail(ctx, tx, detail); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create utility detail")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit utility cycle")
	}

	s.logger.Info("utility cycle created",
		zap.String("cycle_id", cycle.ID),
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int("invoices", len(rooms)))
	return &dto.CycleBootstrapResult{CycleID: cycle.ID, Month: month, Year: year, Created: true, Invoices: len(rooms)}, nil
}

// PublishCycle prices every detail with complete readings and publishes the
// parent invoices. Details missing readings are skipped and keep their draft
// invoices; the cycle itself flips to PUBLISHED.
func (s *UtilityService) PublishCycle(ctx context.Context, cycleID string) (*dto.PublishCycleResult, error) {
	cycle, err := s.cycles.FindCycleByID(ctx, nil, cycleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "utility cycle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load utility cycle")
	}
	if cycle.Status == models.UtilityCyclePublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "utility cycle is already published")
	}

	details, err := s.cycles.ListCycleDetails(ctx, nil, cycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cycle details")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() { _ = tx.Rollback() }()

	result := &dto.PublishCycleResult{CycleID: cycleID}
	var billedRooms []string
	for _, detail := range details {
		total, ok := s.priceDetail(detail)
		if !ok {
			result.Skipped++
			continue
		}
		if err := s.cycles.UpdateInvoiceTotal(ctx, tx, detail.InvoiceID, total); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish utility invoice")
		}
		billedRooms = append(billedRooms, detail.RoomID)
		result.Published++
	}

	if err := s.cycles.UpdateCycleStatus(ctx, tx, cycleID, models.UtilityCyclePublished); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish utility cycle")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit cycle publish")
	}

	if s.notifier != nil && len(billedRooms) > 0 {
		target := models.NotificationTarget{Scope: models.ScopeRoom, IDs: billedRooms}
		body := fmt.Sprintf("Hóa đơn điện nước tháng %d/%d đã được phát hành.", cycle.Month, cycle.Year)
		if err := s.notifier.Send(ctx, target, "Hóa đơn điện nước", body); err != nil {
			s.logger.Warn("failed to enqueue utility notification", zap.Error(err))
		}
	}

	s.logger.Info("utility cycle published",
		zap.String("cycle_id", cycleID),
		zap.Int("published", result.Published),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// RecordReadings stores the new meter values for one detail row of a draft
// cycle.
func (s *UtilityService) RecordReadings(ctx context.Context, cycleID, detailID string, electricityNew, waterNew int64) error {
	if electricityNew < 0 || waterNew < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "meter readings cannot be negative")
	}
	cycle, err := s.cycles.FindCycleByID(ctx, nil, cycleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "utility cycle not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load utility cycle")
	}
	if cycle.Status == models.UtilityCyclePublished {
		return appErrors.Clone(appErrors.ErrConflict, "utility cycle is already published")
	}
	if err := s.cycles.UpdateReadings(ctx, nil, detailID, electricityNew, waterNew); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record readings")
	}
	return nil
}

// priceDetail computes the invoice total from meter deltas. Details with
// missing or decreasing readings are not billable.
func (s *UtilityService) priceDetail(detail models.UtilityInvoice) (int64, bool) {
	if detail.ElectricityOld == nil || detail.ElectricityNew == nil ||
		detail.WaterOld == nil || detail.WaterNew == nil {
		return 0, false
	}
	electricity := *detail.ElectricityNew - *detail.ElectricityOld
	water := *detail.WaterNew - *detail.WaterOld
	if electricity < 0 || water < 0 {
		return 0, false
	}
	return electricity*s.cfg.ElectricityPrice + water*s.cfg.WaterPrice, true
}

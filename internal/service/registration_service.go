package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/repository"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

const expiredHoldNote = "Tự động từ chối: quá hạn thanh toán giữ chỗ"

type registrationStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, registration *models.Registration) error
	SetInvoiceID(ctx context.Context, exec sqlx.ExtContext, id, invoiceID string) error
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Registration, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus, adminNote *string) error
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	ExpireUnpaidHolds(ctx context.Context, cutoff time.Time, note string) ([]repository.ExpiredHold, error)
}

type roomAvailabilityReader interface {
	GetAvailabilityForUpdate(ctx context.Context, exec sqlx.ExtContext, roomID, semesterID string) (*models.RoomAvailability, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type stayStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, stay *models.StayRecord) error
	ExistsActiveForStudent(ctx context.Context, exec sqlx.ExtContext, studentID, semesterID string) (bool, error)
	CountActiveByRoom(ctx context.Context, exec sqlx.ExtContext, roomID, semesterID string) (int, error)
}

type invoiceWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error
	CreateRoomFeeDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.RoomFeeInvoice) error
}

type windowGate interface {
	ActiveSemester(ctx context.Context) (*models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	EnsureWindowOpen(ctx context.Context, semester *models.Semester, regType models.RegistrationType) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RegistrationConfig tunes hold expiry.
type RegistrationConfig struct {
	HoldDuration time.Duration
}

// RegistrationService implements the transactional submit flow, manager
// decisions, listing and the unpaid-hold reaper.
type RegistrationService struct {
	registrations registrationStore
	rooms         roomAvailabilityReader
	students      studentReader
	stays         stayStore
	invoices      invoiceWriter
	semesters     windowGate
	notifier      NotificationSender
	tx            txProvider
	validator     *validator.Validate
	logger        *zap.Logger
	holdDuration  time.Duration
	now           func() time.Time
}

// NewRegistrationService wires registration dependencies.
func NewRegistrationService(
	registrations registrationStore,
	rooms roomAvailabilityReader,
	students studentReader,
	stays stayStore,
	invoices invoiceWriter,
	semesters windowGate,
	notifier NotificationSender,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RegistrationConfig,
) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = 24 * time.Hour
	}
	return &RegistrationService{
		registrations: registrations,
		rooms:         rooms,
		students:      students,
		stays:         stays,
		invoices:      invoices,
		semesters:     semesters,
		notifier:      notifier,
		tx:            tx,
		validator:     validate,
		logger:        logger,
		holdDuration:  cfg.HoldDuration,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Submit creates a registration, and for NORMAL requests naming a room, issues
// the room-fee invoice in the same transaction. Any failure leaves no rows.
func (s *RegistrationService) Submit(ctx context.Context, req dto.SubmitRegistrationRequest) (*dto.SubmitRegistrationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if req.Type == models.RegistrationTypePriority && (req.PriorityCategory == nil || *req.PriorityCategory == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "priority registrations must name a priority category")
	}

	semester, err := s.semesters.ActiveSemester(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.semesters.EnsureWindowOpen(ctx, semester, req.Type); err != nil {
		return nil, err
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrConstraint, "student account is inactive")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() { _ = tx.Rollback() }()

	alreadyHoused, err := s.stays.ExistsActiveForStudent(ctx, tx, student.ID, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing stay")
	}
	if alreadyHoused {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already occupies a room this semester")
	}

	registration := &models.Registration{
		StudentID:         student.ID,
		SemesterID:        semester.ID,
		Type:              req.Type,
		DesiredRoomID:     req.DesiredRoomID,
		DesiredBuildingID: req.DesiredBuildingID,
		PriorityCategory:  req.PriorityCategory,
		Status:            models.RegistrationPending,
	}

	var availability *models.RoomAvailability
	if req.DesiredRoomID != nil {
		availability, err = s.rooms.GetAvailabilityForUpdate(ctx, tx, *req.DesiredRoomID, semester.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock room")
		}
		if err := checkRoomAdmission(availability, student.Gender); err != nil {
			return nil, err
		}
	}

	if err := s.registrations.Create(ctx, tx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}

	var invoice *models.Invoice
	if req.Type == models.RegistrationTypeNormal && availability != nil {
		invoice = &models.Invoice{
			Category:    models.InvoiceRoomFee,
			TotalAmount: availability.PricePerSemester,
			Status:      models.InvoicePublished,
		}
		if err := s.invoices.Create(ctx, tx, invoice); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
		}
		detail := &models.RoomFeeInvoice{
			InvoiceID:  invoice.ID,
			RoomID:     availability.ID,
			SemesterID: semester.ID,
			Price:      availability.PricePerSemester,
		}
		if err := s.invoices.CreateRoomFeeDetail(ctx, tx, detail); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice detail")
		}
		if err := s.registrations.SetInvoiceID(ctx, tx, registration.ID, invoice.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link invoice")
		}
		registration.InvoiceID = &invoice.ID
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit registration")
	}

	s.logger.Info("registration submitted",
		zap.String("registration_id", registration.ID),
		zap.String("student_id", student.ID),
		zap.String("type", string(req.Type)),
		zap.Bool("invoice_issued", invoice != nil))

	return &dto.SubmitRegistrationResponse{Registration: registration, Invoice: invoice}, nil
}

// Decide applies a manager transition. Terminal registrations reject further
// changes; approving through this path creates the stay record when the
// registration names a room and the student has none yet.
func (s *RegistrationService) Decide(ctx context.Context, id string, req dto.DecideRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() { _ = tx.Rollback() }()

	registration, err := s.registrations.LockByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock registration")
	}
	if registration.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("registration is already %s", registration.Status))
	}

	if req.Status == models.RegistrationApproved {
		if registration.DesiredRoomID == nil {
			return nil, appErrors.Clone(appErrors.ErrConstraint, "cannot approve a registration without a room, run auto assignment instead")
		}
		availability, err := s.rooms.GetAvailabilityForUpdate(ctx, tx, *registration.DesiredRoomID, registration.SemesterID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock room")
		}
		student, err := s.students.FindByID(ctx, registration.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if err := checkRoomAdmission(availability, student.Gender); err != nil {
			return nil, err
		}
		housed, err := s.stays.ExistsActiveForStudent(ctx, tx, registration.StudentID, registration.SemesterID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing stay")
		}
		if !housed {
			if err := s.createStay(ctx, tx, registration, *registration.DesiredRoomID); err != nil {
				return nil, err
			}
		}
	}

	if err := s.registrations.UpdateStatus(ctx, tx, id, req.Status, req.AdminNote); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit decision")
	}

	registration.Status = req.Status
	registration.AdminNote = req.AdminNote

	s.notify(ctx, registration.StudentID, "Cập nhật đăng ký ký túc xá",
		fmt.Sprintf("Đăng ký của bạn đã chuyển sang trạng thái %s", req.Status))

	return registration, nil
}

// List returns registrations for manager screens.
func (s *RegistrationService) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error) {
	registrations, total, err := s.registrations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)
	return registrations, &pagination, nil
}

// FindByID returns one registration.
func (s *RegistrationService) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	registration, err := s.registrations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return registration, nil
}

// ExpireUnpaidHolds rejects room holds whose invoice went unpaid past the hold
// duration and notifies each affected student. Returns the number of expired
// holds.
func (s *RegistrationService) ExpireUnpaidHolds(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.holdDuration)
	expired, err := s.registrations.ExpireUnpaidHolds(ctx, cutoff, expiredHoldNote)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire unpaid holds")
	}
	for _, hold := range expired {
		s.notify(ctx, hold.StudentID, "Đăng ký ký túc xá bị từ chối",
			"Đăng ký giữ phòng của bạn đã bị từ chối do quá hạn thanh toán.")
	}
	if len(expired) > 0 {
		s.logger.Info("expired unpaid holds", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

func (s *RegistrationService) createStay(ctx context.Context, tx *sqlx.Tx, registration *models.Registration, roomID string) error {
	// The stay's date range comes from the registration's own semester, which
	// is not necessarily the active one.
	semester, err := s.semesters.FindByID(ctx, registration.SemesterID)
	if err != nil {
		return err
	}
	stay := &models.StayRecord{
		StudentID:  registration.StudentID,
		RoomID:     roomID,
		SemesterID: registration.SemesterID,
		StartDate:  semester.StartDate,
		EndDate:    semester.EndDate,
		Status:     models.StayActive,
	}
	if err := s.stays.Create(ctx, tx, stay); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create stay record")
	}
	return nil
}

func (s *RegistrationService) notify(ctx context.Context, studentID, title, body string) {
	if s.notifier == nil {
		return
	}
	target := models.NotificationTarget{Scope: models.ScopeIndividual, IDs: []string{studentID}}
	if err := s.notifier.Send(ctx, target, title, body); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("student_id", studentID), zap.Error(err))
	}
}

// checkRoomAdmission applies room admission rules against a locked
// availability snapshot: room must be open, have space, and accept the
// student's gender both by building restriction and current occupants.
func checkRoomAdmission(room *models.RoomAvailability, gender models.Gender) error {
	if room.Status == models.RoomInactive {
		return appErrors.Clone(appErrors.ErrConstraint, "room is not open for registration")
	}
	if room.Status == models.RoomFull || room.Occupancy >= room.MaxCapacity {
		return appErrors.Clone(appErrors.ErrConstraint, "room is already full")
	}
	if !room.GenderRestriction.Accepts(gender) {
		return appErrors.Clone(appErrors.ErrConstraint, fmt.Sprintf("building only accepts %s students", room.GenderRestriction))
	}
	if !room.AcceptsOccupant(gender) {
		return appErrors.Clone(appErrors.ErrConstraint, "room is occupied by students of a different gender")
	}
	return nil
}

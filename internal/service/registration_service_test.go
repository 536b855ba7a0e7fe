package service

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/repository"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

func newTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

type registrationStoreStub struct {
	created       *models.Registration
	linkedInvoice string
	locked        *models.Registration
	statusUpdates []models.RegistrationStatus
	expiredHolds  []repository.ExpiredHold
	cutoffSeen    time.Time
	createErr     error
}

func (s *registrationStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, registration *models.Registration) error {
	if s.createErr != nil {
		return s.createErr
	}
	registration.ID = "reg-1"
	s.created = registration
	return nil
}

func (s *registrationStoreStub) SetInvoiceID(ctx context.Context, exec sqlx.ExtContext, id, invoiceID string) error {
	s.linkedInvoice = invoiceID
	return nil
}

func (s *registrationStoreStub) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if s.locked == nil {
		return nil, errors.New("not found")
	}
	return s.locked, nil
}

func (s *registrationStoreStub) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Registration, error) {
	if s.locked == nil {
		return nil, errors.New("not found")
	}
	return s.locked, nil
}

func (s *registrationStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus, adminNote *string) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *registrationStoreStub) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	return nil, 0, nil
}

func (s *registrationStoreStub) ExpireUnpaidHolds(ctx context.Context, cutoff time.Time, note string) ([]repository.ExpiredHold, error) {
	s.cutoffSeen = cutoff
	return s.expiredHolds, nil
}

type roomReaderStub struct {
	availability *models.RoomAvailability
	err          error
}

func (s *roomReaderStub) GetAvailabilityForUpdate(ctx context.Context, exec sqlx.ExtContext, roomID, semesterID string) (*models.RoomAvailability, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.availability, nil
}

type studentReaderStub struct {
	student *models.Student
}

func (s *studentReaderStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return s.student, nil
}

type stayStoreStub struct {
	created   []models.StayRecord
	housed    bool
	occupancy map[string]int
}

func (s *stayStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, stay *models.StayRecord) error {
	s.created = append(s.created, *stay)
	if s.occupancy == nil {
		s.occupancy = make(map[string]int)
	}
	s.occupancy[stay.RoomID]++
	return nil
}

func (s *stayStoreStub) ExistsActiveForStudent(ctx context.Context, exec sqlx.ExtContext, studentID, semesterID string) (bool, error) {
	return s.housed, nil
}

func (s *stayStoreStub) CountActiveByRoom(ctx context.Context, exec sqlx.ExtContext, roomID, semesterID string) (int, error) {
	return s.occupancy[roomID], nil
}

type invoiceWriterStub struct {
	created   *models.Invoice
	details   []models.RoomFeeInvoice
	createErr error
}

func (s *invoiceWriterStub) Create(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error {
	if s.createErr != nil {
		return s.createErr
	}
	invoice.ID = "inv-1"
	invoice.InvoiceCode = "RF-202601-TEST"
	s.created = invoice
	return nil
}

func (s *invoiceWriterStub) CreateRoomFeeDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.RoomFeeInvoice) error {
	s.details = append(s.details, *detail)
	return nil
}

type windowGateStub struct {
	semester  *models.Semester
	byID      map[string]*models.Semester
	windowErr error
}

func (s *windowGateStub) ActiveSemester(ctx context.Context) (*models.Semester, error) {
	return s.semester, nil
}

func (s *windowGateStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if s.byID != nil {
		if semester, ok := s.byID[id]; ok {
			return semester, nil
		}
	}
	return s.semester, nil
}

func (s *windowGateStub) EnsureWindowOpen(ctx context.Context, semester *models.Semester, regType models.RegistrationType) error {
	return s.windowErr
}

type notifierStub struct {
	sent []models.NotificationTarget
}

func (s *notifierStub) Send(ctx context.Context, target models.NotificationTarget, title, body string) error {
	s.sent = append(s.sent, target)
	return nil
}

func openRoom() *models.RoomAvailability {
	return &models.RoomAvailability{
		ID:                "room-1",
		BuildingID:        "bld-1",
		BuildingName:      "B1",
		Name:              "101",
		MaxCapacity:       4,
		PricePerSemester:  5000000,
		Status:            models.RoomAvailable,
		GenderRestriction: models.RestrictionMixed,
		Occupancy:         1,
		OccupantGenders:   "MALE",
	}
}

func maleStudent() *models.Student {
	return &models.Student{ID: "stu-1", FullName: "An", Gender: models.GenderMale, Active: true}
}

func strPtr(v string) *string { return &v }

func TestRegistrationServiceSubmitIssuesInvoiceForNormalWithRoom(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	regs := &registrationStoreStub{}
	invoices := &invoiceWriterStub{}
	svc := NewRegistrationService(regs, &roomReaderStub{availability: openRoom()},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{}, invoices,
		&windowGateStub{semester: testSemester()}, &notifierStub{}, db, nil, nil, RegistrationConfig{})

	result, err := svc.Submit(context.Background(), dto.SubmitRegistrationRequest{
		StudentID:     "stu-1",
		Type:          models.RegistrationTypeNormal,
		DesiredRoomID: strPtr("room-1"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, models.InvoiceRoomFee, result.Invoice.Category)
	assert.Equal(t, int64(5000000), result.Invoice.TotalAmount)
	assert.Equal(t, models.InvoicePublished, result.Invoice.Status)
	assert.Equal(t, "inv-1", regs.linkedInvoice)
	assert.Equal(t, models.RegistrationPending, result.Registration.Status)
	require.Len(t, invoices.details, 1)
	assert.Equal(t, "room-1", invoices.details[0].RoomID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceSubmitNoInvoiceWithoutRoom(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewRegistrationService(&registrationStoreStub{}, &roomReaderStub{},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{}, &invoiceWriterStub{},
		&windowGateStub{semester: testSemester()}, &notifierStub{}, db, nil, nil, RegistrationConfig{})

	result, err := svc.Submit(context.Background(), dto.SubmitRegistrationRequest{
		StudentID: "stu-1",
		Type:      models.RegistrationTypeNormal,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Invoice)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceSubmitRejectsClosedWindow(t *testing.T) {
	db, _, cleanup := newTxMock(t)
	defer cleanup()

	gate := &windowGateStub{
		semester:  testSemester(),
		windowErr: appErrors.Clone(appErrors.ErrWindowClosed, "NORMAL registration closed at 2026-01-20T00:00:00Z"),
	}
	svc := NewRegistrationService(&registrationStoreStub{}, &roomReaderStub{},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{}, &invoiceWriterStub{},
		gate, &notifierStub{}, db, nil, nil, RegistrationConfig{})

	_, err := svc.Submit(context.Background(), dto.SubmitRegistrationRequest{
		StudentID: "stu-1",
		Type:      models.RegistrationTypeNormal,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWindowClosed.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceSubmitRejectsFullRoom(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	room := openRoom()
	room.Occupancy = room.MaxCapacity
	svc := NewRegistrationService(&registrationStoreStub{}, &roomReaderStub{availability: room},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{}, &invoiceWriterStub{},
		&windowGateStub{semester: testSemester()}, &notifierStub{}, db, nil, nil, RegistrationConfig{})

	_, err := svc.Submit(context.Background(), dto.SubmitRegistrationRequest{
		StudentID:     "stu-1",
		Type:          models.RegistrationTypeNormal,
		DesiredRoomID: strPtr("room-1"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConstraint.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceSubmitRejectsGenderMismatch(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	room := openRoom()
	room.OccupantGenders = "FEMALE"
	svc := NewRegistrationService(&registrationStoreStub{}, &roomReaderStub{availability: room},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{}, &invoiceWriterStub{},
		&windowGateStub{semester: testSemester()}, &notifierStub{}, db, nil, nil, RegistrationConfig{})

	_, err := svc.Submit(context.Background(), dto.SubmitRegistrationRequest{
		StudentID:     "stu-1",
		Type:          models.RegistrationTypeNormal,
		DesiredRoomID: strPtr("room-1"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConstraint.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceSubmitRollsBackWhenInvoiceFails(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	invoices := &invoiceWriterStub{createErr: errors.New("insert failed")}
	svc := NewRegistrationService(&registrationStoreStub{}, &roomReaderStub{availability: openRoom()},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{}, invoices,
		&windowGateStub{semester: testSemester()}, &notifierStub{}, db, nil, nil, RegistrationConfig{})

	_, err := svc.Submit(context.Background(), dto.SubmitRegistrationRequest{
		StudentID:     "stu-1",
		Type:          models.RegistrationTypeNormal,
		DesiredRoomID: strPtr("room-1"),
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceSubmitRejectsHousedStudent(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewRegistrationService(&registrationStoreStub{}, &roomReaderStub{},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{housed: true}, &invoiceWriterStub{},
		&windowGateStub{semester: testSemester()}, &notifierStub{}, db, nil, nil, RegistrationConfig{})

	_, err := svc.Submit(context.Background(), dto.SubmitRegistrationRequest{
		StudentID: "stu-1",
		Type:      models.RegistrationTypeNormal,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceDecideRejectsTerminal(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	regs := &registrationStoreStub{locked: &models.Registration{
		ID:     "reg-1",
		Status: models.RegistrationApproved,
	}}
	svc := NewRegistrationService(regs, &roomReaderStub{},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{}, &invoiceWriterStub{},
		&windowGateStub{semester: testSemester()}, &notifierStub{}, db, nil, nil, RegistrationConfig{})

	_, err := svc.Decide(context.Background(), "reg-1", dto.DecideRegistrationRequest{
		Status: models.RegistrationRejected,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceDecideApproveCreatesStay(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	regs := &registrationStoreStub{locked: &models.Registration{
		ID:            "reg-1",
		StudentID:     "stu-1",
		SemesterID:    "sem-1",
		Status:        models.RegistrationPending,
		DesiredRoomID: strPtr("room-1"),
	}}
	stays := &stayStoreStub{}
	notifier := &notifierStub{}
	svc := NewRegistrationService(regs, &roomReaderStub{availability: openRoom()},
		&studentReaderStub{student: maleStudent()}, stays, &invoiceWriterStub{},
		&windowGateStub{semester: testSemester()}, notifier, db, nil, nil, RegistrationConfig{})

	registration, err := svc.Decide(context.Background(), "reg-1", dto.DecideRegistrationRequest{
		Status: models.RegistrationApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationApproved, registration.Status)
	require.Len(t, stays.created, 1)
	assert.Equal(t, "room-1", stays.created[0].RoomID)
	assert.Equal(t, models.StayActive, stays.created[0].Status)
	require.Len(t, notifier.sent, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceDecideApproveUsesRegistrationSemesterDates(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	regs := &registrationStoreStub{locked: &models.Registration{
		ID:            "reg-1",
		StudentID:     "stu-1",
		SemesterID:    "sem-2",
		Status:        models.RegistrationPending,
		DesiredRoomID: strPtr("room-1"),
	}}
	nextTerm := &models.Semester{
		ID:        "sem-2",
		Name:      "2026.3",
		StartDate: *ts("2026-09-01T00:00:00Z"),
		EndDate:   *ts("2027-01-15T00:00:00Z"),
	}
	stays := &stayStoreStub{}
	svc := NewRegistrationService(regs, &roomReaderStub{availability: openRoom()},
		&studentReaderStub{student: maleStudent()}, stays, &invoiceWriterStub{},
		&windowGateStub{semester: testSemester(), byID: map[string]*models.Semester{"sem-2": nextTerm}},
		&notifierStub{}, db, nil, nil, RegistrationConfig{})

	_, err := svc.Decide(context.Background(), "reg-1", dto.DecideRegistrationRequest{
		Status: models.RegistrationApproved,
	})
	require.NoError(t, err)
	require.Len(t, stays.created, 1)
	assert.Equal(t, "sem-2", stays.created[0].SemesterID)
	assert.Equal(t, nextTerm.StartDate, stays.created[0].StartDate)
	assert.Equal(t, nextTerm.EndDate, stays.created[0].EndDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceExpireUnpaidHoldsUsesHoldDuration(t *testing.T) {
	db, _, cleanup := newTxMock(t)
	defer cleanup()

	regs := &registrationStoreStub{expiredHolds: []repository.ExpiredHold{
		{ID: "reg-1", StudentID: "stu-1"},
		{ID: "reg-2", StudentID: "stu-2"},
	}}
	notifier := &notifierStub{}
	svc := NewRegistrationService(regs, &roomReaderStub{},
		&studentReaderStub{student: maleStudent()}, &stayStoreStub{}, &invoiceWriterStub{},
		&windowGateStub{semester: testSemester()}, notifier, db, nil, nil,
		RegistrationConfig{HoldDuration: 24 * time.Hour})

	now := *ts("2026-01-15T12:00:00Z")
	svc.now = func() time.Time { return now }

	count, err := svc.ExpireUnpaidHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, now.Add(-24*time.Hour), regs.cutoffSeen)
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, models.ScopeIndividual, notifier.sent[0].Scope)
}

// A registration created 25 hours ago falls before the cutoff and is reaped; a
// 23 hour old one survives.
func TestExpiryBoundary(t *testing.T) {
	now := *ts("2026-01-15T12:00:00Z")
	cutoff := now.Add(-24 * time.Hour)

	createdAt25h := now.Add(-25 * time.Hour)
	createdAt23h := now.Add(-23 * time.Hour)

	assert.True(t, createdAt25h.Before(cutoff))
	assert.False(t, createdAt23h.Before(cutoff))
}

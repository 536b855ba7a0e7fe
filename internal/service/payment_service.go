package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
	"github.com/quanghuy-dev/dorm-api/pkg/qr"
)

// Every sweepInterval issues the store is swept of expired tokens.
const sweepInterval = 16

type paymentInvoiceStore interface {
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Invoice, error)
	MarkPaid(ctx context.Context, exec sqlx.ExtContext, id, studentID string, paidAt time.Time) error
}

type paymentRegistrationStore interface {
	LockByInvoiceID(ctx context.Context, exec sqlx.ExtContext, invoiceID string) (*models.Registration, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus, adminNote *string) error
}

// PaymentConfig tunes reference issuance.
type PaymentConfig struct {
	ReferenceTTL time.Duration
}

// PaymentService brokers short-lived payment references and settles invoices.
type PaymentService struct {
	invoices      paymentInvoiceStore
	registrations paymentRegistrationStore
	rooms         roomAvailabilityReader
	students      studentReader
	stays         stayStore
	semesters     semesterReader
	notifier      NotificationSender
	store         referenceStore
	tx            txProvider
	validator     *validator.Validate
	logger        *zap.Logger
	referenceTTL  time.Duration
	issueCount    atomic.Uint64
	now           func() time.Time
}

// NewPaymentService wires payment dependencies. A nil store gets the in-memory
// backend.
func NewPaymentService(
	invoices paymentInvoiceStore,
	registrations paymentRegistrationStore,
	rooms roomAvailabilityReader,
	students studentReader,
	stays stayStore,
	semesters semesterReader,
	notifier NotificationSender,
	store referenceStore,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PaymentConfig,
) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = newMemoryReferenceStore()
	}
	if cfg.ReferenceTTL <= 0 {
		cfg.ReferenceTTL = 5 * time.Minute
	}
	return &PaymentService{
		invoices:      invoices,
		registrations: registrations,
		rooms:         rooms,
		students:      students,
		stays:         stays,
		semesters:     semesters,
		notifier:      notifier,
		store:         store,
		tx:            tx,
		validator:     validate,
		logger:        logger,
		referenceTTL:  cfg.ReferenceTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// IssueReference mints a short-lived payment token for an unpaid invoice and
// renders it as a QR code.
func (s *PaymentService) IssueReference(ctx context.Context, invoiceID, studentID string) (*dto.IssueReferenceResponse, error) {
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if invoice.Status == models.InvoicePaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice is already paid")
	}
	if invoice.Status != models.InvoicePublished {
		return nil, appErrors.Clone(appErrors.ErrConstraint, "invoice is not payable yet")
	}

	now := s.now()
	reference := paymentReference{
		Ref:       newPaymentRef(),
		InvoiceID: invoice.ID,
		StudentID: studentID,
		Amount:    invoice.TotalAmount,
		ExpiresAt: now.Add(s.referenceTTL),
	}
	if err := s.store.Issue(reference); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
	}

	if s.issueCount.Add(1)%sweepInterval == 0 {
		if removed := s.store.Sweep(now); removed > 0 {
			s.logger.Debug("swept expired payment references", zap.Int("removed", removed))
		}
	}

	payload := fmt.Sprintf("DORMPAY|%s|%s|%d", reference.Ref, invoice.InvoiceCode, invoice.TotalAmount)
	code, err := qr.EncodeBase64PNG(payload, 256)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
	}

	return &dto.IssueReferenceResponse{
		PaymentRef: reference.Ref,
		QRCode:     code,
		Payload:    payload,
		Amount:     reference.Amount,
		ExpiresAt:  reference.ExpiresAt,
	}, nil
}

// Confirm redeems a reference exactly once and settles the invoice. For room
// fee invoices the owning registration must still be PENDING; the approval and
// stay record land in the same transaction as the payment.
func (s *PaymentService) Confirm(ctx context.Context, req dto.ConfirmPaymentRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	reference, err := s.store.Redeem(req.PaymentRef, req.InvoiceID, req.StudentID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, errReferenceNotFound):
			return nil, appErrors.Clone(appErrors.ErrPaymentReference, "payment reference not found or already used")
		case errors.Is(err, errReferenceExpired):
			return nil, appErrors.Clone(appErrors.ErrPaymentReference, "payment reference expired")
		case errors.Is(err, errReferenceMismatch):
			return nil, appErrors.Clone(appErrors.ErrPaymentReference, "payment reference does not belong to this invoice and student")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
		}
	}

	invoice, err := s.settle(ctx, reference, req.StudentID)
	if err != nil {
		// The token was consumed but nothing was persisted. Put it back so
		// the student can retry.
		if restoreErr := s.store.Restore(*reference); restoreErr != nil {
			s.logger.Error("failed to restore payment reference",
				zap.String("payment_ref", reference.Ref), zap.Error(restoreErr))
		}
		return nil, err
	}

	s.notifyPaid(ctx, req.StudentID, invoice)
	return invoice, nil
}

func (s *PaymentService) settle(ctx context.Context, reference *paymentReference, studentID string) (*models.Invoice, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() { _ = tx.Rollback() }()

	invoice, err := s.invoices.LockByID(ctx, tx, reference.InvoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock invoice")
	}
	if invoice.Status == models.InvoicePaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice is already paid")
	}

	paidAt := s.now()
	if err := s.invoices.MarkPaid(ctx, tx, invoice.ID, studentID, paidAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invoice paid")
	}

	if invoice.Category == models.InvoiceRoomFee {
		registration, err := s.registrations.LockByInvoiceID(ctx, tx, invoice.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "registration for invoice not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock registration")
		}
		if registration.Status != models.RegistrationPending {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("registration is %s and can no longer be paid for", registration.Status))
		}
		if registration.DesiredRoomID == nil {
			return nil, appErrors.Clone(appErrors.ErrConstraint, "registration has no room to confirm")
		}

		// Holds do not consume capacity, so the room can have filled up since
		// the invoice was issued. Re-check admission under the row lock.
		availability, err := s.rooms.GetAvailabilityForUpdate(ctx, tx, *registration.DesiredRoomID, registration.SemesterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock room")
		}
		student, err := s.students.FindByID(ctx, registration.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if err := checkRoomAdmission(availability, student.Gender); err != nil {
			return nil, err
		}

		note := "Đã thanh toán phí phòng"
		if err := s.registrations.UpdateStatus(ctx, tx, registration.ID, models.RegistrationApproved, &note); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve registration")
		}

		semester, err := s.semesters.FindByID(ctx, registration.SemesterID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
		}
		stay := &models.StayRecord{
			StudentID:  registration.StudentID,
			RoomID:     *registration.DesiredRoomID,
			SemesterID: registration.SemesterID,
			StartDate:  semester.StartDate,
			EndDate:    semester.EndDate,
			Status:     models.StayActive,
		}
		if err := s.stays.Create(ctx, tx, stay); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create stay record")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit payment")
	}

	invoice.Status = models.InvoicePaid
	invoice.PaidAt = &paidAt
	invoice.PaidByStudentID = &studentID
	return invoice, nil
}

// Verify reports whether a reference is still redeemable.
func (s *PaymentService) Verify(ctx context.Context, paymentRef string) (*dto.VerifyReferenceResponse, error) {
	reference, err := s.store.Peek(paymentRef, s.now())
	if err != nil {
		switch {
		case errors.Is(err, errReferenceNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment reference not found")
		case errors.Is(err, errReferenceExpired):
			return nil, appErrors.Clone(appErrors.ErrPaymentReference, "payment reference expired")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
		}
	}
	return &dto.VerifyReferenceResponse{
		Valid:     true,
		Amount:    reference.Amount,
		ExpiresAt: reference.ExpiresAt,
	}, nil
}

func (s *PaymentService) notifyPaid(ctx context.Context, studentID string, invoice *models.Invoice) {
	if s.notifier == nil {
		return
	}
	target := models.NotificationTarget{Scope: models.ScopeIndividual, IDs: []string{studentID}}
	body := fmt.Sprintf("Hóa đơn %s đã được thanh toán thành công.", invoice.InvoiceCode)
	if err := s.notifier.Send(ctx, target, "Thanh toán thành công", body); err != nil {
		s.logger.Warn("failed to enqueue payment notification", zap.String("student_id", studentID), zap.Error(err))
	}
}

func newPaymentRef() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("PAY%d", time.Now().UnixNano())
	}
	return "PAY" + hex.EncodeToString(buf)
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quanghuy-dev/dorm-api/internal/models"
)

const invoiceColumns = `id, invoice_code, category, total_amount, status, paid_at, paid_by_student_id, created_at, updated_at`

// InvoiceRepository handles persistence of invoices and their detail rows.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an invoice row.
func (r *InvoiceRepository) Create(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	if invoice.InvoiceCode == "" {
		invoice.InvoiceCode = generateInvoiceCode(invoice.Category)
	}
	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now

	const query = `INSERT INTO invoices (id, invoice_code, category, total_amount, status, paid_at,
        paid_by_student_id, created_at, updated_at)
        VALUES (:id, :invoice_code, :category, :total_amount, :status, :paid_at,
        :paid_by_student_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// CreateRoomFeeDetail inserts the ROOM_FEE satellite row.
func (r *InvoiceRepository) CreateRoomFeeDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.RoomFeeInvoice) error {
	if detail.ID == "" {
		detail.ID = uuid.NewString()
	}
	const query = `INSERT INTO room_fee_invoices (id, invoice_id, room_id, semester_id, price)
        VALUES (:id, :invoice_id, :room_id, :semester_id, :price)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, detail); err != nil {
		return fmt.Errorf("create room fee detail: %w", err)
	}
	return nil
}

// FindByID returns an invoice by its ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// LockByID locks and returns an invoice row inside a transaction.
func (r *InvoiceRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1 FOR UPDATE`, invoiceColumns)
	var invoice models.Invoice
	if err := sqlx.GetContext(ctx, r.exec(exec), &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// MarkPaid records the payment on an invoice.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, exec sqlx.ExtContext, id, studentID string, paidAt time.Time) error {
	const query = `UPDATE invoices SET status = $2, paid_at = $3, paid_by_student_id = $4, updated_at = NOW() WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, models.InvoicePaid, paidAt, studentID); err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	return nil
}

// FindRoomFeeDetail returns the ROOM_FEE satellite row for an invoice.
func (r *InvoiceRepository) FindRoomFeeDetail(ctx context.Context, exec sqlx.ExtContext, invoiceID string) (*models.RoomFeeInvoice, error) {
	const query = `SELECT id, invoice_id, room_id, semester_id, price FROM room_fee_invoices WHERE invoice_id = $1`
	var detail models.RoomFeeInvoice
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, query, invoiceID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns invoices filtered by the provided criteria.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	base := `FROM invoices i`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("i.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("i.paid_by_student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT i.id, i.invoice_code, i.category, i.total_amount, i.status, i.paid_at,
        i.paid_by_student_id, i.created_at, i.updated_at
        %s ORDER BY i.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

func generateInvoiceCode(category models.InvoiceCategory) string {
	prefix := "INV"
	switch category {
	case models.InvoiceRoomFee:
		prefix = "RF"
	case models.InvoiceUtility:
		prefix = "UT"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("200601"), suffix)
}

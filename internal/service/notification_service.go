package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/pkg/jobs"
)

// NotificationSender fans a message out to an audience. Services depend on this
// interface so delivery can be swapped without touching business flows.
type NotificationSender interface {
	Send(ctx context.Context, target models.NotificationTarget, title, body string) error
}

type notificationStore interface {
	InsertBatch(ctx context.Context, studentIDs []string, title, body string) error
	ResolveTarget(ctx context.Context, target models.NotificationTarget, semesterID string) ([]string, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error)
}

type notificationPayload struct {
	Target models.NotificationTarget
	Title  string
	Body   string
}

// NotificationService is the queue-backed NotificationSender. Send enqueues;
// workers resolve the target and persist one row per student.
type NotificationService struct {
	notifications notificationStore
	semesters     semesterReader
	queue         *jobs.Queue
	logger        *zap.Logger
}

// NewNotificationService wires the sender and builds its delivery queue.
func NewNotificationService(notifications notificationStore, semesters semesterReader, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		notifications: notifications,
		semesters:     semesters,
		logger:        logger,
	}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start begins queue consumption.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Send validates the target and enqueues the fan-out.
func (s *NotificationService) Send(ctx context.Context, target models.NotificationTarget, title, body string) error {
	if err := target.Validate(); err != nil {
		return fmt.Errorf("invalid notification target: %w", err)
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "notification",
		Payload: notificationPayload{Target: target, Title: title, Body: body},
	})
}

// ListForStudent returns a student's most recent notifications.
func (s *NotificationService) ListForStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.notifications.ListByStudent(ctx, studentID, limit)
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.logger.Error("dropping notification job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	semesterID := ""
	if payload.Target.Scope == models.ScopeRoom || payload.Target.Scope == models.ScopeBuilding {
		semester, err := s.semesters.FindActive(ctx)
		if err != nil {
			return fmt.Errorf("resolve active semester for notification: %w", err)
		}
		semesterID = semester.ID
	}

	studentIDs, err := s.notifications.ResolveTarget(ctx, payload.Target, semesterID)
	if err != nil {
		return err
	}
	if len(studentIDs) == 0 {
		return nil
	}
	if err := s.notifications.InsertBatch(ctx, studentIDs, payload.Title, payload.Body); err != nil {
		return err
	}
	s.logger.Debug("notification delivered",
		zap.String("scope", string(payload.Target.Scope)),
		zap.Int("recipients", len(studentIDs)))
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

const autoAssignNote = "Tự động xếp phòng"

type allocationRegistrationStore interface {
	ListPendingUnassigned(ctx context.Context, semesterID string) ([]models.PendingAssignment, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus, adminNote *string) error
}

type allocationRoomStore interface {
	ListAvailability(ctx context.Context, semesterID string) ([]models.RoomAvailability, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RoomStatus) error
}

// roomSnapshot is the allocator's in-memory view of one room, decremented as
// assignments succeed so later candidates see the updated occupancy.
type roomSnapshot struct {
	models.RoomAvailability
	occupants []models.Gender
}

func (r *roomSnapshot) remaining() int {
	return r.MaxCapacity - r.Occupancy
}

func (r *roomSnapshot) accepts(g models.Gender) bool {
	if !r.GenderRestriction.Accepts(g) {
		return false
	}
	for _, occupant := range r.occupants {
		if occupant != g {
			return false
		}
	}
	return true
}

func (r *roomSnapshot) take(g models.Gender) {
	r.Occupancy++
	r.occupants = append(r.occupants, g)
}

// AllocationService runs the batch room matcher over pending registrations.
type AllocationService struct {
	registrations allocationRegistrationStore
	rooms         allocationRoomStore
	stays         stayStore
	semesters     semesterReader
	notifier      NotificationSender
	tx            txProvider
	logger        *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewAllocationService wires allocator dependencies.
func NewAllocationService(
	registrations allocationRegistrationStore,
	rooms allocationRoomStore,
	stays stayStore,
	semesters semesterReader,
	notifier NotificationSender,
	tx txProvider,
	logger *zap.Logger,
) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		registrations: registrations,
		rooms:         rooms,
		stays:         stays,
		semesters:     semesters,
		notifier:      notifier,
		tx:            tx,
		logger:        logger,
		running:       make(map[string]bool),
	}
}

// AutoAssign matches pending registrations to rooms, oldest request first.
// Candidate rooms are tried fullest-first so partially filled rooms close out
// before empty ones open up. Only one run per semester may be in flight.
func (s *AllocationService) AutoAssign(ctx context.Context, semesterID string) (*dto.AssignmentReport, error) {
	semester, err := s.semesters.FindByID(ctx, semesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	if !s.acquire(semester.ID) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an assignment run is already in progress for this semester")
	}
	defer s.release(semester.ID)

	pending, err := s.registrations.ListPendingUnassigned(ctx, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending registrations")
	}
	availability, err := s.rooms.ListAvailability(ctx, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list room availability")
	}

	snapshots := make([]*roomSnapshot, 0, len(availability))
	byID := make(map[string]*roomSnapshot, len(availability))
	for i := range availability {
		snap := &roomSnapshot{RoomAvailability: availability[i], occupants: availability[i].OccupantGenderList()}
		snapshots = append(snapshots, snap)
		byID[snap.ID] = snap
	}

	report := &dto.AssignmentReport{SemesterID: semester.ID, Total: len(pending)}
	for _, candidate := range pending {
		outcome := dto.AssignmentOutcome{
			RegistrationID: candidate.ID,
			StudentID:      candidate.StudentID,
			StudentName:    candidate.StudentName,
		}

		room, reason := s.pickRoom(&candidate, snapshots, byID)
		if room == nil {
			outcome.Reason = reason
			report.Failed++
			report.Details = append(report.Details, outcome)
			continue
		}

		if err := s.commitAssignment(ctx, semester, &candidate, room); err != nil {
			s.logger.Error("assignment commit failed",
				zap.String("registration_id", candidate.ID),
				zap.String("room_id", room.ID),
				zap.Error(err))
			outcome.Reason = "lỗi hệ thống khi ghi nhận xếp phòng"
			report.Failed++
			report.Details = append(report.Details, outcome)
			continue
		}

		room.take(candidate.StudentGender)
		outcome.Assigned = true
		outcome.RoomID = room.ID
		outcome.RoomName = room.Name
		report.Success++
		report.Details = append(report.Details, outcome)

		s.notifyAssigned(ctx, candidate.StudentID, room.Name)
	}

	s.logger.Info("auto assignment finished",
		zap.String("semester_id", semester.ID),
		zap.Int("total", report.Total),
		zap.Int("success", report.Success),
		zap.Int("failed", report.Failed))
	return report, nil
}

// pickRoom resolves the registration's target room. A named room is honoured
// or the registration fails; otherwise the search narrows to the desired
// building first, then widens to every room.
func (s *AllocationService) pickRoom(candidate *models.PendingAssignment, snapshots []*roomSnapshot, byID map[string]*roomSnapshot) (*roomSnapshot, string) {
	if candidate.DesiredRoomID != nil {
		room, ok := byID[*candidate.DesiredRoomID]
		if !ok {
			return nil, "phòng yêu cầu không còn nhận sinh viên"
		}
		if room.remaining() <= 0 {
			return nil, "phòng yêu cầu đã đầy"
		}
		if !room.accepts(candidate.StudentGender) {
			return nil, "phòng yêu cầu không phù hợp giới tính"
		}
		return room, ""
	}

	var pool []*roomSnapshot
	if candidate.DesiredBuildingID != nil {
		for _, room := range snapshots {
			if room.BuildingID == *candidate.DesiredBuildingID {
				pool = append(pool, room)
			}
		}
		if picked := pickFullestFit(pool, candidate.StudentGender); picked != nil {
			return picked, ""
		}
	}
	if picked := pickFullestFit(snapshots, candidate.StudentGender); picked != nil {
		return picked, ""
	}
	return nil, "không còn phòng phù hợp"
}

func pickFullestFit(pool []*roomSnapshot, gender models.Gender) *roomSnapshot {
	candidates := make([]*roomSnapshot, 0, len(pool))
	for _, room := range pool {
		if room.remaining() > 0 && room.accepts(gender) {
			candidates = append(candidates, room)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Occupancy > candidates[j].Occupancy
	})
	return candidates[0]
}

// commitAssignment persists one successful match: registration APPROVED, stay
// record inserted, room flipped to FULL when this fills the last slot.
func (s *AllocationService) commitAssignment(ctx context.Context, semester *models.Semester, candidate *models.PendingAssignment, room *roomSnapshot) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	note := autoAssignNote
	if err := s.registrations.UpdateStatus(ctx, tx, candidate.ID, models.RegistrationApproved, &note); err != nil {
		return err
	}
	stay := &models.StayRecord{
		StudentID:  candidate.StudentID,
		RoomID:     room.ID,
		SemesterID: semester.ID,
		StartDate:  semester.StartDate,
		EndDate:    semester.EndDate,
		Status:     models.StayActive,
	}
	if err := s.stays.Create(ctx, tx, stay); err != nil {
		return err
	}
	occupancy, err := s.stays.CountActiveByRoom(ctx, tx, room.ID, semester.ID)
	if err != nil {
		return err
	}
	if occupancy >= room.MaxCapacity {
		if err := s.rooms.UpdateStatus(ctx, tx, room.ID, models.RoomFull); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *AllocationService) notifyAssigned(ctx context.Context, studentID, roomName string) {
	if s.notifier == nil {
		return
	}
	target := models.NotificationTarget{Scope: models.ScopeIndividual, IDs: []string{studentID}}
	body := fmt.Sprintf("Bạn đã được xếp vào phòng %s.", roomName)
	if err := s.notifier.Send(ctx, target, "Kết quả xếp phòng ký túc xá", body); err != nil {
		s.logger.Warn("failed to enqueue assignment notification", zap.String("student_id", studentID), zap.Error(err))
	}
}

func (s *AllocationService) acquire(semesterID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[semesterID] {
		return false
	}
	s.running[semesterID] = true
	return true
}

func (s *AllocationService) release(semesterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, semesterID)
}

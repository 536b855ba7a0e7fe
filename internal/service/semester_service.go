package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quanghuy-dev/dorm-api/internal/models"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
)

const activeSemesterCacheKey = "semesters:active"

type semesterReader interface {
	FindActive(ctx context.Context) (*models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type semesterCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SemesterService resolves the active semester and its registration windows.
type SemesterService struct {
	semesters semesterReader
	cache     semesterCache
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewSemesterService wires semester dependencies.
func NewSemesterService(semesters semesterReader, cache semesterCache, cacheTTL time.Duration, logger *zap.Logger) *SemesterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &SemesterService{
		semesters: semesters,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ActiveSemester returns the single active semester, serving from cache when
// possible and falling back to the database on any cache failure.
func (s *SemesterService) ActiveSemester(ctx context.Context) (*models.Semester, error) {
	if s.cache != nil {
		var cached models.Semester
		err := s.cache.Get(ctx, activeSemesterCacheKey, &cached)
		if err == nil && cached.ID != "" {
			return &cached, nil
		}
		if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
			// Unreadable entries would shadow the database until they expire.
			if delErr := s.cache.Delete(ctx, activeSemesterCacheKey); delErr != nil {
				s.logger.Warn("failed to evict stale semester cache entry", zap.Error(delErr))
			}
		}
	}

	semester, err := s.semesters.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active semester configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active semester")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, activeSemesterCacheKey, semester, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache active semester", zap.Error(err))
		}
	}
	return semester, nil
}

// FindByID returns a semester by its ID.
func (s *SemesterService) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.semesters.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}

// ResolveWindow classifies the current moment against a registration window of
// the active semester.
func (s *SemesterService) ResolveWindow(ctx context.Context, regType models.RegistrationType) (*models.WindowStatus, error) {
	semester, err := s.ActiveSemester(ctx)
	if err != nil {
		return nil, err
	}
	status := resolveWindow(semester, regType, s.now())
	return &status, nil
}

// EnsureWindowOpen gates a registration submit. Closed states carry the
// concrete window boundaries in the message.
func (s *SemesterService) EnsureWindowOpen(ctx context.Context, semester *models.Semester, regType models.RegistrationType) error {
	status := resolveWindow(semester, regType, s.now())
	switch status.State {
	case models.WindowOpen:
		return nil
	case models.WindowNotConfigured:
		return appErrors.Clone(appErrors.ErrWindowClosed, fmt.Sprintf("%s registration window is not configured for this semester", regType))
	case models.WindowNotYetOpen:
		return appErrors.Clone(appErrors.ErrWindowClosed, fmt.Sprintf("%s registration opens at %s", regType, status.OpensAt.Format(time.RFC3339)))
	default:
		return appErrors.Clone(appErrors.ErrWindowClosed, fmt.Sprintf("%s registration closed at %s", regType, status.ClosesAt.Format(time.RFC3339)))
	}
}

func resolveWindow(semester *models.Semester, regType models.RegistrationType, now time.Time) models.WindowStatus {
	open, close := semester.Window(regType)
	status := models.WindowStatus{Type: regType, OpensAt: open, ClosesAt: close}
	switch {
	case open == nil || close == nil:
		status.State = models.WindowNotConfigured
	case now.Before(*open):
		status.State = models.WindowNotYetOpen
	case now.After(*close):
		status.State = models.WindowClosed
	default:
		status.State = models.WindowOpen
	}
	return status
}

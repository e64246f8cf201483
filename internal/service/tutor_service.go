package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edumarket/tutorhub-api/internal/models"
	appErrors "github.com/edumarket/tutorhub-api/pkg/errors"
)

type tutorRepository interface {
	List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, int, error)
	FindByID(ctx context.Context, id string) (*models.TutorProfile, error)
}

type cachedDirectoryPage struct {
	Profiles []models.TutorProfile `json:"profiles"`
	Total    int                   `json:"total"`
}

// TutorService serves the public tutor directory. Directory pages are
// cached in Redis keyed by the full filter; approvals do not
// invalidate, so new tutors appear after at most the cache TTL.
type TutorService struct {
	repo     tutorRepository
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
}

// WithMetrics attaches cache lookup counters.
func (s *TutorService) WithMetrics(m *MetricsService) *TutorService {
	s.metrics = m
	return s
}

// NewTutorService constructs a TutorService. A nil redis client
// disables caching.
func NewTutorService(repo tutorRepository, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *TutorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &TutorService{repo: repo, redis: redisClient, cacheTTL: cacheTTL, logger: logger}
}

// List returns directory profiles plus pagination data.
func (s *TutorService) List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	key := s.cacheKey(filter, page, size)
	if cached, ok := s.fromCache(ctx, key); ok {
		s.metrics.RecordCacheLookup(true)
		return cached.Profiles, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
	}
	s.metrics.RecordCacheLookup(false)

	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutors")
	}

	s.toCache(ctx, key, cachedDirectoryPage{Profiles: profiles, Total: total})
	return profiles, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one directory profile.
func (s *TutorService) Get(ctx context.Context, id string) (*models.TutorProfile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
	}
	return profile, nil
}

func (s *TutorService) cacheKey(filter models.TutorFilter, page, size int) string {
	minRating := ""
	if filter.MinRating != nil {
		minRating = fmt.Sprintf("%.1f", *filter.MinRating)
	}
	return fmt.Sprintf("tutors:%s:%s:%s:%d:%d", filter.Subject, minRating, filter.Mode, page, size)
}

func (s *TutorService) fromCache(ctx context.Context, key string) (cachedDirectoryPage, bool) {
	var page cachedDirectoryPage
	if s.redis == nil {
		return page, false
	}
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("tutor cache read failed", zap.Error(err))
		}
		return page, false
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		s.logger.Warn("tutor cache entry corrupt", zap.String("key", key), zap.Error(err))
		return page, false
	}
	return page, true
}

func (s *TutorService) toCache(ctx context.Context, key string, page cachedDirectoryPage) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("tutor cache write failed", zap.Error(err))
	}
}

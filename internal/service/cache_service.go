package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eventhub-api/internal/models"
	appErrors "github.com/noah-isme/eventhub-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const (
	eventCacheKeyPrefix = "eventhub:event:"
	listCacheKeyPattern = "eventhub:events:*"
	xpCacheKeyPrefix    = "eventhub:xp:"
)

// EventCacheKey returns the cache key of a single event.
func EventCacheKey(id string) string {
	return eventCacheKeyPrefix + id
}

// XPCacheKey returns the cache key of a user's XP record.
func XPCacheKey(uid string) string {
	return xpCacheKeyPrefix + uid
}

// EventListCacheKey returns the cache key of a filtered listing.
func EventListCacheKey(filter models.EventFilter) string {
	return fmt.Sprintf("eventhub:events:%v:%s:%s:%s:%t:%d",
		filter.Statuses, filter.RequestedBy, filter.OrganizerID, filter.MemberID, filter.Descending, filter.Limit)
}

// CacheService owns the read cache. Entries are populated on fetch and invalidated on mutation.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateEvent drops the event entry, every cached listing and the given users' XP entries.
// Failures are logged only so that a committed mutation is never reported as failed.
func (s *CacheService) InvalidateEvent(ctx context.Context, eventID string, xpUsers ...string) {
	if !s.Enabled() {
		return
	}
	keys := []string{EventCacheKey(eventID)}
	for _, uid := range xpUsers {
		keys = append(keys, XPCacheKey(uid))
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache delete failed", zap.String("event_id", eventID), zap.Error(err))
	}
	_ = s.Invalidate(ctx, listCacheKeyPattern)
}

package store

import (
	"context"

	"github.com/franzego/partnernotify/internal/cache"
	"github.com/franzego/partnernotify/internal/models"
	"go.uber.org/zap"
)

// NotificationStore is the persistence collaborator behind both the public
// selection endpoint and the admin CRUD endpoints.
type NotificationStore interface {
	ListActive(ctx context.Context) ([]models.Notification, error)
	List(ctx context.Context) ([]models.Notification, error)
	Get(ctx context.Context, id string) (*models.Notification, error)
	Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error)
	Update(ctx context.Context, id string, req models.UpdateNotificationRequest) (*models.Notification, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// CachedStore serves ListActive from redis and drops the cached set after
// every write. Cache trouble is logged and falls through to the wrapped store.
type CachedStore struct {
	NotificationStore
	cache *cache.ActiveCache
	log   *zap.Logger
}

func NewCachedStore(next NotificationStore, c *cache.ActiveCache, log *zap.Logger) *CachedStore {
	return &CachedStore{NotificationStore: next, cache: c, log: log}
}

func (s *CachedStore) ListActive(ctx context.Context) ([]models.Notification, error) {
	list, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.log.Warn("active notification cache read failed", zap.Error(err))
	}
	if ok {
		return list, nil
	}

	version, verr := s.cache.Version(ctx)
	list, err = s.NotificationStore.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return list, nil
	}
	if _, err := s.cache.Set(ctx, version, list); err != nil {
		s.log.Warn("active notification cache write failed", zap.Error(err))
	}
	return list, nil
}

func (s *CachedStore) Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error) {
	n, err := s.NotificationStore.Create(ctx, req)
	if err == nil {
		s.invalidate(ctx)
	}
	return n, err
}

func (s *CachedStore) Update(ctx context.Context, id string, req models.UpdateNotificationRequest) (*models.Notification, error) {
	n, err := s.NotificationStore.Update(ctx, id, req)
	if err == nil {
		s.invalidate(ctx)
	}
	return n, err
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	err := s.NotificationStore.Delete(ctx, id)
	if err == nil {
		s.invalidate(ctx)
	}
	return err
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("active notification cache invalidation failed", zap.Error(err))
	}
}

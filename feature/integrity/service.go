package integrity

import (
	"context"
	"errors"

	"timeline-cache/core/cache"
	"timeline-cache/core/storage"
	"timeline-cache/feature/integrity/checks"

	"go.uber.org/zap"
)

// ErrStorageDisabled is returned by storage checks when no object storage is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// Service handles integrity checks.
type Service struct {
	store   *cache.Store
	client  storage.Client
	storage storage.Config
	logger  *zap.Logger
}

// NewService creates a new integrity service. client may be nil.
func NewService(store *cache.Store, client storage.Client, storageCfg storage.Config, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		client:  client,
		storage: storageCfg,
		logger:  logger,
	}
}

// CheckSchema compares the cache tables with the models.
func (s *Service) CheckSchema() (*checks.SchemaReport, error) {
	return checks.CheckSchema(s.store.DB())
}

// CheckConsistency inspects the stored rows.
func (s *Service) CheckConsistency(ctx context.Context) (*checks.ConsistencyReport, error) {
	return checks.CheckConsistency(ctx, s.store)
}

// FixConsistency removes dangling references, and orphan users when users is set.
func (s *Service) FixConsistency(ctx context.Context, users bool) (*checks.FixReport, error) {
	return checks.FixConsistency(ctx, s.store, users, s.logger)
}

// CheckStorage inspects the snapshot bucket.
func (s *Service) CheckStorage(ctx context.Context) (*checks.StorageReport, error) {
	if s.client == nil {
		return nil, ErrStorageDisabled
	}
	return checks.CheckStorage(ctx, s.client, s.storage)
}

// FixStorage repairs what CheckStorage reported.
func (s *Service) FixStorage(ctx context.Context, report *checks.StorageReport) error {
	if s.client == nil {
		return ErrStorageDisabled
	}
	return checks.FixStorage(ctx, s.client, s.storage, s.logger, report)
}

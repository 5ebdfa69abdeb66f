// src/services/portfolio_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/models"
	"github.com/username/ledgerguard/src/store"
)

const (
	ckSnapshot   = "view_snapshot_current"
	ckAllocation = "view_allocation_current"
)

type portfolioServiceImpl struct {
	store     *store.Store
	viewCache *cache.Cache
}

// NewPortfolioService wraps the resolver views with a short-lived cache for
// the "current" (no as-of date) variants, the ones the agent hits repeatedly.
// Historical as-of queries bypass the cache. viewCache may be nil.
func NewPortfolioService(st *store.Store, viewCache *cache.Cache) PortfolioService {
	return &portfolioServiceImpl{store: st, viewCache: viewCache}
}

func (s *portfolioServiceImpl) ResolveValue(ctx context.Context, holdingID int64, asOfDate string) (*models.ResolvedValue, error) {
	if err := validateAsOf(asOfDate); err != nil {
		return nil, err
	}
	return s.store.ResolveHoldingValue(ctx, holdingID, asOfDate)
}

func (s *portfolioServiceImpl) Snapshot(ctx context.Context, asOfDate string) ([]models.SnapshotRow, error) {
	if err := validateAsOf(asOfDate); err != nil {
		return nil, err
	}
	if asOfDate == "" && s.viewCache != nil {
		if cached, found := s.viewCache.Get(ckSnapshot); found {
			return cached.([]models.SnapshotRow), nil
		}
	}
	snapshot, err := s.store.PortfolioSnapshot(ctx, asOfDate)
	if err != nil {
		return nil, err
	}
	if asOfDate == "" && s.viewCache != nil {
		s.viewCache.Set(ckSnapshot, snapshot, cache.DefaultExpiration)
	}
	return snapshot, nil
}

func (s *portfolioServiceImpl) Allocation(ctx context.Context, asOfDate string) ([]models.AllocationRow, error) {
	if err := validateAsOf(asOfDate); err != nil {
		return nil, err
	}
	if asOfDate == "" && s.viewCache != nil {
		if cached, found := s.viewCache.Get(ckAllocation); found {
			return cached.([]models.AllocationRow), nil
		}
	}
	allocation, err := s.store.Allocation(ctx, asOfDate)
	if err != nil {
		return nil, err
	}
	if asOfDate == "" && s.viewCache != nil {
		s.viewCache.Set(ckAllocation, allocation, cache.DefaultExpiration)
	}
	return allocation, nil
}

func (s *portfolioServiceImpl) Staleness(ctx context.Context, asOfDate string, maxAgeDays int) ([]models.StalenessRow, error) {
	if err := validateAsOf(asOfDate); err != nil {
		return nil, err
	}
	if maxAgeDays < 0 {
		return nil, fmt.Errorf("max age days must be non-negative, got %d", maxAgeDays)
	}
	return s.store.Staleness(ctx, asOfDate, maxAgeDays)
}

// RecordValue appends a valuation snapshot and drops the cached current
// views, which it may have changed.
func (s *portfolioServiceImpl) RecordValue(ctx context.Context, value *models.HoldingValue) (int64, error) {
	id, err := s.store.RecordHoldingValue(ctx, value)
	if err != nil {
		return 0, err
	}
	s.InvalidateCache()
	logger.L.Info("Holding value recorded", "holdingID", value.HoldingID, "asOf", value.AsOfDate, "source", value.SourceID)
	return id, nil
}

func (s *portfolioServiceImpl) InvalidateCache() {
	if s.viewCache == nil {
		return
	}
	s.viewCache.Delete(ckSnapshot)
	s.viewCache.Delete(ckAllocation)
}

func validateAsOf(asOfDate string) error {
	if asOfDate == "" {
		return nil
	}
	if _, err := time.Parse(store.DateLayout, asOfDate); err != nil {
		return fmt.Errorf("invalid as-of date %q (expected YYYY-MM-DD)", asOfDate)
	}
	return nil
}

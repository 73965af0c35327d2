package service

import (
	"context"
	"time"

	"escrow-marketplace/internal/core/ports"

	"github.com/rs/zerolog"
)

// CatalogServiceImpl implements ports.CatalogService.
type CatalogServiceImpl struct {
	productRepo ports.ProductRepository
	clock       func() time.Time
	log         zerolog.Logger
}

// NewCatalogService creates a new CatalogServiceImpl.
func NewCatalogService(productRepo ports.ProductRepository, clock func() time.Time, log zerolog.Logger) *CatalogServiceImpl {
	if clock == nil {
		clock = time.Now
	}
	return &CatalogServiceImpl{productRepo: productRepo, clock: clock, log: log}
}

// ExpireSales clears sale prices whose end date has passed. Checkout already
// ignores expired sales, so this only tidies the catalog.
func (s *CatalogServiceImpl) ExpireSales(ctx context.Context) (int64, error) {
	n, err := s.productRepo.ClearExpiredSales(ctx, s.clock().UTC())
	if err != nil {
		return 0, dbErr("clear expired sales", err)
	}
	if n > 0 {
		s.log.Info().Int64("products", n).Msg("expired sales cleared")
	}
	return n, nil
}

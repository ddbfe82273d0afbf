package inventory

import (
	"context"
	"time"

	"github.com/stockroom/stockroom/internal/platform/httpx"
)

const (
	defaultCardLimit = 200
	maxCardLimit     = 1000
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// Service exposes stock card queries.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// StockCard lists movements matching filter.
func (s *Service) StockCard(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	switch filter.RefModule {
	case "", RefCustomerOrder, RefSupplierPurchase:
	default:
		return nil, httpx.Invalidf("ref_module must be one of [%s %s]", RefCustomerOrder, RefSupplierPurchase)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, httpx.Invalidf("to must not be before from")
	}
	if !filter.To.IsZero() {
		// inclusive end date
		filter.To = filter.To.Add(24 * time.Hour)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultCardLimit
	}
	if filter.Limit > maxCardLimit {
		filter.Limit = maxCardLimit
	}
	movements, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []Movement{}
	}
	return movements, nil
}

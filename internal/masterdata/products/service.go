package products

import (
	"context"
	"log/slog"

	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

// Service implements product use cases.
type Service struct {
	repo      Repository
	validator *httpx.Validator
	cache     shared.CacheInvalidator
	logger    *slog.Logger
}

// NewService constructs Service. cache may be nil.
func NewService(repo Repository, cache shared.CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, validator: httpx.NewValidator(), cache: cache, logger: logger}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return Product{}, err
	}
	p := req.toProduct()
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	shared.InvalidateQuietly(ctx, s.logger, s.cache)
	return created, nil
}

// Update patches the product. stock_quantity may be set directly here; order and purchase
// items adjust it through the inventory movements instead.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return Product{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	req.apply(&current)
	if err := validateProduct(current); err != nil {
		return Product{}, err
	}
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Product{}, err
	}
	shared.InvalidateQuietly(ctx, s.logger, s.cache)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	shared.InvalidateQuietly(ctx, s.logger, s.cache)
	return nil
}

package suppliers

import (
	"context"

	"github.com/stockroom/stockroom/internal/platform/httpx"
)

// Service implements supplier use cases.
type Service struct {
	repo      Repository
	validator *httpx.Validator
}

// NewService constructs Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validator: httpx.NewValidator()}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	if err := validateStatus(filters.Status); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Regions(ctx context.Context) ([]string, error) {
	return s.repo.Regions(ctx)
}

func (s *Service) Create(ctx context.Context, req CreateSupplierRequest) (Supplier, error) {
	if err := s.validator.Struct(req); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, req.toSupplier())
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateSupplierRequest) (Supplier, error) {
	if err := s.validator.Struct(req); err != nil {
		return Supplier{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	req.apply(&current)
	return s.repo.Update(ctx, current)
}

// Delete removes a supplier. Suppliers still referenced by products or purchases yield a conflict.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func validateStatus(status string) error {
	switch status {
	case "", StatusActive, StatusInactive:
		return nil
	default:
		return httpx.Invalidf("status must be one of [%s %s]", StatusActive, StatusInactive)
	}
}

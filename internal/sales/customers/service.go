package customers

import (
	"context"

	"github.com/stockroom/stockroom/internal/platform/httpx"
)

type Service struct {
	repo      Repository
	validator *httpx.Validator
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validator: httpx.NewValidator()}
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListFilters{Search: req.Search, Status: req.Status, CustomerType: req.CustomerType})
}

// Get returns the customer with their orders, newest first.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	var customer Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		c, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		orders, err := repo.ListOrders(ctx, id)
		if err != nil {
			return err
		}
		c.Orders = orders
		customer = c
		return nil
	})
	return customer, err
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (Customer, error) {
	if err := s.validator.Struct(req); err != nil {
		return Customer{}, err
	}
	c := Customer{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		CustomerType: req.CustomerType,
		Status:       req.Status,
	}
	if c.CustomerType == "" {
		c.CustomerType = TypeRetail
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (Customer, error) {
	if err := s.validator.Struct(req); err != nil {
		return Customer{}, err
	}
	var updated Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		c, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.Email != nil {
			c.Email = *req.Email
		}
		if req.Phone != nil {
			c.Phone = *req.Phone
		}
		if req.Address != nil {
			c.Address = *req.Address
		}
		if req.CustomerType != nil {
			c.CustomerType = *req.CustomerType
		}
		if req.Status != nil {
			c.Status = *req.Status
		}
		updated, err = repo.Update(ctx, c)
		return err
	})
	return updated, err
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

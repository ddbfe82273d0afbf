package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/stockroom/stockroom/internal/platform/cache"
)

// TopSellingLimit is the number of products returned by TopSelling.
const TopSellingLimit = 10

// Service serves dashboard aggregates through a Redis cache. Concurrent misses for the same
// key share one database round trip.
type Service struct {
	repo      Repository
	cache     *cache.JSONCache
	threshold int
	group     singleflight.Group
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the repository and cache. A nil cache serves every read from repo.
func NewService(repo Repository, jsonCache *cache.JSONCache, threshold int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = 100
	}
	return &Service{repo: repo, cache: jsonCache, threshold: threshold, logger: logger, now: time.Now}
}

// Threshold returns the configured low-stock threshold.
func (s *Service) Threshold() int {
	return s.threshold
}

// Summary returns product counts, inventory value and year-to-date revenue.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	err := s.fetch(ctx, "summary", &out, func(ctx context.Context) (any, error) {
		var summary Summary
		yearStart := time.Date(s.now().UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.repo.CountProducts(ctx)
			summary.TotalProducts = n
			return err
		})
		g.Go(func() error {
			n, err := s.repo.CountBelow(ctx, s.threshold)
			summary.LowStockCount = n
			return err
		})
		g.Go(func() error {
			v, err := s.repo.InventoryValue(ctx)
			summary.TotalInventoryValue = v
			return err
		})
		g.Go(func() error {
			v, err := s.repo.RevenueSince(ctx, yearStart)
			summary.YTDRevenue = v
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return summary, nil
	})
	return out, err
}

// LowStockAlerts lists products whose stock is below threshold, lowest first. A threshold of
// zero uses the configured default.
func (s *Service) LowStockAlerts(ctx context.Context, threshold int) ([]LowStockProduct, error) {
	if threshold <= 0 {
		threshold = s.threshold
	}
	out := []LowStockProduct{}
	err := s.fetch(ctx, "low-stock:"+strconv.Itoa(threshold), &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.LowStock(ctx, threshold)
		if rows == nil {
			rows = []LowStockProduct{}
		}
		return rows, err
	})
	return out, err
}

// TopSelling lists the best selling products by units over non-cancelled orders.
func (s *Service) TopSelling(ctx context.Context) ([]TopProduct, error) {
	out := []TopProduct{}
	err := s.fetch(ctx, "top-selling", &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.TopSelling(ctx, TopSellingLimit)
		if rows == nil {
			rows = []TopProduct{}
		}
		return rows, err
	})
	return out, err
}

// Invalidate drops every cached dashboard entry.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

const loadTimeout = 30 * time.Second

func (s *Service) fetch(ctx context.Context, key string, dst any, load func(context.Context) (any, error)) error {
	err := s.cache.Get(ctx, key, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("dashboard cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	res := s.group.DoChan(key, func() (interface{}, error) {
		// Detached from the caller that started the flight; other callers may still wait on it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(loadCtx, key, value); err != nil {
			s.logger.Warn("dashboard cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return value, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-res:
		if r.Err != nil {
			return r.Err
		}
		return assign(dst, r.Val)
	}
}

func assign(dst any, value any) error {
	switch d := dst.(type) {
	case *Summary:
		*d = value.(Summary)
	case *[]LowStockProduct:
		*d = value.([]LowStockProduct)
	case *[]TopProduct:
		*d = value.([]TopProduct)
	default:
		return errors.New("dashboard: unsupported cache target")
	}
	return nil
}

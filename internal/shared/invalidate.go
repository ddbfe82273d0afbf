package shared

import (
	"context"
	"log/slog"
)

// CacheInvalidator drops cached read models derived from committed writes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidateQuietly calls inv and logs failures; cached reads expire on their own TTL.
func InvalidateQuietly(ctx context.Context, logger *slog.Logger, inv CacheInvalidator) {
	if inv == nil {
		return
	}
	if err := inv.Invalidate(ctx); err != nil && logger != nil {
		logger.Warn("cache invalidation failed", slog.Any("error", err))
	}
}

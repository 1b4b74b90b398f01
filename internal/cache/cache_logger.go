package cache

import (
	"context"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateCourseCache drops the cached copy of a course and every cached listing
// that could contain it.
func InvalidateCourseCache(ctx context.Context, cm *CacheManager, courseID string) {
	if courseID != "" {
		SafeDelete(ctx, cm.Catalog, "course:"+courseID)
	}
	SafeInvalidatePattern(ctx, cm.Catalog, "list:*")
	SafeInvalidatePattern(ctx, cm.Catalog, "faculty:*")
}

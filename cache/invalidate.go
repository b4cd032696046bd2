package cache

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"restosite/models"
)

// Invalidator returns a function that drops the cached pages of the
// restaurant owned by tenantID.
func Invalidator(db *gorm.DB, store Store, log *zap.Logger) func(ctx context.Context, tenantID string) {
	return func(ctx context.Context, tenantID string) {
		if store == nil {
			return
		}
		userID, err := strconv.Atoi(tenantID)
		if err != nil {
			return
		}
		var restaurant models.Restaurant
		if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&restaurant).Error; err != nil {
			// no restaurant yet, nothing cached
			return
		}
		if err := store.Clear(context.WithoutCancel(ctx), restaurant.Subdomain); err != nil {
			log.Warn("clearing page cache failed", zap.String("subdomain", restaurant.Subdomain), zap.Error(err))
		}
	}
}

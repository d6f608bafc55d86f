// internal/workers/discovery/collect-brand-intel/cache.go
package collectbrandintel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resonance-pipeline/internal/models"
)

// cacheKey is (brand id, day): collected profiles stay valid for the day the
// external data was fetched.
func cacheKey(brandID string, now time.Time) string {
	return fmt.Sprintf("intel:profile:%s:%s", brandID, now.UTC().Format("2006-01-02"))
}

func (h *Handler) cachedProfile(ctx context.Context, brandID string) *models.BrandProfile {
	if h.redis == nil {
		return nil
	}

	val, err := h.redis.Get(ctx, cacheKey(brandID, h.now())).Result()
	if err != nil {
		return nil
	}

	var profile models.BrandProfile
	if err := json.Unmarshal([]byte(val), &profile); err != nil {
		return nil
	}
	return &profile
}

// storeProfile caches a collected profile; cache errors are non-fatal.
func (h *Handler) storeProfile(ctx context.Context, profile *models.BrandProfile) {
	if h.redis == nil {
		return
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return
	}

	if err := h.redis.Set(ctx, cacheKey(profile.BrandID, h.now()), data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("profile cache write failed", map[string]interface{}{
			"brandId": profile.BrandID,
			"error":   err.Error(),
		})
	}
}

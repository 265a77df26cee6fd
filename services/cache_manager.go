package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-backend/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	productCachePrefix     = "product:detail:"
	productListCachePrefix = "products:v:"
	cacheVersionKey        = "products:version"

	defaultCacheTTL = 10 * time.Minute
)

// CacheManager handles redis caching for the catalog. The list cache is
// versioned: any catalog write bumps the version, orphaning every list key
// at once instead of enumerating them.
type CacheManager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCacheManager creates a CacheManager.
func NewCacheManager(client *redis.Client, logger *zap.Logger) *CacheManager {
	return &CacheManager{redis: client, ttl: defaultCacheTTL, logger: logger}
}

// GetProduct retrieves a cached product detail.
func (cm *CacheManager) GetProduct(ctx context.Context, productID string) (*models.Product, bool) {
	cached, err := cm.redis.Get(ctx, productCachePrefix+productID).Result()
	if err != nil {
		return nil, false
	}

	var product models.Product
	if err := json.Unmarshal([]byte(cached), &product); err != nil {
		cm.logger.Warn("Failed to unmarshal cached product", zap.Error(err), zap.String("product_id", productID))
		return nil, false
	}
	return &product, true
}

// SetProductAsync caches a single product asynchronously.
func (cm *CacheManager) SetProductAsync(productID string, product *models.Product) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		productJSON, err := json.Marshal(product)
		if err != nil {
			cm.logger.Warn("Failed to marshal product for cache", zap.Error(err), zap.String("product_id", productID))
			return
		}
		if err := cm.redis.Set(bgCtx, productCachePrefix+productID, productJSON, cm.ttl).Err(); err != nil {
			cm.logger.Warn("Failed to cache product", zap.Error(err), zap.String("product_id", productID))
		}
	}()
}

// GetProductList retrieves a cached product list page.
func (cm *CacheManager) GetProductList(ctx context.Context, page, limit int) ([]models.Product, int64, bool) {
	version, err := cm.getCacheVersion(ctx)
	if err != nil || version == 0 {
		return nil, 0, false
	}

	cached, err := cm.redis.Get(ctx, cm.listCacheKey(version, page, limit)).Result()
	if err != nil {
		return nil, 0, false
	}

	var entry cachedProductList
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		cm.logger.Warn("Failed to unmarshal cached product list", zap.Error(err))
		return nil, 0, false
	}
	return entry.Products, entry.Total, true
}

// SetProductListAsync caches a product list page asynchronously.
func (cm *CacheManager) SetProductListAsync(page, limit int, products []models.Product, total int64) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		version, err := cm.getCacheVersion(bgCtx)
		if err != nil || version == 0 {
			return
		}

		jsonBytes, err := json.Marshal(cachedProductList{Products: products, Total: total})
		if err != nil {
			cm.logger.Warn("Failed to marshal product list for cache", zap.Error(err))
			return
		}
		if err := cm.redis.Set(bgCtx, cm.listCacheKey(version, page, limit), jsonBytes, cm.ttl).Err(); err != nil {
			cm.logger.Warn("Failed to cache product list", zap.Error(err))
		}
	}()
}

// InvalidateProduct invalidates the list caches and a specific product
// detail entry.
func (cm *CacheManager) InvalidateProduct(ctx context.Context, productID string) {
	if _, err := cm.redis.Incr(ctx, cacheVersionKey).Result(); err != nil {
		cm.logger.Error("Failed to bump catalog cache version", zap.Error(err), zap.String("product_id", productID))
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := cm.redis.Del(bgCtx, productCachePrefix+productID).Err(); err != nil {
			cm.logger.Warn("Failed to delete product cache", zap.Error(err), zap.String("product_id", productID))
		}
	}()
}

type cachedProductList struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

func (cm *CacheManager) getCacheVersion(ctx context.Context) (int64, error) {
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		ver, err := cm.redis.Get(ctx, cacheVersionKey).Int64()
		if err == nil && ver > 0 {
			return ver, nil
		}

		if err == redis.Nil {
			if err := cm.redis.Set(ctx, cacheVersionKey, 1, 0).Err(); err == nil {
				return 1, nil
			}
		}

		if i < maxRetries-1 {
			time.Sleep(50 * time.Millisecond)
		}
	}
	return 0, fmt.Errorf("failed to get cache version after %d retries", maxRetries)
}

func (cm *CacheManager) listCacheKey(version int64, page, limit int) string {
	return fmt.Sprintf("%s%d:p:%d:l:%d", productListCachePrefix, version, page, limit)
}

package tenant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/rentalshop/internal/cache"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

// CachedResolver fronts a Resolver with the redis cache. Cache failures are
// logged and fall through to the underlying resolver.
type CachedResolver struct {
	next  Resolver
	cache *cache.Cache
	ttl   time.Duration
}

func NewCachedResolver(next Resolver, c *cache.Cache, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, cache: c, ttl: ttl}
}

// cachedTenant keeps the connection descriptor that models.Tenant hides from JSON.
type cachedTenant struct {
	ID             uuid.UUID           `json:"id"`
	MerchantID     uuid.UUID           `json:"merchant_id"`
	Subdomain      string              `json:"subdomain"`
	Name           string              `json:"name"`
	Status         models.TenantStatus `json:"status"`
	DatabaseURL    string              `json:"database_url"`
	SubscriptionID *uuid.UUID          `json:"subscription_id"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func cacheKey(subdomain string) string {
	return "tenant:sub:" + subdomain
}

func (r *CachedResolver) Resolve(ctx context.Context, subdomain string) (*models.Tenant, error) {
	var ct cachedTenant
	err := r.cache.Get(ctx, cacheKey(subdomain), &ct)
	if err == nil {
		t := models.Tenant(ct)
		return &t, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("tenant cache read failed", "subdomain", subdomain, "error", err)
	}

	t, err := r.next.Resolve(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, cacheKey(subdomain), cachedTenant(*t), r.ttl); err != nil {
		slog.Warn("tenant cache write failed", "subdomain", subdomain, "error", err)
	}
	return t, nil
}

// Invalidate drops the cached entry so the next Resolve reads the directory.
func (r *CachedResolver) Invalidate(ctx context.Context, subdomain string) {
	if err := r.cache.Delete(ctx, cacheKey(subdomain)); err != nil {
		slog.Warn("tenant cache invalidate failed", "subdomain", subdomain, "error", err)
	}
}

package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalshop/internal/cache"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

type countingResolver struct {
	tenants map[string]*models.Tenant
	calls   int
}

func (r *countingResolver) Resolve(_ context.Context, sub string) (*models.Tenant, error) {
	r.calls++
	t, ok := r.tenants[sub]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func setupResolver(t *testing.T) (*miniredis.Miniredis, *countingResolver, *CachedResolver) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	subID := uuid.New()
	next := &countingResolver{tenants: map[string]*models.Tenant{
		"best-rentals": {
			ID:             uuid.New(),
			MerchantID:     uuid.New(),
			Subdomain:      "best-rentals",
			Name:           "Best Rentals",
			Status:         models.TenantActive,
			DatabaseURL:    "postgres://db/best_rentals",
			SubscriptionID: &subID,
			CreatedAt:      time.Now().UTC().Truncate(time.Second),
		},
	}}
	return mr, next, NewCachedResolver(next, cache.NewCache(client, "rs:"), time.Minute)
}

func TestCachedResolverCachesHits(t *testing.T) {
	mr, next, r := setupResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "best-rentals")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "best-rentals")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.True(t, mr.Exists("rs:tenant:sub:best-rentals"))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "postgres://db/best_rentals", second.DatabaseURL, "descriptor must survive the cache")
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)
}

func TestCachedResolverDoesNotCacheMisses(t *testing.T) {
	_, next, r := setupResolver(t)

	_, err := r.Resolve(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.Resolve(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, next.calls)
}

func TestCachedResolverInvalidate(t *testing.T) {
	_, next, r := setupResolver(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "best-rentals")
	require.NoError(t, err)
	next.tenants["best-rentals"].Status = models.TenantSuspended

	r.Invalidate(ctx, "best-rentals")
	got, err := r.Resolve(ctx, "best-rentals")
	require.NoError(t, err)
	assert.Equal(t, models.TenantSuspended, got.Status)
	assert.Equal(t, 2, next.calls)
}

func TestCachedResolverFallsThroughWhenRedisDown(t *testing.T) {
	mr, next, r := setupResolver(t)
	mr.Close()

	got, err := r.Resolve(context.Background(), "best-rentals")
	require.NoError(t, err)
	assert.Equal(t, "Best Rentals", got.Name)
	assert.Equal(t, 1, next.calls)
}

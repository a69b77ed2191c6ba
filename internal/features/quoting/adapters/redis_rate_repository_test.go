package adapters

import (
	"context"
	"testing"
	"time"

	"shipping-gateway/internal/core/cache"
	"shipping-gateway/internal/features/quoting/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *RedisRateRepository {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return NewRedisRateRepository(c)
}

func bucketRate(id string) domain.RateRecord {
	return domain.RateRecord{
		ID:                  id,
		CarrierID:           "jne",
		ServiceCode:         "REG",
		OriginProvince:      "DKI Jakarta",
		DestinationProvince: "Jawa Timur",
		IsActive:            true,
		EffectiveFrom:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EffectiveUntil:      time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func provinceRoute() domain.Route {
	return domain.Route{
		Origin:      domain.RouteEndpoint{City: "Jakarta", Province: "DKI Jakarta"},
		Destination: domain.RouteEndpoint{City: "Surabaya", Province: "Jawa Timur"},
	}
}

func TestRedisRateRepository_SaveAndFind(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, bucketRate("rate-1")))
	require.NoError(t, repo.Save(ctx, bucketRate("rate-2")))

	records, err := repo.FindByRoute(ctx, provinceRoute())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rate-1", records[0].ID)
	assert.Equal(t, "rate-2", records[1].ID)
}

func TestRedisRateRepository_SaveUpserts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	original := bucketRate("rate-1")
	require.NoError(t, repo.Save(ctx, original))

	updated := original
	updated.Pricing.BaseCost = 18000
	require.NoError(t, repo.Save(ctx, updated))

	records, err := repo.FindByRoute(ctx, provinceRoute())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 18000.0, records[0].Pricing.BaseCost)
}

func TestRedisRateRepository_NationwideRateServesAnyRoute(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	nationwide := bucketRate("rate-nat")
	nationwide.OriginProvince = ""
	nationwide.DestinationProvince = ""
	require.NoError(t, repo.Save(ctx, nationwide))

	records, err := repo.FindByRoute(ctx, provinceRoute())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rate-nat", records[0].ID)

	records, err = repo.FindByRoute(ctx, domain.Route{
		Origin:      domain.RouteEndpoint{Province: "Bali"},
		Destination: domain.RouteEndpoint{Province: "Papua"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestRedisRateRepository_MergesWildcardBuckets(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	exact := bucketRate("rate-exact")
	require.NoError(t, repo.Save(ctx, exact))

	fromJakarta := bucketRate("rate-from-jakarta")
	fromJakarta.DestinationProvince = ""
	require.NoError(t, repo.Save(ctx, fromJakarta))

	toEastJava := bucketRate("rate-to-east-java")
	toEastJava.OriginProvince = ""
	require.NoError(t, repo.Save(ctx, toEastJava))

	records, err := repo.FindByRoute(ctx, provinceRoute())
	require.NoError(t, err)
	require.Len(t, records, 3)

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	assert.ElementsMatch(t, []string{"rate-exact", "rate-from-jakarta", "rate-to-east-java"}, ids)

	// The origin-only wildcard must not leak into routes from elsewhere.
	records, err = repo.FindByRoute(ctx, domain.Route{
		Origin:      domain.RouteEndpoint{Province: "Bali"},
		Destination: domain.RouteEndpoint{Province: "Jawa Timur"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rate-to-east-java", records[0].ID)
}

func TestRedisRateRepository_FindUnknownRoute(t *testing.T) {
	repo := newTestRepository(t)

	records, err := repo.FindByRoute(context.Background(), domain.Route{
		Origin:      domain.RouteEndpoint{Province: "Bali"},
		Destination: domain.RouteEndpoint{Province: "Papua"},
	})

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedisRateRepository_SaveRequiresID(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.Save(context.Background(), domain.RateRecord{CarrierID: "jne"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}

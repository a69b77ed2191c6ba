package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shipping-gateway/internal/core/cache"
	"shipping-gateway/internal/features/quoting/domain"
)

// RedisRateRepository implements ports.RateRepository on top of the cache
// adaptation. Rates are bucketed per origin/destination province pair; finer
// route applicability is evaluated by the engine via ServesRoute.
type RedisRateRepository struct {
	cache cache.Cache
}

// NewRedisRateRepository creates a new RedisRateRepository.
func NewRedisRateRepository(c cache.Cache) *RedisRateRepository {
	return &RedisRateRepository{
		cache: c,
	}
}

// routeKey builds the bucket key for a route. A blank province buckets under
// the "*" wildcard, so province-less rates apply nationwide.
func routeKey(origin, destination string) string {
	normalize := func(s string) string {
		s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
		if s == "" {
			return "*"
		}
		return s
	}
	return fmt.Sprintf("rates:%s:%s", normalize(origin), normalize(destination))
}

// FindByRoute returns the candidate records for the route, merging the exact
// province bucket with the wildcard fallbacks (origin-only, destination-only,
// nationwide). Missing buckets yield no candidates.
func (r *RedisRateRepository) FindByRoute(ctx context.Context, route domain.Route) ([]domain.RateRecord, error) {
	origin := route.Origin.Province
	destination := route.Destination.Province

	keys := []string{
		routeKey(origin, destination),
		routeKey(origin, ""),
		routeKey("", destination),
		routeKey("", ""),
	}

	var records []domain.RateRecord
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		bucket, err := r.readBucket(ctx, key)
		if err != nil {
			return nil, err
		}
		records = append(records, bucket...)
	}

	return records, nil
}

// readBucket loads one bucket, treating a missing key as empty.
func (r *RedisRateRepository) readBucket(ctx context.Context, key string) ([]domain.RateRecord, error) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rate bucket %s: %w", key, err)
	}

	var records []domain.RateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rate bucket %s: %w", key, err)
	}

	return records, nil
}

// Save upserts a record into its route bucket. Buckets are only written by
// the periodic rate-sync job, so read-modify-write is acceptable here.
func (r *RedisRateRepository) Save(ctx context.Context, record domain.RateRecord) error {
	if record.ID == "" {
		return fmt.Errorf("rate record id is required")
	}

	key := routeKey(record.OriginProvince, record.DestinationProvince)

	existing, err := r.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrKeyNotFound) {
		return fmt.Errorf("failed to read rate bucket %s: %w", key, err)
	}

	var records []domain.RateRecord
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &records); err != nil {
			return fmt.Errorf("failed to unmarshal rate bucket %s: %w", key, err)
		}
	}

	replaced := false
	for i := range records {
		if records[i].ID == record.ID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal rate bucket %s: %w", key, err)
	}

	if err := r.cache.Set(ctx, key, data, 0); err != nil {
		return fmt.Errorf("failed to save rate bucket %s: %w", key, err)
	}
	return nil
}

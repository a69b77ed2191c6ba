package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"shipping-gateway/internal/features/tracking/domain"

	"github.com/redis/go-redis/v9"
)

// appendAttempts caps optimistic-transaction retries before giving up.
const appendAttempts = 3

// RedisEventRepository stores tracking events in Redis: an append-only list
// per tracking number plus a dedupe set of event keys. The dedupe check and
// sequence assignment run inside one WATCH transaction so concurrent
// ingestions of the same tracking number can neither duplicate an event nor
// allocate the same sequence twice.
type RedisEventRepository struct {
	client *redis.Client
}

// NewRedisEventRepository creates a RedisEventRepository.
func NewRedisEventRepository(client *redis.Client) *RedisEventRepository {
	return &RedisEventRepository{client: client}
}

func eventsKey(trackingNumber string) string {
	return "tracking:events:" + trackingNumber
}

func dedupeKey(trackingNumber string) string {
	return "tracking:dedupe:" + trackingNumber
}

// AppendIfNew implements EventRepository.
func (r *RedisEventRepository) AppendIfNew(ctx context.Context, event *domain.TrackingEvent) (bool, error) {
	listKey := eventsKey(event.TrackingNumber)
	setKey := dedupeKey(event.TrackingNumber)
	member := event.DedupeKey()

	stored := false
	txn := func(tx *redis.Tx) error {
		seen, err := tx.SIsMember(ctx, setKey, member).Result()
		if err != nil {
			return fmt.Errorf("failed to check dedupe set: %w", err)
		}
		if seen {
			return nil
		}

		length, err := tx.LLen(ctx, listKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read event count: %w", err)
		}
		event.Sequence = length + 1

		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, setKey, member)
			pipe.RPush(ctx, listKey, data)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}

	for i := 0; i < appendAttempts; i++ {
		err := r.client.Watch(ctx, txn, listKey, setKey)
		if err == redis.TxFailedErr {
			continue
		}
		return stored, err
	}
	return false, fmt.Errorf("append for %s kept conflicting after %d attempts", event.TrackingNumber, appendAttempts)
}

// ListByTrackingNumber implements EventRepository.
func (r *RedisEventRepository) ListByTrackingNumber(ctx context.Context, trackingNumber string) ([]domain.TrackingEvent, error) {
	items, err := r.client.LRange(ctx, eventsKey(trackingNumber), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load events for %s: %w", trackingNumber, err)
	}

	events := make([]domain.TrackingEvent, 0, len(items))
	for _, item := range items {
		var event domain.TrackingEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event for %s: %w", trackingNumber, err)
		}
		events = append(events, event)
	}
	return events, nil
}

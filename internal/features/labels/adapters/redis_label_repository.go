package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shipping-gateway/internal/features/labels/domain"
	"shipping-gateway/internal/features/labels/ports"

	"github.com/redis/go-redis/v9"
)

// casAttempts caps optimistic-transaction retries before giving up.
const casAttempts = 3

// RedisLabelRepository stores shipping labels in Redis. Status updates run
// inside a WATCH transaction so two concurrent transitions on the same label
// cannot both win.
type RedisLabelRepository struct {
	client *redis.Client
}

// NewRedisLabelRepository creates a RedisLabelRepository.
func NewRedisLabelRepository(client *redis.Client) *RedisLabelRepository {
	return &RedisLabelRepository{client: client}
}

func labelKey(id string) string {
	return "labels:" + id
}

func trackingIndexKey(trackingNumber string) string {
	return "labels:tracking:" + trackingNumber
}

// activeSetKey indexes labels whose shipments still move, for polling.
const activeSetKey = "labels:active"

// isPollable reports whether the label's shipment still needs tracking polls.
func isPollable(label *domain.ShippingLabel) bool {
	if label.TrackingNumber == "" || label.ActualDeliveryDate != nil {
		return false
	}
	return label.Status != domain.StatusDraft && label.Status != domain.StatusCancelled
}

// Create implements LabelRepository. The label id must be unused.
func (r *RedisLabelRepository) Create(ctx context.Context, label *domain.ShippingLabel) error {
	if label.ID == "" {
		return errors.New("label id is required")
	}
	data, err := json.Marshal(label)
	if err != nil {
		return fmt.Errorf("failed to marshal label %s: %w", label.ID, err)
	}

	ok, err := r.client.SetNX(ctx, labelKey(label.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store label %s: %w", label.ID, err)
	}
	if !ok {
		return fmt.Errorf("label %s already exists", label.ID)
	}
	return nil
}

// Get implements LabelRepository.
func (r *RedisLabelRepository) Get(ctx context.Context, id string) (*domain.ShippingLabel, error) {
	data, err := r.client.Get(ctx, labelKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ports.ErrLabelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load label %s: %w", id, err)
	}

	var label domain.ShippingLabel
	if err := json.Unmarshal(data, &label); err != nil {
		return nil, fmt.Errorf("failed to unmarshal label %s: %w", id, err)
	}
	return &label, nil
}

// FindByTrackingNumber implements LabelRepository via the tracking index.
func (r *RedisLabelRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.ShippingLabel, error) {
	id, err := r.client.Get(ctx, trackingIndexKey(trackingNumber)).Result()
	if err == redis.Nil {
		return nil, ports.ErrLabelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tracking number %s: %w", trackingNumber, err)
	}
	return r.Get(ctx, id)
}

// ListActive implements LabelRepository via the active set. Entries whose
// label vanished are skipped.
func (r *RedisLabelRepository) ListActive(ctx context.Context) ([]*domain.ShippingLabel, error) {
	ids, err := r.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active labels: %w", err)
	}

	labels := make([]*domain.ShippingLabel, 0, len(ids))
	for _, id := range ids {
		label, err := r.Get(ctx, id)
		if errors.Is(err, ports.ErrLabelNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// Update implements LabelRepository. The write succeeds only if the stored
// status still equals expected at commit time.
func (r *RedisLabelRepository) Update(ctx context.Context, label *domain.ShippingLabel, expected domain.LabelStatus) error {
	key := labelKey(label.ID)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ports.ErrLabelNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load label %s: %w", label.ID, err)
		}

		var stored domain.ShippingLabel
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal label %s: %w", label.ID, err)
		}
		if stored.Status != expected {
			return ports.ErrStatusChanged
		}

		updated, err := json.Marshal(label)
		if err != nil {
			return fmt.Errorf("failed to marshal label %s: %w", label.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			if label.TrackingNumber != "" {
				pipe.Set(ctx, trackingIndexKey(label.TrackingNumber), label.ID, 0)
			}
			if isPollable(label) {
				pipe.SAdd(ctx, activeSetKey, label.ID)
			} else {
				pipe.SRem(ctx, activeSetKey, label.ID)
			}
			return nil
		})
		return err
	}

	for i := 0; i < casAttempts; i++ {
		err := r.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return ports.ErrStatusChanged
}

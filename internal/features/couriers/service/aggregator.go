package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/core/logger"
	"shipping-gateway/internal/features/couriers/domain"
	"shipping-gateway/internal/features/couriers/ports"
	qdomain "shipping-gateway/internal/features/quoting/domain"

	"go.uber.org/zap"
)

// ProviderFailure records one provider that could not contribute quotes.
type ProviderFailure struct {
	Provider  domain.ProviderID `json:"provider"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
}

// AggregateResult carries the merged, ranked quotes plus the providers that
// failed. An empty Quotes slice with failures present means no provider
// could serve the route, not that the route is unserviceable.
type AggregateResult struct {
	Quotes      []qdomain.Quote  `json:"quotes"`
	Recommended *qdomain.Quote   `json:"recommended,omitempty"`
	Failures    []ProviderFailure `json:"failures,omitempty"`
}

// Aggregator fans a quote request out to every registered instant-courier
// provider concurrently and merges the answers. One slow or failing
// provider never blocks the others past its own timeout.
type Aggregator struct {
	registry        *ports.Registry
	policy          qdomain.RankingPolicy
	providerTimeout time.Duration
	globalTimeout   time.Duration
	logger          *zap.Logger
}

// NewAggregator creates an Aggregator over the given provider registry.
func NewAggregator(registry *ports.Registry, policy qdomain.RankingPolicy, cfg config.AggregatorConfig) *Aggregator {
	return &Aggregator{
		registry:        registry,
		policy:          policy,
		providerTimeout: time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
		globalTimeout:   time.Duration(cfg.GlobalTimeoutSeconds) * time.Second,
		logger:          logger.Get(),
	}
}

type providerAnswer struct {
	provider domain.ProviderID
	quotes   []qdomain.Quote
	err      error
}

// Quote collects quotes from all providers, tolerating partial failure. The
// returned error is non-nil only when the request itself is unusable; a
// provider outage shows up in Failures instead.
func (a *Aggregator) Quote(ctx context.Context, req domain.QuoteRequest) (*AggregateResult, error) {
	if req.Pickup.Coordinate == (qdomain.Coordinate{}) || req.Dropoff.Coordinate == (qdomain.Coordinate{}) {
		return nil, errors.New("pickup and dropoff coordinates are required for instant quotes")
	}

	providers, err := a.selectProviders(req.Providers)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, a.globalTimeout)
	defer cancel()

	answers := make(chan providerAnswer, len(providers))
	for _, p := range providers {
		go func(p ports.CourierProvider) {
			pctx, pcancel := context.WithTimeout(gctx, a.providerTimeout)
			defer pcancel()

			quotes, err := p.Quote(pctx, req)
			answers <- providerAnswer{provider: p.ID(), quotes: quotes, err: err}
		}(p)
	}

	result := &AggregateResult{}
	reported := make(map[domain.ProviderID]bool, len(providers))

	for range providers {
		select {
		case answer := <-answers:
			reported[answer.provider] = true
			if answer.err != nil {
				result.Failures = append(result.Failures, a.toFailure(answer.provider, answer.err))
				continue
			}
			result.Quotes = append(result.Quotes, answer.quotes...)
		case <-gctx.Done():
			for _, p := range providers {
				if !reported[p.ID()] {
					result.Failures = append(result.Failures, ProviderFailure{
						Provider:  p.ID(),
						Code:      domain.ErrCodeTimeout,
						Message:   "provider did not answer before the aggregation deadline",
						Retryable: true,
					})
				}
			}
			a.finish(result)
			return result, nil
		}
	}

	a.finish(result)
	return result, nil
}

// selectProviders resolves the requested provider subset, defaulting to every
// registered provider. An unknown provider id fails the request outright
// rather than silently shrinking the fan-out.
func (a *Aggregator) selectProviders(requested []domain.ProviderID) ([]ports.CourierProvider, error) {
	if len(requested) == 0 {
		return a.registry.All(), nil
	}

	providers := make([]ports.CourierProvider, 0, len(requested))
	for _, id := range requested {
		p, ok := a.registry.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown provider requested: %s", id)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// finish ranks the collected quotes and picks the recommendation.
func (a *Aggregator) finish(result *AggregateResult) {
	qdomain.Rank(result.Quotes, a.policy)
	if len(result.Quotes) > 0 {
		result.Recommended = &result.Quotes[0]
	}
	for _, failure := range result.Failures {
		a.logger.Warn("Courier provider failed during quote aggregation",
			zap.String("provider", string(failure.Provider)),
			zap.String("code", failure.Code),
			zap.String("message", failure.Message),
			zap.Bool("retryable", failure.Retryable),
		)
	}
}

func (a *Aggregator) toFailure(provider domain.ProviderID, err error) ProviderFailure {
	var provErr *domain.ProviderError
	if errors.As(err, &provErr) {
		return ProviderFailure{
			Provider:  provider,
			Code:      provErr.Code,
			Message:   provErr.Message,
			Retryable: provErr.Retryable,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ProviderFailure{
			Provider:  provider,
			Code:      domain.ErrCodeTimeout,
			Message:   err.Error(),
			Retryable: true,
		}
	}
	return ProviderFailure{
		Provider: provider,
		Code:     domain.ErrCodeUnavailable,
		Message:  err.Error(),
		Retryable: true,
	}
}

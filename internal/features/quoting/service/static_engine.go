package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shipping-gateway/internal/core/logger"
	"shipping-gateway/internal/features/quoting/domain"
	"shipping-gateway/internal/features/quoting/ports"

	"go.uber.org/zap"
)

// StaticQuoteRequest is the input for quoting against the static rate table.
type StaticQuoteRequest struct {
	// Route is the origin/destination pair.
	Route domain.Route `json:"route"`
	// Package is the package being quoted.
	Package domain.PackageSpec `json:"package"`
	// Carriers optionally restricts the carrier ids considered.
	Carriers []string `json:"carriers,omitempty"`
	// Services optionally restricts the service codes considered.
	Services []string `json:"services,omitempty"`
	// WithInsurance requests insurance coverage for the declared value.
	WithInsurance bool `json:"with_insurance"`
	// WithCOD requests cash-on-delivery collection.
	WithCOD bool `json:"with_cod"`
}

// StaticEngine evaluates rate table records against a package request and
// produces deterministic cost breakdowns.
type StaticEngine struct {
	rates  ports.RateRepository
	policy domain.RankingPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewStaticEngine creates a StaticEngine backed by the given rate repository.
func NewStaticEngine(rates ports.RateRepository, policy domain.RankingPolicy) *StaticEngine {
	return &StaticEngine{
		rates:  rates,
		policy: policy,
		logger: logger.Get(),
		now:    time.Now,
	}
}

// Quote fetches candidate rates for the route, excludes the ones whose
// validity predicate fails (with reasons), prices the rest, and returns them
// sorted by total cost ascending with the record priority as tie-break.
// A route with no candidates yields an empty result, not an error.
func (e *StaticEngine) Quote(ctx context.Context, req StaticQuoteRequest) (*domain.QuoteResult, error) {
	candidates, err := e.rates.FindByRoute(ctx, req.Route)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates for route: %w", err)
	}

	now := e.now()
	result := &domain.QuoteResult{}
	priorities := make(map[string]int)

	for _, rate := range candidates {
		if !matchesFilter(rate.CarrierID, req.Carriers) || !matchesFilter(rate.ServiceCode, req.Services) {
			continue
		}
		if !rate.ServesRoute(req.Route) {
			continue
		}

		if reasons := rate.UsabilityReasons(req.Package, req.WithInsurance, req.WithCOD, now); len(reasons) > 0 {
			e.logger.Debug("Rate excluded from static quote",
				zap.String("rate_id", rate.ID),
				zap.String("carrier", rate.CarrierID),
				zap.Strings("reasons", reasons),
			)
			result.Excluded = append(result.Excluded, domain.ExcludedRate{
				CarrierID:   rate.CarrierID,
				ServiceCode: rate.ServiceCode,
				Reasons:     reasons,
			})
			continue
		}

		quote := e.price(rate, req, now)
		priorities[quote.SourceRef] = rate.Priority
		result.Quotes = append(result.Quotes, quote)
	}

	if len(result.Quotes) == 0 {
		return result, nil
	}

	ranked := domain.Rank(result.Quotes, e.policy)
	recommended := ranked[0]
	result.Recommended = &recommended

	sort.SliceStable(result.Quotes, func(i, j int) bool {
		if result.Quotes[i].Cost.Total != result.Quotes[j].Cost.Total {
			return result.Quotes[i].Cost.Total < result.Quotes[j].Cost.Total
		}
		return priorities[result.Quotes[i].SourceRef] < priorities[result.Quotes[j].SourceRef]
	})

	return result, nil
}

// price computes the cost breakdown and timeframe for a usable rate.
func (e *StaticEngine) price(rate domain.RateRecord, req StaticQuoteRequest, now time.Time) domain.Quote {
	billableKg := rate.BillableKg(req.Package)
	distanceKm := req.Route.DistanceKm()

	weightCost := 0.0
	if billableKg > 1 {
		weightCost = (billableKg - 1) * rate.Pricing.PerKgCost
	}

	insurance := 0.0
	if req.WithInsurance {
		insurance = req.Package.DeclaredValue * rate.Pricing.InsuranceRatePct / 100
	}

	codFee := 0.0
	if req.WithCOD {
		codFee = rate.Pricing.CodFee
	}

	cost := domain.CostBreakdown{
		Base:          rate.Pricing.BaseCost,
		Weight:        weightCost,
		Distance:      distanceKm * rate.Pricing.PerKmCost,
		Insurance:     insurance,
		CodFee:        codFee,
		FuelSurcharge: rate.Pricing.FuelSurcharge,
		AdminFee:      rate.Pricing.AdminFee,
	}
	cost.Total = cost.Base + cost.Weight + cost.Distance + cost.Insurance + cost.CodFee + cost.FuelSurcharge + cost.AdminFee

	deliveryEstimate := estimateDelivery(now, rate)

	return domain.Quote{
		CarrierID:    rate.CarrierID,
		CarrierName:  rate.CarrierName,
		ServiceCode:  rate.ServiceCode,
		ServiceName:  rate.ServiceName,
		Class:        rate.Class,
		Cost:         cost,
		Capabilities: rate.Capabilities,
		DistanceKm:   distanceKm,
		SourceRef:    rate.ID,
		Timeframe: domain.Timeframe{
			MinDays:          rate.EstimatedDaysMin,
			MaxDays:          rate.EstimatedDaysMax,
			EstimatedMinutes: int(deliveryEstimate.Sub(now).Minutes()),
			DeliveryEstimate: deliveryEstimate,
		},
	}
}

// estimateDelivery resolves the delivery timestamp: pickup starts on the next
// operating day, then the estimated day range is added, skipping weekends
// unless the service is an express class.
func estimateDelivery(now time.Time, rate domain.RateRecord) time.Time {
	day := nextOperatingDay(now, rate.OperatingDays)

	remaining := rate.EstimatedDaysMax
	if remaining <= 0 {
		remaining = rate.EstimatedDaysMin
	}

	for remaining > 0 {
		day = day.AddDate(0, 0, 1)
		if !rate.Class.IsExpress() && isWeekend(day) {
			continue
		}
		remaining--
	}
	return day
}

// nextOperatingDay returns the first day on or after t the carrier picks up.
func nextOperatingDay(t time.Time, operatingDays []time.Weekday) time.Time {
	if len(operatingDays) == 0 {
		return t
	}
	operated := make(map[time.Weekday]bool, len(operatingDays))
	for _, d := range operatingDays {
		operated[d] = true
	}
	for i := 0; i < 7; i++ {
		if operated[t.Weekday()] {
			return t
		}
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func matchesFilter(value string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == value {
			return true
		}
	}
	return false
}

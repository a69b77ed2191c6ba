package domain

import "time"

// CostBreakdown itemizes the components of a quoted price.
type CostBreakdown struct {
	// Base is the flat base cost.
	Base float64 `json:"base"`
	// Weight is the weight-dependent cost component.
	Weight float64 `json:"weight"`
	// Distance is the distance-dependent cost component.
	Distance float64 `json:"distance"`
	// Insurance is the insurance fee, 0 when not requested.
	Insurance float64 `json:"insurance"`
	// CodFee is the cash-on-delivery fee, 0 when not requested.
	CodFee float64 `json:"cod_fee"`
	// FuelSurcharge is the flat fuel surcharge.
	FuelSurcharge float64 `json:"fuel_surcharge"`
	// AdminFee is the flat administrative fee.
	AdminFee float64 `json:"admin_fee"`
	// Total is the sum of all components.
	Total float64 `json:"total"`
}

// Timeframe describes when a quoted service is expected to deliver.
type Timeframe struct {
	// MinDays and MaxDays bound the estimate for day-ranged services.
	MinDays int `json:"min_days,omitempty"`
	MaxDays int `json:"max_days,omitempty"`
	// EstimatedMinutes is the total door-to-door estimate in minutes.
	EstimatedMinutes int `json:"estimated_minutes"`
	// DeliveryEstimate is the resolved delivery timestamp.
	DeliveryEstimate time.Time `json:"delivery_estimate"`
}

// Quote is one provider-neutral price/time offer. Quotes are ephemeral:
// generated per request, ranked, and discarded.
type Quote struct {
	// CarrierID identifies the carrier or instant-courier provider.
	CarrierID string `json:"carrier_id"`
	// CarrierName is the carrier display name.
	CarrierName string `json:"carrier_name"`
	// ServiceCode is the carrier's service code.
	ServiceCode string `json:"service_code"`
	// ServiceName is the service display name.
	ServiceName string `json:"service_name"`
	// Class is the speed tier.
	Class RateClass `json:"class"`
	// Cost is the itemized price.
	Cost CostBreakdown `json:"cost"`
	// Timeframe is the delivery estimate.
	Timeframe Timeframe `json:"timeframe"`
	// Capabilities are the service capability flags.
	Capabilities RateCapabilities `json:"capabilities"`
	// DistanceKm is the estimated route distance, 0 when unknown.
	DistanceKm float64 `json:"distance_km,omitempty"`
	// SourceRef is the opaque reference needed to book this quote: a rate
	// record id for static carriers or a provider session token for
	// instant couriers.
	SourceRef string `json:"source_ref"`
	// Score is filled by ranking; higher is better.
	Score float64 `json:"score"`
}

// ExcludedRate records why a candidate rate or provider service was not quoted.
type ExcludedRate struct {
	// CarrierID identifies the excluded carrier.
	CarrierID string `json:"carrier_id"`
	// ServiceCode identifies the excluded service.
	ServiceCode string `json:"service_code"`
	// Reasons lists the constraint violations.
	Reasons []string `json:"reasons"`
}

// QuoteResult is the outcome of a quoting request. An empty Quotes slice with
// a non-empty Excluded slice means candidates existed but none qualified;
// both empty means the route is not covered at all.
type QuoteResult struct {
	// Quotes are the usable offers, ranked best-first.
	Quotes []Quote `json:"quotes"`
	// Recommended is the highest-scoring quote, nil when Quotes is empty.
	Recommended *Quote `json:"recommended,omitempty"`
	// Excluded lists candidates rejected by the validity predicate.
	Excluded []ExcludedRate `json:"excluded,omitempty"`
}

// HasQuotes reports whether at least one usable quote was produced.
func (r QuoteResult) HasQuotes() bool {
	return len(r.Quotes) > 0
}

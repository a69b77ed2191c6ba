package domain

import (
	"math"
	"strings"
	"time"
)

// RateClass categorizes the speed tier of a service.
type RateClass string

const (
	RateClassStandard RateClass = "STANDARD"
	RateClassExpress  RateClass = "EXPRESS"
	RateClassEconomy  RateClass = "ECONOMY"
	RateClassPremium  RateClass = "PREMIUM"
	RateClassSameDay  RateClass = "SAME_DAY"
	RateClassNextDay  RateClass = "NEXT_DAY"
	RateClassInstant  RateClass = "INSTANT"
)

// IsExpress reports whether the class is an expedited tier whose delivery
// estimate does not skip weekends.
func (c RateClass) IsExpress() bool {
	switch c {
	case RateClassExpress, RateClassPremium, RateClassSameDay, RateClassNextDay, RateClassInstant:
		return true
	}
	return false
}

// PricingCurve holds the cost components of a static rate.
type PricingCurve struct {
	// BaseCost is the flat cost covering the first kilogram.
	BaseCost float64 `json:"base_cost"`
	// PerKgCost is charged for every chargeable kilogram beyond the first.
	PerKgCost float64 `json:"per_kg_cost"`
	// PerKmCost is charged per estimated route kilometer.
	PerKmCost float64 `json:"per_km_cost"`
	// FuelSurcharge is a flat fuel surcharge.
	FuelSurcharge float64 `json:"fuel_surcharge"`
	// InsuranceRatePct is the insurance fee as a percentage of declared value.
	InsuranceRatePct float64 `json:"insurance_rate_pct"`
	// CodFee is the flat cash-on-delivery handling fee.
	CodFee float64 `json:"cod_fee"`
	// AdminFee is a flat administrative fee.
	AdminFee float64 `json:"admin_fee"`
}

// RateCapabilities holds the service's capability flags.
type RateCapabilities struct {
	CodAvailable       bool `json:"cod_available"`
	InsuranceAvailable bool `json:"insurance_available"`
	InsuranceRequired  bool `json:"insurance_required"`
	RequiresSignature  bool `json:"requires_signature"`
	AllowsFragile      bool `json:"allows_fragile"`
	AllowsHazardous    bool `json:"allows_hazardous"`
}

// RateRecord is one static per-route, per-carrier pricing entry. Records are
// written by the external rate-sync job and are read-only to the quote engine.
type RateRecord struct {
	// ID is the unique rate identifier, used as the quote's SourceRef.
	ID string `json:"id"`
	// CarrierID identifies the carrier (e.g., "jne", "sicepat").
	CarrierID string `json:"carrier_id"`
	// CarrierName is the carrier display name.
	CarrierName string `json:"carrier_name"`
	// ServiceCode is the carrier's service code (e.g., "REG", "YES").
	ServiceCode string `json:"service_code"`
	// ServiceName is the service display name.
	ServiceName string `json:"service_name"`
	// Class is the speed tier of the service.
	Class RateClass `json:"class"`
	// OriginProvince and DestinationProvince key the rate's route bucket.
	OriginProvince      string `json:"origin_province"`
	DestinationProvince string `json:"destination_province"`
	// OriginCities lists applicable origin cities (empty means any).
	OriginCities []string `json:"origin_cities,omitempty"`
	// DestinationCities lists applicable destination cities (empty means any).
	DestinationCities []string `json:"destination_cities,omitempty"`
	// DestinationPostalPrefixes lists applicable destination postal-code prefixes.
	DestinationPostalPrefixes []string `json:"destination_postal_prefixes,omitempty"`
	// MinWeightGrams is the minimum package weight the service accepts.
	MinWeightGrams int `json:"min_weight_grams"`
	// MaxWeightGrams is the maximum package weight the service accepts.
	MaxWeightGrams int `json:"max_weight_grams"`
	// MaxLengthCm, MaxWidthCm, MaxHeightCm are dimension ceilings (0 = no limit).
	MaxLengthCm float64 `json:"max_length_cm"`
	MaxWidthCm  float64 `json:"max_width_cm"`
	MaxHeightCm float64 `json:"max_height_cm"`
	// VolumetricDivisor converts dimensions to billable kilograms.
	VolumetricDivisor float64 `json:"volumetric_divisor"`
	// Pricing is the cost curve.
	Pricing PricingCurve `json:"pricing"`
	// Capabilities are the service capability flags.
	Capabilities RateCapabilities `json:"capabilities"`
	// EstimatedDaysMin and EstimatedDaysMax bound the delivery estimate.
	EstimatedDaysMin int `json:"estimated_days_min"`
	EstimatedDaysMax int `json:"estimated_days_max"`
	// Priority breaks cost ties when sorting quotes (lower wins).
	Priority int `json:"priority"`
	// IsActive toggles the record without deleting it.
	IsActive bool `json:"is_active"`
	// EffectiveFrom and EffectiveUntil bound the record's active window.
	EffectiveFrom  time.Time `json:"effective_from"`
	EffectiveUntil time.Time `json:"effective_until"`
	// OperatingDays lists the weekdays the carrier picks up (empty = every day).
	OperatingDays []time.Weekday `json:"operating_days,omitempty"`
}

// Exclusion reasons reported when a candidate rate cannot serve the request.
const (
	ReasonInactive            = "rate not active"
	ReasonOutsideActiveWindow = "outside active window"
	ReasonBelowMinWeight      = "below minimum weight"
	ReasonAboveMaxWeight      = "exceeds maximum weight"
	ReasonExceedsDimensions   = "exceeds dimension limits"
	ReasonFragileNotAllowed   = "fragile handling not available"
	ReasonHazardousNotAllowed = "hazardous contents not accepted"
	ReasonInsuranceNotOffered = "insurance not available"
	ReasonInsuranceRequired   = "insurance required for this service"
	ReasonCodNotAvailable     = "cash on delivery not available"
)

// UsabilityReasons evaluates the validity predicate for a package against this
// rate at the given time. An empty slice means the rate is usable.
func (r RateRecord) UsabilityReasons(pkg PackageSpec, withInsurance, withCOD bool, now time.Time) []string {
	var reasons []string

	if !r.IsActive {
		reasons = append(reasons, ReasonInactive)
	}
	if now.Before(r.EffectiveFrom) || now.After(r.EffectiveUntil) {
		reasons = append(reasons, ReasonOutsideActiveWindow)
	}
	if r.MinWeightGrams > 0 && pkg.WeightGrams < r.MinWeightGrams {
		reasons = append(reasons, ReasonBelowMinWeight)
	}
	if r.MaxWeightGrams > 0 && pkg.WeightGrams > r.MaxWeightGrams {
		reasons = append(reasons, ReasonAboveMaxWeight)
	}
	if exceeds(pkg.LengthCm, r.MaxLengthCm) || exceeds(pkg.WidthCm, r.MaxWidthCm) || exceeds(pkg.HeightCm, r.MaxHeightCm) {
		reasons = append(reasons, ReasonExceedsDimensions)
	}
	if pkg.Fragile && !r.Capabilities.AllowsFragile {
		reasons = append(reasons, ReasonFragileNotAllowed)
	}
	if pkg.Hazardous && !r.Capabilities.AllowsHazardous {
		reasons = append(reasons, ReasonHazardousNotAllowed)
	}
	if withInsurance && !r.Capabilities.InsuranceAvailable {
		reasons = append(reasons, ReasonInsuranceNotOffered)
	}
	if !withInsurance && r.Capabilities.InsuranceRequired {
		reasons = append(reasons, ReasonInsuranceRequired)
	}
	if withCOD && !r.Capabilities.CodAvailable {
		reasons = append(reasons, ReasonCodNotAvailable)
	}

	return reasons
}

func exceeds(value, ceiling float64) bool {
	return ceiling > 0 && value > ceiling
}

// ServesRoute reports whether the rate applies to the given route, matching
// by destination postal prefix first, then by city lists.
func (r RateRecord) ServesRoute(route Route) bool {
	if r.OriginProvince != "" && !strings.EqualFold(r.OriginProvince, route.Origin.Province) {
		return false
	}
	if r.DestinationProvince != "" && !strings.EqualFold(r.DestinationProvince, route.Destination.Province) {
		return false
	}
	if len(r.DestinationPostalPrefixes) > 0 {
		matched := false
		for _, prefix := range r.DestinationPostalPrefixes {
			if strings.HasPrefix(route.Destination.PostalCode, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(r.OriginCities) > 0 && !containsFold(r.OriginCities, route.Origin.City) {
		return false
	}
	if len(r.DestinationCities) > 0 && !containsFold(r.DestinationCities, route.Destination.City) {
		return false
	}
	return true
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

// BillableKg returns the chargeable weight for this rate, rounded up to the
// next whole kilogram as carriers bill it.
func (r RateRecord) BillableKg(pkg PackageSpec) float64 {
	divisor := r.VolumetricDivisor
	if divisor <= 0 {
		divisor = 6000
	}
	return math.Ceil(pkg.ChargeableWeightKg(divisor))
}

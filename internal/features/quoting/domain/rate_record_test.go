package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeRate() RateRecord {
	return RateRecord{
		ID:             "rate-1",
		CarrierID:      "jne",
		ServiceCode:    "REG",
		Class:          RateClassStandard,
		MinWeightGrams: 100,
		MaxWeightGrams: 30000,
		MaxLengthCm:    100,
		MaxWidthCm:     100,
		MaxHeightCm:    100,
		Capabilities: RateCapabilities{
			CodAvailable:       true,
			InsuranceAvailable: true,
			AllowsFragile:      true,
		},
		IsActive:       true,
		EffectiveFrom:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EffectiveUntil: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRateRecord_UsabilityReasons(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	pkg := PackageSpec{WeightGrams: 2000, LengthCm: 30, WidthCm: 20, HeightCm: 10, Content: "books"}

	tests := []struct {
		name          string
		mutate        func(*RateRecord)
		pkg           PackageSpec
		withInsurance bool
		withCOD       bool
		want          []string
	}{
		{
			name: "usable rate has no reasons",
			pkg:  pkg,
		},
		{
			name:   "inactive",
			mutate: func(r *RateRecord) { r.IsActive = false },
			pkg:    pkg,
			want:   []string{ReasonInactive},
		},
		{
			name:   "expired window",
			mutate: func(r *RateRecord) { r.EffectiveUntil = now.AddDate(0, -1, 0) },
			pkg:    pkg,
			want:   []string{ReasonOutsideActiveWindow},
		},
		{
			name: "too heavy",
			pkg:  PackageSpec{WeightGrams: 40000, LengthCm: 10, WidthCm: 10, HeightCm: 10},
			want: []string{ReasonAboveMaxWeight},
		},
		{
			name: "too light",
			pkg:  PackageSpec{WeightGrams: 50, LengthCm: 10, WidthCm: 10, HeightCm: 10},
			want: []string{ReasonBelowMinWeight},
		},
		{
			name: "oversized",
			pkg:  PackageSpec{WeightGrams: 2000, LengthCm: 150, WidthCm: 20, HeightCm: 10},
			want: []string{ReasonExceedsDimensions},
		},
		{
			name:   "insurance requested but not offered",
			mutate: func(r *RateRecord) { r.Capabilities.InsuranceAvailable = false },
			pkg:    pkg,
			withInsurance: true,
			want:          []string{ReasonInsuranceNotOffered},
		},
		{
			name:   "insurance required but not requested",
			mutate: func(r *RateRecord) { r.Capabilities.InsuranceRequired = true },
			pkg:    pkg,
			want:   []string{ReasonInsuranceRequired},
		},
		{
			name:    "cod requested but not available",
			mutate:  func(r *RateRecord) { r.Capabilities.CodAvailable = false },
			pkg:     pkg,
			withCOD: true,
			want:    []string{ReasonCodNotAvailable},
		},
		{
			name: "hazardous not accepted",
			pkg:  PackageSpec{WeightGrams: 2000, LengthCm: 10, WidthCm: 10, HeightCm: 10, Hazardous: true},
			want: []string{ReasonHazardousNotAllowed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := activeRate()
			if tt.mutate != nil {
				tt.mutate(&rate)
			}
			got := rate.UsabilityReasons(tt.pkg, tt.withInsurance, tt.withCOD, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateRecord_ServesRoute(t *testing.T) {
	rate := activeRate()
	rate.OriginCities = []string{"Jakarta"}
	rate.DestinationCities = []string{"Surabaya", "Malang"}
	rate.DestinationPostalPrefixes = []string{"60", "65"}

	route := Route{
		Origin:      RouteEndpoint{City: "jakarta", PostalCode: "10110"},
		Destination: RouteEndpoint{City: "SURABAYA", PostalCode: "60241"},
	}
	assert.True(t, rate.ServesRoute(route))

	route.Destination.PostalCode = "40123"
	assert.False(t, rate.ServesRoute(route))

	route.Destination.PostalCode = "60241"
	route.Origin.City = "Bandung"
	assert.False(t, rate.ServesRoute(route))
}

func TestRateRecord_BillableKg(t *testing.T) {
	rate := activeRate()
	rate.VolumetricDivisor = 6000

	// 2kg actual vs 1kg volumetric: billed at 2kg.
	pkg := PackageSpec{WeightGrams: 2000, LengthCm: 30, WidthCm: 20, HeightCm: 10}
	assert.Equal(t, 2.0, rate.BillableKg(pkg))

	// 2.3kg rounds up to 3.
	pkg.WeightGrams = 2300
	assert.Equal(t, 3.0, rate.BillableKg(pkg))

	// Missing divisor falls back to 6000.
	rate.VolumetricDivisor = 0
	bulky := PackageSpec{WeightGrams: 500, LengthCm: 60, WidthCm: 50, HeightCm: 40}
	assert.Equal(t, 20.0, rate.BillableKg(bulky))
}

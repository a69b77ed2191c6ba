package domain

import "math"

// PackageSpec describes the physical package being shipped.
// It is immutable once a quote or label references it.
type PackageSpec struct {
	// WeightGrams is the actual scale weight in grams.
	WeightGrams int `json:"weight_grams"`
	// LengthCm is the package length in centimeters.
	LengthCm float64 `json:"length_cm"`
	// WidthCm is the package width in centimeters.
	WidthCm float64 `json:"width_cm"`
	// HeightCm is the package height in centimeters.
	HeightCm float64 `json:"height_cm"`
	// DeclaredValue is the declared content value, used for insurance fees.
	DeclaredValue float64 `json:"declared_value"`
	// Content is a free-text description of the package contents.
	Content string `json:"content"`
	// Pieces is the number of physical pieces in the shipment.
	Pieces int `json:"pieces"`
	// Fragile marks contents needing fragile handling.
	Fragile bool `json:"fragile"`
	// Hazardous marks dangerous-goods contents.
	Hazardous bool `json:"hazardous"`
}

// WeightKg returns the actual weight in kilograms.
func (p PackageSpec) WeightKg() float64 {
	return float64(p.WeightGrams) / 1000.0
}

// VolumetricWeightKg returns the dimensional weight in kilograms for the
// given carrier divisor (e.g., 6000 or 5000 for cm-based divisors).
func (p PackageSpec) VolumetricWeightKg(divisor float64) float64 {
	if divisor <= 0 {
		return 0
	}
	return (p.LengthCm * p.WidthCm * p.HeightCm) / divisor
}

// ChargeableWeightKg returns the billable weight: the greater of the actual
// and the volumetric weight.
func (p PackageSpec) ChargeableWeightKg(divisor float64) float64 {
	return math.Max(p.WeightKg(), p.VolumetricWeightKg(divisor))
}

// Coordinate is a geographic point.
type Coordinate struct {
	// Lat is the latitude in decimal degrees.
	Lat float64 `json:"lat"`
	// Lng is the longitude in decimal degrees.
	Lng float64 `json:"lng"`
}

// RouteEndpoint identifies one end of a shipping route.
type RouteEndpoint struct {
	// PostalCode is the postal code of the endpoint.
	PostalCode string `json:"postal_code"`
	// City is the city name.
	City string `json:"city"`
	// Province is the province or state name.
	Province string `json:"province"`
	// Coordinate is the optional geolocation of the endpoint.
	Coordinate *Coordinate `json:"coordinate,omitempty"`
}

// Route is the origin/destination pair quotes and rates are keyed on.
type Route struct {
	// Origin is the pickup endpoint.
	Origin RouteEndpoint `json:"origin"`
	// Destination is the delivery endpoint.
	Destination RouteEndpoint `json:"destination"`
}

// earthRadiusKm is the mean Earth radius used for distance estimation.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between origin and destination,
// or 0 when either endpoint has no coordinate.
func (r Route) DistanceKm() float64 {
	if r.Origin.Coordinate == nil || r.Destination.Coordinate == nil {
		return 0
	}
	return haversineKm(*r.Origin.Coordinate, *r.Destination.Coordinate)
}

// haversineKm computes the great-circle distance between two coordinates.
func haversineKm(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

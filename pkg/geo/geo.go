// Package geo provides the bounding-box prefilter and haversine refinement
// used by nearby-salon search. The box over-approximates the radius; the
// caller filters and orders the candidates by great-circle distance.
package geo

import "math"

const earthRadiusKm = 6371.0

type Point struct {
	Latitude  float64
	Longitude float64
}

type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoxAround returns the smallest lat/lng-aligned box containing the circle
// of radiusKm around center. Longitude span widens with latitude; near the
// poles it degenerates to the full circle, which is correct if wasteful.
// Edges crossing the antimeridian wrap, so MinLng > MaxLng for such boxes.
func BoxAround(center Point, radiusKm float64) BoundingBox {
	latDelta := (radiusKm / earthRadiusKm) * (180 / math.Pi)

	lngDelta := 180.0
	if cos := math.Cos(center.Latitude * math.Pi / 180); cos > 1e-9 {
		lngDelta = latDelta / cos
	}

	minLng, maxLng := -180.0, 180.0
	if lngDelta < 180 {
		minLng = wrapLng(center.Longitude - lngDelta)
		maxLng = wrapLng(center.Longitude + lngDelta)
	}

	return BoundingBox{
		MinLat: math.Max(center.Latitude-latDelta, -90),
		MaxLat: math.Min(center.Latitude+latDelta, 90),
		MinLng: minLng,
		MaxLng: maxLng,
	}
}

func wrapLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

func (b BoundingBox) Contains(p Point) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	if b.MinLng > b.MaxLng {
		// Wrapped box: the longitude range passes through the antimeridian.
		return p.Longitude >= b.MinLng || p.Longitude <= b.MaxLng
	}
	return p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Package geo filters record collections by great-circle distance.
// It runs before the general query engine so where/orderBy/limit still apply
// to the geofiltered subset
package geo

import (
	"math"

	"backplane/internal/core/record"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula
const EarthRadiusKm = 6371.0

// Default coordinate field names on location-bearing records
const (
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

// HaversineKm returns the great-circle distance between two points in km
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Within returns the records located within radiusKm of (lat, lon).
// Records without numeric latitude and longitude are excluded, not an error
func Within(recs []record.Record, lat, lon, radiusKm float64) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, r := range recs {
		rlat, ok := coord(r, FieldLatitude)
		if !ok {
			continue
		}
		rlon, ok := coord(r, FieldLongitude)
		if !ok {
			continue
		}
		if HaversineKm(lat, lon, rlat, rlon) <= radiusKm {
			out = append(out, r)
		}
	}
	return out
}

func coord(r record.Record, field string) (float64, bool) {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Package geo holds the pure spherical-geometry primitives used by the
// tracking core. Everything here is stateless.
package geo

import "math"

// Mean Earth radius. Haversine on a sphere is within ~0.5% of the true
// ellipsoidal distance, which is fine at vehicle-tracking scales.
const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance in meters between two
// lat/lng points given in degrees.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Bearing returns the initial great-circle bearing in degrees [0,360)
// from point 1 toward point 2.
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	dLng := toRad(lng2 - lng1)
	y := math.Sin(dLng) * math.Cos(toRad(lat2))
	x := math.Cos(toRad(lat1))*math.Sin(toRad(lat2)) -
		math.Sin(toRad(lat1))*math.Cos(toRad(lat2))*math.Cos(dLng)
	deg := toDeg(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// SpeedKmhBetween derives speed in km/h from two points and the elapsed
// seconds between them. Zero elapsed time yields zero speed.
func SpeedKmhBetween(lat1, lng1, lat2, lng2, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return Haversine(lat1, lng1, lat2, lng2) / elapsedSeconds * 3.6
}

// InCircle reports whether the point is within radiusMeters of the center.
func InCircle(lat, lng, centerLat, centerLng, radiusMeters float64) bool {
	return Haversine(lat, lng, centerLat, centerLng) <= radiusMeters
}

// InPolygon runs a ray-casting parity test against the vertex ring. The
// ring is treated as implicitly closed: the last vertex connects back to
// the first. Vertices are (lat, lng) pairs in degrees.
func InPolygon(lat, lng float64, latitudes, longitudes []float64) bool {
	n := len(latitudes)
	if n < 3 || len(longitudes) != n {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		yi, xi := latitudes[i], longitudes[i]
		yj, xj := latitudes[j], longitudes[j]
		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

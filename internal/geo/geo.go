// Package geo provides pure great-circle math over (lat, lon) pairs in
// degrees. All functions are deterministic and stateless; NaN/Inf inputs
// propagate, range validation is the caller's job.
package geo

import "math"

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371000.0

// Distance returns the great-circle distance in meters between two points,
// computed with the haversine formula. Identical points yield 0 and
// antimeridian crossings take the short way around.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	rLat1 := toRadians(lat1)
	rLat2 := toRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Bearing returns the initial bearing in degrees from the first point to the
// second, normalized to [0,360) with 0 = north.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := toRadians(lat1)
	rLat2 := toRadians(lat2)
	dLon := toRadians(lon2 - lon1)

	y := math.Sin(dLon) * math.Cos(rLat2)
	x := math.Cos(rLat1)*math.Sin(rLat2) - math.Sin(rLat1)*math.Cos(rLat2)*math.Cos(dLon)

	deg := toDegrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// DestinationPoint projects forward from a point by the given bearing
// (degrees) and distance (meters). The returned longitude is normalized to
// (-180,180].
func DestinationPoint(lat, lon, bearing, distanceM float64) (float64, float64) {
	rLat := toRadians(lat)
	rLon := toRadians(lon)
	rBearing := toRadians(bearing)
	angular := distanceM / EarthRadiusM

	destLat := math.Asin(math.Sin(rLat)*math.Cos(angular) +
		math.Cos(rLat)*math.Sin(angular)*math.Cos(rBearing))
	destLon := rLon + math.Atan2(
		math.Sin(rBearing)*math.Sin(angular)*math.Cos(rLat),
		math.Cos(angular)-math.Sin(rLat)*math.Sin(destLat),
	)

	return toDegrees(destLat), normalizeLon(toDegrees(destLon))
}

// WithinRadius reports whether a point lies within radiusM meters of the
// given center.
func WithinRadius(pointLat, pointLon, centerLat, centerLon, radiusM float64) bool {
	return Distance(pointLat, pointLon, centerLat, centerLon) <= radiusM
}

// Midpoint returns the geographic midpoint between two points.
func Midpoint(lat1, lon1, lat2, lon2 float64) (float64, float64) {
	rLat1 := toRadians(lat1)
	rLat2 := toRadians(lat2)
	rLon1 := toRadians(lon1)
	dLon := toRadians(lon2 - lon1)

	bx := math.Cos(rLat2) * math.Cos(dLon)
	by := math.Cos(rLat2) * math.Sin(dLon)

	midLat := math.Atan2(
		math.Sin(rLat1)+math.Sin(rLat2),
		math.Sqrt((math.Cos(rLat1)+bx)*(math.Cos(rLat1)+bx)+by*by),
	)
	midLon := rLon1 + math.Atan2(by, math.Cos(rLat1)+bx)

	return toDegrees(midLat), normalizeLon(toDegrees(midLon))
}

// normalizeLon maps a longitude in degrees into (-180,180].
func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	lon -= 180
	if lon == -180 {
		lon = 180
	}
	return lon
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func toDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Package geo holds the spherical-earth helpers used for geofencing.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000

type Point struct {
	Latitude  float64
	Longitude float64
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceMeters returns the great-circle distance between a and b using the Haversine formula.
func DistanceMeters(a, b Point) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	deltaPhi := toRadians(b.Latitude - a.Latitude)
	deltaLambda := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// BearingDegrees returns the initial bearing from a to b, in [0, 360).
func BearingDegrees(a, b Point) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	deltaLambda := toRadians(b.Longitude - a.Longitude)

	y := math.Sin(deltaLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLambda)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// ValidCoordinates reports whether lat/lon are within their ranges.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Offset returns the point reached by travelling meters from p along bearing degrees.
func Offset(p Point, bearing, meters float64) Point {
	delta := meters / EarthRadiusMeters
	theta := toRadians(bearing)
	phi1 := toRadians(p.Latitude)
	lambda1 := toRadians(p.Longitude)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)
	return Point{Latitude: phi2 * 180 / math.Pi, Longitude: math.Mod(lambda2*180/math.Pi+540, 360) - 180}
}

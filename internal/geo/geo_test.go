package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	paris := Point{Latitude: 48.8566, Longitude: 2.3522}
	london := Point{Latitude: 51.5074, Longitude: -0.1278}

	assert.InDelta(t, 343_500, DistanceMeters(paris, london), 1_000)
	assert.Equal(t, 0.0, DistanceMeters(paris, paris))
	assert.InDelta(t, DistanceMeters(paris, london), DistanceMeters(london, paris), 1e-6)
}

func TestDistanceMeters_OneDegreeLatitude(t *testing.T) {
	a := Point{Latitude: 0, Longitude: 0}
	b := Point{Latitude: 1, Longitude: 0}
	assert.InDelta(t, 111_195, DistanceMeters(a, b), 1)
}

func TestBearingDegrees(t *testing.T) {
	origin := Point{Latitude: 0, Longitude: 0}
	assert.InDelta(t, 0, BearingDegrees(origin, Point{Latitude: 1, Longitude: 0}), 1e-9)
	assert.InDelta(t, 90, BearingDegrees(origin, Point{Latitude: 0, Longitude: 1}), 1e-9)
	assert.InDelta(t, 180, BearingDegrees(origin, Point{Latitude: -1, Longitude: 0}), 1e-9)
	assert.InDelta(t, 270, BearingDegrees(origin, Point{Latitude: 0, Longitude: -1}), 1e-9)
}

func TestOffset_RoundTrip(t *testing.T) {
	center := Point{Latitude: 40.7128, Longitude: -74.0060}
	for _, d := range []float64{10, 95, 110, 115, 5000} {
		p := Offset(center, 45, d)
		assert.InDelta(t, d, DistanceMeters(center, p), 0.01)
	}
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(90, 180))
	assert.True(t, ValidCoordinates(-90, -180))
	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
}

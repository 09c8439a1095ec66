package geo

import (
	"math"
	"testing"
)

const (
	helsinkiLat = 60.1699
	helsinkiLng = 24.9384
	tampereLat  = 61.4978
	tampereLng  = 23.7610
)

func TestDistance_IdenticalPoints(t *testing.T) {
	if d := Distance(60.1699, 24.9384, 60.1699, 24.9384); d != 0 {
		t.Errorf("expected 0 for identical points, got %f", d)
	}
}

func TestDistance_Symmetry(t *testing.T) {
	pairs := [][4]float64{
		{60.1699, 24.9384, 61.4978, 23.7610},
		{0, 0, 45, 90},
		{-33.8688, 151.2093, 51.5074, -0.1278},
		{89.9, 10, -89.9, -170},
	}
	for _, p := range pairs {
		ab := Distance(p[0], p[1], p[2], p[3])
		ba := Distance(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-6 {
			t.Errorf("distance not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestDistance_HelsinkiTampere(t *testing.T) {
	d := Distance(helsinkiLat, helsinkiLng, tampereLat, tampereLng)
	// Great-circle distance Helsinki-Tampere is roughly 160 km.
	if d < 150000 || d > 170000 {
		t.Errorf("expected ~160 km, got %f m", d)
	}
}

func TestDistance_Antimeridian(t *testing.T) {
	// lon 179 vs -179 at the equator is ~222 km, not ~39,800 km.
	d := Distance(0, 179, 0, -179)
	if d < 200000 || d > 250000 {
		t.Errorf("antimeridian crossing not handled, got %f m", d)
	}
}

func TestBearing_CardinalDirections(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 0, 0, 10, 0, 0},
		{"east", 0, 0, 0, 10, 90},
		{"south", 10, 0, 0, 0, 180},
		{"west", 0, 10, 0, 0, 270},
	}
	for _, tt := range tests {
		got := Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
		if math.Abs(got-tt.want) > 0.01 {
			t.Errorf("%s: expected bearing %f, got %f", tt.name, tt.want, got)
		}
	}
}

func TestBearing_Range(t *testing.T) {
	b := Bearing(60.1699, 24.9384, 61.4978, 23.7610)
	if b < 0 || b >= 360 {
		t.Errorf("bearing out of [0,360): %f", b)
	}
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	// Project forward, then measure the distance back to the origin.
	lat, lon := DestinationPoint(helsinkiLat, helsinkiLng, 45, 10000)
	d := Distance(helsinkiLat, helsinkiLng, lat, lon)
	if math.Abs(d-10000) > 1 {
		t.Errorf("expected 10000 m to projected point, got %f", d)
	}
}

func TestDestinationPoint_LongitudeNormalized(t *testing.T) {
	// Projecting east across the antimeridian must wrap into (-180,180].
	lat, lon := DestinationPoint(0, 179.5, 90, 200000)
	if lon > 180 || lon <= -180 {
		t.Errorf("longitude not normalized: %f", lon)
	}
	if lon > 0 {
		t.Errorf("expected negative longitude past the antimeridian, got %f", lon)
	}
	if math.Abs(lat) > 0.1 {
		t.Errorf("expected latitude ~0, got %f", lat)
	}
}

func TestWithinRadius(t *testing.T) {
	if !WithinRadius(60.17, 24.94, helsinkiLat, helsinkiLng, 1000) {
		t.Error("expected point within 1 km radius")
	}
	if WithinRadius(tampereLat, tampereLng, helsinkiLat, helsinkiLng, 1000) {
		t.Error("Tampere should not be within 1 km of Helsinki")
	}
}

func TestMidpoint(t *testing.T) {
	lat, lon := Midpoint(helsinkiLat, helsinkiLng, tampereLat, tampereLng)

	// The midpoint must be equidistant from both endpoints.
	d1 := Distance(lat, lon, helsinkiLat, helsinkiLng)
	d2 := Distance(lat, lon, tampereLat, tampereLng)
	if math.Abs(d1-d2) > 1 {
		t.Errorf("midpoint not equidistant: %f vs %f", d1, d2)
	}
	if lat < helsinkiLat || lat > tampereLat {
		t.Errorf("midpoint latitude %f outside endpoints", lat)
	}
}

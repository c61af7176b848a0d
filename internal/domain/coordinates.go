package domain

import (
	"fmt"
	"math"
)

// Coordinates is a validated WGS84 point. Construct through NewCoordinates;
// a zero value is (0,0), which is valid but almost never what you want.
type Coordinates struct {
	Lat float64
	Lng float64
}

func NewCoordinates(lat, lng float64) (Coordinates, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return Coordinates{}, fmt.Errorf("coordinates must be finite: lat=%v lng=%v", lat, lng)
	}
	if lat < -90 || lat > 90 {
		return Coordinates{}, fmt.Errorf("latitude out of range: %v", lat)
	}
	if lng < -180 || lng > 180 {
		return Coordinates{}, fmt.Errorf("longitude out of range: %v", lng)
	}
	return Coordinates{Lat: lat, Lng: lng}, nil
}

package location

import (
	"errors"
	"time"
)

// Location represents a place a keeper's animals live or were collected.
// Coordinates follow GeoJSON ordering: longitude first, then latitude.
type Location struct {
	ID          string    `json:"id"`
	ProfileID   string    `json:"profileId"`
	Name        string    `json:"name"`
	Longitude   float64   `json:"longitude"`
	Latitude    float64   `json:"latitude"`
	FullAddress string    `json:"fullAddress,omitempty"`
	ImageID     string    `json:"imageId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Coordinate bounds for validation.
const (
	minLongitude = -180.0
	maxLongitude = 180.0
	minLatitude  = -90.0
	maxLatitude  = 90.0
)

// Validate checks required fields and coordinate ranges.
func (l *Location) Validate() error {
	if l.Name == "" {
		return errors.New("location name is required")
	}
	if l.Longitude < minLongitude || l.Longitude > maxLongitude {
		return errors.New("longitude out of range")
	}
	if l.Latitude < minLatitude || l.Latitude > maxLatitude {
		return errors.New("latitude out of range")
	}
	return nil
}

// ErrNotFound is returned when a location does not exist within the profile.
var ErrNotFound = errors.New("location not found")

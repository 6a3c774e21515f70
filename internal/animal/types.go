package animal

import (
	"errors"
	"time"
)

// Sex is an animal's recorded sex. Unknown is common for juveniles and
// monomorphic species.
type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexUnknown Sex = "U"
)

// IsValidSex reports whether s is one of the recognised sex values.
func IsValidSex(s Sex) bool {
	switch s {
	case SexMale, SexFemale, SexUnknown:
		return true
	default:
		return false
	}
}

// ImageRef links an animal to an uploaded image. One image may be flagged
// as the default for display.
type ImageRef struct {
	ImageID   string    `json:"imageId"`
	Default   bool      `json:"default"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feeding is a single feeding record.
type Feeding struct {
	ID          string    `json:"id"`
	FeedingDate time.Time `json:"feedingDate"`
	Quantity    int       `json:"quantity"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Animal represents an individual animal in a keeper's collection.
// Images and feedings are embedded documents stored as JSON columns;
// they are always read and written together with the animal.
type Animal struct {
	ID              string     `json:"id"`
	ProfileID       string     `json:"profileId"`
	Name            string     `json:"name"`
	LocationID      string     `json:"locationId"`
	SpeciesID       string     `json:"speciesId"`
	Sex             Sex        `json:"sex"`
	BirthDate       *time.Time `json:"birthDate,omitempty"`
	AcquisitionDate *time.Time `json:"acquisitionDate,omitempty"`
	PreferredFood   string     `json:"preferredFood,omitempty"`
	Images          []ImageRef `json:"images"`
	Feedings        []Feeding  `json:"feedings"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Validate checks required fields and enum values.
func (a *Animal) Validate() error {
	if a.Name == "" {
		return errors.New("animal name is required")
	}
	if a.LocationID == "" {
		return errors.New("animal location is required")
	}
	if a.SpeciesID == "" {
		return errors.New("animal species is required")
	}
	if a.Sex != "" && !IsValidSex(a.Sex) {
		return errors.New("animal sex must be M, F, or U")
	}
	return nil
}

// Validate checks a feeding record before it is appended.
func (f *Feeding) Validate() error {
	if f.FeedingDate.IsZero() {
		return errors.New("feeding date is required")
	}
	if f.Type == "" {
		return errors.New("feeding type is required")
	}
	if f.Quantity < 1 {
		return errors.New("feeding quantity must be at least 1")
	}
	return nil
}

// ErrNotFound is returned when an animal does not exist within the profile.
var ErrNotFound = errors.New("animal not found")

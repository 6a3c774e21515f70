package species

import (
	"errors"
	"time"
)

// Species represents a taxonomic entry in a keeper's collection.
// Only the common name is required; taxonomy fields are free-form and
// optional because hobbyist records are rarely complete.
type Species struct {
	ID                 string    `json:"id"`
	ProfileID          string    `json:"profileId"`
	CommonName         string    `json:"commonName"`
	Class              string    `json:"class,omitempty"`
	Order              string    `json:"order,omitempty"`
	SubOrder           string    `json:"subOrder,omitempty"`
	Genus              string    `json:"genus,omitempty"`
	Species            string    `json:"species,omitempty"`
	SubSpecies         string    `json:"subSpecies,omitempty"`
	ImageID            string    `json:"imageId,omitempty"`
	Venomous           bool      `json:"venomous"`
	PotentiallyHarmful bool      `json:"potentiallyHarmful"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Validate checks required fields.
func (s *Species) Validate() error {
	if s.CommonName == "" {
		return errors.New("species common name is required")
	}
	return nil
}

// ErrNotFound is returned when a species does not exist within the profile.
var ErrNotFound = errors.New("species not found")

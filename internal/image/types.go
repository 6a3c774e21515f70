package image

import (
	"errors"
	"time"
)

// Image represents uploaded image metadata. The bytes themselves live in
// the object store; this row is the catalogue entry.
type Image struct {
	ID          string    `json:"id"`
	ProfileID   string    `json:"profileId"`
	Title       string    `json:"title"`
	Caption     string    `json:"caption,omitempty"`
	ContentType string    `json:"contentType"`
	FileName    string    `json:"fileName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Object is a stored image payload returned from the object store.
type Object struct {
	ContentType   string    `json:"contentType"`
	ContentLength int64     `json:"contentLength"`
	LastModified  time.Time `json:"lastModified"`
	// Data is the base64-encoded image bytes.
	Data string `json:"data"`
}

// Validate checks required metadata fields.
func (i *Image) Validate() error {
	if i.Title == "" {
		return errors.New("image title is required")
	}
	if i.ContentType == "" {
		return errors.New("image content type is required")
	}
	if i.FileName == "" {
		return errors.New("image file name is required")
	}
	return nil
}

// ErrNotFound is returned when an image does not exist within the profile.
var ErrNotFound = errors.New("image not found")

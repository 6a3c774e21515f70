package profile

import (
	"errors"
	"time"

	"github.com/herpkeeper/herpkeeper-core/internal/auth"
)

// Profile represents a keeper account and the root of their collection.
type Profile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"` // never serialised
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          auth.Role `json:"role"`
	Active        bool      `json:"active"`
	ActivationKey string    `json:"-"` // delivered out of band, never serialised
	FoodTypes     []string  `json:"foodTypes"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sentinel errors for profile operations.
var (
	ErrNotFound       = errors.New("profile not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
	ErrInactive       = errors.New("profile is not activated")
	ErrBadActivation  = errors.New("activation key does not match")
)

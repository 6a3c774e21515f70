package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/herpkeeper/herpkeeper-core/internal/auth"
	"github.com/herpkeeper/herpkeeper-core/internal/profile"
)

// updateProfileRequest is the request body for PUT /api/profile.
// Only the fields a keeper may change themselves are accepted; username,
// role, and activation state stay fixed.
type updateProfileRequest struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	FoodTypes []string `json:"foodTypes"`
}

// updatePasswordRequest is the request body for PUT /api/profile/password.
type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleGetProfile returns the caller's own profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, profileFrom(r))
}

// handleUpdateProfile saves the caller's own profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	p := profileFrom(r)
	p.Name = req.Name
	p.Email = req.Email
	if req.FoodTypes != nil {
		p.FoodTypes = req.FoodTypes
	}

	if err := s.profiles.Update(r.Context(), p); err != nil {
		if errors.Is(err, profile.ErrEmailExists) {
			writeConflict(w, "email already exists")
			return
		}
		s.logger.Error("updating profile", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to update profile")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusOK, p)
}

// handleUpdatePassword changes the caller's password. All refresh tokens
// for the user are revoked so stolen sessions die with the old password.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	p := profileFrom(r)

	ok, err := auth.VerifyPassword(req.CurrentPassword, p.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "current password does not match")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	if err := s.profiles.UpdatePassword(r.Context(), p.ID, hash); err != nil {
		s.logger.Error("updating password", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	if err := s.tokens.DeleteAllForUsername(r.Context(), p.Username); err != nil {
		s.logger.Warn("revoking sessions after password change",
			"username", p.Username, "error", err)
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleListProfiles returns all profiles. Admin only.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List(r.Context())
	if err != nil {
		s.logger.Error("listing profiles", "error", err)
		writeInternalError(w, "failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// handleCountProfiles returns the number of registered profiles. Admin only.
func (s *Server) handleCountProfiles(w http.ResponseWriter, r *http.Request) {
	count, err := s.profiles.Count(r.Context())
	if err != nil {
		s.logger.Error("counting profiles", "error", err)
		writeInternalError(w, "failed to count profiles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

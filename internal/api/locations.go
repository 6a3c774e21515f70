package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/herpkeeper/herpkeeper-core/internal/location"
)

// handleListLocations returns all of the caller's locations.
func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	locations, err := s.locations.ListByProfile(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("listing locations", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to list locations")
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

// handleCreateLocation creates a location for the caller.
func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var loc location.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := profileFrom(r)
	loc.ID = ""
	loc.ProfileID = p.ID

	if err := loc.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.locations.Create(r.Context(), &loc); err != nil {
		s.logger.Error("creating location", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to create location")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusCreated, &loc)
}

// handleGetLocation returns one of the caller's locations.
func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	loc, err := s.locations.Get(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, location.ErrNotFound) {
			writeNotFound(w, "location not found")
			return
		}
		s.logger.Error("getting location", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to get location")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// handleUpdateLocation replaces one of the caller's locations.
func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var loc location.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := profileFrom(r)
	loc.ID = chi.URLParam(r, "id")
	loc.ProfileID = p.ID

	if err := loc.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.locations.Update(r.Context(), &loc); err != nil {
		if errors.Is(err, location.ErrNotFound) {
			writeNotFound(w, "location not found")
			return
		}
		s.logger.Error("updating location", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to update location")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusOK, &loc)
}

// handleDeleteLocation removes one of the caller's locations.
func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	if err := s.locations.Delete(r.Context(), p.ID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, location.ErrNotFound) {
			writeNotFound(w, "location not found")
			return
		}
		s.logger.Error("deleting location", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to delete location")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/herpkeeper/herpkeeper-core/internal/species"
)

// handleListSpecies returns all of the caller's species entries.
func (s *Server) handleListSpecies(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	entries, err := s.species.ListByProfile(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("listing species", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to list species")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCreateSpecies creates a species entry for the caller.
func (s *Server) handleCreateSpecies(w http.ResponseWriter, r *http.Request) {
	var sp species.Species
	if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := profileFrom(r)
	sp.ID = ""
	sp.ProfileID = p.ID

	if err := sp.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.species.Create(r.Context(), &sp); err != nil {
		s.logger.Error("creating species", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to create species")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusCreated, &sp)
}

// handleGetSpecies returns one of the caller's species entries.
func (s *Server) handleGetSpecies(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	sp, err := s.species.Get(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, species.ErrNotFound) {
			writeNotFound(w, "species not found")
			return
		}
		s.logger.Error("getting species", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to get species")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// handleUpdateSpecies replaces one of the caller's species entries.
func (s *Server) handleUpdateSpecies(w http.ResponseWriter, r *http.Request) {
	var sp species.Species
	if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := profileFrom(r)
	sp.ID = chi.URLParam(r, "id")
	sp.ProfileID = p.ID

	if err := sp.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.species.Update(r.Context(), &sp); err != nil {
		if errors.Is(err, species.ErrNotFound) {
			writeNotFound(w, "species not found")
			return
		}
		s.logger.Error("updating species", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to update species")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusOK, &sp)
}

// handleDeleteSpecies removes one of the caller's species entries.
func (s *Server) handleDeleteSpecies(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	if err := s.species.Delete(r.Context(), p.ID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, species.ErrNotFound) {
			writeNotFound(w, "species not found")
			return
		}
		s.logger.Error("deleting species", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to delete species")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/herpkeeper/herpkeeper-core/internal/animal"
)

// handleListAnimals returns all of the caller's animals.
func (s *Server) handleListAnimals(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	animals, err := s.animals.ListByProfile(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("listing animals", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to list animals")
		return
	}
	writeJSON(w, http.StatusOK, animals)
}

// handleCreateAnimal creates an animal for the caller.
func (s *Server) handleCreateAnimal(w http.ResponseWriter, r *http.Request) {
	var a animal.Animal
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := profileFrom(r)
	a.ID = ""
	a.ProfileID = p.ID

	if err := a.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.animals.Create(r.Context(), &a); err != nil {
		s.logger.Error("creating animal", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to create animal")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusCreated, &a)
}

// handleGetAnimal returns one of the caller's animals.
func (s *Server) handleGetAnimal(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	a, err := s.animals.Get(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, animal.ErrNotFound) {
			writeNotFound(w, "animal not found")
			return
		}
		s.logger.Error("getting animal", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to get animal")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleUpdateAnimal replaces one of the caller's animals.
func (s *Server) handleUpdateAnimal(w http.ResponseWriter, r *http.Request) {
	var a animal.Animal
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := profileFrom(r)
	a.ID = chi.URLParam(r, "id")
	a.ProfileID = p.ID

	if err := a.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.animals.Update(r.Context(), &a); err != nil {
		if errors.Is(err, animal.ErrNotFound) {
			writeNotFound(w, "animal not found")
			return
		}
		s.logger.Error("updating animal", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to update animal")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusOK, &a)
}

// handleDeleteAnimal removes one of the caller's animals.
func (s *Server) handleDeleteAnimal(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	if err := s.animals.Delete(r.Context(), p.ID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, animal.ErrNotFound) {
			writeNotFound(w, "animal not found")
			return
		}
		s.logger.Error("deleting animal", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to delete animal")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleAddFeeding appends a feeding record to one of the caller's animals
// and returns the updated animal. When telemetry is enabled the feeding is
// also written to the time-series store.
func (s *Server) handleAddFeeding(w http.ResponseWriter, r *http.Request) {
	var feeding animal.Feeding
	if err := json.NewDecoder(r.Body).Decode(&feeding); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := feeding.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	p := profileFrom(r)
	a, err := s.animals.AddFeeding(r.Context(), p.ID, chi.URLParam(r, "id"), &feeding)
	if err != nil {
		if errors.Is(err, animal.ErrNotFound) {
			writeNotFound(w, "animal not found")
			return
		}
		s.logger.Error("adding feeding", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to add feeding")
		return
	}

	if s.influx != nil {
		s.influx.WriteFeeding(p.ID, a.ID, feeding.Type, feeding.Quantity, feeding.FeedingDate)
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusCreated, a)
}

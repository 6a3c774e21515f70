package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/herpkeeper/herpkeeper-core/internal/image"
)

// createImageRequest is the request body for POST /api/images. Data carries
// the image bytes base64-encoded.
type createImageRequest struct {
	Title    string `json:"title"`
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
	Data     string `json:"data"`
}

// updateImageRequest is the request body for PUT /api/images/{id}. Only
// metadata changes; re-upload means delete and create.
type updateImageRequest struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

// handleListImages returns metadata for all of the caller's images.
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	images, err := s.images.ListByProfile(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("listing images", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to list images")
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// handleCreateImage stores a new image: bytes to the object store, metadata
// to the database. The content type is sniffed from the decoded payload.
func (s *Server) handleCreateImage(w http.ResponseWriter, r *http.Request) {
	if s.imageStore == nil {
		writeUnavailable(w, "image storage is not configured")
		return
	}

	var req createImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" || req.FileName == "" {
		writeBadRequest(w, "title and fileName are required")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeBadRequest(w, "data must be base64-encoded")
		return
	}
	if len(data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	p := profileFrom(r)
	img := &image.Image{
		ProfileID:   p.ID,
		Title:       req.Title,
		Caption:     req.Caption,
		ContentType: http.DetectContentType(data),
		FileName:    req.FileName,
	}

	if err := s.images.Create(r.Context(), img); err != nil {
		s.logger.Error("creating image record", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to create image")
		return
	}

	if _, err := s.imageStore.Save(r.Context(), p.ID, img.ID, data, img.ContentType); err != nil {
		// Roll back the orphaned metadata row; the object never landed.
		if delErr := s.images.Delete(r.Context(), p.ID, img.ID); delErr != nil {
			s.logger.Warn("removing orphaned image record", "image_id", img.ID, "error", delErr)
		}
		s.logger.Error("saving image object", "image_id", img.ID, "error", err)
		writeInternalError(w, "failed to store image")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusCreated, img)
}

// handleGetImage returns metadata for one of the caller's images.
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	img, err := s.images.Get(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			writeNotFound(w, "image not found")
			return
		}
		s.logger.Error("getting image", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to get image")
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// handleGetImageData returns the stored object for one of the caller's
// images, base64-encoded.
func (s *Server) handleGetImageData(w http.ResponseWriter, r *http.Request) {
	if s.imageStore == nil {
		writeUnavailable(w, "image storage is not configured")
		return
	}

	p := profileFrom(r)
	id := chi.URLParam(r, "id")

	// The metadata row is the source of truth for ownership; the object
	// store is only consulted for images the caller actually owns.
	if _, err := s.images.Get(r.Context(), p.ID, id); err != nil {
		if errors.Is(err, image.ErrNotFound) {
			writeNotFound(w, "image not found")
			return
		}
		s.logger.Error("getting image", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to get image")
		return
	}

	obj, err := s.imageStore.Get(r.Context(), p.ID, id)
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			writeNotFound(w, "image data not found")
			return
		}
		s.logger.Error("getting image object", "image_id", id, "error", err)
		writeInternalError(w, "failed to get image data")
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// handleUpdateImage updates metadata for one of the caller's images.
func (s *Server) handleUpdateImage(w http.ResponseWriter, r *http.Request) {
	var req updateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeBadRequest(w, "title is required")
		return
	}

	p := profileFrom(r)
	img, err := s.images.Get(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			writeNotFound(w, "image not found")
			return
		}
		s.logger.Error("getting image", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to update image")
		return
	}

	img.Title = req.Title
	img.Caption = req.Caption

	if err := s.images.Update(r.Context(), img); err != nil {
		s.logger.Error("updating image", "image_id", img.ID, "error", err)
		writeInternalError(w, "failed to update image")
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusOK, img)
}

// handleDeleteImage removes one of the caller's images, metadata and object
// both. A missing object is not an error; the row is authoritative.
func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	p := profileFrom(r)
	id := chi.URLParam(r, "id")

	if err := s.images.Delete(r.Context(), p.ID, id); err != nil {
		if errors.Is(err, image.ErrNotFound) {
			writeNotFound(w, "image not found")
			return
		}
		s.logger.Error("deleting image", "profile_id", p.ID, "error", err)
		writeInternalError(w, "failed to delete image")
		return
	}

	if s.imageStore != nil {
		if err := s.imageStore.Remove(r.Context(), p.ID, id); err != nil {
			s.logger.Warn("removing image object", "image_id", id, "error", err)
		}
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	w.WriteHeader(http.StatusNoContent)
}

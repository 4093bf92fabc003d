package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/http/response"
	"github.com/mvanbree/palette/internal/repository"
)

// GalleryHandler maps painter/painting/technique routes straight onto the
// repository. Thin glue only.
type GalleryHandler struct {
	gallery repository.GalleryRepository
}

func NewGalleryHandler(gallery repository.GalleryRepository) *GalleryHandler {
	return &GalleryHandler{gallery: gallery}
}

func (h *GalleryHandler) ListPainters(w http.ResponseWriter, r *http.Request) {
	query := repository.PainterListQuery{
		PageRequest: repository.PageRequest{
			Page:     queryInt(r, "page"),
			PageSize: queryInt(r, "page_size"),
		},
		Name: r.URL.Query().Get("name"),
	}
	result, err := h.gallery.ListPainters(query)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not list painters", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *GalleryHandler) GetPainter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	painter, err := h.gallery.FindPainterByID(id)
	if err != nil {
		writeRepoError(w, r, err, "painter")
		return
	}
	response.JSON(w, r, http.StatusOK, painter)
}

func (h *GalleryHandler) CreatePainter(w http.ResponseWriter, r *http.Request) {
	var painter domain.Painter
	if err := json.NewDecoder(r.Body).Decode(&painter); err != nil || painter.Name == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "a painter name is required", nil)
		return
	}
	painter.ID = 0
	if err := h.gallery.CreatePainter(&painter); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not create painter", nil)
		return
	}
	response.JSON(w, r, http.StatusCreated, painter)
}

func (h *GalleryHandler) UpdatePainter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	painter, err := h.gallery.FindPainterByID(id)
	if err != nil {
		writeRepoError(w, r, err, "painter")
		return
	}
	var in domain.Painter
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid painter payload", nil)
		return
	}
	if in.Name != "" {
		painter.Name = in.Name
	}
	painter.BornAt = in.BornAt
	painter.DiedAt = in.DiedAt
	if err := h.gallery.UpdatePainter(painter); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not update painter", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, painter)
}

func (h *GalleryHandler) DeletePainter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.gallery.DeletePainter(id); err != nil {
		writeRepoError(w, r, err, "painter")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true})
}

func (h *GalleryHandler) ListPaintings(w http.ResponseWriter, r *http.Request) {
	painterID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	paintings, err := h.gallery.ListPaintingsByPainter(painterID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not list paintings", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, paintings)
}

func (h *GalleryHandler) CreatePainting(w http.ResponseWriter, r *http.Request) {
	var painting domain.Painting
	if err := json.NewDecoder(r.Body).Decode(&painting); err != nil || painting.Title == "" || painting.PainterID == 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "a title and painter_id are required", nil)
		return
	}
	painting.ID = 0
	if err := h.gallery.CreatePainting(&painting); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not create painting", nil)
		return
	}
	response.JSON(w, r, http.StatusCreated, painting)
}

func (h *GalleryHandler) GetPainting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	painting, err := h.gallery.FindPaintingByID(id)
	if err != nil {
		writeRepoError(w, r, err, "painting")
		return
	}
	response.JSON(w, r, http.StatusOK, painting)
}

func (h *GalleryHandler) DeletePainting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.gallery.DeletePainting(id); err != nil {
		writeRepoError(w, r, err, "painting")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true})
}

func (h *GalleryHandler) ListTechniques(w http.ResponseWriter, r *http.Request) {
	techniques, err := h.gallery.ListTechniques()
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not list techniques", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, techniques)
}

func (h *GalleryHandler) CreateTechnique(w http.ResponseWriter, r *http.Request) {
	var technique domain.Technique
	if err := json.NewDecoder(r.Body).Decode(&technique); err != nil || technique.Name == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "a technique name is required", nil)
		return
	}
	technique.ID = 0
	if err := h.gallery.CreateTechnique(&technique); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not create technique", nil)
		return
	}
	response.JSON(w, r, http.StatusCreated, technique)
}

func (h *GalleryHandler) DeleteTechnique(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.gallery.DeleteTechnique(id); err != nil {
		writeRepoError(w, r, err, "technique")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return 0, false
	}
	return uint(id), true
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func writeRepoError(w http.ResponseWriter, r *http.Request, err error, entity string) {
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", entity+" not found", nil)
		return
	}
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "storage failure", nil)
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/http/response"
	"github.com/mvanbree/palette/internal/repository"
)

type ArchiveHandler struct {
	archive repository.ArchiveRepository
}

func NewArchiveHandler(archive repository.ArchiveRepository) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

func (h *ArchiveHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.archive.ListRootFolders()
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not list folders", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, folders)
}

func (h *ArchiveHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	folder, err := h.archive.FindFolderByID(id)
	if err != nil {
		writeRepoError(w, r, err, "folder")
		return
	}
	response.JSON(w, r, http.StatusOK, folder)
}

func (h *ArchiveHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var folder domain.Folder
	if err := json.NewDecoder(r.Body).Decode(&folder); err != nil || folder.Name == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "a folder name is required", nil)
		return
	}
	folder.ID = 0
	if err := h.archive.CreateFolder(&folder); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not create folder", nil)
		return
	}
	response.JSON(w, r, http.StatusCreated, folder)
}

func (h *ArchiveHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.archive.DeleteFolder(id); err != nil {
		writeRepoError(w, r, err, "folder")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true})
}

func (h *ArchiveHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var file domain.File
	if err := json.NewDecoder(r.Body).Decode(&file); err != nil || file.Name == "" || file.FolderID == 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "a file name and folder_id are required", nil)
		return
	}
	file.ID = 0
	if err := h.archive.CreateFile(&file); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not create file", nil)
		return
	}
	response.JSON(w, r, http.StatusCreated, file)
}

func (h *ArchiveHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	file, err := h.archive.FindFileByID(id)
	if err != nil {
		writeRepoError(w, r, err, "file")
		return
	}
	response.JSON(w, r, http.StatusOK, file)
}

func (h *ArchiveHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.archive.DeleteFile(id); err != nil {
		writeRepoError(w, r, err, "file")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true})
}

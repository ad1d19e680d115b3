package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/handler/dto"
	"github.com/mtlprog/agentdesk/internal/service"
)

// multipartOverhead covers form boundaries and headers around the file part.
const multipartOverhead = 1 << 20

// handleUploadKnowledgeFile accepts a multipart file for an agent's knowledge base.
// @Summary Upload a knowledge file
// @Description Stores the file as pending and schedules extraction, chunking and indexing.
// @Description Accepts PDF, HTML, Markdown and plain text up to 10 MiB in the "file" form field.
// @Tags knowledge
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Agent ID"
// @Param file formData file true "Document"
// @Success 202 {object} dto.KnowledgeFileResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 415 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /agents/{id}/knowledge/files [post]
func (h *Handler) handleUploadKnowledgeFile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	agentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondDomainError(w, domain.ErrFileTooLarge)
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, service.MaxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read uploaded file")
		return
	}

	kf, err := h.knowledge.Upload(r.Context(), user.ID, agentID, service.UploadInput{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Content:  content,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dto.ToKnowledgeFileResponse(kf))
}

// handleAddKnowledgeURL schedules a web page for scraping into the knowledge base.
// @Summary Add a knowledge URL
// @Tags knowledge
// @Accept json
// @Produce json
// @Param id path string true "Agent ID"
// @Param request body dto.AddURLRequest true "Page to scrape"
// @Success 202 {object} dto.KnowledgeFileResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /agents/{id}/knowledge/urls [post]
func (h *Handler) handleAddKnowledgeURL(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	agentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.AddURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	kf, err := h.knowledge.AddURL(r.Context(), user.ID, agentID, req.URL)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dto.ToKnowledgeFileResponse(kf))
}

// handleListKnowledgeFiles lists an agent's knowledge files with their status.
// @Summary List knowledge files
// @Tags knowledge
// @Produce json
// @Param id path string true "Agent ID"
// @Success 200 {object} dto.KnowledgeFilesResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /agents/{id}/knowledge/files [get]
func (h *Handler) handleListKnowledgeFiles(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	agentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	files, err := h.knowledge.ListFiles(r.Context(), user.ID, agentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.KnowledgeFilesResponse{Files: make([]dto.KnowledgeFileResponse, 0, len(files))}
	for _, f := range files {
		resp.Files = append(resp.Files, dto.ToKnowledgeFileResponse(f))
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleReprocessKnowledgeFile resets a failed file to pending and schedules it again.
// @Summary Reprocess a failed knowledge file
// @Tags knowledge
// @Produce json
// @Param id path string true "Knowledge file ID"
// @Success 202 {object} dto.KnowledgeFileResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /knowledge/files/{id}/reprocess [post]
func (h *Handler) handleReprocessKnowledgeFile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	fileID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	kf, err := h.knowledge.Reprocess(r.Context(), user.ID, fileID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dto.ToKnowledgeFileResponse(kf))
}

// handleDeleteKnowledgeFile deletes a knowledge file and its chunks.
// @Summary Delete a knowledge file
// @Tags knowledge
// @Param id path string true "Knowledge file ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /knowledge/files/{id} [delete]
func (h *Handler) handleDeleteKnowledgeFile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	fileID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.knowledge.DeleteFile(r.Context(), user.ID, fileID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/resolver"
	"github.com/Veraticus/vendor-lens/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxBatchSize bounds a single bulk resolution request.
const maxBatchSize = 100

type resolveRequest struct {
	Context       *model.ResolutionContext `json:"context,omitempty"`
	OriginalText  string                   `json:"original_text"`
	TransactionID string                   `json:"transaction_id,omitempty"`
}

// handleResolve resolves a single raw vendor string.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	if msg, ok := validateVendorText(req.OriginalText); !ok {
		writeError(w, http.StatusBadRequest, codeValidationError, msg)
		return
	}
	if req.TransactionID != "" {
		if _, err := uuid.Parse(req.TransactionID); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidID, "transaction_id must be a valid UUID")
			return
		}
	}

	result, err := s.engine.Resolve(r.Context(), callerID(r), req.OriginalText, req.Context)
	if err != nil {
		s.respondError(w, r, err, codeInternalError)
		return
	}

	writeData(w, http.StatusOK, result)
}

type batchResolveRequest struct {
	Items []resolveRequest `json:"items"`
}

// handleResolveBatch resolves an ordered sequence of vendor strings.
// Per-item failures are isolated; the batch itself only fails on a
// malformed request.
func (s *Server) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	var req batchResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationError, "items must not be empty")
		return
	}
	if len(req.Items) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationError,
			fmt.Sprintf("batch size exceeds %d items", maxBatchSize))
		return
	}

	items := make([]resolver.BatchItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = resolver.BatchItem{
			OriginalText: item.OriginalText,
			Context:      item.Context,
		}
	}

	batch := s.engine.ResolveBatch(r.Context(), callerID(r), items)
	writeData(w, http.StatusOK, batch)
}

type createMappingRequest struct {
	OriginalText string `json:"original_text"`
	MappedName   string `json:"mapped_name"`
}

// handleCreateMapping records an explicit user correction.
func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	var req createMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	if msg, ok := validateVendorText(req.OriginalText); !ok {
		writeError(w, http.StatusBadRequest, codeValidationError, msg)
		return
	}
	if msg, ok := validateMappedName(req.MappedName); !ok {
		writeError(w, http.StatusBadRequest, codeValidationError, msg)
		return
	}

	mapping, err := s.engine.CreateUserMapping(r.Context(), callerID(r), req.OriginalText, req.MappedName)
	if err != nil {
		s.respondError(w, r, err, codeInternalError)
		return
	}

	writeData(w, http.StatusOK, mapping)
}

// handleListMappings returns the caller's mappings plus global mappings.
func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.store.ListMappings(r.Context(), callerID(r))
	if err != nil {
		s.respondError(w, r, err, codeInternalError)
		return
	}
	if mappings == nil {
		mappings = []model.VendorMapping{}
	}

	writeData(w, http.StatusOK, map[string]any{"mappings": mappings})
}

type updateMappingRequest struct {
	MappedName *string  `json:"mapped_name,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     *string  `json:"source,omitempty"`
}

// handleUpdateMapping applies a partial update to a mapping the caller
// owns. A rename marks the mapping user-sourced, and a user-sourced
// mapping without an explicit confidence is authoritative at 1.0.
func (s *Server) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidID, "mapping id must be a valid UUID")
		return
	}

	var req updateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	patch, msg, ok := buildPatch(req)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationError, msg)
		return
	}

	mapping, err := s.store.UpdateMapping(r.Context(), id, patch, callerID(r))
	if err != nil {
		s.respondError(w, r, err, codeUpdateError)
		return
	}

	writeData(w, http.StatusOK, mapping)
}

// handleDeleteMapping removes a mapping the caller owns.
func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidID, "mapping id must be a valid UUID")
		return
	}

	if err := s.store.DeleteMapping(r.Context(), id, callerID(r)); err != nil {
		s.respondError(w, r, err, codeDeleteError)
		return
	}

	writeData(w, http.StatusOK, map[string]bool{"deleted": true})
}

// buildPatch validates an update request and converts it to a store patch.
func buildPatch(req updateMappingRequest) (service.MappingPatch, string, bool) {
	var patch service.MappingPatch

	if req.MappedName != nil {
		if msg, ok := validateMappedName(*req.MappedName); !ok {
			return patch, msg, false
		}
		name := strings.TrimSpace(*req.MappedName)
		patch.MappedName = &name
	}
	if req.Confidence != nil {
		if *req.Confidence < 0 || *req.Confidence > 1 {
			return patch, "confidence must be between 0 and 1", false
		}
		patch.Confidence = req.Confidence
	}
	if req.Source != nil {
		source := model.ResolutionSource(*req.Source)
		if !source.Valid() {
			return patch, fmt.Sprintf("source must be one of %s, %s, %s", model.SourceLLM, model.SourceUser, model.SourceGoogle), false
		}
		patch.Source = &source
	}

	if patch.Empty() {
		return patch, "at least one of mapped_name, confidence, source is required", false
	}

	// A rename is a user correction
	if patch.MappedName != nil && patch.Source == nil {
		source := model.SourceUser
		patch.Source = &source
	}
	if patch.Source != nil && *patch.Source == model.SourceUser && patch.Confidence == nil {
		confidence := 1.0
		patch.Confidence = &confidence
	}

	return patch, "", true
}

// validateVendorText checks the resolve/create text bound.
func validateVendorText(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "original_text must not be empty", false
	}
	if len(trimmed) > model.MaxVendorTextLength {
		return fmt.Sprintf("original_text exceeds %d characters", model.MaxVendorTextLength), false
	}
	return "", true
}

// validateMappedName checks the display name bound.
func validateMappedName(name string) (string, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "mapped_name must not be empty", false
	}
	if len(trimmed) > model.MaxMappedNameLength {
		return fmt.Sprintf("mapped_name exceeds %d characters", model.MaxMappedNameLength), false
	}
	return "", true
}

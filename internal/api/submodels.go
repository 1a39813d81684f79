package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-twin-core/internal/pagination"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

// handleListSubmodels returns one page of submodels, optionally filtered
// by the semanticId query parameter.
func (s *Server) handleListSubmodels(w http.ResponseWriter, r *http.Request) {
	info, err := pagingInfo(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var res pagination.Result[*submodel.Submodel]
	if semanticID := r.URL.Query().Get("semanticId"); semanticID != "" {
		res, err = s.submodels.ListSubmodelsBySemanticID(r.Context(), semanticID, info)
	} else {
		res, err = s.submodels.ListSubmodels(r.Context(), info)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writePage(w, res)
}

// handleCreateSubmodel stores a new submodel.
func (s *Server) handleCreateSubmodel(w http.ResponseWriter, r *http.Request) {
	var sm submodel.Submodel
	if err := json.NewDecoder(r.Body).Decode(&sm); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.submodels.CreateSubmodel(r.Context(), &sm); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sm)
}

// handleGetSubmodel returns a whole submodel.
func (s *Server) handleGetSubmodel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return
	}
	sm, err := s.submodels.GetSubmodel(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sm)
}

// handleGetSubmodelMetadata returns the submodel without its elements.
func (s *Server) handleGetSubmodelMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return
	}
	sm, err := s.submodels.GetSubmodelMetadata(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sm)
}

// handleGetSubmodelValue returns the value-only view of the submodel.
func (s *Server) handleGetSubmodelValue(w http.ResponseWriter, r *http.Request) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return
	}
	values, err := s.submodels.GetSubmodelValueOnly(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// handleUpdateSubmodel replaces a submodel.
func (s *Server) handleUpdateSubmodel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return
	}
	var sm submodel.Submodel
	if err := json.NewDecoder(r.Body).Decode(&sm); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.submodels.UpdateSubmodel(r.Context(), id, &sm); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSubmodel removes a submodel and its attachments.
func (s *Server) handleDeleteSubmodel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return
	}
	if err := s.submodels.DeleteSubmodel(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submodelID decodes the submodel identifier, writing a 400 on failure.
func (s *Server) submodelID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := identifierParam(r, "submodelID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return "", false
	}
	return id, true
}

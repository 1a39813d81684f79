package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-twin-core/internal/shell"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

// requireShells answers 404 on shell routes when no shell repository is
// configured.
func (s *Server) requireShells(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.shells == nil {
			writeNotFound(w, "shell repository not enabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleListShells returns one page of shells ordered by id.
func (s *Server) handleListShells(w http.ResponseWriter, r *http.Request) {
	info, err := pagingInfo(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.shells.List(r.Context(), info)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writePage(w, res)
}

// handleCreateShell stores a new shell.
func (s *Server) handleCreateShell(w http.ResponseWriter, r *http.Request) {
	var sh shell.Shell
	if err := json.NewDecoder(r.Body).Decode(&sh); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.shells.Create(r.Context(), &sh); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

// handleGetShell returns a shell with its submodel references.
func (s *Server) handleGetShell(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shellID(w, r)
	if !ok {
		return
	}
	sh, err := s.shells.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// handleDeleteShell removes a shell.
func (s *Server) handleDeleteShell(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shellID(w, r)
	if !ok {
		return
	}
	if err := s.shells.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListSubmodelRefs returns one page of the shell's submodel references.
func (s *Server) handleListSubmodelRefs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shellID(w, r)
	if !ok {
		return
	}
	info, err := pagingInfo(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.shells.ListSubmodelReferences(r.Context(), id, info)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writePage(w, res)
}

// handleAddSubmodelRef appends a submodel reference to the shell.
func (s *Server) handleAddSubmodelRef(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shellID(w, r)
	if !ok {
		return
	}
	var ref submodel.Reference
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.shells.AddSubmodelReference(r.Context(), id, &ref); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// handleRemoveSubmodelRef drops the reference to one submodel.
func (s *Server) handleRemoveSubmodelRef(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shellID(w, r)
	if !ok {
		return
	}
	submodelID, err := identifierParam(r, "submodelID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.shells.RemoveSubmodelReference(r.Context(), id, submodelID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) shellID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := identifierParam(r, "shellID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return "", false
	}
	return id, true
}

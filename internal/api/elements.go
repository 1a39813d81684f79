package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

// attachmentFormField is the multipart field carrying the file.
const attachmentFormField = "file"

// handleListElements returns one page of top-level elements.
func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return
	}
	info, err := pagingInfo(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	res, err := s.submodels.ListElements(r.Context(), id, info)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writePage(w, res)
}

// handleCreateElement adds a top-level element.
func (s *Server) handleCreateElement(w http.ResponseWriter, r *http.Request) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return
	}
	e, ok := decodeElement(w, r)
	if !ok {
		return
	}
	if err := s.submodels.CreateElement(r.Context(), id, e); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handlePatchElements replaces top-level elements by idShort and returns
// the idShorts that were replaced.
func (s *Server) handlePatchElements(w http.ResponseWriter, r *http.Request) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return
	}
	var elements []*submodel.Element
	if err := json.NewDecoder(r.Body).Decode(&elements); err != nil {
		writeDecodeError(w, err)
		return
	}
	replaced, err := s.submodels.PatchElements(r.Context(), id, elements)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if replaced == nil {
		replaced = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"replaced": replaced})
}

// handleGetElement returns the element at the idShort path.
func (s *Server) handleGetElement(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	e, err := s.submodels.GetElement(r.Context(), id, path)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleCreateNestedElement adds an element under the container at the
// idShort path.
func (s *Server) handleCreateNestedElement(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	e, ok := decodeElement(w, r)
	if !ok {
		return
	}
	if err := s.submodels.CreateNestedElement(r.Context(), id, path, e); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleUpdateElement replaces the element at the idShort path.
func (s *Server) handleUpdateElement(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	e, ok := decodeElement(w, r)
	if !ok {
		return
	}
	if err := s.submodels.UpdateElement(r.Context(), id, path, e); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteElement removes the element at the idShort path.
func (s *Server) handleDeleteElement(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	if err := s.submodels.DeleteElement(r.Context(), id, path); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetElementValue returns the value-only view of an element.
func (s *Server) handleGetElementValue(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	v, err := s.submodels.GetElementValue(r.Context(), id, path)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleSetElementValue applies a value-only payload.
func (s *Server) handleSetElementValue(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.submodels.SetElementValue(r.Context(), id, path, raw); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetAttachment streams the file behind a File element.
func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	f, err := s.submodels.GetFile(r.Context(), id, path)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(f.Data)
}

// handlePutAttachment stores the multipart "file" field as the attachment
// of a File element. The optional "fileName" field overrides the uploaded
// name.
func (s *Server) handlePutAttachment(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	file, header, err := r.FormFile(attachmentFormField)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	name := r.FormValue("fileName")
	if name == "" {
		name = header.Filename
	}
	contentType := header.Header.Get("Content-Type")

	if err := s.submodels.SetFile(r.Context(), id, path, name, contentType, data); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteAttachment removes the attachment of a File element.
func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}
	if err := s.submodels.DeleteFile(r.Context(), id, path); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// elementParams decodes the submodel identifier and idShort path.
func (s *Server) elementParams(w http.ResponseWriter, r *http.Request) (string, idshort.Path, bool) {
	id, ok := s.submodelID(w, r)
	if !ok {
		return "", nil, false
	}
	path, err := pathParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return "", nil, false
	}
	return id, path, true
}

// decodeElement reads an element body, writing a 400 on failure.
func decodeElement(w http.ResponseWriter, r *http.Request) (*submodel.Element, bool) {
	var e submodel.Element
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		if errors.Is(err, submodel.ErrInvalidElement) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return nil, false
		}
		writeDecodeError(w, err)
		return nil, false
	}
	return &e, true
}

// writeDecodeError reports a body that could not be read. Oversized
// bodies get 413.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
		return
	}
	writeBadRequest(w, "invalid request body: "+err.Error())
}

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-twin-core/internal/pagination"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

// PagingMetadata carries the cursor of the next page.
type PagingMetadata struct {
	Cursor string `json:"cursor,omitempty"`
}

// PagedResult is the envelope of every list response.
type PagedResult[T any] struct {
	Result         []T            `json:"result"`
	PagingMetadata PagingMetadata `json:"paging_metadata"`
}

// writePage writes res with its cursor base64url encoded.
func writePage[T any](w http.ResponseWriter, res pagination.Result[T]) {
	items := res.Items
	if items == nil {
		items = []T{}
	}
	page := PagedResult[T]{Result: items}
	if res.NextCursor != "" {
		page.PagingMetadata.Cursor = submodel.EncodeIdentifier(res.NextCursor)
	}
	writeJSON(w, http.StatusOK, page)
}

// pagingInfo reads the limit and cursor query parameters.
func pagingInfo(r *http.Request) (pagination.Info, error) {
	var info pagination.Info
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return info, fmt.Errorf("limit must be a positive integer")
		}
		info.Limit = limit
	}
	if raw := q.Get("cursor"); raw != "" {
		cursor, err := submodel.DecodeIdentifier(raw)
		if err != nil {
			return info, fmt.Errorf("cursor must be base64url encoded")
		}
		info.Cursor = cursor
	}
	return info, nil
}

// identifierParam decodes a base64url identifier URL parameter.
func identifierParam(r *http.Request, name string) (string, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return "", fmt.Errorf("%s is not URL encoded: %w", name, err)
	}
	id, err := submodel.DecodeIdentifier(raw)
	if err != nil {
		return "", err
	}
	return id, nil
}

// pathParam parses the URL-escaped idShort path parameter.
func pathParam(r *http.Request) (idshort.Path, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "idShortPath"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", idshort.ErrMalformedPath, err)
	}
	return idshort.Parse(raw)
}

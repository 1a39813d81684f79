package api

import (
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-twin-core/internal/shell"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

func TestShells(t *testing.T) {
	router := testServer(t).buildRouter()
	shellID := submodel.EncodeIdentifier("urn:shell:1")
	base := "/api/v1/shells/" + shellID

	body := `{"id":"urn:shell:1","idShort":"Pump","assetInformation":{"assetKind":"Instance"}}`
	if w := do(t, router, http.MethodPost, "/api/v1/shells", body); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/api/v1/shells", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", w.Code)
	}

	for _, id := range []string{"urn:sm:2", "urn:sm:1"} {
		w := do(t, router, http.MethodPost, base+"/submodel-refs", submodel.ModelReference("Submodel", id))
		if w.Code != http.StatusCreated {
			t.Fatalf("add ref %s status = %d: %s", id, w.Code, w.Body.String())
		}
	}

	w := do(t, router, http.MethodGet, base+"/submodel-refs", nil)
	var page struct {
		Result []submodel.Reference `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var ids []string
	for _, ref := range page.Result {
		ids = append(ids, ref.Value())
	}
	if want := []string{"urn:sm:2", "urn:sm:1"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("refs = %v, want %v", ids, want)
	}

	w = do(t, router, http.MethodDelete, base+"/submodel-refs/"+submodel.EncodeIdentifier("urn:sm:2"), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("remove ref status = %d", w.Code)
	}
	w = do(t, router, http.MethodDelete, base+"/submodel-refs/"+submodel.EncodeIdentifier("urn:sm:2"), nil)
	if w.Code != http.StatusNotFound || decodeError(t, w).Code != ErrCodeReferenceNotFound {
		t.Errorf("remove ref again = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, base, nil)
	var got shell.Shell
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.IDShort != "Pump" || len(got.Submodels) != 1 {
		t.Errorf("shell = %+v", got)
	}

	w = do(t, router, http.MethodGet, "/api/v1/shells", nil)
	var list struct {
		Result []shell.Shell `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Result) != 1 {
		t.Errorf("shells = %d, want 1", len(list.Result))
	}

	if w := do(t, router, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, base, nil)
	if w.Code != http.StatusNotFound || decodeError(t, w).Code != ErrCodeShellNotFound {
		t.Errorf("get deleted = %d %s", w.Code, w.Body.String())
	}
}

func TestShells_Disabled(t *testing.T) {
	srv := testServer(t)
	srv.shells = nil
	if w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/shells", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

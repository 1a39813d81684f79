package shell

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

// Shell is an Asset Administration Shell. AssetInformation is kept as
// raw JSON.
type Shell struct {
	ID               string                `json:"id"`
	IDShort          string                `json:"idShort,omitempty"`
	AssetInformation json.RawMessage       `json:"assetInformation,omitempty"`
	Submodels        []*submodel.Reference `json:"submodels,omitempty"`
	CreatedAt        time.Time             `json:"-"`
	UpdatedAt        time.Time             `json:"-"`
}

// document is the stored JSON form of a shell. Submodel references are
// kept in their own table.
type document struct {
	ID               string          `json:"id"`
	IDShort          string          `json:"idShort,omitempty"`
	AssetInformation json.RawMessage `json:"assetInformation,omitempty"`
}

// referencedSubmodel returns the submodel id a reference points at.
func referencedSubmodel(ref *submodel.Reference) string {
	return ref.Value()
}

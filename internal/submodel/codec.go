package submodel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-twin-core/internal/submodel/query"
)

// Encode returns the stored JSON form of sm.
func Encode(sm *Submodel) ([]byte, error) {
	data, err := json.Marshal(sm)
	if err != nil {
		return nil, fmt.Errorf("encoding submodel %s: %w", sm.ID, err)
	}
	return data, nil
}

// Decode parses a stored JSON document.
func Decode(data []byte) (*Submodel, error) {
	var sm Submodel
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, fmt.Errorf("decoding submodel: %w", err)
	}
	return &sm, nil
}

// DecodeRow parses a stored JSON document into the generic form the
// query evaluator walks. Numbers are kept as json.Number so values
// survive the round trip unchanged.
func DecodeRow(data []byte) (query.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var row query.Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return row, nil
}

// ElementsFromRows converts aggregation output back into typed elements.
func ElementsFromRows(rows []query.Row) ([]*Element, error) {
	out := make([]*Element, 0, len(rows))
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encoding row: %w", err)
		}
		var e Element
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, nil
}

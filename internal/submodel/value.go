package submodel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueOnly returns the value-only representation of e. ok is false for
// kinds without one (Operation) and for unset references.
func ValueOnly(e *Element) (v any, ok bool) {
	switch e.ModelType {
	case KindProperty:
		return propertyValue(e), true
	case KindFile, KindBlob:
		return map[string]any{"contentType": e.ContentType, "value": e.Value}, true
	case KindReferenceElement:
		if e.Reference == nil {
			return nil, false
		}
		return e.Reference, true
	case KindRelationshipElement:
		return map[string]any{"first": e.First, "second": e.Second}, true
	case KindCollection:
		return namedValues(e.Children), true
	case KindList:
		items := make([]any, 0, len(e.Children))
		for _, c := range e.Children {
			if v, ok := ValueOnly(c); ok {
				items = append(items, v)
			}
		}
		return items, true
	case KindEntity:
		out := map[string]any{"statements": namedValues(e.Children)}
		if e.EntityType != "" {
			out["entityType"] = e.EntityType
		}
		if e.GlobalAssetID != "" {
			out["globalAssetId"] = e.GlobalAssetID
		}
		return out, true
	default:
		return nil, false
	}
}

func namedValues(elements []*Element) map[string]any {
	out := make(map[string]any, len(elements))
	for _, c := range elements {
		if v, ok := ValueOnly(c); ok {
			out[c.IDShort] = v
		}
	}
	return out
}

// SubmodelValueOnly maps each top-level idShort to its value-only form.
func SubmodelValueOnly(s *Submodel) map[string]any {
	return namedValues(s.SubmodelElements)
}

// propertyValue renders numeric and boolean properties as JSON numbers and
// booleans; everything else stays a string.
func propertyValue(e *Element) any {
	switch {
	case e.Value == "":
		return e.Value
	case isNumericType(e.ValueType):
		if _, err := strconv.ParseFloat(e.Value, 64); err == nil {
			return json.Number(e.Value)
		}
	case e.ValueType == "xs:boolean":
		if b, err := strconv.ParseBool(e.Value); err == nil {
			return b
		}
	}
	return e.Value
}

func isNumericType(valueType string) bool {
	switch strings.TrimPrefix(valueType, "xs:") {
	case "double", "float", "decimal", "integer", "int", "long", "short", "byte",
		"unsignedInt", "unsignedLong", "unsignedShort", "unsignedByte",
		"positiveInteger", "negativeInteger", "nonNegativeInteger", "nonPositiveInteger":
		return true
	default:
		return false
	}
}

// NumericValue returns the value of a numeric Property as float64.
func (e *Element) NumericValue() (float64, bool) {
	if e.ModelType != KindProperty || !isNumericType(e.ValueType) {
		return 0, false
	}
	f, err := strconv.ParseFloat(e.Value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SetValue applies a value-only payload to e in place.
//
// Supported kinds: Property (JSON scalar), File and Blob
// ({"contentType", "value"}), ReferenceElement (Reference) and
// RelationshipElement ({"first", "second"}).
func SetValue(e *Element, raw json.RawMessage) error {
	switch e.ModelType {
	case KindProperty:
		s, err := scalarText(raw)
		if err != nil {
			return err
		}
		e.Value = s
	case KindFile, KindBlob:
		var v struct {
			ContentType string `json:"contentType"`
			Value       string `json:"value"`
		}
		if err := decodeValue(raw, &v); err != nil {
			return err
		}
		e.ContentType = v.ContentType
		e.Value = v.Value
	case KindReferenceElement:
		var ref Reference
		if err := decodeValue(raw, &ref); err != nil {
			return err
		}
		e.Reference = &ref
	case KindRelationshipElement:
		var v struct {
			First  *Reference `json:"first"`
			Second *Reference `json:"second"`
		}
		if err := decodeValue(raw, &v); err != nil {
			return err
		}
		if v.First == nil || v.Second == nil {
			return fmt.Errorf("%w: relationship needs first and second", ErrInvalidValue)
		}
		e.First, e.Second = v.First, v.Second
	default:
		return fmt.Errorf("%w: %s", ErrValueNotSupported, e.ModelType)
	}
	return nil
}

func decodeValue(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

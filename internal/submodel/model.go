package submodel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-twin-core/internal/submodel/query"
)

// Kind is the modelType of a submodel element.
type Kind string

// Element kinds. The set is closed; unknown kinds are rejected on decode.
const (
	KindProperty            Kind = "Property"
	KindFile                Kind = "File"
	KindBlob                Kind = "Blob"
	KindReferenceElement    Kind = "ReferenceElement"
	KindRelationshipElement Kind = "RelationshipElement"
	KindOperation           Kind = "Operation"
	KindCollection          Kind = "SubmodelElementCollection"
	KindList                Kind = "SubmodelElementList"
	KindEntity              Kind = "Entity"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindProperty, KindFile, KindBlob, KindReferenceElement, KindRelationshipElement,
		KindOperation, KindCollection, KindList, KindEntity:
		return true
	default:
		return false
	}
}

// Slot names the document field holding the children of kind k, or ""
// for leaf kinds. This is the only place that maps kinds to child slots.
func (k Kind) Slot() string {
	switch k {
	case KindCollection, KindList:
		return query.FieldValue
	case KindEntity:
		return query.FieldStatements
	case KindProperty, KindFile, KindBlob, KindReferenceElement, KindRelationshipElement, KindOperation:
		return ""
	default:
		return ""
	}
}

// Positional reports whether children are addressed by index rather than name.
func (k Kind) Positional() bool {
	return k == KindList
}

// Key is one key of a Reference.
type Key struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Reference points at another model element or external concept.
type Reference struct {
	Type               string     `json:"type"`
	Keys               []Key      `json:"keys"`
	ReferredSemanticID *Reference `json:"referredSemanticId,omitempty"`
}

// Value returns the value of the first key, or "".
func (r *Reference) Value() string {
	if r == nil || len(r.Keys) == 0 {
		return ""
	}
	return r.Keys[0].Value
}

// ModelReference builds a ModelReference with a single key.
func ModelReference(keyType, value string) *Reference {
	return &Reference{Type: "ModelReference", Keys: []Key{{Type: keyType, Value: value}}}
}

// ExternalReference builds an ExternalReference with a single GlobalReference key.
func ExternalReference(value string) *Reference {
	return &Reference{Type: "ExternalReference", Keys: []Key{{Type: "GlobalReference", Value: value}}}
}

func (r *Reference) clone() *Reference {
	if r == nil {
		return nil
	}
	out := &Reference{Type: r.Type, ReferredSemanticID: r.ReferredSemanticID.clone()}
	if r.Keys != nil {
		out.Keys = append([]Key(nil), r.Keys...)
	}
	return out
}

// Element is a submodel element. Which fields are meaningful depends on
// ModelType; Children holds Collection children, List items and Entity
// statements alike and is serialized under the kind's slot.
type Element struct {
	ModelType  Kind
	IDShort    string
	SemanticID *Reference

	// ValueType is the XSD type of a Property, e.g. "xs:double".
	ValueType string
	// Value is the scalar value of a Property, the path or URL of a File,
	// or the base64 content of a Blob.
	Value string
	// ContentType is the MIME type of a File or Blob.
	ContentType string

	// Reference is the value of a ReferenceElement.
	Reference *Reference
	// First and Second are the ends of a RelationshipElement.
	First  *Reference
	Second *Reference

	EntityType    string
	GlobalAssetID string

	Children []*Element

	// Extra keeps attributes not modelled above (description, qualifiers,
	// operation variables, list settings) so documents round-trip intact.
	Extra map[string]json.RawMessage
}

// IsContainer reports whether e can hold children.
func (e *Element) IsContainer() bool {
	return e.ModelType.Slot() != ""
}

// children returns the child slot of a container, or nil for leaves.
func (e *Element) children() *[]*Element {
	if !e.IsContainer() {
		return nil
	}
	return &e.Children
}

// Clone returns a deep copy of e.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := *e
	out.SemanticID = e.SemanticID.clone()
	out.Reference = e.Reference.clone()
	out.First = e.First.clone()
	out.Second = e.Second.clone()
	if e.Children != nil {
		out.Children = make([]*Element, len(e.Children))
		for i, c := range e.Children {
			out.Children[i] = c.Clone()
		}
	}
	if e.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

// MarshalJSON writes the AAS JSON form, with children under "value" or
// "statements" depending on the kind.
func (e *Element) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+8)
	for k, v := range e.Extra {
		out[k] = v
	}

	out["modelType"] = e.ModelType
	if e.IDShort != "" {
		out[query.FieldIDShort] = e.IDShort
	}
	if e.SemanticID != nil {
		out["semanticId"] = e.SemanticID
	}

	switch e.ModelType {
	case KindProperty:
		putString(out, "valueType", e.ValueType)
		putString(out, query.FieldValue, e.Value)
	case KindFile, KindBlob:
		putString(out, "contentType", e.ContentType)
		putString(out, query.FieldValue, e.Value)
	case KindReferenceElement:
		if e.Reference != nil {
			out[query.FieldValue] = e.Reference
		}
	case KindRelationshipElement:
		if e.First != nil {
			out["first"] = e.First
		}
		if e.Second != nil {
			out["second"] = e.Second
		}
	case KindEntity:
		putString(out, "entityType", e.EntityType)
		putString(out, "globalAssetId", e.GlobalAssetID)
	case KindCollection, KindList, KindOperation:
	}

	if slot := e.ModelType.Slot(); slot != "" && len(e.Children) > 0 {
		out[slot] = e.Children
	}

	return json.Marshal(out)
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

// UnmarshalJSON reads the AAS JSON form. Unknown attributes land in Extra.
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidElement, err)
	}

	*e = Element{}
	take := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidElement, key, err)
		}
		return nil
	}

	if err := take("modelType", &e.ModelType); err != nil {
		return err
	}
	if !e.ModelType.Valid() {
		return fmt.Errorf("%w: unknown modelType %q", ErrInvalidElement, e.ModelType)
	}
	if err := take(query.FieldIDShort, &e.IDShort); err != nil {
		return err
	}
	if err := take("semanticId", &e.SemanticID); err != nil {
		return err
	}

	var err error
	switch e.ModelType {
	case KindProperty:
		if err = take("valueType", &e.ValueType); err == nil {
			e.Value, err = takeScalar(raw, query.FieldValue)
		}
	case KindFile, KindBlob:
		if err = take("contentType", &e.ContentType); err == nil {
			err = take(query.FieldValue, &e.Value)
		}
	case KindReferenceElement:
		err = take(query.FieldValue, &e.Reference)
	case KindRelationshipElement:
		if err = take("first", &e.First); err == nil {
			err = take("second", &e.Second)
		}
	case KindEntity:
		if err = take("entityType", &e.EntityType); err == nil {
			err = take("globalAssetId", &e.GlobalAssetID)
		}
	case KindCollection, KindList, KindOperation:
	}
	if err != nil {
		return err
	}

	if slot := e.ModelType.Slot(); slot != "" {
		if err := take(slot, &e.Children); err != nil {
			return err
		}
		if len(e.Children) == 0 {
			e.Children = nil
		}
	}

	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}

// takeScalar removes key from raw and renders a JSON string, number or
// boolean as text.
func takeScalar(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", nil
	}
	delete(raw, key)
	return scalarText(v)
}

func scalarText(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	switch {
	case len(v) == 0, bytes.Equal(v, []byte("null")):
		return "", nil
	case v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return s, nil
	case v[0] == '{', v[0] == '[':
		return "", fmt.Errorf("%w: expected a scalar, got %s", ErrInvalidValue, v)
	default:
		var probe any
		if err := json.Unmarshal(v, &probe); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return string(v), nil
	}
}

// Submodel is a container of ordered submodel elements.
type Submodel struct {
	ID                         string          `json:"id"`
	IDShort                    string          `json:"idShort,omitempty"`
	Kind                       string          `json:"kind,omitempty"`
	SemanticID                 *Reference      `json:"semanticId,omitempty"`
	Description                json.RawMessage `json:"description,omitempty"`
	DisplayName                json.RawMessage `json:"displayName,omitempty"`
	Administration             json.RawMessage `json:"administration,omitempty"`
	Qualifiers                 json.RawMessage `json:"qualifiers,omitempty"`
	EmbeddedDataSpecifications json.RawMessage `json:"embeddedDataSpecifications,omitempty"`
	SubmodelElements           []*Element      `json:"submodelElements,omitempty"`
}

// MarshalJSON adds the modelType discriminator.
func (s Submodel) MarshalJSON() ([]byte, error) {
	type plain Submodel
	return json.Marshal(struct {
		ModelType string `json:"modelType"`
		plain
	}{ModelType: "Submodel", plain: plain(s)})
}

// SemanticIDValue returns the first key of the semantic id, or "".
func (s *Submodel) SemanticIDValue() string {
	return s.SemanticID.Value()
}

// Metadata returns a copy of s without its elements.
func (s *Submodel) Metadata() *Submodel {
	out := *s
	out.SemanticID = s.SemanticID.clone()
	out.SubmodelElements = nil
	return &out
}

// Clone returns a deep copy of s.
func (s *Submodel) Clone() *Submodel {
	out := s.Metadata()
	if s.SubmodelElements != nil {
		out.SubmodelElements = make([]*Element, len(s.SubmodelElements))
		for i, e := range s.SubmodelElements {
			out.SubmodelElements[i] = e.Clone()
		}
	}
	return out
}

// Document is a stored submodel together with its version. Version grows
// by one on every write and drives optimistic concurrency.
type Document struct {
	Submodel *Submodel
	Version  int64
}

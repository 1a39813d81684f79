package query

import "fmt"

// Row is a decoded JSON object.
type Row = map[string]any

// Evaluate runs p over docs with document-store semantics and returns the
// resulting rows. Rows whose new root would not be an object are dropped.
// docs are not modified.
func Evaluate(docs []Row, p Pipeline) ([]Row, error) {
	rows := docs
	for _, o := range p {
		var err error
		rows, err = apply(rows, o)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
	}
	return rows, nil
}

func apply(rows []Row, o Op) ([]Row, error) {
	switch o := o.(type) {
	case MatchContainerByID:
		return filter(rows, func(r Row) bool {
			id, _ := r[FieldID].(string)
			return id == o.ID
		}), nil

	case UnwindTopLevel:
		return unwind(rows, FieldSubmodelElements, false), nil

	case MatchName:
		return filter(rows, func(r Row) bool {
			return idShortOf(r[FieldSubmodelElements]) == o.IDShort
		}), nil

	case ReplaceRootWithMatch:
		return reroot(rows, func(r Row) any { return r[FieldSubmodelElements] }), nil

	case UnwindChildSlot:
		return unwind(rows, o.Field, true), nil

	case MatchNameOrSkipIndex:
		if o.Segment.IsIndex() {
			holding := filter(rows, func(r Row) bool {
				return isElement(r[FieldValue]) || isElement(r[FieldStatements])
			})
			if o.Segment.Position >= len(holding) {
				return nil, nil
			}
			return holding[o.Segment.Position : o.Segment.Position+1], nil
		}
		return filter(rows, func(r Row) bool {
			return idShortOf(r[FieldValue]) == o.Segment.IDShort ||
				idShortOf(r[FieldStatements]) == o.Segment.IDShort
		}), nil

	case ReplaceRootCoalesce:
		return reroot(rows, func(r Row) any {
			if v, ok := r[o.Prefer]; ok && v != nil {
				return v
			}
			return r[o.Fallback]
		}), nil

	default:
		return nil, fmt.Errorf("unsupported operation %T", o)
	}
}

func filter(rows []Row, keep func(Row) bool) []Row {
	var out []Row
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// unwind emits one shallow copy of each row per entry of field. Rows with
// a missing, null or empty field are kept (without the field) only when
// preserve is set. Non-array values pass through as a single entry.
func unwind(rows []Row, field string, preserve bool) []Row {
	var out []Row
	for _, r := range rows {
		v, present := r[field]
		arr, isArray := v.([]any)
		switch {
		case !present || v == nil:
			if preserve {
				out = append(out, r)
			}
		case isArray && len(arr) == 0:
			if preserve {
				out = append(out, without(r, field))
			}
		case isArray:
			for _, item := range arr {
				out = append(out, with(r, field, item))
			}
		default:
			out = append(out, r)
		}
	}
	return out
}

func reroot(rows []Row, pick func(Row) any) []Row {
	var out []Row
	for _, r := range rows {
		if obj, ok := pick(r).(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func with(r Row, field string, v any) Row {
	out := make(Row, len(r))
	for k, val := range r {
		out[k] = val
	}
	out[field] = v
	return out
}

func without(r Row, field string) Row {
	out := make(Row, len(r))
	for k, val := range r {
		if k != field {
			out[k] = val
		}
	}
	return out
}

// isElement reports whether v is an element object. A Reference value is
// an object too but carries no modelType.
func isElement(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = obj[FieldModelType]
	return ok
}

func idShortOf(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj[FieldIDShort].(string)
	return s
}

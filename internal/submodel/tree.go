package submodel

import (
	"fmt"

	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

// locate walks path over a typed element tree and returns the slot that
// holds the addressed element together with its position in that slot.
// Returned errors wrap ErrElementNotFound.
func locate(top *[]*Element, path idshort.Path) (*[]*Element, int, error) {
	slot := top
	for i, seg := range path {
		idx := indexIn(*slot, seg)
		if idx < 0 {
			return nil, -1, fmt.Errorf("%w: %s", ErrElementNotFound, path[:i+1])
		}
		if i == len(path)-1 {
			return slot, idx, nil
		}
		next := (*slot)[idx].children()
		if next == nil {
			return nil, -1, fmt.Errorf("%w: %s", ErrElementNotFound, path[:i+2])
		}
		slot = next
	}
	return nil, -1, fmt.Errorf("%w: empty path", ErrElementNotFound)
}

// resolve returns the element addressed by path.
func resolve(top *[]*Element, path idshort.Path) (*Element, error) {
	slot, idx, err := locate(top, path)
	if err != nil {
		return nil, err
	}
	return (*slot)[idx], nil
}

func indexIn(elements []*Element, seg idshort.Segment) int {
	if seg.IsIndex() {
		if seg.Position < len(elements) {
			return seg.Position
		}
		return -1
	}
	for i, e := range elements {
		if e.IDShort == seg.IDShort {
			return i
		}
	}
	return -1
}

// hasNamedChild reports whether any element in elements has idShort.
func hasNamedChild(elements []*Element, idShort string) bool {
	if idShort == "" {
		return false
	}
	for _, e := range elements {
		if e.IDShort == idShort {
			return true
		}
	}
	return false
}

// walk calls fn for every element of the tree in depth-first order with
// the element's path.
func walk(elements []*Element, parent idshort.Path, fn func(idshort.Path, *Element)) {
	for i, e := range elements {
		var p idshort.Path
		switch {
		case len(parent) == 0:
			p = idshort.Path{idshort.NameSegment(e.IDShort)}
		case e.IDShort == "":
			p = parent.Child(idshort.IndexSegment(i))
		default:
			p = parent.Child(idshort.NameSegment(e.IDShort))
		}
		fn(p, e)
		if e.IsContainer() {
			walk(e.Children, p, fn)
		}
	}
}

package idshort

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedPath is returned for paths that do not follow the grammar.
var ErrMalformedPath = errors.New("malformed idShort path")

// Kind distinguishes Name from Index segments.
type Kind int

const (
	// Name selects a child by idShort.
	Name Kind = iota
	// Index selects a list item by position.
	Index
)

// Segment is one step of a Path.
type Segment struct {
	Kind Kind
	// IDShort is set for Name segments.
	IDShort string
	// Position is set for Index segments.
	Position int
}

// NameSegment builds a Name segment.
func NameSegment(idShort string) Segment {
	return Segment{Kind: Name, IDShort: idShort}
}

// IndexSegment builds an Index segment.
func IndexSegment(i int) Segment {
	return Segment{Kind: Index, Position: i}
}

// IsIndex reports whether s is an Index segment.
func (s Segment) IsIndex() bool { return s.Kind == Index }

// String renders the segment as it appears in a path.
func (s Segment) String() string {
	if s.Kind == Index {
		return "[" + strconv.Itoa(s.Position) + "]"
	}
	return s.IDShort
}

// Path is a parsed idShort path. A valid Path is never empty and starts
// with a Name segment.
type Path []Segment

// Parse tokenizes an idShort path.
//
// Parameters:
//   - s: Path string such as "technicalData.readings[2]"
//
// Returns:
//   - Path: Segments in their original order
//   - error: ErrMalformedPath (wrapped with the offending detail)
func Parse(s string) (Path, error) {
	var (
		path    Path
		token   strings.Builder
		inIndex bool
	)

	flushName := func() {
		if token.Len() > 0 {
			path = append(path, NameSegment(token.String()))
			token.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inIndex {
			switch c {
			case ']':
				n, err := strconv.Atoi(token.String())
				if err != nil || n < 0 || token.Len() == 0 {
					return nil, fmt.Errorf("%w: invalid index %q in %q", ErrMalformedPath, token.String(), s)
				}
				path = append(path, IndexSegment(n))
				token.Reset()
				inIndex = false
			case '[', '.':
				return nil, fmt.Errorf("%w: unexpected %q inside index at offset %d in %q", ErrMalformedPath, c, i, s)
			default:
				token.WriteByte(c)
			}
			continue
		}

		switch c {
		case '.':
			flushName()
		case '[':
			flushName()
			if len(path) == 0 {
				return nil, fmt.Errorf("%w: %q starts with an index", ErrMalformedPath, s)
			}
			inIndex = true
		case ']':
			return nil, fmt.Errorf("%w: unmatched ']' at offset %d in %q", ErrMalformedPath, i, s)
		default:
			token.WriteByte(c)
		}
	}

	if inIndex {
		return nil, fmt.Errorf("%w: unterminated '[' in %q", ErrMalformedPath, s)
	}
	flushName()

	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrMalformedPath)
	}
	return path, nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the path in canonical form: names joined by ".",
// indexes in brackets.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.Kind == Name && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.String())
	}
	return b.String()
}

// Depth is the number of segments.
func (p Path) Depth() int { return len(p) }

// IsNested reports whether the path addresses below the top level.
func (p Path) IsNested() bool { return len(p) > 1 }

// Root is the idShort of the addressed top-level element.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0].IDShort
}

// Last returns the final segment.
func (p Path) Last() Segment {
	return p[len(p)-1]
}

// Parent returns the path without its last segment. Parent of a depth-1
// path is empty.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Child returns a new path extending p by seg. p is not modified.
func (p Path) Child(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

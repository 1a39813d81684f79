package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

// placeholderPrefix names array-filter identifiers: elem0, elem1, ...
const placeholderPrefix = "elem"

// Op is one abstract read operation. The set is closed.
type Op interface {
	op()
	String() string
}

// MatchContainerByID keeps the submodel document with the given id.
type MatchContainerByID struct{ ID string }

// UnwindTopLevel emits one row per top-level element.
type UnwindTopLevel struct{}

// MatchName keeps rows whose top-level element has the given idShort.
type MatchName struct{ IDShort string }

// ReplaceRootWithMatch makes the unwound top-level element the row.
type ReplaceRootWithMatch struct{}

// UnwindChildSlot emits one row per entry of Field, keeping rows whose
// Field is missing or empty.
type UnwindChildSlot struct{ Field string }

// MatchNameOrSkipIndex keeps rows whose unwound child has the segment's
// idShort, or for an Index segment the row at that position among rows
// carrying a child.
type MatchNameOrSkipIndex struct{ Segment idshort.Segment }

// ReplaceRootCoalesce makes Prefer the row, or Fallback when Prefer is absent.
type ReplaceRootCoalesce struct{ Prefer, Fallback string }

func (MatchContainerByID) op()   {}
func (UnwindTopLevel) op()       {}
func (MatchName) op()            {}
func (ReplaceRootWithMatch) op() {}
func (UnwindChildSlot) op()      {}
func (MatchNameOrSkipIndex) op() {}
func (ReplaceRootCoalesce) op()  {}

func (o MatchContainerByID) String() string { return fmt.Sprintf("MatchContainerById(%s)", o.ID) }
func (UnwindTopLevel) String() string       { return "UnwindTopLevel" }
func (o MatchName) String() string          { return fmt.Sprintf("MatchName(%s)", o.IDShort) }
func (ReplaceRootWithMatch) String() string { return "ReplaceRootWithMatch" }
func (o UnwindChildSlot) String() string    { return fmt.Sprintf("UnwindChildSlot(%s)", o.Field) }
func (o MatchNameOrSkipIndex) String() string {
	if o.Segment.IsIndex() {
		return fmt.Sprintf("SkipIndex(%d)", o.Segment.Position)
	}
	return fmt.Sprintf("MatchNameOrSkipIndex(%s)", o.Segment.IDShort)
}
func (o ReplaceRootCoalesce) String() string {
	return fmt.Sprintf("ReplaceRootCoalesce(%s,%s)", o.Prefer, o.Fallback)
}

// Pipeline is an ordered list of read operations.
type Pipeline []Op

// ContainerID returns the id matched by the pipeline's first operation.
func (p Pipeline) ContainerID() string {
	if len(p) == 0 {
		return ""
	}
	if m, ok := p[0].(MatchContainerByID); ok {
		return m.ID
	}
	return ""
}

// String renders the pipeline for logs and tests.
func (p Pipeline) String() string {
	parts := make([]string, len(p))
	for i, o := range p {
		parts[i] = o.String()
	}
	return strings.Join(parts, " | ")
}

// ArrayFilter binds a placeholder of a WriteLocator key to an idShort.
type ArrayFilter struct {
	Placeholder string
	IDShort     string
}

// WriteLocator addresses an element for in-place replacement.
type WriteLocator struct {
	// Key is the dotted update key, e.g. submodelElements.$[elem0].value.2
	Key string
	// Filters bind each placeholder in Key, in order of appearance.
	Filters []ArrayFilter
	// Path is the parsed path the locator was built from.
	Path idshort.Path
}

// Compiled is the output of Compile.
type Compiled struct {
	Locator  WriteLocator
	Pipeline Pipeline
}

// Compile builds the write locator and read pipeline for path inside the
// submodel containerID. It performs no I/O.
func Compile(containerID string, path idshort.Path) Compiled {
	return Compiled{
		Locator:  Locate(path),
		Pipeline: Read(containerID, path),
	}
}

// CompileString parses and compiles in one step.
func CompileString(containerID, path string) (Compiled, error) {
	p, err := idshort.Parse(path)
	if err != nil {
		return Compiled{}, err
	}
	return Compile(containerID, p), nil
}

// Locate builds the write locator for path. Nested Name segments descend
// through the "value" slot; Entity statements are not addressable by a
// locator and are left to read-modify-write.
func Locate(path idshort.Path) WriteLocator {
	var (
		key     strings.Builder
		filters []ArrayFilter
	)

	key.WriteString(FieldSubmodelElements)
	for i, seg := range path {
		if i > 0 {
			key.WriteString("." + FieldValue)
		}
		if seg.IsIndex() {
			key.WriteString("." + strconv.Itoa(seg.Position))
			continue
		}
		placeholder := placeholderPrefix + strconv.Itoa(len(filters))
		key.WriteString(".$[" + placeholder + "]")
		filters = append(filters, ArrayFilter{Placeholder: placeholder, IDShort: seg.IDShort})
	}

	return WriteLocator{Key: key.String(), Filters: filters, Path: path}
}

// Read builds the read pipeline for path inside containerID.
func Read(containerID string, path idshort.Path) Pipeline {
	p := Pipeline{
		MatchContainerByID{ID: containerID},
		UnwindTopLevel{},
		MatchName{IDShort: path.Root()},
		ReplaceRootWithMatch{},
	}

	for _, seg := range path[1:] {
		p = append(p,
			UnwindChildSlot{Field: FieldValue},
			UnwindChildSlot{Field: FieldStatements},
			MatchNameOrSkipIndex{Segment: seg},
			ReplaceRootCoalesce{Prefer: FieldValue, Fallback: FieldStatements},
		)
	}
	return p
}

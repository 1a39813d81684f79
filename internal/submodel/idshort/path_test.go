package idshort

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Path
	}{
		{"A", Path{NameSegment("A")}},
		{"B.C", Path{NameSegment("B"), NameSegment("C")}},
		{"L[1]", Path{NameSegment("L"), IndexSegment(1)}},
		{"technicalData.readings[2]", Path{NameSegment("technicalData"), NameSegment("readings"), IndexSegment(2)}},
		{"m[0][12].cell", Path{NameSegment("m"), IndexSegment(0), IndexSegment(12), NameSegment("cell")}},
		{"L[0]x", Path{NameSegment("L"), IndexSegment(0), NameSegment("x")}},
		{"a..b", Path{NameSegment("a"), NameSegment("b")}},
		{"with space.and-dash", Path{NameSegment("with space"), NameSegment("and-dash")}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		"",
		".",
		"L[1",
		"B.L[",
		"[0]",
		"[0].a",
		"L[x]",
		"L[-1]",
		"L[]",
		"L]",
		"L[1.2]",
		"L[[1]]",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			if !errors.Is(err, ErrMalformedPath) {
				t.Errorf("Parse(%q) error = %v, want ErrMalformedPath", in, err)
			}
		})
	}
}

// Any mix of N names and M indexes parses into N+M segments in order.
func TestParse_Fidelity(t *testing.T) {
	patterns := []string{"n", "nn", "ni", "nii", "nin", "ninin", "niinnii", "nnnnnn"}

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			var (
				b    strings.Builder
				want Path
			)
			for i, k := range pattern {
				if k == 'i' {
					b.WriteString("[" + string(rune('0'+i)) + "]")
					want = append(want, IndexSegment(i))
					continue
				}
				if i > 0 {
					b.WriteByte('.')
				}
				name := "seg" + string(rune('a'+i))
				b.WriteString(name)
				want = append(want, NameSegment(name))
			}

			got, err := Parse(b.String())
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", b.String(), err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Parse(%q) = %v, want %v", b.String(), got, want)
			}
			if got.String() != b.String() {
				t.Errorf("String() = %q, want %q", got.String(), b.String())
			}
		})
	}
}

func TestPath_Helpers(t *testing.T) {
	p := MustParse("B.L[2].x")

	if p.Depth() != 4 {
		t.Errorf("Depth() = %d, want 4", p.Depth())
	}
	if p.Root() != "B" {
		t.Errorf("Root() = %q, want %q", p.Root(), "B")
	}
	if got := p.Parent().String(); got != "B.L[2]" {
		t.Errorf("Parent() = %q, want %q", got, "B.L[2]")
	}
	if p.Last() != NameSegment("x") {
		t.Errorf("Last() = %v, want x", p.Last())
	}
	if !p.IsNested() {
		t.Error("IsNested() = false, want true")
	}
	if MustParse("A").Parent() != nil {
		t.Error("Parent() of depth-1 path should be nil")
	}

	parent := p.Parent()
	child := parent.Child(IndexSegment(0))
	if child.String() != "B.L[2][0]" {
		t.Errorf("Child() = %q, want %q", child.String(), "B.L[2][0]")
	}
	if p.String() != "B.L[2].x" {
		t.Errorf("Child() modified the original path: %q", p.String())
	}
}

package pagination

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func identity(s string) string { return s }

// collect follows NextCursor until exhausted, returning the page sizes and
// every item delivered.
func collect(t *testing.T, src Source[string], limit int) (sizes []int, all []string) {
	t.Helper()
	info := Info{Limit: limit}
	for i := 0; i < 100; i++ {
		page, err := Paginate(context.Background(), src, identity, info)
		if err != nil {
			t.Fatalf("Paginate() error = %v", err)
		}
		sizes = append(sizes, len(page.Items))
		all = append(all, page.Items...)
		if !page.HasMore() {
			return sizes, all
		}
		info.Cursor = page.NextCursor
	}
	t.Fatal("pagination did not terminate")
	return nil, nil
}

func TestPaginate_FiveSubmodelsLimitTwo(t *testing.T) {
	ids := []string{"sm5", "sm1", "sm3", "sm2", "sm4"}

	sizes, all := collect(t, Sorted(ids, identity), 2)

	if !reflect.DeepEqual(sizes, []int{2, 2, 1}) {
		t.Errorf("page sizes = %v, want [2 2 1]", sizes)
	}
	want := []string{"sm1", "sm2", "sm3", "sm4", "sm5"}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("items = %v, want %v", all, want)
	}
}

func TestPaginate_Completeness(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}

	sources := map[string]Source[string]{
		"sorted":   Sorted(items, identity),
		"ordered":  Ordered(items, identity),
		"filtered": Filtered(items, identity),
	}

	for name, src := range sources {
		for limit := 1; limit <= len(items)+1; limit++ {
			_, all := collect(t, src, limit)
			if !reflect.DeepEqual(all, items) {
				t.Errorf("%s limit=%d: items = %v, want %v", name, limit, all, items)
			}
		}
	}
}

func TestPaginate_Unlimited(t *testing.T) {
	items := []string{"a", "b", "c"}

	for _, limit := range []int{0, -1} {
		page, err := Paginate(context.Background(), Sorted(items, identity), identity, Info{Limit: limit})
		if err != nil {
			t.Fatalf("Paginate() error = %v", err)
		}
		if len(page.Items) != 3 {
			t.Errorf("limit=%d: got %d items, want 3", limit, len(page.Items))
		}
		if page.NextCursor != "" {
			t.Errorf("limit=%d: NextCursor = %q, want empty", limit, page.NextCursor)
		}
	}

	page, err := Paginate(context.Background(), Sorted(items, identity), identity, Info{Cursor: "a"})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if !reflect.DeepEqual(page.Items, []string{"b", "c"}) {
		t.Errorf("unlimited after cursor = %v, want [b c]", page.Items)
	}
}

func TestPaginate_ExactFit(t *testing.T) {
	page, err := Paginate(context.Background(), Sorted([]string{"a", "b"}, identity), identity, Info{Limit: 2})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if page.HasMore() {
		t.Errorf("NextCursor = %q, want empty when the page holds the remainder", page.NextCursor)
	}
}

func TestOrdered_UnknownCursorRestarts(t *testing.T) {
	items := []string{"z", "y", "x"}

	page, err := Paginate(context.Background(), Ordered(items, identity), identity, Info{Limit: 2, Cursor: "missing"})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if !reflect.DeepEqual(page.Items, []string{"z", "y"}) {
		t.Errorf("items = %v, want [z y]", page.Items)
	}
	if page.NextCursor != "y" {
		t.Errorf("NextCursor = %q, want %q", page.NextCursor, "y")
	}
}

func TestFiltered_StoredOrderGreaterThan(t *testing.T) {
	items := []string{"c", "a", "d", "b"}

	page, err := Paginate(context.Background(), Filtered(items, identity), identity, Info{Cursor: "b"})
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if !reflect.DeepEqual(page.Items, []string{"c", "d"}) {
		t.Errorf("items = %v, want [c d]", page.Items)
	}
}

func TestPaginate_SourceError(t *testing.T) {
	boom := errors.New("backend down")
	src := Source[string](func(context.Context, string, int) ([]string, error) { return nil, boom })

	if _, err := Paginate(context.Background(), src, identity, Info{Limit: 1}); !errors.Is(err, boom) {
		t.Errorf("Paginate() error = %v, want wrapped %v", err, boom)
	}
}

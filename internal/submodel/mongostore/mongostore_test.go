package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
	"github.com/nerrad567/gray-twin-core/internal/submodel/query"
)

func TestTranslate(t *testing.T) {
	stages, err := translate(query.Read("sm1", idshort.MustParse("B.L[1]")))
	if err != nil {
		t.Fatalf("translate() error = %v", err)
	}

	var ops []string
	for _, s := range stages {
		ops = append(ops, s[0].Key)
	}
	want := "[$match $unwind $match $replaceRoot $unwind $unwind $match $replaceRoot $unwind $unwind $match $skip $limit $replaceRoot]"
	if got := fmt.Sprint(ops); got != want {
		t.Errorf("stages = %s\nwant     %s", got, want)
	}
}

func TestPathGuard(t *testing.T) {
	guard := pathGuard(query.FieldSubmodelElements, idshort.MustParse("B.L[1]"))
	got, err := bson.MarshalExtJSON(guard, false, false)
	if err != nil {
		t.Fatalf("MarshalExtJSON() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	outer := decoded["submodelElements"].(map[string]any)["$elemMatch"].(map[string]any)
	if outer["idShort"] != "B" {
		t.Errorf("outer idShort = %v, want B", outer["idShort"])
	}
	inner := outer["value"].(map[string]any)["$elemMatch"].(map[string]any)
	if inner["idShort"] != "L" {
		t.Errorf("inner idShort = %v, want L", inner["idShort"])
	}
	if _, ok := inner["value.1.modelType"]; !ok {
		t.Errorf("inner guard %v lacks value.1.modelType", inner)
	}
}

// connectTestBackend connects to GRAYTWIN_TEST_MONGO_URI or skips.
func connectTestBackend(t *testing.T) *Backend {
	t.Helper()
	uri := os.Getenv("GRAYTWIN_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GRAYTWIN_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b, err := Connect(ctx, config.MongoDBConfig{
		URI:        uri,
		Database:   "graytwin_test",
		Collection: fmt.Sprintf("submodels_%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() {
		_ = b.collection.Drop(context.Background())
		_ = b.Close(context.Background())
	})
	return b
}

const doc = `{
  "id": "sm1",
  "submodelElements": [
    {"modelType": "Property", "idShort": "A", "valueType": "xs:int", "value": "1"},
    {"modelType": "SubmodelElementCollection", "idShort": "B", "value": [
      {"modelType": "Property", "idShort": "C", "valueType": "xs:string", "value": "c"},
      {"modelType": "SubmodelElementList", "idShort": "L", "value": [
        {"modelType": "Property", "valueType": "xs:int", "value": "10"},
        {"modelType": "Property", "valueType": "xs:int", "value": "20"}
      ]}
    ]},
    {"modelType": "Entity", "idShort": "E", "statements": [
      {"modelType": "Property", "idShort": "S", "valueType": "xs:string", "value": "s"}
    ]}
  ]
}`

func TestBackend_Integration(t *testing.T) {
	b := connectTestBackend(t)
	ctx := context.Background()

	var sm submodel.Submodel
	if err := json.Unmarshal([]byte(doc), &sm); err != nil {
		t.Fatalf("decoding doc: %v", err)
	}
	if err := b.Insert(ctx, &sm); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := b.Insert(ctx, &sm); !errors.Is(err, submodel.ErrCollidingIdentifier) {
		t.Errorf("duplicate Insert() error = %v, want ErrCollidingIdentifier", err)
	}

	store := submodel.NewStore(b, 0)
	for path, want := range map[string]string{"A": "1", "B.C": "c", "B.L[1]": "20", "E.S": "s"} {
		got, err := store.Get(ctx, "sm1", idshort.MustParse(path))
		if err != nil {
			t.Fatalf("Get(%s) error = %v", path, err)
		}
		if got.Value != want {
			t.Errorf("Get(%s) = %q, want %q", path, got.Value, want)
		}
	}

	// In-place update through the locator, and a statements path through
	// the read-modify-write fallback.
	for _, path := range []string{"B.L[1]", "E.S"} {
		p := idshort.MustParse(path)
		e, _ := store.Get(ctx, "sm1", p)
		e.Value = "new"
		if err := store.Update(ctx, "sm1", p, e); err != nil {
			t.Fatalf("Update(%s) error = %v", path, err)
		}
		got, _ := store.Get(ctx, "sm1", p)
		if got.Value != "new" {
			t.Errorf("Get(%s) after update = %q, want new", path, got.Value)
		}
	}

	err := store.Update(ctx, "sm1", idshort.MustParse("B.L[7]"), &submodel.Element{ModelType: submodel.KindProperty})
	if !errors.Is(err, submodel.ErrElementNotFound) {
		t.Errorf("Update(out of range) error = %v, want ErrElementNotFound", err)
	}
	err = store.Update(ctx, "nope", idshort.MustParse("A"), &submodel.Element{ModelType: submodel.KindProperty, IDShort: "A"})
	if !errors.Is(err, submodel.ErrSubmodelNotFound) {
		t.Errorf("Update(missing submodel) error = %v, want ErrSubmodelNotFound", err)
	}

	if _, err := store.Get(ctx, "sm1", idshort.MustParse("A[0]")); !errors.Is(err, submodel.ErrElementNotFound) {
		t.Errorf("Get(A[0]) error = %v, want ErrElementNotFound", err)
	}

	n := &submodel.Element{ModelType: submodel.KindProperty, IDShort: "N"}
	if err := store.CreateTopLevel(ctx, "sm1", n); err != nil {
		t.Fatalf("CreateTopLevel() error = %v", err)
	}
	if err := store.CreateTopLevel(ctx, "sm1", n); !errors.Is(err, submodel.ErrCollidingElement) {
		t.Errorf("second CreateTopLevel(N) error = %v, want ErrCollidingElement", err)
	}
	if err := store.CreateTopLevel(ctx, "nope", n); !errors.Is(err, submodel.ErrSubmodelNotFound) {
		t.Errorf("CreateTopLevel(missing submodel) error = %v, want ErrSubmodelNotFound", err)
	}
	if err := store.Delete(ctx, "sm1", idshort.MustParse("A")); err != nil {
		t.Fatalf("Delete(A) error = %v", err)
	}
	if err := store.Delete(ctx, "sm1", idshort.MustParse("A")); !errors.Is(err, submodel.ErrElementNotFound) {
		t.Errorf("second Delete(A) error = %v, want ErrElementNotFound", err)
	}

	loaded, err := b.Load(ctx, "sm1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var names []string
	for _, e := range loaded.Submodel.SubmodelElements {
		names = append(names, e.IDShort)
	}
	if fmt.Sprint(names) != "[B E N]" {
		t.Errorf("top-level = %v, want [B E N]", names)
	}
	if loaded.Version < 5 {
		t.Errorf("version = %d, want every write to bump it", loaded.Version)
	}
}

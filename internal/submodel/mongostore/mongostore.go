// Package mongostore is a submodel.Backend over a MongoDB collection.
//
// One document per submodel, keyed by _id = submodel id, with a _version
// counter next to the submodel fields. Element reads run the compiled
// pipeline as a native aggregation; element replacement uses the compiled
// write locator with array filters, and top-level create and delete use
// $push and $pull, so most element writes avoid rewriting the document.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

const (
	fieldMongoID = "_id"
	fieldVersion = "_version"

	// semanticKeyPath is the first key value of the submodel semantic id.
	semanticKeyPath = "semanticId.keys.0.value"

	defaultTimeout = 10 * time.Second
)

// Backend implements submodel.Backend, submodel.LocatorWriter and
// submodel.TopLevelWriter.
type Backend struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect opens a client for cfg, verifies it with a ping and ensures the
// collection's indexes.
func Connect(ctx context.Context, cfg config.MongoDBConfig) (*Backend, error) {
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	opts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	b := New(client.Database(cfg.Database).Collection(cfg.Collection))
	b.client = client
	if err := b.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return b, nil
}

// New wraps an existing collection. The caller owns the client.
func New(collection *mongo.Collection) *Backend {
	return &Backend{collection: collection}
}

// EnsureIndexes creates the semantic id index used by filtered listing.
func (b *Backend) EnsureIndexes(ctx context.Context) error {
	_, err := b.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: semanticKeyPath, Value: 1}, {Key: fieldMongoID, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating semantic id index: %w", err)
	}
	return nil
}

// HealthCheck pings the server.
func (b *Backend) HealthCheck(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Ping(ctx, nil)
}

// Close disconnects a client opened by Connect.
func (b *Backend) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Disconnect(ctx)
}

// Insert stores sm at version 1.
func (b *Backend) Insert(ctx context.Context, sm *submodel.Submodel) error {
	doc, err := storedDocument(sm, 1)
	if err != nil {
		return err
	}
	if _, err := b.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", submodel.ErrCollidingIdentifier, sm.ID)
		}
		return fmt.Errorf("inserting submodel %s: %w", sm.ID, err)
	}
	return nil
}

// Load reads the document and its version.
func (b *Backend) Load(ctx context.Context, id string) (*submodel.Document, error) {
	var raw bson.M
	err := b.collection.FindOne(ctx, bson.M{fieldMongoID: id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, id)
		}
		return nil, fmt.Errorf("loading submodel %s: %w", id, err)
	}

	version := versionOf(raw[fieldVersion])
	sm, err := decodeSubmodel(raw)
	if err != nil {
		return nil, err
	}
	return &submodel.Document{Submodel: sm, Version: version}, nil
}

// CompareAndSwap replaces the document if its version is still expected.
func (b *Backend) CompareAndSwap(ctx context.Context, sm *submodel.Submodel, expected int64) error {
	doc, err := storedDocument(sm, expected+1)
	if err != nil {
		return err
	}
	res, err := b.collection.ReplaceOne(ctx, bson.M{fieldMongoID: sm.ID, fieldVersion: expected}, doc)
	if err != nil {
		return fmt.Errorf("replacing submodel %s: %w", sm.ID, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	exists, err := b.Exists(ctx, sm.ID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, sm.ID)
	}
	return fmt.Errorf("%w: %s moved past version %d", submodel.ErrConcurrentModification, sm.ID, expected)
}

// Delete removes the document.
func (b *Backend) Delete(ctx context.Context, id string) error {
	res, err := b.collection.DeleteOne(ctx, bson.M{fieldMongoID: id})
	if err != nil {
		return fmt.Errorf("deleting submodel %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, id)
	}
	return nil
}

// Exists counts at most one document with id.
func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	n, err := b.collection.CountDocuments(ctx, bson.M{fieldMongoID: id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("probing submodel %s: %w", id, err)
	}
	return n > 0, nil
}

// ListAfter pages by _id.
func (b *Backend) ListAfter(ctx context.Context, semanticID, after string, n int) ([]*submodel.Submodel, error) {
	filter := bson.M{}
	if after != "" {
		filter[fieldMongoID] = bson.M{"$gt": after}
	}
	if semanticID != "" {
		filter[semanticKeyPath] = semanticID
	}

	opts := options.Find().SetSort(bson.D{{Key: fieldMongoID, Value: 1}})
	if n > 0 {
		opts.SetLimit(int64(n))
	}

	cursor, err := b.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing submodels: %w", err)
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("reading submodels: %w", err)
	}

	out := make([]*submodel.Submodel, 0, len(raws))
	for _, raw := range raws {
		sm, err := decodeSubmodel(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, nil
}

// storedDocument converts sm to its stored form with _id and _version.
func storedDocument(sm *submodel.Submodel, version int64) (bson.D, error) {
	fields, err := toBSON(sm)
	if err != nil {
		return nil, err
	}
	doc := make(bson.D, 0, len(fields)+2)
	doc = append(doc, bson.E{Key: fieldMongoID, Value: sm.ID})
	doc = append(doc, fields...)
	doc = append(doc, bson.E{Key: fieldVersion, Value: version})
	return doc, nil
}

func decodeSubmodel(raw bson.M) (*submodel.Submodel, error) {
	delete(raw, fieldMongoID)
	delete(raw, fieldVersion)
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("converting document: %w", err)
	}
	return submodel.Decode(data)
}

// toBSON converts a JSON-marshalable value into an ordered document.
func toBSON(v any) (bson.D, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("converting document: %w", err)
	}
	return doc, nil
}

func versionOf(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

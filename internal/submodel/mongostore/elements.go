package mongostore

import (
	"context"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
	"github.com/nerrad567/gray-twin-core/internal/submodel/query"
)

// Aggregate runs p as a MongoDB aggregation.
func (b *Backend) Aggregate(ctx context.Context, p query.Pipeline) ([]*submodel.Element, error) {
	stages, err := translate(p)
	if err != nil {
		return nil, err
	}
	cursor, err := b.collection.Aggregate(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s: %w", p.ContainerID(), err)
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("reading aggregation: %w", err)
	}

	out := make([]*submodel.Element, 0, len(raws))
	for _, raw := range raws {
		data, err := bson.MarshalExtJSON(raw, false, false)
		if err != nil {
			return nil, fmt.Errorf("converting element: %w", err)
		}
		var e submodel.Element
		if err := e.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, nil
}

// translate maps the backend-neutral operations onto aggregation stages.
func translate(p query.Pipeline) (mongo.Pipeline, error) {
	var stages mongo.Pipeline
	for _, o := range p {
		switch o := o.(type) {
		case query.MatchContainerByID:
			stages = append(stages, bson.D{{Key: "$match", Value: bson.M{fieldMongoID: o.ID}}})
		case query.UnwindTopLevel:
			stages = append(stages, bson.D{{Key: "$unwind", Value: "$" + query.FieldSubmodelElements}})
		case query.MatchName:
			stages = append(stages, bson.D{{Key: "$match", Value: bson.M{
				query.FieldSubmodelElements + "." + query.FieldIDShort: o.IDShort,
			}}})
		case query.ReplaceRootWithMatch:
			stages = append(stages, bson.D{{Key: "$replaceRoot", Value: bson.M{
				"newRoot": "$" + query.FieldSubmodelElements,
			}}})
		case query.UnwindChildSlot:
			stages = append(stages, bson.D{{Key: "$unwind", Value: bson.M{
				"path":                       "$" + o.Field,
				"preserveNullAndEmptyArrays": true,
			}}})
		case query.MatchNameOrSkipIndex:
			if o.Segment.IsIndex() {
				stages = append(stages,
					bson.D{{Key: "$match", Value: bson.M{"$or": bson.A{
						bson.M{query.FieldValue + "." + query.FieldModelType: bson.M{"$exists": true}},
						bson.M{query.FieldStatements + "." + query.FieldModelType: bson.M{"$exists": true}},
					}}}},
					bson.D{{Key: "$skip", Value: int64(o.Segment.Position)}},
					bson.D{{Key: "$limit", Value: int64(1)}},
				)
				continue
			}
			stages = append(stages, bson.D{{Key: "$match", Value: bson.M{"$or": bson.A{
				bson.M{query.FieldValue + "." + query.FieldIDShort: o.Segment.IDShort},
				bson.M{query.FieldStatements + "." + query.FieldIDShort: o.Segment.IDShort},
			}}}})
		case query.ReplaceRootCoalesce:
			stages = append(stages, bson.D{{Key: "$replaceRoot", Value: bson.M{
				"newRoot": bson.M{"$ifNull": bson.A{"$" + o.Prefer, "$" + o.Fallback}},
			}}})
		default:
			return nil, fmt.Errorf("unsupported operation %T", o)
		}
	}
	return stages, nil
}

// SetAt replaces the element addressed by loc in place. The filter
// requires the whole path to exist so a miss reports matched=false
// instead of creating fields.
func (b *Backend) SetAt(ctx context.Context, id string, loc query.WriteLocator, e *submodel.Element) (bool, error) {
	doc, err := toBSON(e)
	if err != nil {
		return false, err
	}

	filters := make([]any, len(loc.Filters))
	for i, f := range loc.Filters {
		filters[i] = bson.M{f.Placeholder + "." + query.FieldIDShort: f.IDShort}
	}

	filter := bson.M{fieldMongoID: id}
	for k, v := range pathGuard(query.FieldSubmodelElements, loc.Path) {
		filter[k] = v
	}
	update := bson.M{
		"$set": bson.M{loc.Key: doc},
		"$inc": bson.M{fieldVersion: 1},
	}

	res, err := b.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetArrayFilters(filters))
	if err != nil {
		return false, fmt.Errorf("updating %s in %s: %w", loc.Path, id, err)
	}
	return res.MatchedCount > 0, nil
}

// pathGuard builds a filter matching documents in which path resolves
// through "value" slots below prefix.
func pathGuard(prefix string, path idshort.Path) bson.M {
	seg := path[0]
	rest := path[1:]
	if seg.IsIndex() {
		key := prefix + "." + strconv.Itoa(seg.Position)
		if len(rest) == 0 {
			return bson.M{key + "." + query.FieldModelType: bson.M{"$exists": true}}
		}
		return pathGuard(key+"."+query.FieldValue, rest)
	}

	cond := bson.M{query.FieldIDShort: seg.IDShort}
	if len(rest) > 0 {
		for k, v := range pathGuard(query.FieldValue, rest) {
			cond[k] = v
		}
	}
	return bson.M{prefix: bson.M{"$elemMatch": cond}}
}

// Append pushes e onto the top-level elements. The filter excludes
// documents already holding e's idShort.
func (b *Backend) Append(ctx context.Context, id string, e *submodel.Element) (bool, error) {
	doc, err := toBSON(e)
	if err != nil {
		return false, err
	}
	res, err := b.collection.UpdateOne(ctx,
		bson.M{
			fieldMongoID: id,
			query.FieldSubmodelElements + "." + query.FieldIDShort: bson.M{"$ne": e.IDShort},
		},
		bson.M{
			"$push": bson.M{query.FieldSubmodelElements: doc},
			"$inc":  bson.M{fieldVersion: 1},
		})
	if err != nil {
		return false, fmt.Errorf("appending to %s: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

// Pull removes every top-level element named idShort.
func (b *Backend) Pull(ctx context.Context, id, idShort string) (bool, error) {
	res, err := b.collection.UpdateOne(ctx,
		bson.M{fieldMongoID: id, query.FieldSubmodelElements + "." + query.FieldIDShort: idShort},
		bson.M{
			"$pull": bson.M{query.FieldSubmodelElements: bson.M{query.FieldIDShort: idShort}},
			"$inc":  bson.M{fieldVersion: 1},
		})
	if err != nil {
		return false, fmt.Errorf("removing %s from %s: %w", idShort, id, err)
	}
	return res.MatchedCount > 0, nil
}

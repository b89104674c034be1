package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoGateway stores each resource in its own collection. Documents keep
// their ObjectID in _id; it is exposed as the hex string "id".
type mongoGateway struct {
	db      *mongo.Database
	schemas schemaSet
}

// NewMongoGateway creates a Gateway over the given database.
func NewMongoGateway(db *mongo.Database, schemas ...Schema) Gateway {
	return &mongoGateway{db: db, schemas: newSchemaSet(schemas)}
}

// EnsureMongoIndexes creates one unique index per declared unique column.
// Only string values are indexed so records without the key do not collide.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database, schemas ...Schema) error {
	for _, sc := range schemas {
		if len(sc.Unique) == 0 {
			continue
		}
		models := make([]mongo.IndexModel, 0, len(sc.Unique))
		for _, col := range sc.Unique {
			models = append(models, mongo.IndexModel{
				Keys: bson.D{{Key: col, Value: 1}},
				Options: options.Index().
					SetName("uniq_" + col).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{col: bson.M{"$type": "string"}}),
			})
		}
		if _, err := db.Collection(sc.Table).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", sc.Table, err)
		}
	}
	return nil
}

// mongoFilter translates f. ok is false when an id value cannot be an
// ObjectID, in which case nothing can match.
func mongoFilter(f Filter) (bson.M, bool) {
	out := bson.M{}
	and := bson.A{}
	for _, c := range f {
		field, value := c.Field, c.Value
		if field == FieldID {
			field = "_id"
			s, _ := value.(string)
			oid, err := primitive.ObjectIDFromHex(s)
			if err != nil {
				if c.Op == OpNe {
					continue
				}
				return nil, false
			}
			value = oid
		}
		switch c.Op {
		case OpEq:
			and = append(and, bson.M{field: value})
		case OpNe:
			and = append(and, bson.M{field: bson.M{"$ne": value}})
		case OpEqFold:
			s, _ := value.(string)
			and = append(and, bson.M{field: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}})
		case OpNotEmpty:
			and = append(and, bson.M{field: bson.M{"$nin": bson.A{nil, ""}}})
		}
	}
	if len(and) > 0 {
		out["$and"] = and
	}
	return out, true
}

func mongoSort(sorts []Sort) bson.D {
	d := bson.D{}
	for _, s := range sorts {
		field := s.Field
		if field == FieldID {
			field = "_id"
		}
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: field, Value: dir})
	}
	return d
}

// fromDocument converts a decoded BSON document into a Record.
func fromDocument(sc Schema, doc bson.M) (Record, error) {
	row := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			if oid, ok := v.(primitive.ObjectID); ok {
				row[FieldID] = oid.Hex()
			} else {
				row[FieldID] = fmt.Sprint(v)
			}
			continue
		}
		row[k] = fromBSONValue(v)
	}
	return decodeRecord(sc, row)
}

func fromBSONValue(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSONValue(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSONValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}

// toDocument copies rec, dropping the id.
func toDocument(rec Record) bson.M {
	doc := make(bson.M, len(rec))
	for k, v := range rec {
		if k == FieldID {
			continue
		}
		if t, ok := v.(time.Time); ok {
			v = t.UTC()
		}
		doc[k] = v
	}
	return doc
}

func (g *mongoGateway) FindOne(ctx context.Context, table string, f Filter) (Record, error) {
	sc, err := g.schemas.check(table, f, nil)
	if err != nil {
		return nil, err
	}
	filter, ok := mongoFilter(f)
	if !ok {
		return nil, ErrNotFound
	}
	var doc bson.M
	if err := g.db.Collection(table).FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find one in %s: %w", table, err)
	}
	return fromDocument(sc, doc)
}

func (g *mongoGateway) FindMany(ctx context.Context, table string, f Filter, sort ...Sort) ([]Record, error) {
	sc, err := g.schemas.check(table, f, sort)
	if err != nil {
		return nil, err
	}
	filter, ok := mongoFilter(f)
	if !ok {
		return []Record{}, nil
	}
	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(mongoSort(sort))
	}
	cur, err := g.db.Collection(table).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find many in %s: %w", table, err)
	}
	defer cur.Close(ctx)

	out := []Record{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", table, err)
		}
		rec, err := fromDocument(sc, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func (g *mongoGateway) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	sc, err := g.schemas.lookup(table)
	if err != nil {
		return nil, err
	}
	if err := g.schemas.checkRecord(sc, rec); err != nil {
		return nil, err
	}
	doc := toDocument(rec)
	oid := primitive.NewObjectID()
	doc["_id"] = oid
	now := time.Now().UTC()
	if _, ok := doc[FieldCreatedAt]; !ok {
		doc[FieldCreatedAt] = now
	}
	if _, ok := doc[FieldUpdatedAt]; !ok {
		doc[FieldUpdatedAt] = now
	}
	if _, err := g.db.Collection(table).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return g.FindOne(ctx, table, ByID(oid.Hex()))
}

func (g *mongoGateway) Update(ctx context.Context, table, id string, patch Record) (Record, error) {
	sc, err := g.schemas.lookup(table)
	if err != nil {
		return nil, err
	}
	if err := g.schemas.checkRecord(sc, patch); err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bson.M
	err = g.db.Collection(table).
		FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": toDocument(patch)}, opts).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return fromDocument(sc, doc)
}

func (g *mongoGateway) Delete(ctx context.Context, table, id string) error {
	if _, err := g.schemas.lookup(table); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := g.db.Collection(table).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *mongoGateway) Count(ctx context.Context, table string, f Filter) (int64, error) {
	if _, err := g.schemas.check(table, f, nil); err != nil {
		return 0, err
	}
	filter, ok := mongoFilter(f)
	if !ok {
		return 0, nil
	}
	n, err := g.db.Collection(table).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

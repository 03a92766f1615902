// Package mongostore runs crud queries against MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	db *mongo.Database
}

var _ crud.Store = (*Store)(nil)

func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) Find(ctx context.Context, q *crud.Query) ([]crud.Document, error) {
	selected, added := store.FetchSelect(q)
	opts := mopt.Find()
	if proj := projection(selected, q.Exclude); proj != nil {
		opts.SetProjection(proj)
	}
	if len(q.Sort) > 0 {
		opts.SetSort(sortDoc(q.Sort))
	}
	if q.Limit != nil {
		opts.SetLimit(int64(*q.Limit))
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}

	cursor, err := s.coll(q.Collection).Find(ctx, buildFilter(q.Filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []bson.M
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]crud.Document, len(rows))
	for i, r := range rows {
		out[i] = document(r)
	}
	if err := store.Populate(ctx, s, out, q.Populate); err != nil {
		return nil, err
	}
	store.DropFields(out, added)
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, q *crud.Query) (crud.Document, error) {
	selected, added := store.FetchSelect(q)
	opts := mopt.FindOne()
	if proj := projection(selected, q.Exclude); proj != nil {
		opts.SetProjection(proj)
	}
	if len(q.Sort) > 0 {
		opts.SetSort(sortDoc(q.Sort))
	}

	var row bson.M
	err := s.coll(q.Collection).FindOne(ctx, buildFilter(q.Filter), opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	docs := []crud.Document{document(row)}
	if err := store.Populate(ctx, s, docs, q.Populate); err != nil {
		return nil, err
	}
	store.DropFields(docs, added)
	return docs[0], nil
}

func (s *Store) FindByID(ctx context.Context, collection string, id any) (crud.Document, error) {
	var row bson.M
	err := s.coll(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return document(row), nil
}

func (s *Store) Count(ctx context.Context, collection string, filter crud.Filter) (int64, error) {
	return s.coll(collection).CountDocuments(ctx, buildFilter(filter))
}

func (s *Store) Create(ctx context.Context, collection string, docs ...crud.Document) ([]crud.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	list := make([]any, len(docs))
	out := make([]crud.Document, len(docs))
	for i, d := range docs {
		doc := crud.Merge(d)
		if doc["_id"] == nil {
			doc["_id"] = primitive.NewObjectID()
		}
		list[i] = bson.M(doc)
		out[i] = doc
	}
	if _, err := s.coll(collection).InsertMany(ctx, list); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, filter crud.Filter, set crud.Document) (crud.Document, error) {
	changes := bson.M{}
	for k, v := range set {
		if k == "_id" {
			continue
		}
		changes[k] = v
	}
	opts := mopt.FindOneAndUpdate().SetReturnDocument(mopt.After)

	var row bson.M
	err := s.coll(collection).FindOneAndUpdate(ctx, buildFilter(filter), bson.M{"$set": changes}, opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return document(row), nil
}

func (s *Store) FindOneAndDelete(ctx context.Context, collection string, filter crud.Filter) (crud.Document, error) {
	var row bson.M
	err := s.coll(collection).FindOneAndDelete(ctx, buildFilter(filter)).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return document(row), nil
}

func (s *Store) ReplaceOne(ctx context.Context, collection string, filter crud.Filter, doc crud.Document) error {
	replacement := bson.M{}
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		replacement[k] = v
	}
	res, err := s.coll(collection).ReplaceOne(ctx, buildFilter(filter), replacement)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("replace %s: %w", collection, crud.ErrNoMatch)
	}
	return nil
}

// ParseID turns a hex string into an ObjectID. ObjectIDs pass through.
func (s *Store) ParseID(v any) (any, error) {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t, nil
	case string:
		oid, err := primitive.ObjectIDFromHex(t)
		if err != nil {
			return nil, fmt.Errorf("%q is not an ObjectID", t)
		}
		return oid, nil
	}
	return nil, fmt.Errorf("unsupported identifier %v (%T)", v, v)
}

// Plain converts driver values to JSON-friendly data: ObjectIDs to hex,
// DateTimes to time.Time, containers recursively.
func (s *Store) Plain(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case primitive.Decimal128:
		return t.String()
	case primitive.Regex:
		return t.Pattern
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = s.Plain(e.Value)
		}
		return out
	case bson.M:
		return s.Plain(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = s.Plain(val)
		}
		return out
	case bson.A:
		return s.Plain([]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = s.Plain(val)
		}
		return out
	case []crud.Document:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = s.Plain(val)
		}
		return out
	}
	return v
}

// document converts driver containers to plain maps and slices while
// keeping native identifiers and dates.
func document(m bson.M) crud.Document {
	out := make(crud.Document, len(m))
	for k, v := range m {
		out[k] = native(v)
	}
	return out
}

func native(v any) any {
	switch t := v.(type) {
	case bson.M:
		return document(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = native(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = native(item)
		}
		return out
	}
	return v
}

func sortDoc(keys []crud.Sort) bson.D {
	d := bson.D{}
	for _, k := range keys {
		direction := 1
		if k.Order < 0 {
			direction = -1
		}
		d = append(d, bson.E{Key: k.Field, Value: direction})
	}
	return d
}

// projection builds an inclusion projection from Select, else an
// exclusion projection from Exclude.
func projection(selected, excluded []string) bson.M {
	if len(selected) > 0 {
		p := bson.M{}
		for _, f := range selected {
			p[f] = 1
		}
		return p
	}
	if len(excluded) > 0 {
		p := bson.M{}
		for _, f := range excluded {
			p[f] = 0
		}
		return p
	}
	return nil
}

// Package memstore is an in-process document store. It evaluates the same
// filter dialect as the database adapters and backs STORE_DRIVER=memory
// and the service tests.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/store"

	"github.com/google/uuid"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string][]crud.Document

	// NewID generates identifiers for documents created without _id.
	NewID func() any
}

var _ crud.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: map[string][]crud.Document{},
		NewID:       func() any { return uuid.NewString() },
	}
}

// Seed inserts documents as given, without generating identifiers.
func (s *Store) Seed(collection string, docs ...crud.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.collections[collection] = append(s.collections[collection], copyDoc(d))
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Find(ctx context.Context, q *crud.Query) ([]crud.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched, err := s.match(q.Collection, q.Filter)
	if err != nil {
		return nil, err
	}
	store.SortDocuments(matched, q.Sort)
	matched = store.Window(matched, q.Skip, q.Limit)

	selected, added := store.FetchSelect(q)
	out := make([]crud.Document, len(matched))
	for i, d := range matched {
		out[i] = store.Project(d, selected, q.Exclude)
	}
	if err := store.Populate(ctx, s, out, q.Populate); err != nil {
		return nil, err
	}
	store.DropFields(out, added)
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, q *crud.Query) (crud.Document, error) {
	one := *q
	limit := 1
	one.Limit = &limit
	docs, err := s.Find(ctx, &one)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (s *Store) FindByID(ctx context.Context, collection string, id any) (crud.Document, error) {
	return s.FindOne(ctx, &crud.Query{
		Collection: collection,
		Filter:     crud.Filter{"_id": map[string]any{"$eq": id}},
	})
}

func (s *Store) Count(ctx context.Context, collection string, filter crud.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	matched, err := s.match(collection, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (s *Store) Create(ctx context.Context, collection string, docs ...crud.Document) ([]crud.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]crud.Document, 0, len(docs))
	for _, d := range docs {
		doc := copyDoc(d)
		if doc["_id"] == nil {
			doc["_id"] = s.NewID()
		}
		for _, existing := range s.collections[collection] {
			if existing["_id"] == doc["_id"] {
				return nil, fmt.Errorf("duplicate key: _id %v", doc["_id"])
			}
		}
		s.collections[collection] = append(s.collections[collection], doc)
		out = append(out, copyDoc(doc))
	}
	return out, nil
}

func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, filter crud.Filter, set crud.Document) (crud.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexOf(collection, filter)
	if err != nil || i < 0 {
		return nil, err
	}
	doc := s.collections[collection][i]
	for k, v := range set {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}
	return copyDoc(doc), nil
}

func (s *Store) FindOneAndDelete(ctx context.Context, collection string, filter crud.Filter) (crud.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexOf(collection, filter)
	if err != nil || i < 0 {
		return nil, err
	}
	docs := s.collections[collection]
	deleted := docs[i]
	s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
	return deleted, nil
}

func (s *Store) ReplaceOne(ctx context.Context, collection string, filter crud.Filter, doc crud.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexOf(collection, filter)
	if err != nil {
		return err
	}
	if i < 0 {
		return fmt.Errorf("replace %s: %w", collection, crud.ErrNoMatch)
	}
	replacement := copyDoc(doc)
	replacement["_id"] = s.collections[collection][i]["_id"]
	s.collections[collection][i] = replacement
	return nil
}

// ParseID accepts any non-empty scalar; identifiers are kept as given.
func (s *Store) ParseID(v any) (any, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, fmt.Errorf("empty identifier")
		}
		return t, nil
	case nil:
		return nil, fmt.Errorf("empty identifier")
	}
	return v, nil
}

func (s *Store) Plain(v any) any { return v }

func (s *Store) match(collection string, filter crud.Filter) ([]crud.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []crud.Document
	for _, d := range s.collections[collection] {
		ok, err := store.Match(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyDoc(d))
		}
	}
	return out, nil
}

// indexOf must be called with the write lock held.
func (s *Store) indexOf(collection string, filter crud.Filter) (int, error) {
	for i, d := range s.collections[collection] {
		ok, err := store.Match(d, filter)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

func copyDoc(d crud.Document) crud.Document {
	out := make(crud.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

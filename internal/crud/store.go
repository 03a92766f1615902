package crud

import "context"

// Document is a plain stored entity.
type Document = map[string]any

// Filter is a search condition in the document-store dialect:
// {"field": {"$op": value}}, {"$and": [...]}, {"$or": [...]}.
type Filter = map[string]any

type Sort struct {
	Field string
	Order int // 1 ascending, -1 descending
}

// Populate is a nested population directive: documents of From whose
// ForeignField matches the parent's LocalField are attached under Path.
type Populate struct {
	Path         string
	From         string
	LocalField   string
	ForeignField string
	JustOne      bool
	Select       []string
	Exclude      []string
	Populate     []*Populate
}

// Query is an executable find plan. Nil Limit means no limit. Exclude is
// only applied when Select is empty.
type Query struct {
	Collection string
	Filter     Filter
	Select     []string
	Exclude    []string
	Sort       []Sort
	Limit      *int
	Skip       int
	Populate   []*Populate
}

// Store is the document store the service runs against. FindOne and
// FindByID return (nil, nil) when nothing matches.
type Store interface {
	Find(ctx context.Context, q *Query) ([]Document, error)
	FindOne(ctx context.Context, q *Query) (Document, error)
	FindByID(ctx context.Context, collection string, id any) (Document, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	Create(ctx context.Context, collection string, docs ...Document) ([]Document, error)
	FindOneAndUpdate(ctx context.Context, collection string, filter Filter, set Document) (Document, error)
	FindOneAndDelete(ctx context.Context, collection string, filter Filter) (Document, error)
	// ReplaceOne fails with ErrNoMatch when filter selects nothing.
	ReplaceOne(ctx context.Context, collection string, filter Filter, doc Document) error

	// ParseID converts a request value into the store's identifier type.
	ParseID(v any) (any, error)
	// Plain converts store values (identifiers, driver containers) to plain data.
	Plain(v any) any
}

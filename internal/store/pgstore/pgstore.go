// Package pgstore keeps documents as JSONB rows in Postgres. Every
// collection lives in the documents table created by the migrations.
package pgstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/store"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const table = "documents"

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db DB
	sb squirrel.StatementBuilderType
}

var _ crud.Store = (*Store)(nil)

func New(db DB) *Store {
	return &Store{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (s *Store) selectDocs(collection string, filter crud.Filter) (squirrel.SelectBuilder, error) {
	where, err := buildWhere(filter)
	if err != nil {
		return squirrel.SelectBuilder{}, err
	}
	return s.sb.Select("doc").From(table).
		Where(squirrel.Eq{"collection": collection}).
		Where(where), nil
}

func (s *Store) Find(ctx context.Context, q *crud.Query) ([]crud.Document, error) {
	sel, err := s.selectDocs(q.Collection, q.Filter)
	if err != nil {
		return nil, err
	}
	for _, k := range q.Sort {
		value, _, err := jsonPath(k.Field)
		if err != nil {
			return nil, err
		}
		dir := "ASC"
		if k.Order < 0 {
			dir = "DESC"
		}
		sel = sel.OrderBy(value + " " + dir + " NULLS FIRST")
	}
	sel = sel.OrderBy("created_at ASC")
	if q.Limit != nil {
		sel = sel.Limit(uint64(*q.Limit))
	}
	if q.Skip > 0 {
		sel = sel.Offset(uint64(q.Skip))
	}

	docs, err := s.queryDocs(ctx, sel)
	if err != nil {
		return nil, err
	}
	selected, added := store.FetchSelect(q)
	for i, d := range docs {
		docs[i] = store.Project(d, selected, q.Exclude)
	}
	if err := store.Populate(ctx, s, docs, q.Populate); err != nil {
		return nil, err
	}
	store.DropFields(docs, added)
	return docs, nil
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
	uid, err := uuid.Parse(fmt.Sprint(id))
	if err != nil {
		return nil, nil
	}
	sql, args, err := s.sb.Select("doc").From(table).
		Where(squirrel.Eq{"collection": collection, "id": uid.String()}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.scanOne(s.db.QueryRow(ctx, sql, args...))
}

func (s *Store) Count(ctx context.Context, collection string, filter crud.Filter) (int64, error) {
	where, err := buildWhere(filter)
	if err != nil {
		return 0, err
	}
	sql, args, err := s.sb.Select("count(*)").From(table).
		Where(squirrel.Eq{"collection": collection}).
		Where(where).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Create(ctx context.Context, collection string, docs ...crud.Document) ([]crud.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	ins := s.sb.Insert(table).Columns("collection", "id", "doc")
	out := make([]crud.Document, len(docs))
	for i, d := range docs {
		doc := crud.Merge(d)
		id := uuid.NewString()
		if doc["_id"] != nil {
			parsed, err := s.ParseID(doc["_id"])
			if err != nil {
				return nil, err
			}
			id = parsed.(string)
		}
		doc["_id"] = id
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		ins = ins.Values(collection, id, squirrel.Expr("?::jsonb", string(raw)))
		out[i] = doc
	}
	sql, args, err := ins.ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return nil, err
	}
	// re-read through JSON so returned values match later reads
	for i, d := range out {
		raw, _ := json.Marshal(d)
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		out[i] = doc
	}
	return out, nil
}

// matchID is "id = (first matching id)", used by the single-row writes.
func (s *Store) matchID(collection string, filter crud.Filter) (squirrel.Sqlizer, error) {
	where, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}
	sub, args, err := squirrel.Select("id").From(table).
		Where(squirrel.Eq{"collection": collection}).
		Where(where).
		OrderBy("created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return squirrel.Expr("id = ("+sub+")", args...), nil
}

func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, filter crud.Filter, set crud.Document) (crud.Document, error) {
	match, err := s.matchID(collection, filter)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	raw, err = withoutID(raw)
	if err != nil {
		return nil, err
	}
	sql, args, err := s.sb.Update(table).
		Set("doc", squirrel.Expr("doc || ?::jsonb", string(raw))).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"collection": collection}).
		Where(match).
		Suffix("RETURNING doc").
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.scanOne(s.db.QueryRow(ctx, sql, args...))
}

func (s *Store) FindOneAndDelete(ctx context.Context, collection string, filter crud.Filter) (crud.Document, error) {
	match, err := s.matchID(collection, filter)
	if err != nil {
		return nil, err
	}
	sql, args, err := s.sb.Delete(table).
		Where(squirrel.Eq{"collection": collection}).
		Where(match).
		Suffix("RETURNING doc").
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.scanOne(s.db.QueryRow(ctx, sql, args...))
}

func (s *Store) ReplaceOne(ctx context.Context, collection string, filter crud.Filter, doc crud.Document) error {
	match, err := s.matchID(collection, filter)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	raw, err = withoutID(raw)
	if err != nil {
		return err
	}
	sql, args, err := s.sb.Update(table).
		Set("doc", squirrel.Expr("?::jsonb || jsonb_build_object('_id', doc -> '_id')", string(raw))).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"collection": collection}).
		Where(match).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("replace %s: %w", collection, crud.ErrNoMatch)
	}
	return nil
}

// ParseID accepts UUID strings and returns their canonical form.
func (s *Store) ParseID(v any) (any, error) {
	switch t := v.(type) {
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return nil, fmt.Errorf("%q is not a UUID", t)
		}
		return id.String(), nil
	case uuid.UUID:
		return t.String(), nil
	}
	return nil, fmt.Errorf("unsupported identifier %v (%T)", v, v)
}

// Plain is the identity: documents are decoded from JSON already.
func (s *Store) Plain(v any) any { return v }

func (s *Store) queryDocs(ctx context.Context, sel squirrel.SelectBuilder) ([]crud.Document, error) {
	sql, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []crud.Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) scanOne(row pgx.Row) (crud.Document, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeDoc(raw)
}

func decodeDoc(raw []byte) (crud.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return numbers(doc).(map[string]any), nil
}

func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = numbers(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = numbers(t[k])
		}
	}
	return v
}

func withoutID(raw []byte) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "_id")
	return json.Marshal(m)
}

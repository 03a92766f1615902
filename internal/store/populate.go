package store

import (
	"context"
	"fmt"

	"YcrudAPI/internal/crud"
)

// Finder is the part of a store that population needs.
type Finder interface {
	Find(ctx context.Context, q *crud.Query) ([]crud.Document, error)
}

// Populate resolves the directives for docs in place: one $in query per
// directive level, attached under the directive path as a document
// (JustOne) or a list.
func Populate(ctx context.Context, f Finder, docs []crud.Document, pops []*crud.Populate) error {
	for _, p := range pops {
		if err := populateOne(ctx, f, docs, p); err != nil {
			return err
		}
	}
	return nil
}

func populateOne(ctx context.Context, f Finder, docs []crud.Document, p *crud.Populate) error {
	var values []any
	seen := map[string]bool{}
	for _, doc := range docs {
		for _, v := range flatten(doc[p.LocalField]) {
			k := key(v)
			if v == nil || seen[k] {
				continue
			}
			seen[k] = true
			values = append(values, v)
		}
	}

	var related []crud.Document
	var added []string
	if len(values) > 0 {
		var selected []string
		selected, added = selectWithKeys(p)
		q := &crud.Query{
			Collection: p.From,
			Filter:     crud.Filter{p.ForeignField: map[string]any{"$in": values}},
			Select:     selected,
			Exclude:    p.Exclude,
			Populate:   p.Populate,
		}
		var err error
		related, err = f.Find(ctx, q)
		if err != nil {
			return fmt.Errorf("populate %s: %w", p.Path, err)
		}
	}

	byKey := map[string][]crud.Document{}
	for _, r := range related {
		for _, v := range flatten(r[p.ForeignField]) {
			k := key(v)
			byKey[k] = append(byKey[k], r)
		}
	}

	for _, doc := range docs {
		var matches []crud.Document
		for _, v := range flatten(doc[p.LocalField]) {
			matches = append(matches, byKey[key(v)]...)
		}
		if p.JustOne {
			if len(matches) > 0 {
				doc[p.Path] = matches[0]
			} else {
				doc[p.Path] = nil
			}
			continue
		}
		list := make([]any, len(matches))
		for i, m := range matches {
			list[i] = m
		}
		doc[p.Path] = list
	}
	DropFields(related, added)
	return nil
}

// selectWithKeys adds the fields matching and nested population need. It
// returns the selection and the fields it added.
func selectWithKeys(p *crud.Populate) (selected, added []string) {
	if len(p.Select) == 0 {
		return nil, nil
	}
	selected = append([]string(nil), p.Select...)
	need := []string{p.ForeignField}
	for _, child := range p.Populate {
		need = append(need, child.LocalField)
	}
	for _, n := range need {
		if !hasField(selected, n) {
			selected = append(selected, n)
			added = append(added, n)
		}
	}
	return selected, added
}

func flatten(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	}
	return []any{v}
}

func key(v any) string {
	return fmt.Sprintf("%v", v)
}

// FetchSelect extends the selection of q with the local fields its
// population reads. It returns the selection and the fields it added.
func FetchSelect(q *crud.Query) (selected, added []string) {
	if len(q.Select) == 0 {
		return nil, nil
	}
	selected = append([]string(nil), q.Select...)
	for _, p := range q.Populate {
		if !hasField(selected, p.LocalField) {
			selected = append(selected, p.LocalField)
			added = append(added, p.LocalField)
		}
	}
	return selected, added
}

// DropFields removes fields from every document.
func DropFields(docs []crud.Document, fields []string) {
	if len(fields) == 0 {
		return
	}
	for _, d := range docs {
		for _, f := range fields {
			delete(d, f)
		}
	}
}

func hasField(list []string, f string) bool {
	for _, s := range list {
		if s == f {
			return true
		}
	}
	return false
}

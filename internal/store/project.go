package store

import (
	"sort"
	"strings"

	"YcrudAPI/internal/crud"
)

// Project copies doc keeping only the selected top-level fields, or
// dropping the excluded ones when nothing is selected. Dotted names keep
// or drop their top-level segment.
func Project(doc crud.Document, selected, excluded []string) crud.Document {
	if len(selected) == 0 && len(excluded) == 0 {
		return crud.Merge(doc)
	}
	if len(selected) > 0 {
		out := make(crud.Document, len(selected))
		for _, f := range selected {
			top, _, _ := strings.Cut(f, ".")
			if v, ok := doc[top]; ok {
				out[top] = v
			}
		}
		return out
	}
	out := crud.Merge(doc)
	for _, f := range excluded {
		delete(out, f)
	}
	return out
}

// SortDocuments orders docs in place by the given keys. It is stable so
// equal keys keep insertion order.
func SortDocuments(docs []crud.Document, keys []crud.Sort) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			a, _ := Lookup(docs[i], k.Field)
			b, _ := Lookup(docs[j], k.Field)
			c := Compare(a, b)
			if c == 0 {
				continue
			}
			if k.Order < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Window applies skip and limit to an already sorted result.
func Window(docs []crud.Document, skip int, limit *int) []crud.Document {
	if skip > 0 {
		if skip >= len(docs) {
			return []crud.Document{}
		}
		docs = docs[skip:]
	}
	if limit != nil && *limit >= 0 && *limit < len(docs) {
		docs = docs[:*limit]
	}
	return docs
}

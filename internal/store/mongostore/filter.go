package mongostore

import (
	"fmt"

	"YcrudAPI/internal/crud"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// buildFilter converts the crud filter dialect to bson. The dialect is
// already Mongo-shaped; negated patterns become native regexes.
func buildFilter(f crud.Filter) bson.M {
	out := bson.M{}
	for key, cond := range f {
		switch key {
		case "$and", "$or":
			list, _ := cond.([]any)
			children := make(bson.A, 0, len(list))
			for _, item := range list {
				if sub, ok := item.(map[string]any); ok {
					children = append(children, buildFilter(sub))
				}
			}
			if len(children) > 0 {
				out[key] = children
			}
			continue
		}
		out[key] = buildClauses(cond)
	}
	return out
}

func buildClauses(cond any) any {
	ops, ok := cond.(map[string]any)
	if !ok {
		return cond
	}
	out := bson.M{}
	for op, v := range ops {
		switch op {
		case "$not":
			out[op] = buildNot(v)
		case "$in", "$nin":
			out[op] = toArray(v)
		default:
			out[op] = v
		}
	}
	return out
}

func buildNot(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if pattern, ok := m["$regex"]; ok {
		options, _ := m["$options"].(string)
		return primitive.Regex{Pattern: fmt.Sprint(pattern), Options: options}
	}
	return buildClauses(m)
}

func toArray(v any) bson.A {
	switch t := v.(type) {
	case []any:
		return bson.A(t)
	case bson.A:
		return t
	}
	return bson.A{v}
}

package pgstore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"YcrudAPI/internal/crud"

	"github.com/Masterminds/squirrel"
)

var fieldPathRe = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

// jsonPath returns the jsonb (#>) and text (#>>) accessors of a dotted field.
func jsonPath(field string) (value, text string, err error) {
	if !fieldPathRe.MatchString(field) {
		return "", "", fmt.Errorf("invalid field name %q", field)
	}
	p := "'{" + strings.ReplaceAll(field, ".", ",") + "}'"
	return "doc #> " + p, "doc #>> " + p, nil
}

// buildWhere compiles the crud filter dialect into a squirrel predicate
// over the doc column.
func buildWhere(f crud.Filter) (squirrel.Sqlizer, error) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := squirrel.And{}
	for _, key := range keys {
		cond := f[key]
		switch key {
		case "$and", "$or":
			list, ok := cond.([]any)
			if !ok {
				return nil, fmt.Errorf("value for %s must be a list", key)
			}
			children := make([]squirrel.Sqlizer, 0, len(list))
			for _, item := range list {
				sub, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("element of %s must be an object", key)
				}
				child, err := buildWhere(sub)
				if err != nil {
					return nil, err
				}
				children = append(children, child)
			}
			if key == "$and" {
				parts = append(parts, squirrel.And(children))
			} else {
				parts = append(parts, squirrel.Or(children))
			}
			continue
		}
		pred, err := fieldPredicate(key, cond)
		if err != nil {
			return nil, err
		}
		parts = append(parts, pred)
	}
	return parts, nil
}

func fieldPredicate(field string, cond any) (squirrel.Sqlizer, error) {
	value, text, err := jsonPath(field)
	if err != nil {
		return nil, err
	}
	ops, ok := cond.(map[string]any)
	if !ok {
		return eqExpr(value, cond)
	}

	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	parts := squirrel.And{}
	for _, op := range names {
		v := ops[op]
		var pred squirrel.Sqlizer
		switch op {
		case "$eq":
			pred, err = eqExpr(value, v)
		case "$ne":
			pred, err = eqExpr(value, v)
			if err == nil {
				pred, err = not(pred)
			}
		case "$gt", "$gte", "$lt", "$lte":
			pred = compareExpr(value, text, comparators[op], v)
		case "$in":
			pred, err = inExpr(value, v)
		case "$nin":
			pred, err = inExpr(value, v)
			if err == nil {
				pred, err = not(pred)
			}
		case "$regex":
			pred = regexExpr(text, v, ops["$options"])
		case "$options":
			continue
		case "$not":
			pred, err = fieldPredicate(field, v)
			if err == nil {
				pred, err = not(pred)
			}
		default:
			return nil, fmt.Errorf("unknown operator: %s", op)
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, pred)
	}
	return parts, nil
}

var comparators = map[string]string{"$gt": ">", "$gte": ">=", "$lt": "<", "$lte": "<="}

func eqExpr(value string, v any) (squirrel.Sqlizer, error) {
	if v == nil {
		return squirrel.Expr("COALESCE(" + value + ", 'null'::jsonb) = 'null'::jsonb"), nil
	}
	scalar, err := jsonText(v)
	if err != nil {
		return nil, err
	}
	wrapped, err := jsonText([]any{v})
	if err != nil {
		return nil, err
	}
	return squirrel.Expr(
		"("+value+" = ?::jsonb OR (jsonb_typeof("+value+") = 'array' AND "+value+" @> ?::jsonb))",
		scalar, wrapped,
	), nil
}

func compareExpr(value, text, cmp string, v any) squirrel.Sqlizer {
	switch n := v.(type) {
	case int, int32, int64, float32, float64:
		return squirrel.Expr(
			"(CASE WHEN jsonb_typeof("+value+") = 'number' THEN ("+text+")::numeric END) "+cmp+" ?::numeric",
			fmt.Sprint(n),
		)
	case time.Time:
		return squirrel.Expr(text+" "+cmp+" ?", n.UTC().Format(time.RFC3339Nano))
	}
	return squirrel.Expr(text+" "+cmp+" ?", fmt.Sprint(v))
}

func inExpr(value string, v any) (squirrel.Sqlizer, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("$in expects a list")
	}
	if len(list) == 0 {
		return squirrel.Expr("FALSE"), nil
	}
	items := make([]string, len(list))
	for i, item := range list {
		t, err := jsonText(item)
		if err != nil {
			return nil, err
		}
		items[i] = t
	}
	return squirrel.Expr(value+" = ANY(?::jsonb[])", items), nil
}

func regexExpr(text string, pattern, options any) squirrel.Sqlizer {
	op := "~"
	if o, ok := options.(string); ok && strings.Contains(o, "i") {
		op = "~*"
	}
	return squirrel.Expr("COALESCE("+text+" "+op+" ?, false)", fmt.Sprint(pattern))
}

func not(pred squirrel.Sqlizer) (squirrel.Sqlizer, error) {
	sql, args, err := pred.ToSql()
	if err != nil {
		return nil, err
	}
	return squirrel.Expr("NOT COALESCE(("+sql+"), false)", args...), nil
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode filter value: %w", err)
	}
	return string(b), nil
}

// Package store holds what the store adapters share: filter evaluation,
// projection and population.
package store

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"YcrudAPI/internal/crud"
)

// Match reports whether doc satisfies filter. It is the in-process
// evaluator of the filter dialect produced by the query builder.
func Match(doc map[string]any, filter crud.Filter) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and", "$or":
			list, ok := cond.([]any)
			if !ok {
				return false, fmt.Errorf("value for %s must be a list", key)
			}
			ok, err := matchLogical(doc, key, list)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		actual, exists := Lookup(doc, key)
		ok, err := matchField(actual, exists, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(doc map[string]any, op string, list []any) (bool, error) {
	for _, item := range list {
		sub, ok := item.(map[string]any)
		if !ok {
			return false, fmt.Errorf("element of %s must be an object", op)
		}
		matched, err := Match(doc, sub)
		if err != nil {
			return false, err
		}
		if op == "$or" && matched {
			return true, nil
		}
		if op == "$and" && !matched {
			return false, nil
		}
	}
	return op == "$and", nil
}

func matchField(actual any, exists bool, cond any) (bool, error) {
	ops, ok := cond.(map[string]any)
	if !ok || !isOperatorMap(ops) {
		return equal(actual, cond), nil
	}
	for op, expected := range ops {
		var matched bool
		switch op {
		case "$eq":
			matched = equal(actual, expected)
		case "$ne":
			matched = !equal(actual, expected)
		case "$gt":
			matched = exists && compareAny(actual, expected, func(c int) bool { return c > 0 })
		case "$gte":
			matched = exists && compareAny(actual, expected, func(c int) bool { return c >= 0 })
		case "$lt":
			matched = exists && compareAny(actual, expected, func(c int) bool { return c < 0 })
		case "$lte":
			matched = exists && compareAny(actual, expected, func(c int) bool { return c <= 0 })
		case "$in":
			matched = in(actual, expected)
		case "$nin":
			matched = !in(actual, expected)
		case "$regex":
			re, err := compile(expected, ops["$options"])
			if err != nil {
				return false, err
			}
			matched = exists && matchRegex(re, actual)
		case "$options":
			continue
		case "$not":
			sub, err := matchField(actual, exists, expected)
			if err != nil {
				return false, err
			}
			matched = !sub
		default:
			return false, fmt.Errorf("unknown operator: %s", op)
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// compareAny applies a range check to a value, or to any element of an
// array value. Null never satisfies a range.
func compareAny(actual, expected any, ok func(int) bool) bool {
	if arr, isArr := actual.([]any); isArr {
		for _, item := range arr {
			if compareAny(item, expected, ok) {
				return true
			}
		}
		return false
	}
	if actual == nil || expected == nil {
		return false
	}
	return ok(Compare(actual, expected))
}

func isOperatorMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// Lookup resolves a dotted path. Arrays on the way are searched element-wise
// and yield a slice of the matches.
func Lookup(doc map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := doc[head]
	if !ok || !nested {
		return v, ok
	}
	switch t := v.(type) {
	case map[string]any:
		return Lookup(t, rest)
	case []any:
		var out []any
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				if sub, ok := Lookup(m, rest); ok {
					out = append(out, sub)
				}
			}
		}
		return out, len(out) > 0
	case []map[string]any:
		var out []any
		for _, m := range t {
			if sub, ok := Lookup(m, rest); ok {
				out = append(out, sub)
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}

// equal matches scalars, and arrays by element as document stores do.
func equal(actual, expected any) bool {
	if arr, ok := actual.([]any); ok {
		if _, expectedArr := expected.([]any); !expectedArr {
			for _, item := range arr {
				if equal(item, expected) {
					return true
				}
			}
			return false
		}
	}
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if a, ok := toFloat(actual); ok {
		if b, ok := toFloat(expected); ok {
			return a == b
		}
	}
	if at, ok := toTime(actual); ok {
		if bt, ok := toTime(expected); ok {
			return at.Equal(bt)
		}
	}
	if reflect.TypeOf(actual).Comparable() && reflect.TypeOf(expected).Comparable() && actual == expected {
		return true
	}
	return reflect.DeepEqual(actual, expected) || fmt.Sprint(actual) == fmt.Sprint(expected) && sameKind(actual, expected)
}

func sameKind(a, b any) bool {
	_, as := a.(string)
	_, bs := b.(string)
	return as == bs
}

func in(actual, expected any) bool {
	list, ok := expected.([]any)
	if !ok {
		return false
	}
	for _, e := range list {
		if re, ok := e.(*regexp.Regexp); ok {
			if matchRegex(re, actual) {
				return true
			}
			continue
		}
		if equal(actual, e) {
			return true
		}
	}
	return false
}

func compile(pattern, options any) (*regexp.Regexp, error) {
	expr := fmt.Sprint(pattern)
	if opts, ok := options.(string); ok && strings.Contains(opts, "i") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid $regex: %w", err)
	}
	return re, nil
}

func matchRegex(re *regexp.Regexp, actual any) bool {
	switch t := actual.(type) {
	case nil:
		return false
	case string:
		return re.MatchString(t)
	case []any:
		for _, item := range t {
			if matchRegex(re, item) {
				return true
			}
		}
		return false
	}
	return re.MatchString(fmt.Sprint(actual))
}

// Compare orders two values: numbers numerically, times chronologically,
// everything else by string form. Nil sorts first.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if f1, ok := toFloat(a); ok {
		if f2, ok := toFloat(b); ok {
			switch {
			case f1 > f2:
				return 1
			case f1 < f2:
				return -1
			}
			return 0
		}
	}
	if t1, ok := toTime(a); ok {
		if t2, ok := toTime(b); ok {
			return t1.Compare(t2)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch i := v.(type) {
	case float64:
		return i, true
	case float32:
		return float64(i), true
	case int:
		return float64(i), true
	case int32:
		return float64(i), true
	case int64:
		return float64(i), true
	case uint:
		return float64(i), true
	case uint64:
		return float64(i), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

package crud

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Clause is one primitive store condition on a field.
type Clause struct {
	Operator string
	Value    any
}

// IDParser converts a request value into a native store identifier.
type IDParser func(v any) (any, error)

// Request operators.
const (
	OpEq      = "$eq"
	OpNe      = "$ne"
	OpGt      = "$gt"
	OpGte     = "$gte"
	OpLt      = "$lt"
	OpLte     = "$lte"
	OpStarts  = "$starts"
	OpEnds    = "$ends"
	OpCont    = "$cont"
	OpExcl    = "$excl"
	OpIn      = "$in"
	OpNotIn   = "$notin"
	OpIsNull  = "$isnull"
	OpNotNull = "$notnull"
	OpBetween = "$between"
	OpEqL     = "$eqL"
	OpNeL     = "$neL"
	OpStartsL = "$startsL"
	OpEndsL   = "$endsL"
	OpContL   = "$contL"
	OpExclL   = "$exclL"
	OpInL     = "$inL"
	OpNotInL  = "$notinL"
)

type translateFunc func(v any) ([]Clause, error)

var operatorMap = map[string]translateFunc{
	OpEq:  primitive("$eq"),
	OpNe:  primitive("$ne"),
	OpGt:  primitive("$gt"),
	OpGte: primitive("$gte"),
	OpLt:  primitive("$lt"),
	OpLte: primitive("$lte"),

	OpStarts: pattern(func(q string) string { return "^" + q }, false, false),
	OpEnds:   pattern(func(q string) string { return q + "$" }, false, false),
	OpCont:   pattern(func(q string) string { return q }, false, false),
	OpExcl:   pattern(func(q string) string { return q }, false, true),

	OpEqL:     pattern(func(q string) string { return "^" + q + "$" }, true, false),
	OpNeL:     pattern(func(q string) string { return "^" + q + "$" }, true, true),
	OpStartsL: pattern(func(q string) string { return "^" + q }, true, false),
	OpEndsL:   pattern(func(q string) string { return q + "$" }, true, false),
	OpContL:   pattern(func(q string) string { return q }, true, false),
	OpExclL:   pattern(func(q string) string { return q }, true, true),

	OpIn:     list("$in"),
	OpNotIn:  list("$nin"),
	OpInL:    listPattern(false),
	OpNotInL: listPattern(true),

	OpBetween: func(v any) ([]Clause, error) {
		items, err := toSlice(OpBetween, v)
		if err != nil {
			return nil, err
		}
		if len(items) != 2 {
			return nil, badRequest("%s expects exactly 2 values, got %d", OpBetween, len(items))
		}
		return []Clause{{"$gte", items[0]}, {"$lte", items[1]}}, nil
	},

	OpIsNull:  func(any) ([]Clause, error) { return []Clause{{"$eq", nil}}, nil },
	OpNotNull: func(any) ([]Clause, error) { return []Clause{{"$ne", nil}}, nil },
}

// IsOperator reports whether op belongs to the supported operator set.
func IsOperator(op string) bool {
	_, ok := operatorMap[op]
	return ok
}

// Translate maps a request operator to primitive store clauses. Unknown
// operators fail with KindUnsupportedOperator.
func Translate(op string, value any) ([]Clause, error) {
	fn, ok := operatorMap[op]
	if !ok {
		return nil, unsupportedOperator(op)
	}
	return fn(value)
}

// TranslateFilter translates one field condition into its clause map. An
// empty slice value yields a nil map: no constraint. Values of identifier
// fields are converted with parse before translation.
func TranslateFilter(field, op string, value any, isID bool, parse IDParser) (map[string]any, error) {
	if !IsOperator(op) {
		return nil, unsupportedOperator(op)
	}
	if isEmptySlice(value) {
		return nil, nil
	}
	if isID && parse != nil && !isPatternOp(op) {
		converted, err := convertIDs(value, parse)
		if err != nil {
			return nil, badRequest("invalid identifier for %s: %v", field, err)
		}
		value = converted
	}
	clauses, err := Translate(op, value)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(clauses))
	for _, c := range clauses {
		out[c.Operator] = c.Value
	}
	return out, nil
}

func primitive(name string) translateFunc {
	return func(v any) ([]Clause, error) {
		return []Clause{{name, v}}, nil
	}
}

func pattern(wrap func(string) string, insensitive, negate bool) translateFunc {
	return func(v any) ([]Clause, error) {
		return regexClauses(wrap(regexp.QuoteMeta(fmt.Sprint(v))), insensitive, negate), nil
	}
}

func list(name string) translateFunc {
	return func(v any) ([]Clause, error) {
		items, err := toSlice(name, v)
		if err != nil {
			return nil, err
		}
		return []Clause{{name, items}}, nil
	}
}

func listPattern(negate bool) translateFunc {
	return func(v any) ([]Clause, error) {
		items, err := toSlice("$in", v)
		if err != nil {
			return nil, err
		}
		quoted := make([]string, len(items))
		for i, it := range items {
			quoted[i] = regexp.QuoteMeta(fmt.Sprint(it))
		}
		return regexClauses("^("+strings.Join(quoted, "|")+")$", true, negate), nil
	}
}

func regexClauses(expr string, insensitive, negate bool) []Clause {
	re := map[string]any{"$regex": expr}
	if insensitive {
		re["$options"] = "i"
	}
	if negate {
		return []Clause{{"$not", re}}
	}
	clauses := []Clause{{"$regex", expr}}
	if insensitive {
		clauses = append(clauses, Clause{"$options", "i"})
	}
	return clauses
}

func isPatternOp(op string) bool {
	switch op {
	case OpStarts, OpEnds, OpCont, OpExcl, OpEqL, OpNeL, OpStartsL, OpEndsL, OpContL, OpExclL, OpInL, OpNotInL:
		return true
	}
	return false
}

func toSlice(op string, v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case nil:
		return nil, badRequest("%s expects a list of values", op)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, badRequest("%s expects a list of values", op)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func isEmptySlice(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.Len() == 0
}

func convertIDs(v any, parse IDParser) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, isString := v.(string); !isString {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			out := make([]any, rv.Len())
			for i := range out {
				id, err := parse(rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				out[i] = id
			}
			return out, nil
		}
	}
	return parse(v)
}

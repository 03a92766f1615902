package handler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/model"
)

const (
	delim    = "||"
	delimStr = ","
)

// ParseQuery reads the request query string: fields, s, filter, or, sort,
// join, limit (per_page), offset and page.
func ParseQuery(values url.Values, schema *model.Schema) (crud.ParsedRequestParams, error) {
	var parsed crud.ParsedRequestParams

	for _, raw := range pick(values, "fields", "select") {
		for _, f := range strings.Split(raw, delimStr) {
			if f = strings.TrimSpace(f); f != "" {
				parsed.Fields = append(parsed.Fields, f)
			}
		}
	}

	if raw := values.Get("s"); raw != "" {
		var cond crud.SCondition
		if err := json.Unmarshal([]byte(raw), &cond); err != nil {
			if crud.KindOf(err) != crud.KindUnknown {
				return parsed, err
			}
			return parsed, badQuery("invalid search param 's': %v", err)
		}
		parsed.Search = &cond
	}

	for _, raw := range pick(values, "filter", "filter[]") {
		f, err := parseFilter(raw, schema)
		if err != nil {
			return parsed, err
		}
		parsed.Filter = append(parsed.Filter, f)
	}
	for _, raw := range pick(values, "or", "or[]") {
		f, err := parseFilter(raw, schema)
		if err != nil {
			return parsed, err
		}
		parsed.Or = append(parsed.Or, f)
	}

	for _, raw := range pick(values, "sort", "sort[]") {
		field, order, _ := strings.Cut(raw, delimStr)
		order = strings.ToUpper(strings.TrimSpace(order))
		if strings.TrimSpace(field) == "" || (order != "ASC" && order != "DESC") {
			return parsed, badQuery("invalid sort %q", raw)
		}
		parsed.Sort = append(parsed.Sort, crud.QuerySort{Field: strings.TrimSpace(field), Order: order})
	}

	for _, raw := range pick(values, "join", "join[]") {
		field, sel, _ := strings.Cut(raw, delim)
		if strings.TrimSpace(field) == "" {
			return parsed, badQuery("invalid join %q", raw)
		}
		j := crud.QueryJoin{Field: strings.TrimSpace(field)}
		for _, f := range strings.Split(sel, delimStr) {
			if f = strings.TrimSpace(f); f != "" {
				j.Select = append(j.Select, f)
			}
		}
		parsed.Join = append(parsed.Join, j)
	}

	var err error
	if parsed.Limit, err = intParam(values, "limit", "per_page"); err != nil {
		return parsed, err
	}
	if parsed.Offset, err = intParam(values, "offset"); err != nil {
		return parsed, err
	}
	if parsed.Page, err = intParam(values, "page"); err != nil {
		return parsed, err
	}
	return parsed, nil
}

// parseFilter reads "field||$op||value". List operators take
// comma separated values.
func parseFilter(raw string, schema *model.Schema) (crud.QueryFilter, error) {
	parts := strings.SplitN(raw, delim, 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
		return crud.QueryFilter{}, badQuery("invalid filter %q", raw)
	}
	f := crud.QueryFilter{
		Field:    strings.TrimSpace(parts[0]),
		Operator: strings.TrimSpace(parts[1]),
	}
	if !crud.IsOperator(f.Operator) {
		return f, &crud.Error{Kind: crud.KindUnsupportedOperator, Message: "invalid operator " + f.Operator}
	}
	if f.Operator == crud.OpIsNull || f.Operator == crud.OpNotNull {
		return f, nil
	}
	if len(parts) < 3 {
		return f, badQuery("filter %q has no value", raw)
	}

	keepStrings := schema != nil && schema.IsIDField(f.Field)
	switch f.Operator {
	case crud.OpIn, crud.OpNotIn, crud.OpInL, crud.OpNotInL, crud.OpBetween:
		items := []any{}
		for _, v := range strings.Split(parts[2], delimStr) {
			if v == "" {
				continue
			}
			items = append(items, parseValue(v, keepStrings))
		}
		f.Value = items
	default:
		f.Value = parseValue(parts[2], keepStrings)
	}
	return f, nil
}

// parseValue turns "true"/"false" into bools and numeric strings into
// numbers. Identifier values stay strings.
func parseValue(v string, keepString bool) any {
	if keepString {
		return v
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !strings.ContainsAny(v, "xXnN") {
		return f
	}
	return v
}

func intParam(values url.Values, names ...string) (*int, error) {
	for _, name := range names {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, badQuery("invalid %s %q", name, raw)
		}
		return &n, nil
	}
	return nil, nil
}

func pick(values url.Values, names ...string) []string {
	var out []string
	for _, n := range names {
		out = append(out, values[n]...)
	}
	return out
}

func badQuery(format string, args ...any) error {
	return &crud.Error{Kind: crud.KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

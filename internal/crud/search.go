package crud

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// SCondition is the nested search tree of the `s` query parameter:
// {"field": value | {"$op": value}, "$and": [...], "$or": [...]}.
// Field conditions on one level are combined with AND.
type SCondition struct {
	Fields []FieldCondition
	And    []*SCondition
	Or     []*SCondition
}

// FieldCondition is one field entry of an SCondition level. Ops preserves
// the order the operators were written in.
type FieldCondition struct {
	Field string
	Ops   []QueryFilter
}

func (c *SCondition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return badRequest("invalid search condition: %v", err)
	}
	*c = SCondition{}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := raw[key]
		switch key {
		case "$and", "$or":
			var items []*SCondition
			if err := json.Unmarshal(val, &items); err != nil {
				if KindOf(err) != KindUnknown {
					return err
				}
				return badRequest("%s expects a list of conditions", key)
			}
			if key == "$and" {
				c.And = items
			} else {
				c.Or = items
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return unsupportedOperator(key)
		}
		fc, err := parseFieldCondition(key, val)
		if err != nil {
			return err
		}
		c.Fields = append(c.Fields, fc)
	}
	return nil
}

func parseFieldCondition(field string, val json.RawMessage) (FieldCondition, error) {
	fc := FieldCondition{Field: field}
	trimmed := bytes.TrimSpace(val)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var ops map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &ops); err != nil {
			return fc, badRequest("invalid condition for %s", field)
		}
		if isOperatorObject(ops) {
			names := make([]string, 0, len(ops))
			for op := range ops {
				names = append(names, op)
			}
			sort.Strings(names)
			for _, op := range names {
				v, err := decodeValue(ops[op])
				if err != nil {
					return fc, badRequest("invalid value for %s %s", field, op)
				}
				fc.Ops = append(fc.Ops, QueryFilter{Field: field, Operator: op, Value: v})
			}
			return fc, nil
		}
	}
	v, err := decodeValue(trimmed)
	if err != nil {
		return fc, badRequest("invalid value for %s", field)
	}
	fc.Ops = []QueryFilter{{Field: field, Operator: OpEq, Value: v}}
	return fc, nil
}

func isOperatorObject(m map[string]json.RawMessage) bool {
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

// decodeValue keeps numbers as json.Number so integers survive unchanged.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = normalizeNumbers(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalizeNumbers(t[k])
		}
		return t
	}
	return v
}

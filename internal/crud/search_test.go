package crud

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSConditionUnmarshal(t *testing.T) {
	var c SCondition
	raw := `{"name":"john","age":{"$gte":18,"$lt":65},"$or":[{"status":"vip"},{"score":{"$gt":1.5}}]}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := SCondition{
		Fields: []FieldCondition{
			{Field: "age", Ops: []QueryFilter{
				{Field: "age", Operator: "$gte", Value: int64(18)},
				{Field: "age", Operator: "$lt", Value: int64(65)},
			}},
			{Field: "name", Ops: []QueryFilter{{Field: "name", Operator: OpEq, Value: "john"}}},
		},
		Or: []*SCondition{
			{Fields: []FieldCondition{{Field: "status", Ops: []QueryFilter{{Field: "status", Operator: OpEq, Value: "vip"}}}}},
			{Fields: []FieldCondition{{Field: "score", Ops: []QueryFilter{{Field: "score", Operator: "$gt", Value: 1.5}}}}},
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSConditionCompiles(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)

	var c SCondition
	raw := `{"$and":[{"name":{"$starts":"jo"}},{"age":{"$between":[18,30]}}],"status":{"$ne":"blocked"}}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	got, err := b.SearchCondition(ParsedRequestParams{Search: &c})
	if err != nil {
		t.Fatalf("SearchCondition failed: %v", err)
	}
	want := Filter{
		"status": map[string]any{"$ne": "blocked"},
		"$and": []any{
			Filter{"name": map[string]any{"$regex": "^jo"}},
			Filter{"age": map[string]any{"$gte": int64(18), "$lte": int64(30)}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSConditionErrors(t *testing.T) {
	cases := map[string]Kind{
		`{"$nor":[{"a":1}]}`:     KindUnsupportedOperator,
		`{"$and":[{"$xor":[]}]}`: KindUnsupportedOperator,
		`{"$and":{"a":1}}`:       KindBadRequest,
		`[1,2]`:                  KindBadRequest,
	}
	for raw, kind := range cases {
		var c SCondition
		err := json.Unmarshal([]byte(raw), &c)
		if KindOf(err) != kind {
			t.Fatalf("%s: expected %v, got %v", raw, kind, err)
		}
	}
}

func TestSConditionUnknownOperatorFailsOnBuild(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)

	var c SCondition
	if err := json.Unmarshal([]byte(`{"name":{"$like":"x"}}`), &c); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, err := b.SearchCondition(ParsedRequestParams{Search: &c}); KindOf(err) != KindUnsupportedOperator {
		t.Fatalf("expected unsupported operator, got %v", err)
	}
}

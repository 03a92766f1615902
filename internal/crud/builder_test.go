package crud

import (
	"testing"

	"YcrudAPI/internal/model"

	"github.com/google/go-cmp/cmp"
)

// testSchemas links users -> posts -> comments the way LinkRelations does.
func testSchemas() (users, posts, comments *model.Schema) {
	users = &model.Schema{
		Name:       "users",
		Collection: "users",
		Fields: []model.Field{
			{Name: "_id", Type: "id"},
			{Name: "name", Type: "string"},
			{Name: "email", Type: "string"},
			{Name: "password", Type: "string"},
			{Name: "age", Type: "number"},
			{Name: "status", Type: "string"},
		},
		Relations: map[string]*model.Relation{
			"posts": {Ref: "posts", LocalField: "_id", ForeignField: "userId"},
		},
	}
	posts = &model.Schema{
		Name:       "posts",
		Collection: "posts",
		Fields: []model.Field{
			{Name: "_id", Type: "id"},
			{Name: "userId", Type: "id"},
			{Name: "title", Type: "string"},
			{Name: "body", Type: "string"},
		},
		Relations: map[string]*model.Relation{
			"author":   {Ref: "users", LocalField: "userId", ForeignField: "_id", JustOne: true},
			"comments": {Ref: "comments", LocalField: "_id", ForeignField: "postId"},
		},
	}
	comments = &model.Schema{
		Name:       "comments",
		Collection: "comments",
		Fields: []model.Field{
			{Name: "_id", Type: "id"},
			{Name: "postId", Type: "id"},
			{Name: "text", Type: "string"},
		},
	}
	users.Relations["posts"].SetSchemaRef(posts)
	posts.Relations["author"].SetSchemaRef(users)
	posts.Relations["comments"].SetSchemaRef(comments)
	return users, posts, comments
}

func TestSearchConditionPrecedence(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)

	parsed := ParsedRequestParams{
		Filter: []QueryFilter{
			{Field: "status", Operator: OpEq, Value: "client"},
			{Field: "name", Operator: OpEq, Value: "client"},
			{Field: "age", Operator: OpGt, Value: int64(18)},
		},
		ParamsFilter: []QueryFilter{{Field: "status", Operator: OpEq, Value: "param"}},
		AuthPersist:  map[string]any{"name": "claim"},
	}
	got, err := b.SearchCondition(parsed)
	if err != nil {
		t.Fatalf("SearchCondition failed: %v", err)
	}
	want := Filter{
		"status": map[string]any{"$eq": "param"},
		"name":   map[string]any{"$eq": "claim"},
		"age":    map[string]any{"$gt": int64(18)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchConditionFilterAndOr(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)

	got, err := b.SearchCondition(ParsedRequestParams{
		Filter: []QueryFilter{{Field: "age", Operator: OpGte, Value: int64(18)}},
		Or:     []QueryFilter{{Field: "status", Operator: OpEq, Value: "vip"}},
	})
	if err != nil {
		t.Fatalf("SearchCondition failed: %v", err)
	}
	want := Filter{"$or": []any{
		Filter{"age": map[string]any{"$gte": int64(18)}},
		Filter{"status": map[string]any{"$eq": "vip"}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}

	got, err = b.SearchCondition(ParsedRequestParams{
		Or: []QueryFilter{
			{Field: "status", Operator: OpEq, Value: "vip"},
			{Field: "age", Operator: OpLt, Value: int64(10)},
		},
	})
	if err != nil {
		t.Fatalf("SearchCondition failed: %v", err)
	}
	want = Filter{"$or": []any{
		Filter{"status": map[string]any{"$eq": "vip"}},
		Filter{"age": map[string]any{"$lt": int64(10)}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("or mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchConditionMergesSameField(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)

	got, err := b.SearchCondition(ParsedRequestParams{Filter: []QueryFilter{
		{Field: "age", Operator: OpGte, Value: int64(18)},
		{Field: "age", Operator: OpLt, Value: int64(65)},
		{Field: "age", Operator: OpLt, Value: int64(30)},
	}})
	if err != nil {
		t.Fatalf("SearchCondition failed: %v", err)
	}
	want := Filter{
		"age":  map[string]any{"$gte": int64(18), "$lt": int64(65)},
		"$and": []any{Filter{"age": map[string]any{"$lt": int64(30)}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchConditionKeepsCollidingOperators(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)

	cases := []struct {
		raw  string
		want Filter
	}{
		{
			raw: `{"name":{"$cont":"x","$startsL":"a"}}`,
			want: Filter{
				"name": map[string]any{"$regex": "x"},
				"$and": []any{Filter{"name": map[string]any{"$regex": "^a", "$options": "i"}}},
			},
		},
		{
			raw: `{"age":{"$gte":3,"$between":[5,10]}}`,
			want: Filter{
				"age":  map[string]any{"$gte": int64(5), "$lte": int64(10)},
				"$and": []any{Filter{"age": map[string]any{"$gte": int64(3)}}},
			},
		},
		{
			raw: `{"age":{"$gte":3,"$lt":9},"$and":[{"status":"on"}]}`,
			want: Filter{
				"age":  map[string]any{"$gte": int64(3), "$lt": int64(9)},
				"$and": []any{Filter{"status": map[string]any{"$eq": "on"}}},
			},
		},
	}
	for _, tc := range cases {
		var cond SCondition
		if err := cond.UnmarshalJSON([]byte(tc.raw)); err != nil {
			t.Fatalf("%s: unmarshal failed: %v", tc.raw, err)
		}
		got, err := b.SearchCondition(ParsedRequestParams{Search: &cond})
		if err != nil {
			t.Fatalf("%s: SearchCondition failed: %v", tc.raw, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%s: search mismatch (-want +got):\n%s", tc.raw, diff)
		}
	}
}

func TestEmptyArrayIsNoConstraint(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)

	omitted, err := b.SearchCondition(ParsedRequestParams{
		Filter: []QueryFilter{{Field: "age", Operator: OpGt, Value: int64(1)}},
	})
	if err != nil {
		t.Fatalf("SearchCondition failed: %v", err)
	}
	withEmpty, err := b.SearchCondition(ParsedRequestParams{
		Filter: []QueryFilter{
			{Field: "age", Operator: OpGt, Value: int64(1)},
			{Field: "status", Operator: OpIn, Value: []any{}},
		},
	})
	if err != nil {
		t.Fatalf("SearchCondition failed: %v", err)
	}
	if diff := cmp.Diff(omitted, withEmpty); diff != "" {
		t.Fatalf("empty list changed the search (-omitted +empty):\n%s", diff)
	}

	var cond SCondition
	if err := cond.UnmarshalJSON([]byte(`{"status":{"$in":[]},"$or":[{"name":"a"},{"status":{"$in":[]}}]}`)); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	got, err := b.SearchCondition(ParsedRequestParams{Search: &cond})
	if err != nil {
		t.Fatalf("SearchCondition failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected unconstrained search, got %v", got)
	}
}

func TestBuildIsPure(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)
	opts := &model.Options{Query: model.QueryOptions{
		Allow:   []string{"name", "email"},
		Persist: []string{"status"},
		Join:    map[string]model.JoinOption{"posts": {Eager: true, Allow: []string{"title"}}},
		Limit:   10,
	}}
	parsed := ParsedRequestParams{
		Fields: []string{"name"},
		Filter: []QueryFilter{{Field: "name", Operator: OpCont, Value: "jo"}},
	}

	first, err := b.Build(parsed, opts, true)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, err := b.Build(parsed, opts, true)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("builds differ (-first +second):\n%s", diff)
	}
	if len(opts.Query.Persist) != 1 || len(opts.Query.Allow) != 2 {
		t.Fatalf("options were mutated: %+v", opts.Query)
	}
}

func TestSelectFieldLaw(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)
	q := model.QueryOptions{
		Allow:   []string{"name", "email", "password"},
		Exclude: []string{"password"},
		Persist: []string{"status"},
	}

	got := b.Select(ParsedRequestParams{Fields: []string{"password", "name", "age"}}, q)
	if diff := cmp.Diff([]string{"status", "name", "_id"}, got); diff != "" {
		t.Fatalf("select mismatch (-want +got):\n%s", diff)
	}

	got = b.Select(ParsedRequestParams{}, q)
	if diff := cmp.Diff([]string{"status", "name", "email", "_id"}, got); diff != "" {
		t.Fatalf("default select mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinsEagerAndRequested(t *testing.T) {
	_, posts, _ := testSchemas()
	b := NewQueryBuilder(posts, nil)
	q := model.QueryOptions{Join: map[string]model.JoinOption{
		"author":   {Eager: true, Allow: []string{"name", "email"}},
		"comments": {Exclude: []string{"postId"}},
	}}

	got, err := b.Joins(ParsedRequestParams{Join: []QueryJoin{{Field: "comments", Select: []string{"text", "postId"}}}}, q)
	if err != nil {
		t.Fatalf("Joins failed: %v", err)
	}
	want := []*Populate{
		{Path: "author", From: "users", LocalField: "userId", ForeignField: "_id", JustOne: true, Select: []string{"name", "email"}},
		{Path: "comments", From: "comments", LocalField: "_id", ForeignField: "postId", Select: []string{"text"}, Exclude: []string{"postId"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("joins mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinsNestedPath(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)

	got, err := b.Joins(ParsedRequestParams{Join: []QueryJoin{
		{Field: "posts"},
		{Field: "posts.comments", Select: []string{"text"}},
	}}, model.QueryOptions{})
	if err != nil {
		t.Fatalf("Joins failed: %v", err)
	}
	if len(got) != 1 || got[0].Path != "posts" {
		t.Fatalf("expected one posts directive, got %+v", got)
	}
	if len(got[0].Populate) != 1 || got[0].Populate[0].Path != "comments" {
		t.Fatalf("expected nested comments directive, got %+v", got[0].Populate)
	}
	if diff := cmp.Diff([]string{"text"}, got[0].Populate[0].Select); diff != "" {
		t.Fatalf("nested select mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinsNestedPathAppliesAncestorOptions(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)
	q := model.QueryOptions{Join: map[string]model.JoinOption{
		"posts":          {Allow: []string{"title", "body"}},
		"posts.comments": {Allow: []string{"text"}},
	}}

	cases := []struct {
		name  string
		joins []QueryJoin
		want  []*Populate
	}{
		{
			name:  "nested only",
			joins: []QueryJoin{{Field: "posts.comments"}},
			want: []*Populate{{
				Path: "posts", From: "posts", LocalField: "_id", ForeignField: "userId",
				Select: []string{"title", "body"},
				Populate: []*Populate{{
					Path: "comments", From: "comments", LocalField: "_id", ForeignField: "postId",
					Select: []string{"text"},
				}},
			}},
		},
		{
			name:  "client select on the ancestor",
			joins: []QueryJoin{{Field: "posts", Select: []string{"title"}}, {Field: "posts.comments"}},
			want: []*Populate{{
				Path: "posts", From: "posts", LocalField: "_id", ForeignField: "userId",
				Select: []string{"title"},
				Populate: []*Populate{{
					Path: "comments", From: "comments", LocalField: "_id", ForeignField: "postId",
					Select: []string{"text"},
				}},
			}},
		},
		{
			name:  "only filtered fields requested",
			joins: []QueryJoin{{Field: "posts", Select: []string{"tags"}}},
			want: []*Populate{{
				Path: "posts", From: "posts", LocalField: "_id", ForeignField: "userId",
				Select: []string{"title", "body"},
			}},
		},
	}
	for _, tc := range cases {
		got, err := b.Joins(ParsedRequestParams{Join: tc.joins}, q)
		if err != nil {
			t.Fatalf("%s: Joins failed: %v", tc.name, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%s: joins mismatch (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestJoinsInvalidPath(t *testing.T) {
	_, posts, _ := testSchemas()
	b := NewQueryBuilder(posts, nil)

	_, err := b.Build(ParsedRequestParams{Join: []QueryJoin{{Field: "author.profile"}}}, &model.Options{}, false)
	if KindOf(err) != KindInvalidJoinPath {
		t.Fatalf("expected invalid join path, got %v", err)
	}
}

func TestTakeAndSkip(t *testing.T) {
	q := model.QueryOptions{Limit: 10, MaxLimit: 100}
	five, two, big, thirty := 5, 2, 500, 30

	cases := []struct {
		name     string
		parsed   ParsedRequestParams
		q        model.QueryOptions
		wantTake *int
		wantSkip int
		paginate bool
	}{
		{"defaults", ParsedRequestParams{}, q, intPtr(10), 0, false},
		{"page two", ParsedRequestParams{Page: &two}, q, intPtr(10), 10, true},
		{"client limit capped", ParsedRequestParams{Limit: &big}, q, intPtr(100), 0, false},
		{"offset", ParsedRequestParams{Limit: &five, Offset: &thirty}, q, intPtr(5), 30, true},
		{"no limit configured", ParsedRequestParams{Page: &two}, model.QueryOptions{MaxLimit: 100}, nil, 0, false},
	}
	for _, tc := range cases {
		take := GetTake(tc.parsed, tc.q)
		if diff := cmp.Diff(tc.wantTake, take); diff != "" {
			t.Fatalf("%s: take mismatch (-want +got):\n%s", tc.name, diff)
		}
		if skip := GetSkip(tc.parsed, take); skip != tc.wantSkip {
			t.Fatalf("%s: skip = %d, want %d", tc.name, skip, tc.wantSkip)
		}
		if got := DecidePagination(tc.parsed, &model.Options{Query: tc.q}); got != tc.paginate {
			t.Fatalf("%s: paginate = %v, want %v", tc.name, got, tc.paginate)
		}
	}
}

func TestSortFallsBackToResourceDefault(t *testing.T) {
	users, _, _ := testSchemas()
	b := NewQueryBuilder(users, nil)
	q := model.QueryOptions{Sort: []model.SortOption{{Field: "name", Order: "DESC"}}}

	if diff := cmp.Diff([]Sort{{Field: "name", Order: -1}}, b.Sort(ParsedRequestParams{}, q)); diff != "" {
		t.Fatalf("default sort mismatch (-want +got):\n%s", diff)
	}
	got := b.Sort(ParsedRequestParams{Sort: []QuerySort{{Field: "age", Order: "ASC"}}}, q)
	if diff := cmp.Diff([]Sort{{Field: "age", Order: 1}}, got); diff != "" {
		t.Fatalf("client sort mismatch (-want +got):\n%s", diff)
	}
}

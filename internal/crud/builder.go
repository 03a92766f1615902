package crud

import (
	"sort"
	"strings"

	"YcrudAPI/internal/model"
)

// QueryBuilder compiles parsed requests against one schema. It holds no
// per-request state and is safe for concurrent use.
type QueryBuilder struct {
	Schema  *model.Schema
	ParseID IDParser
}

// BuildResult is the query plan of one request. Take is nil when no
// limit applies.
type BuildResult struct {
	Query  *Query
	Take   *int
	Skip   int
	Search Filter
}

func NewQueryBuilder(schema *model.Schema, parseID IDParser) *QueryBuilder {
	return &QueryBuilder{Schema: schema, ParseID: parseID}
}

// Build compiles the search condition, field selection and joins. For
// many queries it also resolves sort, take and skip.
func (b *QueryBuilder) Build(parsed ParsedRequestParams, opts *model.Options, many bool) (*BuildResult, error) {
	if opts == nil {
		opts = &model.Options{}
	}
	search, err := b.SearchCondition(parsed)
	if err != nil {
		return nil, err
	}
	pops, err := b.Joins(parsed, opts.Query)
	if err != nil {
		return nil, err
	}

	q := &Query{
		Collection: b.Schema.Collection,
		Filter:     search,
		Select:     b.Select(parsed, opts.Query),
		Populate:   pops,
	}
	res := &BuildResult{Query: q, Search: search}
	if !many {
		return res, nil
	}

	q.Sort = b.Sort(parsed, opts.Query)
	res.Take = GetTake(parsed, opts.Query)
	res.Skip = GetSkip(parsed, res.Take)
	if res.Take != nil {
		q.Limit = intPtr(*res.Take)
	}
	if res.Skip > 0 {
		q.Skip = res.Skip
	}
	return res, nil
}

// SearchCondition merges the client search with paramsFilter and then
// authPersist; later layers win on key collision.
func (b *QueryBuilder) SearchCondition(parsed ParsedRequestParams) (Filter, error) {
	search := Filter{}

	client, err := b.clientSearch(parsed)
	if err != nil {
		return nil, err
	}
	for k, v := range client {
		search[k] = v
	}

	for _, f := range parsed.ParamsFilter {
		clauses, err := b.translate(f)
		if err != nil {
			return nil, err
		}
		if clauses == nil {
			continue
		}
		search[f.Field] = clauses
	}

	for _, field := range sortedKeys(parsed.AuthPersist) {
		clauses, err := b.translate(QueryFilter{Field: field, Operator: OpEq, Value: parsed.AuthPersist[field]})
		if err != nil {
			return nil, err
		}
		search[field] = clauses
	}
	return search, nil
}

func (b *QueryBuilder) clientSearch(parsed ParsedRequestParams) (Filter, error) {
	if parsed.Search != nil {
		return b.compileCondition(parsed.Search)
	}

	and, err := b.filtersToSearch(parsed.Filter)
	if err != nil {
		return nil, err
	}
	or, err := b.filtersToSearch(parsed.Or)
	if err != nil {
		return nil, err
	}

	switch {
	case len(parsed.Filter) > 0 && len(parsed.Or) > 0:
		if len(and) == 0 || len(or) == 0 {
			return Filter{}, nil
		}
		return Filter{"$or": []any{and, or}}, nil
	case len(parsed.Or) == 1:
		return or, nil
	case len(parsed.Or) > 1:
		branches := make([]any, 0, len(parsed.Or))
		for _, f := range parsed.Or {
			clauses, err := b.translate(f)
			if err != nil {
				return nil, err
			}
			if clauses == nil {
				return Filter{}, nil
			}
			branches = append(branches, Filter{f.Field: clauses})
		}
		return Filter{"$or": branches}, nil
	}
	return and, nil
}

// filtersToSearch ANDs the array form.
func (b *QueryBuilder) filtersToSearch(filters []QueryFilter) (Filter, error) {
	out := Filter{}
	var extra []any
	for _, f := range filters {
		clauses, err := b.translate(f)
		if err != nil {
			return nil, err
		}
		extra = addClauses(out, extra, f.Field, clauses)
	}
	if len(extra) > 0 {
		out["$and"] = extra
	}
	return out, nil
}

// addClauses merges clauses into the clause map of field. When a primitive
// is already set the clauses go to extra as their own condition.
func addClauses(out Filter, extra []any, field string, clauses map[string]any) []any {
	if len(clauses) == 0 {
		return extra
	}
	existing, ok := out[field].(map[string]any)
	if !ok {
		out[field] = clauses
		return extra
	}
	if collides(existing, clauses) {
		return append(extra, Filter{field: clauses})
	}
	merged := make(map[string]any, len(existing)+len(clauses))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range clauses {
		merged[k] = v
	}
	out[field] = merged
	return extra
}

func (b *QueryBuilder) compileCondition(c *SCondition) (Filter, error) {
	out := Filter{}
	if c == nil {
		return out, nil
	}
	var and []any
	for _, fc := range c.Fields {
		for _, op := range fc.Ops {
			clauses, err := b.translate(op)
			if err != nil {
				return nil, err
			}
			and = addClauses(out, and, fc.Field, clauses)
		}
	}

	for _, child := range c.And {
		compiled, err := b.compileCondition(child)
		if err != nil {
			return nil, err
		}
		if len(compiled) > 0 {
			and = append(and, compiled)
		}
	}
	if len(and) > 0 {
		out["$and"] = and
	}

	var or []any
	unconstrained := false
	for _, child := range c.Or {
		compiled, err := b.compileCondition(child)
		if err != nil {
			return nil, err
		}
		if len(compiled) == 0 {
			unconstrained = true
			continue
		}
		or = append(or, compiled)
	}
	if len(or) > 0 && !unconstrained {
		out["$or"] = or
	}
	return out, nil
}

func (b *QueryBuilder) translate(f QueryFilter) (map[string]any, error) {
	op := f.Operator
	if op == "" {
		op = OpEq
	}
	return TranslateFilter(f.Field, op, f.Value, b.Schema.IsIDField(f.Field), b.ParseID)
}

// NativeValues converts identifier-typed field values into store ids.
func (b *QueryBuilder) NativeValues(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if v == nil || !b.Schema.IsIDField(k) || b.ParseID == nil {
			out[k] = v
			continue
		}
		id, err := b.ParseID(v)
		if err != nil {
			return nil, badRequest("invalid identifier for %s: %v", k, err)
		}
		out[k] = id
	}
	return out, nil
}

// Select resolves the projection: persist fields, then the allowed
// columns the client asked for (all allowed when none), then primary keys.
func (b *QueryBuilder) Select(parsed ParsedRequestParams, q model.QueryOptions) []string {
	allowed := AllowedColumns(b.Schema.Columns(), q)

	columns := allowed
	if len(parsed.Fields) > 0 {
		columns = make([]string, 0, len(parsed.Fields))
		for _, f := range parsed.Fields {
			if contains(allowed, f) {
				columns = append(columns, f)
			}
		}
	}

	out := make([]string, 0, len(q.Persist)+len(columns)+1)
	out = appendUnique(out, q.Persist...)
	out = appendUnique(out, columns...)
	out = appendUnique(out, b.Schema.GetPrimaryKeys()...)
	return out
}

// AllowedColumns filters columns by the exclude and allow lists, each
// checked independently.
func AllowedColumns(columns []string, q model.QueryOptions) []string {
	if len(q.Exclude) == 0 && len(q.Allow) == 0 {
		return append([]string(nil), columns...)
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if len(q.Exclude) > 0 && contains(q.Exclude, c) {
			continue
		}
		if len(q.Allow) > 0 && !contains(q.Allow, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Joins plans population: eager joins always, then the client's other
// requested joins validated against the relation graph.
func (b *QueryBuilder) Joins(parsed ParsedRequestParams, q model.QueryOptions) ([]*Populate, error) {
	var pops []*Populate
	attached := map[string]bool{}

	for _, path := range sortedKeys(q.Join) {
		if !q.Join[path].Eager {
			continue
		}
		cond := QueryJoin{Field: path}
		for _, j := range parsed.Join {
			if j.Field == path {
				cond = j
				break
			}
		}
		p, err := b.populate(cond, q.Join)
		if err != nil {
			return nil, err
		}
		pops = mergePopulate(pops, p)
		attached[path] = true
	}

	for _, j := range parsed.Join {
		if attached[j.Field] {
			continue
		}
		p, err := b.populate(j, q.Join)
		if err != nil {
			return nil, err
		}
		pops = mergePopulate(pops, p)
		attached[j.Field] = true
	}
	return pops, nil
}

// populate builds the nested directive for one join path: the leaf gets
// the requested field selection, each ancestor gets the selection of its
// own join option and wraps the level below it.
func (b *QueryBuilder) populate(cond QueryJoin, joins map[string]model.JoinOption) (*Populate, error) {
	steps, err := b.Schema.ResolveJoinPath(cond.Field)
	if err != nil {
		return nil, invalidJoinPath(err)
	}
	segments := strings.Split(cond.Field, ".")

	var p *Populate
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		jo := joins[strings.Join(segments[:i+1], ".")]
		cur := &Populate{
			Path:         st.Name,
			From:         st.Target.Collection,
			LocalField:   st.Relation.LocalField,
			ForeignField: st.Relation.ForeignField,
			JustOne:      st.Relation.JustOne,
		}
		if p == nil {
			cur.Select = joinSelect(cond.Select, jo)
		} else {
			cur.Select = joinSelect(nil, jo)
			cur.Populate = []*Populate{p}
		}
		if len(jo.Exclude) > 0 {
			cur.Exclude = append([]string(nil), jo.Exclude...)
		}
		p = cur
	}
	return p, nil
}

func joinSelect(requested []string, jo model.JoinOption) []string {
	out := filterJoinFields(requested, jo)
	if len(out) == 0 && len(requested) > 0 {
		out = filterJoinFields(jo.Allow, jo)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func filterJoinFields(requested []string, jo model.JoinOption) []string {
	if len(requested) == 0 {
		requested = jo.Allow
	}
	var out []string
	for _, f := range requested {
		if contains(jo.Exclude, f) {
			continue
		}
		if len(jo.Allow) > 0 && !contains(jo.Allow, f) {
			continue
		}
		out = appendUnique(out, f)
	}
	return out
}

// mergePopulate attaches p to list, folding directives that share a path.
// Two selections on one path narrow to their intersection; an empty one
// selects everything.
func mergePopulate(list []*Populate, p *Populate) []*Populate {
	for _, existing := range list {
		if existing.Path != p.Path {
			continue
		}
		existing.Select = intersectSelect(existing.Select, p.Select)
		existing.Exclude = appendUnique(existing.Exclude, p.Exclude...)
		for _, child := range p.Populate {
			existing.Populate = mergePopulate(existing.Populate, child)
		}
		return list
	}
	return append(list, p)
}

func intersectSelect(a, b []string) []string {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}
	var out []string
	for _, f := range a {
		if contains(b, f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return a
	}
	return out
}

// Sort returns the client sort, else the resource default, else none.
func (b *QueryBuilder) Sort(parsed ParsedRequestParams, q model.QueryOptions) []Sort {
	if len(parsed.Sort) > 0 {
		out := make([]Sort, 0, len(parsed.Sort))
		for _, s := range parsed.Sort {
			out = append(out, Sort{Field: s.Field, Order: sortOrder(s.Order)})
		}
		return out
	}
	if len(q.Sort) > 0 {
		out := make([]Sort, 0, len(q.Sort))
		for _, s := range q.Sort {
			out = append(out, Sort{Field: s.Field, Order: sortOrder(s.Order)})
		}
		return out
	}
	return nil
}

func sortOrder(order string) int {
	if strings.EqualFold(order, "DESC") {
		return -1
	}
	return 1
}

// GetTake is the client limit capped to max_limit, else the resource
// limit capped the same way, else nil.
func GetTake(parsed ParsedRequestParams, q model.QueryOptions) *int {
	var take int
	switch {
	case parsed.Limit != nil && *parsed.Limit > 0:
		take = *parsed.Limit
	case q.Limit > 0:
		take = q.Limit
	default:
		return nil
	}
	if q.MaxLimit > 0 && take > q.MaxLimit {
		take = q.MaxLimit
	}
	return &take
}

// GetSkip is (page-1)*take when both are set, else the offset, else 0.
func GetSkip(parsed ParsedRequestParams, take *int) int {
	if parsed.Page != nil && take != nil {
		page := *parsed.Page
		if page < 1 {
			page = 1
		}
		return (page - 1) * *take
	}
	if parsed.Offset != nil && *parsed.Offset > 0 {
		return *parsed.Offset
	}
	return 0
}

// DecidePagination reports whether getMany answers with an envelope.
func DecidePagination(parsed ParsedRequestParams, opts *model.Options) bool {
	if opts != nil && opts.Query.AlwaysPaginate {
		return true
	}
	var q model.QueryOptions
	if opts != nil {
		q = opts.Query
	}
	return (parsed.Page != nil || parsed.Offset != nil) && GetTake(parsed, q) != nil
}

func collides(a, b map[string]any) bool {
	for k := range b {
		if _, ok := a[k]; ok {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		if !contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

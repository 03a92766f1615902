package crud

import (
	"context"
	"math"

	"YcrudAPI/internal/logger"
	"YcrudAPI/internal/model"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Service runs the CRUD operations of one resource against a store.
type Service struct {
	Resource *model.Resource
	Store    Store
	Builder  *QueryBuilder
}

func NewService(res *model.Resource, store Store) *Service {
	return &Service{
		Resource: res,
		Store:    store,
		Builder:  NewQueryBuilder(&res.Schema, store.ParseID),
	}
}

func (s *Service) collection() string { return s.Resource.Schema.Collection }

func (s *Service) options(req CrudRequest) *model.Options {
	if req.Options != nil {
		return req.Options
	}
	return &s.Resource.Options
}

// GetMany returns []Document, or *GetManyDefaultResponse when the request
// paginates. Count and fetch run concurrently on the same filter.
func (s *Service) GetMany(ctx context.Context, req CrudRequest) (any, error) {
	opts := s.options(req)
	built, err := s.Builder.Build(req.Parsed, opts, true)
	if err != nil {
		return nil, err
	}
	logger.Debug("crud_get_many", map[string]any{
		"resource": s.Resource.Name,
		"filter":   built.Search,
		"select":   built.Query.Select,
		"skip":     built.Skip,
	})

	if !DecidePagination(req.Parsed, opts) {
		data, err := s.Store.Find(ctx, built.Query)
		if err != nil {
			return nil, storeFailure(err, "find %s", s.collection())
		}
		if data == nil {
			data = []Document{}
		}
		return data, nil
	}

	var (
		data  []Document
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = s.Store.Find(gctx, built.Query)
		return storeFailure(err, "find %s", s.collection())
	})
	g.Go(func() error {
		var err error
		total, err = s.Store.Count(gctx, s.collection(), built.Search)
		return storeFailure(err, "count %s", s.collection())
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return CreatePageInfo(data, total, built.Take, built.Skip), nil
}

// CreatePageInfo builds the envelope; page and pageCount are 1 without take.
func CreatePageInfo(data []Document, total int64, take *int, skip int) *GetManyDefaultResponse {
	if data == nil {
		data = []Document{}
	}
	page, pageCount := 1, 1
	if take != nil && *take > 0 {
		page = skip / *take + 1
		if total > 0 {
			pageCount = int(math.Ceil(float64(total) / float64(*take)))
		}
	}
	return &GetManyDefaultResponse{
		Data:      data,
		Count:     len(data),
		Total:     total,
		Page:      page,
		PageCount: pageCount,
	}
}

func (s *Service) GetOne(ctx context.Context, req CrudRequest) (Document, error) {
	return s.getOneOrFail(ctx, req)
}

// CreateOne persists the body with params and authPersist applied and
// returns what the store created.
func (s *Service) CreateOne(ctx context.Context, req CrudRequest, dto Document) (Document, error) {
	entity, err := s.prepareEntityBeforeSave(dto, req.Parsed)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, badRequest("Empty data. Nothing to save.")
	}
	created, err := s.Store.Create(ctx, s.collection(), entity)
	if err != nil {
		return nil, storeFailure(err, "create %s", s.collection())
	}
	if len(created) == 0 {
		return nil, storeFailure(errNothingCreated, "create %s", s.collection())
	}
	return created[0], nil
}

// CreateMany persists every non-empty element of the bulk list.
func (s *Service) CreateMany(ctx context.Context, req CrudRequest, dto *CreateManyDto) ([]Document, error) {
	if dto == nil || len(dto.Bulk) == 0 {
		return nil, badRequest("Empty data. Nothing to save.")
	}
	bulk := make([]Document, 0, len(dto.Bulk))
	for _, one := range dto.Bulk {
		entity, err := s.prepareEntityBeforeSave(one, req.Parsed)
		if err != nil {
			return nil, err
		}
		if entity != nil {
			bulk = append(bulk, entity)
		}
	}
	if len(bulk) == 0 {
		return nil, badRequest("Empty data. Nothing to save.")
	}
	created, err := s.Store.Create(ctx, s.collection(), bulk...)
	if err != nil {
		return nil, storeFailure(err, "create %s", s.collection())
	}
	return created, nil
}

// UpdateOne merges the body into the existing entity. Unless overrides are
// allowed, params and authPersist win over the body.
func (s *Service) UpdateOne(ctx context.Context, req CrudRequest, dto Document) (Document, error) {
	opts := s.options(req)
	ro := opts.Routes.UpdateOne

	params, authPersist, err := s.forcedValues(req.Parsed)
	if err != nil {
		return nil, err
	}
	if dto, err = s.Builder.NativeValues(dto); err != nil {
		return nil, err
	}

	var found Document
	if ro.ReturnShallow {
		found, err = s.getOneShallowOrFail(ctx, params)
	} else {
		found, err = s.getOneOrFail(ctx, CrudRequest{Parsed: req.Parsed, Options: opts})
	}
	if err != nil {
		return nil, err
	}

	var toSave Document
	if !ro.AllowParamsOverride {
		toSave = Merge(found, dto, params, authPersist)
	} else {
		toSave = Merge(found, dto, authPersist)
	}
	toSave = without(toSave, s.relationNames()...)

	where, err := s.primaryFilter(found)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.FindOneAndUpdate(ctx, s.collection(), where, toSave)
	if err != nil {
		return nil, storeFailure(err, "update %s", s.collection())
	}
	if updated == nil {
		return nil, notFound(s.Resource.Name)
	}
	if ro.ReturnShallow {
		return updated, nil
	}

	// Identifying params may have changed; reload with the stored values.
	parsed := req.Parsed
	parsed.ParamsFilter = make([]QueryFilter, len(req.Parsed.ParamsFilter))
	for i, f := range req.Parsed.ParamsFilter {
		f.Value = updated[f.Field]
		parsed.ParamsFilter[i] = f
	}
	return s.getOneOrFail(ctx, CrudRequest{Parsed: parsed, Options: opts})
}

// ReplaceOne overwrites the entity with the body. Params and authPersist
// are always forced onto the replacement.
func (s *Service) ReplaceOne(ctx context.Context, req CrudRequest, dto Document) (Document, error) {
	opts := s.options(req)
	ro := opts.Routes.ReplaceOne

	params, authPersist, err := s.forcedValues(req.Parsed)
	if err != nil {
		return nil, err
	}
	if dto, err = s.Builder.NativeValues(dto); err != nil {
		return nil, err
	}

	var found Document
	if ro.ReturnShallow {
		found, err = s.getOneShallowOrFail(ctx, params)
	} else {
		found, err = s.getOneOrFail(ctx, CrudRequest{Parsed: req.Parsed, Options: opts})
	}
	if err != nil {
		return nil, err
	}

	// the replacement keeps the identity of the found entity
	toSave := Merge(dto, params, authPersist, s.primaryValues(found))
	toSave = without(toSave, s.relationNames()...)

	where, err := s.primaryFilter(found)
	if err != nil {
		return nil, err
	}
	if err := s.Store.ReplaceOne(ctx, s.collection(), where, toSave); err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil, notFound(s.Resource.Name)
		}
		return nil, storeFailure(err, "replace %s", s.collection())
	}
	return s.getOneShallowOrFail(ctx, s.primaryValues(found))
}

// DeleteOne removes the entity located by params. It returns the deleted
// entity merged with params when return_deleted is set, nil otherwise.
func (s *Service) DeleteOne(ctx context.Context, req CrudRequest) (Document, error) {
	opts := s.options(req)

	params, _, err := s.forcedValues(req.Parsed)
	if err != nil {
		return nil, err
	}
	found, err := s.getOneShallowOrFail(ctx, params)
	if err != nil {
		return nil, err
	}
	where, err := s.primaryFilter(found)
	if err != nil {
		return nil, err
	}
	deleted, err := s.Store.FindOneAndDelete(ctx, s.collection(), where)
	if err != nil {
		return nil, storeFailure(err, "delete %s", s.collection())
	}
	if !opts.Routes.DeleteOne.ReturnDeleted {
		return nil, nil
	}
	if deleted == nil {
		return nil, notFound(s.Resource.Name)
	}
	return Merge(deleted, params), nil
}

func (s *Service) getOneOrFail(ctx context.Context, req CrudRequest) (Document, error) {
	built, err := s.Builder.Build(req.Parsed, s.options(req), false)
	if err != nil {
		return nil, err
	}
	found, err := s.Store.FindOne(ctx, built.Query)
	if err != nil {
		return nil, storeFailure(err, "find one %s", s.collection())
	}
	if found == nil {
		return nil, notFound(s.Resource.Name)
	}
	return found, nil
}

// getOneShallowOrFail looks up without joins. A where that is exactly the
// _id primary key goes through FindByID.
func (s *Service) getOneShallowOrFail(ctx context.Context, where map[string]any) (Document, error) {
	if len(where) == 0 {
		return nil, badRequest("no identifying params for %s", s.Resource.Name)
	}
	var (
		found Document
		err   error
	)
	pks := s.Resource.Schema.GetPrimaryKeys()
	if id, ok := where["_id"]; ok && len(pks) == 1 && pks[0] == "_id" && len(where) == 1 {
		found, err = s.Store.FindByID(ctx, s.collection(), id)
	} else {
		found, err = s.Store.FindOne(ctx, &Query{Collection: s.collection(), Filter: eqFilter(where)})
	}
	if err != nil {
		return nil, storeFailure(err, "find one %s", s.collection())
	}
	if found == nil {
		return nil, notFound(s.Resource.Name)
	}
	return found, nil
}

// prepareEntityBeforeSave writes params onto the body, rejects an empty
// result and then applies authPersist. It returns nil for empty bodies.
func (s *Service) prepareEntityBeforeSave(dto Document, parsed ParsedRequestParams) (Document, error) {
	if dto == nil {
		return nil, nil
	}
	params, authPersist, err := s.forcedValues(parsed)
	if err != nil {
		return nil, err
	}
	if dto, err = s.Builder.NativeValues(dto); err != nil {
		return nil, err
	}
	entity := without(Merge(dto, params), s.relationNames()...)
	if len(entity) == 0 {
		return nil, nil
	}
	return Merge(entity, authPersist), nil
}

// forcedValues returns params and authPersist with identifiers converted.
// Request bodies go through the same conversion before they are merged.
func (s *Service) forcedValues(parsed ParsedRequestParams) (params, authPersist Document, err error) {
	raw := make(map[string]any, len(parsed.ParamsFilter))
	for _, f := range parsed.ParamsFilter {
		raw[f.Field] = f.Value
	}
	if params, err = s.Builder.NativeValues(raw); err != nil {
		return nil, nil, err
	}
	if authPersist, err = s.Builder.NativeValues(parsed.AuthPersist); err != nil {
		return nil, nil, err
	}
	return params, authPersist, nil
}

func (s *Service) primaryValues(doc Document) map[string]any {
	out := map[string]any{}
	for _, pk := range s.Resource.Schema.GetPrimaryKeys() {
		if v, ok := doc[pk]; ok {
			out[pk] = v
		}
	}
	return out
}

func (s *Service) primaryFilter(doc Document) (Filter, error) {
	values := s.primaryValues(doc)
	if len(values) != len(s.Resource.Schema.GetPrimaryKeys()) {
		return nil, storeFailure(errMissingPrimaryKey, "locate %s", s.collection())
	}
	return eqFilter(values), nil
}

func (s *Service) relationNames() []string {
	return s.Resource.Schema.RelationNames()
}

func eqFilter(values map[string]any) Filter {
	f := make(Filter, len(values))
	for k, v := range values {
		f[k] = map[string]any{"$eq": v}
	}
	return f
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"YcrudAPI/internal/auth"
	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/logger"
	"YcrudAPI/internal/model"

	"github.com/gorilla/mux"
)

var errUnauthorized = errors.New("Unauthorized")

// ResourceHandler serves the CRUD routes of one resource.
type ResourceHandler struct {
	Resource   *model.Resource
	Service    *crud.Service
	Serializer crud.Serializer
}

func NewResourceHandler(res *model.Resource, store crud.Store) *ResourceHandler {
	return &ResourceHandler{
		Resource:   res,
		Service:    crud.NewService(res, store),
		Serializer: crud.Serializer{Plain: store.Plain},
	}
}

func (h *ResourceHandler) GetMany(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, crud.ReadAll, http.StatusOK, func(ctx context.Context, req crud.CrudRequest) (any, error) {
		return h.Service.GetMany(ctx, req)
	})
}

func (h *ResourceHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, crud.ReadOne, http.StatusOK, func(ctx context.Context, req crud.CrudRequest) (any, error) {
		return h.Service.GetOne(ctx, req)
	})
}

func (h *ResourceHandler) CreateOne(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, crud.CreateOne, http.StatusCreated, func(ctx context.Context, req crud.CrudRequest) (any, error) {
		var dto crud.Document
		if err := decodeBody(r, &dto); err != nil {
			return nil, err
		}
		return h.Service.CreateOne(ctx, req, dto)
	})
}

func (h *ResourceHandler) CreateMany(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, crud.CreateMany, http.StatusCreated, func(ctx context.Context, req crud.CrudRequest) (any, error) {
		var dto crud.CreateManyDto
		if err := decodeBody(r, &dto); err != nil {
			return nil, err
		}
		return h.Service.CreateMany(ctx, req, &dto)
	})
}

func (h *ResourceHandler) UpdateOne(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, crud.UpdateOne, http.StatusOK, func(ctx context.Context, req crud.CrudRequest) (any, error) {
		var dto crud.Document
		if err := decodeBody(r, &dto); err != nil {
			return nil, err
		}
		return h.Service.UpdateOne(ctx, req, dto)
	})
}

func (h *ResourceHandler) ReplaceOne(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, crud.ReplaceOne, http.StatusOK, func(ctx context.Context, req crud.CrudRequest) (any, error) {
		var dto crud.Document
		if err := decodeBody(r, &dto); err != nil {
			return nil, err
		}
		return h.Service.ReplaceOne(ctx, req, dto)
	})
}

func (h *ResourceHandler) DeleteOne(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, crud.DeleteOne, http.StatusOK, func(ctx context.Context, req crud.CrudRequest) (any, error) {
		deleted, err := h.Service.DeleteOne(ctx, req)
		if err != nil || deleted == nil {
			return nil, err
		}
		return deleted, nil
	})
}

type operation func(ctx context.Context, req crud.CrudRequest) (any, error)

// serve parses the request, runs op and writes the serialized result.
func (h *ResourceHandler) serve(w http.ResponseWriter, r *http.Request, action crud.Action, status int, op operation) {
	endpoint := h.Resource.Name + ":" + action.String()

	req, err := h.crudRequest(r)
	if err != nil {
		writeError(w, endpoint, err)
		return
	}
	logger.Debug("request", map[string]any{
		"endpoint": endpoint,
		"query":    r.URL.RawQuery,
		"params":   req.Parsed.ParamsFilter,
	})

	result, err := op(r.Context(), req)
	if err != nil {
		writeError(w, endpoint, err)
		return
	}
	writeJSON(w, status, h.Serializer.Serialize(action, h.Resource.Options.Serialize, result))
}

func (h *ResourceHandler) crudRequest(r *http.Request) (crud.CrudRequest, error) {
	parsed, err := ParseQuery(r.URL.Query(), &h.Resource.Schema)
	if err != nil {
		return crud.CrudRequest{}, err
	}
	if parsed.ParamsFilter, err = h.paramsFilter(mux.Vars(r)); err != nil {
		return crud.CrudRequest{}, err
	}
	if parsed.AuthPersist, err = h.authPersist(r.Context()); err != nil {
		return crud.CrudRequest{}, err
	}
	return crud.CrudRequest{Parsed: parsed, Options: &h.Resource.Options}, nil
}

// paramsFilter turns route variables into $eq filters through the params
// config. An unconfigured {id} maps to the primary key.
func (h *ResourceHandler) paramsFilter(vars map[string]string) ([]crud.QueryFilter, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []crud.QueryFilter
	for _, name := range names {
		raw := vars[name]
		po, ok := h.Resource.Options.Params[name]
		if !ok {
			if name != "id" {
				continue
			}
			po = model.ParamOption{Field: h.Resource.Schema.GetPrimaryKeys()[0], Type: "id"}
		}
		var value any = raw
		if po.Type == "number" {
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, badQuery("param %s must be a number", name)
			}
			if n == float64(int64(n)) {
				value = int64(n)
			} else {
				value = n
			}
		}
		out = append(out, crud.QueryFilter{Field: po.Field, Operator: crud.OpEq, Value: value})
	}
	return out, nil
}

// authPersist reads the configured claims. A resource that persists
// claims requires an authenticated request.
func (h *ResourceHandler) authPersist(ctx context.Context) (map[string]any, error) {
	persist := h.Resource.Options.Auth.Persist
	if len(persist) == 0 {
		return nil, nil
	}
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, errUnauthorized
	}
	out := make(map[string]any, len(persist))
	for field, claim := range persist {
		v, ok := claims[claim]
		if !ok || v == nil {
			return nil, errUnauthorized
		}
		out[field] = v
	}
	return out, nil
}

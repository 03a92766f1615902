package crud

import (
	"YcrudAPI/internal/model"
)

// Action is the CRUD action a request performs. It selects the route
// options and the serialization descriptor that apply.
type Action int

const (
	ReadAll Action = iota
	ReadOne
	CreateOne
	CreateMany
	UpdateOne
	ReplaceOne
	DeleteOne
	DeleteAll
)

func (a Action) String() string {
	switch a {
	case ReadAll:
		return "read-all"
	case ReadOne:
		return "read-one"
	case CreateOne:
		return "create-one"
	case CreateMany:
		return "create-many"
	case UpdateOne:
		return "update-one"
	case ReplaceOne:
		return "replace-one"
	case DeleteOne:
		return "delete-one"
	case DeleteAll:
		return "delete-all"
	}
	return "unknown"
}

// QueryFilter is one (field, operator, value) condition of the array form.
type QueryFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

type QuerySort struct {
	Field string `json:"field"`
	Order string `json:"order"` // ASC or DESC
}

// QueryJoin requests a relation path with an optional sub-field selection.
type QueryJoin struct {
	Field  string   `json:"field"`
	Select []string `json:"select,omitempty"`
}

// ParsedRequestParams is the structured request produced by the query
// string parser. The service never mutates the caller's value.
type ParsedRequestParams struct {
	Fields       []string
	Search       *SCondition
	Filter       []QueryFilter
	Or           []QueryFilter
	Sort         []QuerySort
	Join         []QueryJoin
	Limit        *int
	Offset       *int
	Page         *int
	ParamsFilter []QueryFilter
	AuthPersist  map[string]any
}

// CrudRequest is everything a service operation needs for one request.
type CrudRequest struct {
	Parsed  ParsedRequestParams
	Options *model.Options
}

// GetManyDefaultResponse is the pagination envelope.
type GetManyDefaultResponse struct {
	Data      []Document `json:"data"`
	Count     int        `json:"count"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	PageCount int        `json:"pageCount"`
}

type CreateManyDto struct {
	Bulk []Document `json:"bulk"`
}

func intPtr(v int) *int { return &v }

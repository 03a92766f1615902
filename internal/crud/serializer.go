package crud

import (
	"reflect"

	"YcrudAPI/internal/model"
)

// Serializer shapes service results for the response. Plain converts store
// values to plain data and runs before any projection.
type Serializer struct {
	Plain func(any) any
}

// Serialize normalizes raw and applies the projection configured for action.
func (s Serializer) Serialize(action Action, opts model.SerializeOptions, raw any) any {
	plain := s.normalize(raw)
	p := descriptor(action, opts)
	if p.Kind == model.ProjectionDisabled {
		return plain
	}

	switch v := plain.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = project(p, item)
		}
		return out
	case *GetManyDefaultResponse:
		env := *v
		env.Data = make([]Document, len(v.Data))
		for i, item := range v.Data {
			env.Data[i] = asDocument(project(p, item))
		}
		return &env
	}
	return project(p, plain)
}

func descriptor(action Action, opts model.SerializeOptions) model.Projection {
	switch action {
	case ReadAll:
		return opts.GetMany
	case ReadOne:
		return opts.Get
	case CreateMany:
		return opts.CreateMany
	case CreateOne:
		return opts.Create
	case UpdateOne:
		return opts.Update
	case ReplaceOne:
		return opts.Replace
	case DeleteOne, DeleteAll:
		return opts.Delete
	}
	return model.Identity()
}

// normalize converts documents, slices and the envelope data to plain values.
func (s Serializer) normalize(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []Document:
		out := make([]any, len(v))
		for i, d := range v {
			out[i] = s.plain(d)
		}
		return out
	case *GetManyDefaultResponse:
		env := *v
		env.Data = make([]Document, len(v.Data))
		for i, d := range v.Data {
			env.Data[i] = asDocument(s.plain(d))
		}
		return &env
	case []any:
		out := make([]any, len(v))
		for i, d := range v {
			out[i] = s.plain(d)
		}
		return out
	}
	return s.plain(raw)
}

func (s Serializer) plain(v any) any {
	if s.Plain == nil {
		return v
	}
	return s.Plain(v)
}

// project applies p to one value. Values that are not objects pass through.
func project(p model.Projection, v any) any {
	doc, ok := asObject(v)
	if !ok {
		return v
	}
	switch p.Kind {
	case model.ProjectionShape:
		out := make(Document, len(p.Fields))
		for _, f := range p.Fields {
			if val, ok := doc[f]; ok && isData(val) {
				out[f] = val
			}
		}
		return out
	default:
		out := make(Document, len(doc))
		for k, val := range doc {
			if isData(val) {
				out[k] = val
			}
		}
		return out
	}
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	}
	return nil, false
}

func asDocument(v any) Document {
	if doc, ok := asObject(v); ok {
		return doc
	}
	return Document{}
}

// isData is false for values that cannot be represented as data.
func isData(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false
	}
	return true
}

package model

import (
	"sort"
	"strings"
)

// Resource is one CRUD endpoint family: a document schema plus the options
// that govern how requests against it are compiled and shaped.
// Resources are built once by InitRegistry and never mutated afterwards.
type Resource struct {
	Name    string  `yaml:"-"` // logical name, file name without extension
	Path    string  `yaml:"path"`
	Schema  Schema  `yaml:",inline"`
	Options Options `yaml:",inline"`
}

// Schema describes the declared shape of a collection.
type Schema struct {
	Name        string               `yaml:"-"`
	Collection  string               `yaml:"collection"`
	PrimaryKeys []string             `yaml:"primary_keys"` // optional, default ["_id"]
	Fields      []Field              `yaml:"fields"`
	Relations   map[string]*Relation `yaml:"relations"`
}

// Field is a declared top-level document field.
type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // id, string, number, bool, date, object, array, mixed
}

// Relation is a virtual reference: documents of Ref whose ForeignField
// equals this document's LocalField.
type Relation struct {
	Ref          string `yaml:"ref"`           // target resource name
	LocalField   string `yaml:"local_field"`   // default _id
	ForeignField string `yaml:"foreign_field"` // field on the target
	JustOne      bool   `yaml:"just_one"`

	// runtime only
	_SchemaRef *Schema `yaml:"-"`
}

// Options are the per-resource request options.
type Options struct {
	Query     QueryOptions           `yaml:"query"`
	Routes    RoutesOptions          `yaml:"routes"`
	Params    map[string]ParamOption `yaml:"params"`
	Auth      AuthOptions            `yaml:"auth"`
	Serialize SerializeOptions       `yaml:"serialize"`
}

type QueryOptions struct {
	Allow          []string              `yaml:"allow"`
	Exclude        []string              `yaml:"exclude"`
	Persist        []string              `yaml:"persist"`
	Sort           []SortOption          `yaml:"sort"`
	Join           map[string]JoinOption `yaml:"join"`
	Limit          int                   `yaml:"limit"`
	MaxLimit       int                   `yaml:"max_limit"`
	AlwaysPaginate bool                  `yaml:"always_paginate"`
}

type SortOption struct {
	Field string `yaml:"field"`
	Order string `yaml:"order"` // ASC or DESC
}

// JoinOption configures one relation path (e.g. "posts" or "posts.comments").
type JoinOption struct {
	Eager   bool     `yaml:"eager"`
	Allow   []string `yaml:"allow"`
	Exclude []string `yaml:"exclude"`
}

type RoutesOptions struct {
	Exclude    []string          `yaml:"exclude"` // route names that are not registered
	UpdateOne  WriteRouteOptions `yaml:"update_one"`
	ReplaceOne WriteRouteOptions `yaml:"replace_one"`
	DeleteOne  DeleteRouteOption `yaml:"delete_one"`
}

type WriteRouteOptions struct {
	AllowParamsOverride bool `yaml:"allow_params_override"`
	ReturnShallow       bool `yaml:"return_shallow"`
}

type DeleteRouteOption struct {
	ReturnDeleted bool `yaml:"return_deleted"`
}

// ParamOption maps a path variable onto a document field.
type ParamOption struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"` // string, number, id
}

// AuthOptions maps document fields to JWT claim names. The values are
// forced onto both the search condition and every write.
type AuthOptions struct {
	Persist map[string]string `yaml:"persist"`
}

type SerializeOptions struct {
	GetMany    Projection `yaml:"get_many"`
	Get        Projection `yaml:"get"`
	CreateMany Projection `yaml:"create_many"`
	Create     Projection `yaml:"create"`
	Update     Projection `yaml:"update"`
	Replace    Projection `yaml:"replace"`
	Delete     Projection `yaml:"delete"`
}

// GetPrimaryKeys returns the primary key fields, ["_id"] when not configured.
func (s *Schema) GetPrimaryKeys() []string {
	if len(s.PrimaryKeys) > 0 {
		return s.PrimaryKeys
	}
	return []string{"_id"}
}

// Columns lists the declared top-level field names in declaration order.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

func (s *Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// IsIDField reports whether values of the field are store identifiers.
// Dotted paths are checked on their first segment only.
func (s *Schema) IsIDField(name string) bool {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	for _, pk := range s.GetPrimaryKeys() {
		if pk == name {
			return true
		}
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Type == "id"
		}
	}
	return false
}

func (s *Schema) GetRelation(name string) *Relation {
	if s == nil || s.Relations == nil {
		return nil
	}
	return s.Relations[name]
}

// GetSchemaRef returns the linked target schema.
func (r *Relation) GetSchemaRef() *Schema {
	return r._SchemaRef
}

// SetSchemaRef links the relation (called by LinkRelations, and by tests).
func (r *Relation) SetSchemaRef(s *Schema) {
	r._SchemaRef = s
}

// RelationNames returns the declared relation names, sorted.
func (s *Schema) RelationNames() []string {
	names := make([]string, 0, len(s.Relations))
	for name := range s.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

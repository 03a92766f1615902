package model

import (
	"fmt"
	"strings"
)

// ValidateAllResources checks every option that references the schema:
// field lists, sort fields, join paths, params and limits.
func ValidateAllResources() error {
	for _, name := range ResourceNames() {
		if err := validateResource(Registry[name]); err != nil {
			return err
		}
	}
	return nil
}

func validateResource(res *Resource) error {
	s := &res.Schema
	q := res.Options.Query

	if len(s.Fields) == 0 {
		return fmt.Errorf("resource %s declares no fields", res.Name)
	}
	seen := map[string]bool{}
	for _, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("resource %s has a field without name", res.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("resource %s declares field %q twice", res.Name, f.Name)
		}
		seen[f.Name] = true
	}
	for _, pk := range s.GetPrimaryKeys() {
		if !s.HasField(pk) {
			return fmt.Errorf("resource %s: primary key %q is not a declared field", res.Name, pk)
		}
	}
	for relName := range s.Relations {
		if s.HasField(relName) {
			return fmt.Errorf("resource %s: relation %q shadows a field", res.Name, relName)
		}
	}

	lists := map[string][]string{
		"allow":   q.Allow,
		"exclude": q.Exclude,
		"persist": q.Persist,
	}
	for listName, fields := range lists {
		for _, f := range fields {
			if !s.HasField(f) {
				return fmt.Errorf("resource %s: query.%s references unknown field %q", res.Name, listName, f)
			}
		}
	}

	for _, so := range q.Sort {
		if !s.HasField(so.Field) {
			return fmt.Errorf("resource %s: query.sort references unknown field %q", res.Name, so.Field)
		}
		switch strings.ToUpper(so.Order) {
		case "", "ASC", "DESC":
		default:
			return fmt.Errorf("resource %s: query.sort order %q must be ASC or DESC", res.Name, so.Order)
		}
	}

	if q.Limit < 0 || q.MaxLimit < 0 {
		return fmt.Errorf("resource %s: limits must not be negative", res.Name)
	}
	if q.MaxLimit > 0 && q.Limit > q.MaxLimit {
		return fmt.Errorf("resource %s: query.limit %d exceeds max_limit %d", res.Name, q.Limit, q.MaxLimit)
	}

	for path, jo := range q.Join {
		steps, err := s.ResolveJoinPath(path)
		if err != nil {
			return fmt.Errorf("resource %s: query.join: %w", res.Name, err)
		}
		target := steps[len(steps)-1].Target
		for _, f := range append(append([]string{}, jo.Allow...), jo.Exclude...) {
			if !target.HasField(f) {
				return fmt.Errorf("resource %s: query.join.%s references unknown field %q", res.Name, path, f)
			}
		}
	}

	for param, po := range res.Options.Params {
		if !strings.Contains(res.Path, "{"+param+"}") && param != "id" {
			return fmt.Errorf("resource %s: param %q does not appear in path %q", res.Name, param, res.Path)
		}
		if !s.HasField(po.Field) {
			return fmt.Errorf("resource %s: param %q maps to unknown field %q", res.Name, param, po.Field)
		}
	}

	for field := range res.Options.Auth.Persist {
		if !s.HasField(field) {
			return fmt.Errorf("resource %s: auth.persist references unknown field %q", res.Name, field)
		}
	}

	for _, r := range res.Options.Routes.Exclude {
		if !isRouteName(r) {
			return fmt.Errorf("resource %s: routes.exclude has unknown route %q", res.Name, r)
		}
	}
	return nil
}

// RouteNames are the names accepted by routes.exclude.
var RouteNames = []string{"getMany", "getOne", "createOne", "createMany", "updateOne", "replaceOne", "deleteOne"}

func isRouteName(name string) bool {
	for _, r := range RouteNames {
		if r == name {
			return true
		}
	}
	return false
}

// RouteEnabled reports whether the named route is registered for the resource.
func (r *Resource) RouteEnabled(name string) bool {
	for _, ex := range r.Options.Routes.Exclude {
		if ex == name {
			return false
		}
	}
	return true
}

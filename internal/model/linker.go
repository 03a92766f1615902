package model

import (
	"fmt"
)

// LinkRelations resolves every relation's ref against the Registry and
// fills defaults.
func LinkRelations() error {
	for name, res := range Registry {
		for relName, rel := range res.Schema.Relations {
			if rel == nil {
				return fmt.Errorf("invalid relation: '%s.%s' is empty", name, relName)
			}
			target, ok := Registry[rel.Ref]
			if !ok {
				return fmt.Errorf("invalid relation: resource '%s' not found in '%s.%s'", rel.Ref, name, relName)
			}
			rel._SchemaRef = &target.Schema

			if rel.LocalField == "" {
				rel.LocalField = "_id"
			}
			if rel.ForeignField == "" {
				return fmt.Errorf("relation '%s.%s' must declare foreign_field", name, relName)
			}
		}
	}
	return nil
}

package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type ProjectionKind int

const (
	// ProjectionIdentity copies plain data, dropping values that are not data.
	ProjectionIdentity ProjectionKind = iota
	// ProjectionDisabled returns plain data untouched.
	ProjectionDisabled
	// ProjectionShape keeps only the listed fields.
	ProjectionShape
)

// Projection is the per-action output shape. In YAML it is written as
// `false` (disabled), `true` (identity) or a list of field names (shape).
type Projection struct {
	Kind   ProjectionKind
	Fields []string

	configured bool
}

func Disabled() Projection { return Projection{Kind: ProjectionDisabled, configured: true} }

func Identity() Projection { return Projection{Kind: ProjectionIdentity, configured: true} }

func Shape(fields ...string) Projection {
	return Projection{Kind: ProjectionShape, Fields: fields, configured: true}
}

// Configured reports whether the projection was set explicitly.
func (p Projection) Configured() bool { return p.configured }

func (p *Projection) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return fmt.Errorf("serialize: expected bool or list, got %q", node.Value)
		}
		if enabled {
			*p = Identity()
		} else {
			*p = Disabled()
		}
		return nil
	case yaml.SequenceNode:
		var fields []string
		if err := node.Decode(&fields); err != nil {
			return fmt.Errorf("serialize: %w", err)
		}
		*p = Shape(fields...)
		return nil
	}
	return fmt.Errorf("serialize: expected bool or list at line %d", node.Line)
}

// resolveProjections fills inherited descriptors: get_many falls back to get.
func (o *SerializeOptions) resolveProjections() {
	if !o.GetMany.Configured() && o.Get.Configured() {
		o.GetMany = o.Get
	}
}

package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRelation is returned when a join path segment does not name a
// relation of the schema reached by the previous segments.
var ErrUnknownRelation = errors.New("unknown relation")

// JoinStep is one resolved segment of a join path.
type JoinStep struct {
	Name     string
	Relation *Relation
	Target   *Schema
}

// ResolveJoinPath walks a dotted relation path ("author.profile") segment by
// segment, each against the target schema of the previous one.
func (s *Schema) ResolveJoinPath(path string) ([]JoinStep, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty join path", ErrUnknownRelation)
	}
	segments := strings.Split(path, ".")
	steps := make([]JoinStep, 0, len(segments))
	current := s
	for _, seg := range segments {
		rel := current.GetRelation(seg)
		if rel == nil || rel.GetSchemaRef() == nil {
			return nil, fmt.Errorf("%w: %s is not a valid join (path %q)", ErrUnknownRelation, seg, path)
		}
		steps = append(steps, JoinStep{Name: seg, Relation: rel, Target: rel.GetSchemaRef()})
		current = rel.GetSchemaRef()
	}
	return steps, nil
}

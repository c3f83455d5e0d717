package graph

import (
	"fmt"

	"github.com/ktsqep/graphdoc/pkg/schema"
)

// EntityNotFoundError reports an operation against an absent entity id.
type EntityNotFoundError struct {
	ID uint64
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %d not found", e.ID)
}

// EdgeNotFoundError reports a removal with no matching edge. Relation is
// empty when the removal matched any relation kind.
type EdgeNotFoundError struct {
	From, To uint64
	Relation schema.Relation
}

func (e *EdgeNotFoundError) Error() string {
	if e.Relation == "" {
		return fmt.Sprintf("edge (%d, %d) not found", e.From, e.To)
	}
	return fmt.Sprintf("edge (%d, %d, %s) not found", e.From, e.To, e.Relation)
}

// DuplicateEdgeError reports an insert of an already-present edge.
type DuplicateEdgeError struct {
	From, To uint64
	Relation schema.Relation
}

func (e *DuplicateEdgeError) Error() string {
	return fmt.Sprintf("edge (%d, %d, %s) already exists", e.From, e.To, e.Relation)
}

// SelfLoopError reports an edge whose endpoints are the same entity.
type SelfLoopError struct {
	ID uint64
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("entity %d cannot relate to itself", e.ID)
}

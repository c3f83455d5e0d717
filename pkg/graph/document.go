// Package graph holds the in-memory knowledge-graph document: typed entities
// keyed by stable ids plus directed, relation-tagged edges between them.
//
// A Document is single-writer by contract. It performs no locking of its own;
// callers that share one across goroutines must serialize access externally.
// After creation a Document is meant to be mutated only through the command
// engine in pkg/history, which keeps every mutation reversible.
package graph

import (
	"fmt"

	"github.com/ktsqep/graphdoc/pkg/schema"
)

// Entity is one knowledge-graph node. ID is assigned by the document at
// creation, stays stable for the entity's lifetime and is never reused.
// Type is fixed at creation; Addons and the position are freely mutable.
type Entity struct {
	ID      uint64
	Content string
	Type    schema.DistinctType
	Addons  schema.AddonSet
	X, Y    float64
}

// Edge is a directed relation record between two entities. It has no
// identity of its own; the (From, To, Relation) triple is the key.
type Edge struct {
	From, To uint64
	Relation schema.Relation
}

// RemovedEdge is an edge captured at removal time together with its position
// in the serialization order, so an undo can restore the document exactly.
type RemovedEdge struct {
	Edge  Edge
	Index int
}

// RemovedEntity captures everything RemoveEntity took out: the entity, its
// position in the serialization order, and every cascade-removed edge.
type RemovedEntity struct {
	Entity Entity
	Index  int
	Edges  []RemovedEdge
}

// Document owns the entity and edge sets of one open file. Insertion order
// is tracked for both so repeated saves of an unmodified document produce
// identical bytes.
type Document struct {
	entities    map[uint64]*Entity
	entityOrder []uint64
	edges       map[Edge]bool
	edgeOrder   []Edge
	nextID      uint64
}

// NewDocument returns an empty document. Ids start at 1; the external tool
// treats 0 as absent.
func NewDocument() *Document {
	return &Document{
		entities: make(map[uint64]*Entity),
		edges:    make(map[Edge]bool),
		nextID:   1,
	}
}

// AddEntity validates the codes, allocates a fresh id and inserts the
// entity. The document keeps its own copy of the addon set.
func (d *Document) AddEntity(content string, t schema.DistinctType, addons schema.AddonSet, x, y float64) (uint64, error) {
	if !schema.ValidDistinctType(t) {
		return 0, &schema.InvalidCodeError{Kind: "distinct type", Code: string(t)}
	}
	if !addons.Valid() {
		return 0, &schema.InvalidCodeError{Kind: "addon type", Code: addons.String()}
	}

	id := d.nextID
	d.nextID++
	d.entities[id] = &Entity{ID: id, Content: content, Type: t, Addons: addons.Clone(), X: x, Y: y}
	d.entityOrder = append(d.entityOrder, id)
	return id, nil
}

// RestoreEntity reinserts an entity under its original id, appending it to
// the serialization order. Used when redoing an add; never lowers the id
// allocator, so ids stay unique for the document's whole lifetime.
func (d *Document) RestoreEntity(e Entity) error {
	if _, ok := d.entities[e.ID]; ok {
		return fmt.Errorf("entity %d already present", e.ID)
	}
	if !schema.ValidDistinctType(e.Type) {
		return &schema.InvalidCodeError{Kind: "distinct type", Code: string(e.Type)}
	}
	if !e.Addons.Valid() {
		return &schema.InvalidCodeError{Kind: "addon type", Code: e.Addons.String()}
	}

	stored := e
	stored.Addons = e.Addons.Clone()
	d.entities[e.ID] = &stored
	d.entityOrder = append(d.entityOrder, e.ID)
	if e.ID >= d.nextID {
		d.nextID = e.ID + 1
	}
	return nil
}

// RemoveEntity removes the entity and cascades removal of every incident
// edge, as source and as target. The returned snapshot carries exactly what
// was removed, in serialization order, for inverse construction.
func (d *Document) RemoveEntity(id uint64) (*RemovedEntity, error) {
	ent, ok := d.entities[id]
	if !ok {
		return nil, &EntityNotFoundError{ID: id}
	}

	removed := &RemovedEntity{
		Entity: d.snapshot(ent),
		Index:  d.entityIndex(id),
	}
	for i, e := range d.edgeOrder {
		if e.From == id || e.To == id {
			removed.Edges = append(removed.Edges, RemovedEdge{Edge: e, Index: i})
		}
	}

	for _, re := range removed.Edges {
		delete(d.edges, re.Edge)
	}
	kept := d.edgeOrder[:0]
	for _, e := range d.edgeOrder {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	d.edgeOrder = kept

	delete(d.entities, id)
	d.entityOrder = append(d.entityOrder[:removed.Index], d.entityOrder[removed.Index+1:]...)
	return removed, nil
}

// RestoreRemoved undoes a RemoveEntity: the entity returns to its original
// position and every cascade-removed edge is reinserted where it was.
func (d *Document) RestoreRemoved(r *RemovedEntity) error {
	if _, ok := d.entities[r.Entity.ID]; ok {
		return fmt.Errorf("entity %d already present", r.Entity.ID)
	}

	stored := r.Entity
	stored.Addons = r.Entity.Addons.Clone()
	d.entities[stored.ID] = &stored
	d.entityOrder = insertID(d.entityOrder, r.Index, stored.ID)
	if stored.ID >= d.nextID {
		d.nextID = stored.ID + 1
	}

	for _, re := range r.Edges {
		if err := d.RestoreEdge(re); err != nil {
			return err
		}
	}
	return nil
}

// AddEdge inserts a directed edge. Both endpoints must exist, self-loops are
// rejected, and at most one edge of a given relation kind may exist per
// ordered pair.
func (d *Document) AddEdge(from, to uint64, r schema.Relation) error {
	if !schema.ValidRelation(r) {
		return &schema.InvalidCodeError{Kind: "relation", Code: string(r)}
	}
	if _, ok := d.entities[from]; !ok {
		return &EntityNotFoundError{ID: from}
	}
	if _, ok := d.entities[to]; !ok {
		return &EntityNotFoundError{ID: to}
	}
	if from == to {
		return &SelfLoopError{ID: from}
	}
	e := Edge{From: from, To: to, Relation: r}
	if d.edges[e] {
		return &DuplicateEdgeError{From: from, To: to, Relation: r}
	}

	d.edges[e] = true
	d.edgeOrder = append(d.edgeOrder, e)
	return nil
}

// RemoveEdge removes the edge with exactly this relation kind.
func (d *Document) RemoveEdge(from, to uint64, r schema.Relation) (RemovedEdge, error) {
	e := Edge{From: from, To: to, Relation: r}
	if !d.edges[e] {
		return RemovedEdge{}, &EdgeNotFoundError{From: from, To: to, Relation: r}
	}

	idx := d.edgeIndex(e)
	delete(d.edges, e)
	d.edgeOrder = append(d.edgeOrder[:idx], d.edgeOrder[idx+1:]...)
	return RemovedEdge{Edge: e, Index: idx}, nil
}

// RemoveEdgesBetween removes the edges of both relation kinds between the
// ordered pair, as independent sub-removals. It fails only when neither
// exists.
func (d *Document) RemoveEdgesBetween(from, to uint64) ([]RemovedEdge, error) {
	var removed []RemovedEdge
	for i, e := range d.edgeOrder {
		if e.From == from && e.To == to {
			removed = append(removed, RemovedEdge{Edge: e, Index: i})
		}
	}
	if len(removed) == 0 {
		return nil, &EdgeNotFoundError{From: from, To: to}
	}

	for _, re := range removed {
		delete(d.edges, re.Edge)
	}
	kept := d.edgeOrder[:0]
	for _, e := range d.edgeOrder {
		if e.From != from || e.To != to {
			kept = append(kept, e)
		}
	}
	d.edgeOrder = kept
	return removed, nil
}

// RestoreEdge undoes a single edge removal, reinserting the edge at its
// original position in the serialization order.
func (d *Document) RestoreEdge(re RemovedEdge) error {
	e := re.Edge
	if _, ok := d.entities[e.From]; !ok {
		return &EntityNotFoundError{ID: e.From}
	}
	if _, ok := d.entities[e.To]; !ok {
		return &EntityNotFoundError{ID: e.To}
	}
	if d.edges[e] {
		return &DuplicateEdgeError{From: e.From, To: e.To, Relation: e.Relation}
	}

	d.edges[e] = true
	idx := re.Index
	if idx > len(d.edgeOrder) {
		idx = len(d.edgeOrder)
	}
	d.edgeOrder = append(d.edgeOrder, Edge{})
	copy(d.edgeOrder[idx+1:], d.edgeOrder[idx:])
	d.edgeOrder[idx] = e
	return nil
}

// SetContent replaces the entity's text label and returns the previous one.
func (d *Document) SetContent(id uint64, content string) (string, error) {
	ent, ok := d.entities[id]
	if !ok {
		return "", &EntityNotFoundError{ID: id}
	}
	old := ent.Content
	ent.Content = content
	return old, nil
}

// SetPosition moves the entity and returns the previous coordinates.
// Positions are purely presentational.
func (d *Document) SetPosition(id uint64, x, y float64) (oldX, oldY float64, err error) {
	ent, ok := d.entities[id]
	if !ok {
		return 0, 0, &EntityNotFoundError{ID: id}
	}
	oldX, oldY = ent.X, ent.Y
	ent.X, ent.Y = x, y
	return oldX, oldY, nil
}

// SetAddons replaces the entity's addon set and returns the previous one.
func (d *Document) SetAddons(id uint64, addons schema.AddonSet) (schema.AddonSet, error) {
	if !addons.Valid() {
		return nil, &schema.InvalidCodeError{Kind: "addon type", Code: addons.String()}
	}
	ent, ok := d.entities[id]
	if !ok {
		return nil, &EntityNotFoundError{ID: id}
	}
	old := ent.Addons
	ent.Addons = addons.Clone()
	return old, nil
}

// Entity returns a copy of the entity, if present.
func (d *Document) Entity(id uint64) (Entity, bool) {
	ent, ok := d.entities[id]
	if !ok {
		return Entity{}, false
	}
	return d.snapshot(ent), true
}

// Entities returns copies of all entities in serialization order.
func (d *Document) Entities() []Entity {
	out := make([]Entity, 0, len(d.entityOrder))
	for _, id := range d.entityOrder {
		out = append(out, d.snapshot(d.entities[id]))
	}
	return out
}

// Edges returns all edges in serialization order.
func (d *Document) Edges() []Edge {
	out := make([]Edge, len(d.edgeOrder))
	copy(out, d.edgeOrder)
	return out
}

// HasEdge reports whether the exact (from, to, relation) edge exists.
func (d *Document) HasEdge(from, to uint64, r schema.Relation) bool {
	return d.edges[Edge{From: from, To: to, Relation: r}]
}

// EntityCount returns the number of entities.
func (d *Document) EntityCount() int { return len(d.entities) }

// EdgeCount returns the number of edges.
func (d *Document) EdgeCount() int { return len(d.edgeOrder) }

func (d *Document) snapshot(ent *Entity) Entity {
	e := *ent
	e.Addons = ent.Addons.Clone()
	return e
}

func (d *Document) entityIndex(id uint64) int {
	for i, other := range d.entityOrder {
		if other == id {
			return i
		}
	}
	return -1
}

func (d *Document) edgeIndex(e Edge) int {
	for i, other := range d.edgeOrder {
		if other == e {
			return i
		}
	}
	return -1
}

func insertID(order []uint64, idx int, id uint64) []uint64 {
	if idx < 0 || idx > len(order) {
		idx = len(order)
	}
	order = append(order, 0)
	copy(order[idx+1:], order[idx:])
	order[idx] = id
	return order
}

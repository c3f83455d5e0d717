package history

import (
	"testing"

	"github.com/ktsqep/graphdoc/pkg/graph"
	"github.com/ktsqep/graphdoc/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(graph.NewDocument())
}

// captureState snapshots entities and edges for exact-state comparisons.
func captureState(e *Engine) ([]graph.Entity, []graph.Edge) {
	return e.Document().Entities(), e.Document().Edges()
}

func assertState(t *testing.T, e *Engine, ents []graph.Entity, edges []graph.Edge) {
	t.Helper()
	gotEnts, gotEdges := captureState(e)
	assert.Equal(t, ents, gotEnts)
	assert.Equal(t, edges, gotEdges)
}

func TestAddEntityUndoRedo(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.AddEntity("A", schema.KnowledgePoint, schema.NewAddonSet(schema.Knowledge), 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	assert.NoError(t, e.Undo())
	assert.Equal(t, 0, e.Document().EntityCount())

	assert.NoError(t, e.Redo())
	ent, ok := e.Document().Entity(id)
	assert.True(t, ok, "redo restores the entity under its original id")
	assert.Equal(t, "A", ent.Content)
}

func TestEmptyStacks(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.Undo(), ErrNothingToUndo)
	assert.ErrorIs(t, e.Redo(), ErrNothingToRedo)
	assert.False(t, e.CanUndo())
	assert.False(t, e.CanRedo())
}

func TestRedoClearedByNewCommand(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AddEntity("A", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, err)
	_, err = e.AddEntity("B", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, err)

	assert.NoError(t, e.Undo())
	assert.True(t, e.CanRedo())

	// a new mutation invalidates the undone future
	_, err = e.AddEntity("C", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, err)
	assert.False(t, e.CanRedo())
	assert.ErrorIs(t, e.Redo(), ErrNothingToRedo)
}

func TestFailedCommandRecordsNothing(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.AddEntity("A", schema.DistinctType("kx"), nil, 0, 0)
	assert.Error(t, err)
	assert.False(t, e.CanUndo())

	assert.Error(t, e.RemoveEntity(42))
	assert.Error(t, e.AddEdge(1, 2, schema.Contain))
	assert.False(t, e.CanUndo())
	assert.Equal(t, 0, e.Document().EntityCount())
}

func TestRemoveEntityCascadeUndo(t *testing.T) {
	e := newTestEngine(t)
	a, _ := e.AddEntity("A", schema.KnowledgeArea, schema.NewAddonSet(schema.Knowledge), 0, 0)
	b, _ := e.AddEntity("B", schema.KnowledgeUnit, nil, 10, 10)
	c, _ := e.AddEntity("C", schema.KnowledgePoint, nil, 20, 20)
	assert.NoError(t, e.AddEdge(a, b, schema.Contain))
	assert.NoError(t, e.AddEdge(b, c, schema.Contain))
	assert.NoError(t, e.AddEdge(c, a, schema.Order))

	ents, edges := captureState(e)

	assert.NoError(t, e.RemoveEntity(a))
	assert.Equal(t, 2, e.Document().EntityCount())
	assert.Equal(t, 1, e.Document().EdgeCount(), "exactly the two incident edges removed")

	assert.NoError(t, e.Undo())
	assertState(t, e, ents, edges)

	assert.NoError(t, e.Redo())
	assert.Equal(t, 2, e.Document().EntityCount())
	assert.Equal(t, 1, e.Document().EdgeCount())

	assert.NoError(t, e.Undo())
	assertState(t, e, ents, edges)
}

func TestIDStableAcrossUndoRedo(t *testing.T) {
	e := newTestEngine(t)
	a, _ := e.AddEntity("A", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, e.RemoveEntity(a))
	assert.NoError(t, e.Undo())

	ent, ok := e.Document().Entity(a)
	assert.True(t, ok, "undone deletion brings back the old id, not a fresh one")
	assert.Equal(t, a, ent.ID)

	// and the allocator still never reuses it
	b, _ := e.AddEntity("B", schema.KnowledgePoint, nil, 0, 0)
	assert.Greater(t, b, a)
}

func TestEdgeCommands(t *testing.T) {
	e := newTestEngine(t)
	a, _ := e.AddEntity("A", schema.KnowledgePoint, nil, 0, 0)
	b, _ := e.AddEntity("B", schema.KnowledgePoint, nil, 0, 0)

	assert.NoError(t, e.AddEdge(a, b, schema.Contain))
	assert.NoError(t, e.Undo())
	assert.False(t, e.Document().HasEdge(a, b, schema.Contain))
	assert.NoError(t, e.Redo())
	assert.True(t, e.Document().HasEdge(a, b, schema.Contain))

	assert.NoError(t, e.RemoveEdge(a, b, schema.Contain))
	assert.False(t, e.Document().HasEdge(a, b, schema.Contain))
	assert.NoError(t, e.Undo())
	assert.True(t, e.Document().HasEdge(a, b, schema.Contain))
}

func TestRemoveEdgesBetweenUndoRestoresExactRelations(t *testing.T) {
	e := newTestEngine(t)
	a, _ := e.AddEntity("A", schema.KnowledgePoint, nil, 0, 0)
	b, _ := e.AddEntity("B", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, e.AddEdge(a, b, schema.Order))

	// only the order edge exists; the pair removal must restore only it
	assert.NoError(t, e.RemoveEdgesBetween(a, b))
	assert.Equal(t, 0, e.Document().EdgeCount())

	assert.NoError(t, e.Undo())
	assert.True(t, e.Document().HasEdge(a, b, schema.Order))
	assert.False(t, e.Document().HasEdge(a, b, schema.Contain))
	assert.Equal(t, 1, e.Document().EdgeCount())
}

func TestSetterCommands(t *testing.T) {
	e := newTestEngine(t)
	id, _ := e.AddEntity("old", schema.KnowledgeDetail, schema.NewAddonSet(schema.Knowledge), 1, 2)

	assert.NoError(t, e.SetContent(id, "new"))
	assert.NoError(t, e.SetPosition(id, 30, 40))
	assert.NoError(t, e.SetAddons(id, schema.NewAddonSet(schema.Question)))

	assert.NoError(t, e.Undo()) // addons back
	ent, _ := e.Document().Entity(id)
	assert.True(t, ent.Addons.Has(schema.Knowledge))

	assert.NoError(t, e.Undo()) // position back
	ent, _ = e.Document().Entity(id)
	assert.Equal(t, 1.0, ent.X)
	assert.Equal(t, 2.0, ent.Y)

	assert.NoError(t, e.Undo()) // content back
	ent, _ = e.Document().Entity(id)
	assert.Equal(t, "old", ent.Content)

	assert.NoError(t, e.Redo())
	assert.NoError(t, e.Redo())
	assert.NoError(t, e.Redo())
	ent, _ = e.Document().Entity(id)
	assert.Equal(t, "new", ent.Content)
	assert.Equal(t, 30.0, ent.X)
	assert.True(t, ent.Addons.Has(schema.Question))
}

func TestUpdateEntityIsOneUndoStep(t *testing.T) {
	e := newTestEngine(t)
	id, _ := e.AddEntity("old", schema.KnowledgePoint, schema.NewAddonSet(schema.Knowledge), 0, 0)

	assert.NoError(t, e.UpdateEntity(id, "new", schema.NewAddonSet(schema.Example, schema.Practice)))
	assert.NoError(t, e.Undo())

	ent, _ := e.Document().Entity(id)
	assert.Equal(t, "old", ent.Content)
	assert.True(t, ent.Addons.Equal(schema.NewAddonSet(schema.Knowledge)))
}

func TestUndoLabels(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AddEntity("A", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, err)

	label, ok := e.UndoLabel()
	assert.True(t, ok)
	assert.Equal(t, "add entity", label)

	assert.NoError(t, e.Undo())
	label, ok = e.RedoLabel()
	assert.True(t, ok)
	assert.Equal(t, "add entity", label)
}

func TestResetDropsHistory(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AddEntity("A", schema.KnowledgePoint, nil, 0, 0)
	assert.NoError(t, err)

	e.Reset(graph.NewDocument())
	assert.False(t, e.CanUndo())
	assert.False(t, e.CanRedo())
	assert.Equal(t, 0, e.Document().EntityCount())
}

// The end-to-end editing scenario: build two entities and an edge, hit the
// duplicate, cascade-delete, then bring everything back with one undo.
func TestEditingScenario(t *testing.T) {
	e := newTestEngine(t)

	e1, err := e.AddEntity("A", schema.KnowledgeArea, schema.NewAddonSet(schema.Knowledge), 0, 0)
	assert.NoError(t, err)
	e2, err := e.AddEntity("B", schema.KnowledgeArea, schema.NewAddonSet(schema.Knowledge), 10, 10)
	assert.NoError(t, err)

	assert.NoError(t, e.AddEdge(e1, e2, schema.Contain))

	var dup *graph.DuplicateEdgeError
	assert.ErrorAs(t, e.AddEdge(e1, e2, schema.Contain), &dup)

	assert.NoError(t, e.RemoveEntity(e1))
	_, ok := e.Document().Entity(e1)
	assert.False(t, ok)
	assert.Equal(t, 0, e.Document().EdgeCount())

	assert.NoError(t, e.Undo())
	_, ok = e.Document().Entity(e1)
	assert.True(t, ok)
	assert.True(t, e.Document().HasEdge(e1, e2, schema.Contain))
	assert.Equal(t, 2, e.Document().EntityCount())
	assert.Equal(t, 1, e.Document().EdgeCount())
}

// Package history is the command engine: the only legal mutation path into a
// graph.Document after creation. Every mutation is a reversible Command kept
// on an undo stack, with a redo stack rebuilt on undo and cleared by any new
// mutation.
package history

import (
	"errors"
	"fmt"

	"github.com/ktsqep/graphdoc/pkg/graph"
	"github.com/ktsqep/graphdoc/pkg/schema"
)

var (
	// ErrNothingToUndo reports an undo against an empty history. Benign.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo reports a redo with no undone command. Benign.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Engine drives one document. Neither stack has a depth limit.
type Engine struct {
	doc  *graph.Document
	undo []Command
	redo []Command
}

// NewEngine wraps doc. The caller must stop mutating doc directly.
func NewEngine(doc *graph.Document) *Engine {
	return &Engine{doc: doc}
}

// Document exposes the current document for reading and serialization.
func (e *Engine) Document() *graph.Document { return e.doc }

// Reset installs a fresh document and drops all history; undo never crosses
// a document boundary.
func (e *Engine) Reset(doc *graph.Document) {
	e.doc = doc
	e.undo = nil
	e.redo = nil
}

// Do applies cmd. On success it joins the undo stack and any previously
// undone future is discarded. On failure the document is untouched and
// nothing is recorded.
func (e *Engine) Do(cmd Command) error {
	if err := cmd.Apply(e.doc); err != nil {
		return err
	}
	e.undo = append(e.undo, cmd)
	e.redo = nil
	return nil
}

// Undo reverts the most recent command and moves it to the redo stack.
// A failing revert means a broken invariant somewhere in the core, not a
// user mistake; it is reported as such instead of being swallowed.
func (e *Engine) Undo() error {
	if len(e.undo) == 0 {
		return ErrNothingToUndo
	}
	cmd := e.undo[len(e.undo)-1]
	if err := cmd.Revert(e.doc); err != nil {
		return fmt.Errorf("undo %q: internal consistency fault: %w", cmd.Label(), err)
	}
	e.undo = e.undo[:len(e.undo)-1]
	e.redo = append(e.redo, cmd)
	return nil
}

// Redo re-applies the most recently undone command.
func (e *Engine) Redo() error {
	if len(e.redo) == 0 {
		return ErrNothingToRedo
	}
	cmd := e.redo[len(e.redo)-1]
	if err := cmd.Apply(e.doc); err != nil {
		return fmt.Errorf("redo %q: internal consistency fault: %w", cmd.Label(), err)
	}
	e.redo = e.redo[:len(e.redo)-1]
	e.undo = append(e.undo, cmd)
	return nil
}

// CanUndo reports whether the undo stack is non-empty.
func (e *Engine) CanUndo() bool { return len(e.undo) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (e *Engine) CanRedo() bool { return len(e.redo) > 0 }

// UndoLabel returns the label of the command an Undo would revert.
func (e *Engine) UndoLabel() (string, bool) {
	if len(e.undo) == 0 {
		return "", false
	}
	return e.undo[len(e.undo)-1].Label(), true
}

// RedoLabel returns the label of the command a Redo would re-apply.
func (e *Engine) RedoLabel() (string, bool) {
	if len(e.redo) == 0 {
		return "", false
	}
	return e.redo[len(e.redo)-1].Label(), true
}

// The typed methods below are the engine's public mutation API; each wraps
// one document operation in its command.

// AddEntity creates an entity and returns its new id.
func (e *Engine) AddEntity(content string, t schema.DistinctType, addons schema.AddonSet, x, y float64) (uint64, error) {
	cmd := &addEntityCmd{content: content, dtype: t, addons: addons.Clone(), x: x, y: y}
	if err := e.Do(cmd); err != nil {
		return 0, err
	}
	return cmd.id, nil
}

// RemoveEntity deletes the entity and every incident edge.
func (e *Engine) RemoveEntity(id uint64) error {
	return e.Do(&removeEntityCmd{id: id})
}

// AddEdge creates a directed edge of the given relation kind.
func (e *Engine) AddEdge(from, to uint64, r schema.Relation) error {
	return e.Do(&addEdgeCmd{from: from, to: to, relation: r})
}

// RemoveEdge deletes the edge with exactly this relation kind.
func (e *Engine) RemoveEdge(from, to uint64, r schema.Relation) error {
	return e.Do(&removeEdgeCmd{from: from, to: to, relation: r})
}

// RemoveEdgesBetween deletes whichever edges exist between the ordered pair.
func (e *Engine) RemoveEdgesBetween(from, to uint64) error {
	return e.Do(&removeEdgesBetweenCmd{from: from, to: to})
}

// SetContent replaces the entity's text label.
func (e *Engine) SetContent(id uint64, content string) error {
	return e.Do(&setContentCmd{id: id, content: content})
}

// SetPosition moves the entity.
func (e *Engine) SetPosition(id uint64, x, y float64) error {
	return e.Do(&setPositionCmd{id: id, x: x, y: y})
}

// SetAddons replaces the entity's addon set.
func (e *Engine) SetAddons(id uint64, addons schema.AddonSet) error {
	return e.Do(&setAddonsCmd{id: id, addons: addons.Clone()})
}

// UpdateEntity rewrites content and addon set as one undoable step.
func (e *Engine) UpdateEntity(id uint64, content string, addons schema.AddonSet) error {
	return e.Do(&updateEntityCmd{id: id, content: content, addons: addons.Clone()})
}

package history

import (
	"fmt"

	"github.com/ktsqep/graphdoc/pkg/graph"
	"github.com/ktsqep/graphdoc/pkg/schema"
)

// Command is one reversible document mutation. Apply runs the forward
// operation and captures whatever pre-state the inverse needs; Revert
// restores the document to the exact state Apply found it in. Label is a
// short human-readable description for UI surfaces, never used for logic.
type Command interface {
	Apply(*graph.Document) error
	Revert(*graph.Document) error
	Label() string
}

type addEntityCmd struct {
	content string
	dtype   schema.DistinctType
	addons  schema.AddonSet
	x, y    float64

	// id is allocated on the first Apply and reused on every redo so the
	// entity keeps one identity across its whole undo/redo life.
	id uint64
}

func (c *addEntityCmd) Apply(d *graph.Document) error {
	if c.id == 0 {
		id, err := d.AddEntity(c.content, c.dtype, c.addons, c.x, c.y)
		if err != nil {
			return err
		}
		c.id = id
		return nil
	}
	return d.RestoreEntity(graph.Entity{
		ID: c.id, Content: c.content, Type: c.dtype, Addons: c.addons, X: c.x, Y: c.y,
	})
}

func (c *addEntityCmd) Revert(d *graph.Document) error {
	_, err := d.RemoveEntity(c.id)
	return err
}

func (c *addEntityCmd) Label() string { return "add entity" }

type removeEntityCmd struct {
	id      uint64
	removed *graph.RemovedEntity
}

func (c *removeEntityCmd) Apply(d *graph.Document) error {
	removed, err := d.RemoveEntity(c.id)
	if err != nil {
		return err
	}
	c.removed = removed
	return nil
}

func (c *removeEntityCmd) Revert(d *graph.Document) error {
	return d.RestoreRemoved(c.removed)
}

func (c *removeEntityCmd) Label() string { return "remove entity" }

type addEdgeCmd struct {
	from, to uint64
	relation schema.Relation
}

func (c *addEdgeCmd) Apply(d *graph.Document) error {
	return d.AddEdge(c.from, c.to, c.relation)
}

func (c *addEdgeCmd) Revert(d *graph.Document) error {
	_, err := d.RemoveEdge(c.from, c.to, c.relation)
	return err
}

func (c *addEdgeCmd) Label() string { return "add edge" }

type removeEdgeCmd struct {
	from, to uint64
	relation schema.Relation
	removed  graph.RemovedEdge
}

func (c *removeEdgeCmd) Apply(d *graph.Document) error {
	removed, err := d.RemoveEdge(c.from, c.to, c.relation)
	if err != nil {
		return err
	}
	c.removed = removed
	return nil
}

func (c *removeEdgeCmd) Revert(d *graph.Document) error {
	return d.RestoreEdge(c.removed)
}

func (c *removeEdgeCmd) Label() string { return "remove edge" }

// removeEdgesBetweenCmd is the relation-unspecified removal: both relation
// kinds between the ordered pair go away, and the inverse restores exactly
// the ones that were present.
type removeEdgesBetweenCmd struct {
	from, to uint64
	removed  []graph.RemovedEdge
}

func (c *removeEdgesBetweenCmd) Apply(d *graph.Document) error {
	removed, err := d.RemoveEdgesBetween(c.from, c.to)
	if err != nil {
		return err
	}
	c.removed = removed
	return nil
}

func (c *removeEdgesBetweenCmd) Revert(d *graph.Document) error {
	for _, re := range c.removed {
		if err := d.RestoreEdge(re); err != nil {
			return err
		}
	}
	return nil
}

func (c *removeEdgesBetweenCmd) Label() string { return "remove edges" }

type setContentCmd struct {
	id      uint64
	content string
	prev    string
}

func (c *setContentCmd) Apply(d *graph.Document) error {
	prev, err := d.SetContent(c.id, c.content)
	if err != nil {
		return err
	}
	c.prev = prev
	return nil
}

func (c *setContentCmd) Revert(d *graph.Document) error {
	_, err := d.SetContent(c.id, c.prev)
	return err
}

func (c *setContentCmd) Label() string { return "edit content" }

type setPositionCmd struct {
	id           uint64
	x, y         float64
	prevX, prevY float64
}

func (c *setPositionCmd) Apply(d *graph.Document) error {
	px, py, err := d.SetPosition(c.id, c.x, c.y)
	if err != nil {
		return err
	}
	c.prevX, c.prevY = px, py
	return nil
}

func (c *setPositionCmd) Revert(d *graph.Document) error {
	_, _, err := d.SetPosition(c.id, c.prevX, c.prevY)
	return err
}

func (c *setPositionCmd) Label() string { return "move entity" }

type setAddonsCmd struct {
	id     uint64
	addons schema.AddonSet
	prev   schema.AddonSet
}

func (c *setAddonsCmd) Apply(d *graph.Document) error {
	prev, err := d.SetAddons(c.id, c.addons)
	if err != nil {
		return err
	}
	c.prev = prev
	return nil
}

func (c *setAddonsCmd) Revert(d *graph.Document) error {
	_, err := d.SetAddons(c.id, c.prev)
	return err
}

func (c *setAddonsCmd) Label() string { return "edit addon types" }

// updateEntityCmd rewrites content and addon set together as one undo step,
// matching a single submit of the entity edit dialog.
type updateEntityCmd struct {
	id          uint64
	content     string
	addons      schema.AddonSet
	prevContent string
	prevAddons  schema.AddonSet
}

func (c *updateEntityCmd) Apply(d *graph.Document) error {
	prevAddons, err := d.SetAddons(c.id, c.addons)
	if err != nil {
		return err
	}
	prevContent, err := d.SetContent(c.id, c.content)
	if err != nil {
		// first half succeeded; roll it back so a failed command leaves
		// no partial state
		if _, rbErr := d.SetAddons(c.id, prevAddons); rbErr != nil {
			return fmt.Errorf("rollback after failed update: %w", rbErr)
		}
		return err
	}
	c.prevContent = prevContent
	c.prevAddons = prevAddons
	return nil
}

func (c *updateEntityCmd) Revert(d *graph.Document) error {
	if _, err := d.SetContent(c.id, c.prevContent); err != nil {
		return err
	}
	_, err := d.SetAddons(c.id, c.prevAddons)
	return err
}

func (c *updateEntityCmd) Label() string { return "update entity" }

package transaction

import (
	"fmt"
	"slices"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

// NodeID indexes a node in the Tree arena.
type NodeID int

// NoParent is the parent of the root and of detached nodes.
const NoParent NodeID = -1

type node struct {
	update   *types.AccountUpdate
	parent   NodeID
	children []NodeID
}

/*
Tree is an arena of account updates. Nodes are never removed, a node
created detached (without parent) may later be attached under a parent
exactly once.
*/
type Tree struct {
	nodes []*node
	root  NodeID
}

func NewTree(root *types.AccountUpdate) *Tree {
	return &Tree{nodes: []*node{{update: root, parent: NoParent}}, root: 0}
}

func (t *Tree) Root() NodeID {
	return t.root
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Tree) get(id NodeID) (*node, error) {
	if !t.valid(id) {
		return nil, fmt.Errorf("unknown node %d", id)
	}
	return t.nodes[id], nil
}

// Update returns the account update of the node, nil for unknown node.
func (t *Tree) Update(id NodeID) *types.AccountUpdate {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].update
}

func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return NoParent
	}
	return t.nodes[id].parent
}

func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return slices.Clone(t.nodes[id].children)
}

// AddDetached adds u to the arena without a parent.
func (t *Tree) AddDetached(u *types.AccountUpdate) NodeID {
	t.nodes = append(t.nodes, &node{update: u, parent: NoParent})
	return NodeID(len(t.nodes) - 1)
}

// Add adds u as the last child of parent.
func (t *Tree) Add(u *types.AccountUpdate, parent NodeID) (NodeID, error) {
	if _, err := t.get(parent); err != nil {
		return NoParent, fmt.Errorf("parent: %w", err)
	}
	id := t.AddDetached(u)
	return id, t.Attach(id, parent)
}

/*
Attach makes the detached node child the last child of parent. Attaching
the root, an already attached node or a node under its own descendant is
an error.
*/
func (t *Tree) Attach(child, parent NodeID) error {
	c, err := t.get(child)
	if err != nil {
		return fmt.Errorf("child: %w", err)
	}
	p, err := t.get(parent)
	if err != nil {
		return fmt.Errorf("parent: %w", err)
	}
	if child == t.root {
		return fmt.Errorf("root node can't be attached")
	}
	if c.parent != NoParent {
		return fmt.Errorf("node %d already has parent %d", child, c.parent)
	}
	if t.IsAncestor(child, parent) {
		return fmt.Errorf("attaching node %d under %d would create a cycle", child, parent)
	}
	c.parent = parent
	p.children = append(p.children, child)
	return nil
}

// IsAncestor returns true when a is b or a is on the path from b to its top-most parent.
func (t *Tree) IsAncestor(a, b NodeID) bool {
	for id := b; t.valid(id); id = t.nodes[id].parent {
		if id == a {
			return true
		}
	}
	return false
}

// Attached returns true when the node is reachable from the root.
func (t *Tree) Attached(id NodeID) bool {
	return t.IsAncestor(t.root, id)
}

/*
Walk calls fn for every node of the subtree starting at id in pre-order
(parent before children, children in insertion order). Walking stops at
the first error returned by fn.
*/
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) error) error {
	return t.walk(id, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, int) error) error {
	n, err := t.get(id)
	if err != nil {
		return err
	}
	if err := fn(id, depth); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := t.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Subtree returns ids of the subtree starting at id in pre-order.
func (t *Tree) Subtree(id NodeID) []NodeID {
	var ids []NodeID
	_ = t.Walk(id, func(id NodeID, _ int) error {
		ids = append(ids, id)
		return nil
	})
	return ids
}

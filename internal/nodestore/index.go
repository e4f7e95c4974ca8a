package nodestore

import (
	"sort"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// Lookup is the read-only view of a tree the engine works against.
type Lookup interface {
	// Node returns the node with the given id.
	Node(id string) (types.TreeNode, bool)

	// Children returns the nodes whose parentId is parentID, in sibling order.
	// The empty parentID returns the roots.
	Children(parentID string) []types.TreeNode

	// All returns every node in load order.
	All() []types.TreeNode
}

// Index is an immutable Lookup built once per render from a node list.
type Index struct {
	nodes    []types.TreeNode
	byID     map[string]int
	children map[string][]int
}

var _ Lookup = (*Index)(nil)

// NewIndex flattens nested children and indexes nodes by id and parent.
// When an id appears twice the first occurrence wins.
func NewIndex(nodes []types.TreeNode) *Index {
	flat := Flatten(nodes)
	idx := &Index{
		nodes:    make([]types.TreeNode, 0, len(flat)),
		byID:     make(map[string]int, len(flat)),
		children: make(map[string][]int),
	}
	for _, n := range flat {
		if n.ID == "" {
			continue
		}
		if _, dup := idx.byID[n.ID]; dup {
			continue
		}
		pos := len(idx.nodes)
		idx.nodes = append(idx.nodes, n)
		idx.byID[n.ID] = pos
		idx.children[n.ParentID] = append(idx.children[n.ParentID], pos)
	}
	for parent, kids := range idx.children {
		sort.SliceStable(kids, func(i, j int) bool {
			return idx.nodes[kids[i]].Order < idx.nodes[kids[j]].Order
		})
		idx.children[parent] = kids
	}
	return idx
}

func (x *Index) Node(id string) (types.TreeNode, bool) {
	pos, ok := x.byID[id]
	if !ok {
		return types.TreeNode{}, false
	}
	return x.nodes[pos], true
}

func (x *Index) Children(parentID string) []types.TreeNode {
	kids := x.children[parentID]
	if len(kids) == 0 {
		return nil
	}
	out := make([]types.TreeNode, len(kids))
	for i, pos := range kids {
		out[i] = x.nodes[pos]
	}
	return out
}

func (x *Index) All() []types.TreeNode {
	out := make([]types.TreeNode, len(x.nodes))
	copy(out, x.nodes)
	return out
}

// Len returns the number of indexed nodes.
func (x *Index) Len() int { return len(x.nodes) }

// Flatten turns nested Children into parentId-linked nodes. Children inherit
// the parent's id and tree id when they do not carry their own.
func Flatten(nodes []types.TreeNode) []types.TreeNode {
	var out []types.TreeNode
	var walk func(n types.TreeNode)
	walk = func(n types.TreeNode) {
		kids := n.Children
		n.Children = nil
		out = append(out, n)
		for _, k := range kids {
			if k.ParentID == "" {
				k.ParentID = n.ID
			}
			if k.TreeID == "" {
				k.TreeID = n.TreeID
			}
			walk(k)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}

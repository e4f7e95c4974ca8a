// Package nodestore persists TBL tree nodes and builds the read-only indexes
// the render pipeline consumes.
package nodestore

import (
	"context"
	"errors"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// ErrNotFound is returned when a tree has no nodes.
var ErrNotFound = errors.New("nodestore: tree not found")

// Store is the interface for reading and writing tree nodes.
type Store interface {
	// LoadTree returns every node of a tree, ordered by sibling position.
	LoadTree(ctx context.Context, treeID string) ([]types.TreeNode, error)

	// SaveNodes inserts or replaces nodes. Nested children are flattened first.
	SaveNodes(ctx context.Context, nodes []types.TreeNode) error

	// DeleteNodes removes nodes by id. Unknown ids are ignored.
	DeleteNodes(ctx context.Context, ids []string) error

	// Trees lists the ids of the stored trees.
	Trees(ctx context.Context) ([]string, error)
}

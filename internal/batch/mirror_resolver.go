package batch

import (
	"context"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/mirror"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// MirrorResolver serves nodes without a data or formula capability from
// their mirror slot and delegates every other node to next.
type MirrorResolver struct {
	nodes nodestore.Lookup
	next  ValueResolver
}

// NewMirrorResolver creates a MirrorResolver over nodes. next may be nil, in
// which case capability-backed nodes resolve to nil.
func NewMirrorResolver(nodes nodestore.Lookup, next ValueResolver) *MirrorResolver {
	return &MirrorResolver{nodes: nodes, next: next}
}

func (r *MirrorResolver) Resolve(ctx context.Context, nodeID, treeID string, values types.FormValues) (any, error) {
	node, ok := r.nodes.Node(nodeID)
	if ok && !hasInstances(node, types.CapData) && !hasInstances(node, types.CapFormula) {
		v, _ := values.Get(mirror.Key(node.Label))
		return v, nil
	}
	if r.next == nil {
		return nil, nil
	}
	return r.next.Resolve(ctx, nodeID, treeID, values)
}

func hasInstances(node types.TreeNode, kind types.CapabilityKind) bool {
	return len(node.Capabilities[kind].Instances) > 0
}

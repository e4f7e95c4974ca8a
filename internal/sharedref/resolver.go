// Package sharedref collects the shared references reachable from a node.
package sharedref

import "github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"

// Visited is the cycle guard shared by one FindAll call tree.
type Visited map[string]struct{}

// FindAll returns the shared reference ids reachable from nodeID: the node's
// own sharedReferenceIds and legacy sharedReferenceId, then everything found
// under its children (by parentId). Referenced nodes are reported, not walked:
// what they reference in turn only matters once the user picks one of their
// options.
//
// visited is shared across the whole recursion and may be shared across
// calls, so a node is expanded only the first time it is reached. A nil
// visited starts a fresh walk. The result may contain duplicates; see Unique.
func FindAll(nodeID string, nodes nodestore.Lookup, visited Visited) []string {
	if visited == nil {
		visited = make(Visited)
	}
	if _, seen := visited[nodeID]; seen {
		return nil
	}
	visited[nodeID] = struct{}{}

	node, ok := nodes.Node(nodeID)
	if !ok {
		return nil
	}

	var refs []string
	refs = append(refs, node.SharedReferenceIDs...)
	if node.SharedReferenceID != "" {
		refs = append(refs, node.SharedReferenceID)
	}

	for _, child := range nodes.Children(nodeID) {
		refs = append(refs, FindAll(child.ID, nodes, visited)...)
	}
	return refs
}

// Unique drops repeated ids, keeping first occurrences in order.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

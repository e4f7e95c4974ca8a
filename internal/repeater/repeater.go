// Package repeater implements the repeater instance lifecycle: adding and
// removing instances in the form values, and duplicating template subtrees
// in the node store.
package repeater

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/pipeline"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

var (
	// ErrMaxItems is returned when a repeater already holds maxItems instances.
	ErrMaxItems = errors.New("repeater: maximum number of instances reached")

	// ErrNoInstance is returned when removing an index that does not exist.
	ErrNoInstance = errors.New("repeater: no such instance")
)

// Change is a set of form value writes. Delete is applied before Set.
type Change struct {
	Set    map[string]any
	Delete []string
}

// Apply applies c to values in place.
func (c Change) Apply(values types.FormValues) {
	for _, k := range c.Delete {
		delete(values, k)
	}
	for k, v := range c.Set {
		values[k] = v
	}
}

// InstancePrefix returns the key prefix of instance index of repeaterID.
func InstancePrefix(repeaterID string, index int) string {
	return fmt.Sprintf("%s_%d_", repeaterID, index)
}

// AddInstance bumps the instance count of repeaterID. It returns the index
// of the new instance.
func AddInstance(values types.FormValues, repeaterID string, maxItems *int) (Change, int, error) {
	count := pipeline.InstanceCount(values, repeaterID)
	if maxItems != nil && count >= *maxItems {
		return Change{}, 0, fmt.Errorf("%w (%d)", ErrMaxItems, *maxItems)
	}
	return Change{
		Set: map[string]any{pipeline.InstanceCountKey(repeaterID): count + 1},
	}, count, nil
}

// RemoveInstance drops the values of instance index and shifts the values
// of every later instance down by one so instances stay contiguous.
func RemoveInstance(values types.FormValues, repeaterID string, index int) (Change, error) {
	count := pipeline.InstanceCount(values, repeaterID)
	if index < 0 || index >= count {
		return Change{}, fmt.Errorf("%w: %s[%d]", ErrNoInstance, repeaterID, index)
	}

	c := Change{Set: map[string]any{pipeline.InstanceCountKey(repeaterID): count - 1}}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for j := index; j < count; j++ {
		prefix := InstancePrefix(repeaterID, j)
		for _, k := range keys {
			rest, ok := strings.CutPrefix(k, prefix)
			if !ok {
				continue
			}
			c.Delete = append(c.Delete, k)
			if j > index {
				c.Set[InstancePrefix(repeaterID, j-1)+rest] = values[k]
			}
		}
	}
	return c, nil
}

// Duplicate copies the template subtrees of a repeater for instance index.
// Copies get the id "<originalId>-<index+1>", record their source in
// metadata and keep shared references pointing at the original tree.
// References between copied nodes are remapped to the copies.
func Duplicate(nodes nodestore.Lookup, repeaterID string, templateIDs []string, index int) []types.TreeNode {
	var originals []types.TreeNode
	seen := make(map[string]struct{})
	var collect func(n types.TreeNode)
	collect = func(n types.TreeNode) {
		if _, ok := seen[n.ID]; ok {
			return
		}
		seen[n.ID] = struct{}{}
		originals = append(originals, n)
		for _, child := range nodes.Children(n.ID) {
			collect(child)
		}
	}
	for _, tid := range templateIDs {
		if n, ok := nodes.Node(tid); ok {
			collect(n)
		}
	}

	ids := make(map[string]string, len(originals))
	for _, n := range originals {
		ids[n.ID] = fmt.Sprintf("%s-%d", n.ID, index+1)
	}
	remap := func(id string) string {
		if m, ok := ids[id]; ok {
			return m
		}
		return id
	}

	out := make([]types.TreeNode, 0, len(originals))
	for _, n := range originals {
		cp := n
		cp.ID = ids[n.ID]
		cp.ParentID = remap(n.ParentID)
		if cp.ParentID == "" {
			cp.ParentID = repeaterID
		}
		cp.Children = nil
		cp.SharedReferenceIDs = append([]string(nil), n.SharedReferenceIDs...)
		cp.Config = n.Config.Clone()
		if cp.Config.SourceRef.Kind == types.RefRaw {
			cp.Config.SourceRef.ID = remap(cp.Config.SourceRef.ID)
		}
		if n.Conditions != nil {
			cp.Conditions = make([]types.ConditionRule, len(n.Conditions))
			for i, rule := range n.Conditions {
				rule.DependsOn = remap(rule.DependsOn)
				cp.Conditions[i] = rule
			}
		}
		cp.TableLookup = n.TableLookup.Clone()
		cp.SelectConfig = n.SelectConfig.Clone()
		cp.Repeater = n.Repeater.Clone()
		idx := index
		cp.Metadata = types.NodeMetadata{CopiedFromNodeID: n.ID, InstanceIndex: &idx}
		out = append(out, cp)
	}
	return out
}

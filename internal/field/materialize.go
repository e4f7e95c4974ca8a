// Package field turns raw tree nodes into field descriptors and clones
// descriptors into repeater-instance namespaces.
package field

import (
	"encoding/json"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// FromNode materializes node into a renderable field. nodes is only read to
// gather the node's option children.
func FromNode(node types.TreeNode, nodes nodestore.Lookup) types.FieldDescriptor {
	f := types.FieldDescriptor{
		ID:                  node.ID,
		Label:               node.Label,
		Type:                resolveType(node),
		Visible:             !node.Hidden,
		Required:            node.Required,
		SharedReferenceIDs:  copyStrings(node.SharedReferenceIDs),
		SharedReferenceID:   node.SharedReferenceID,
		SharedReferenceName: node.SharedReferenceName,
		Config:              node.Config.Clone(),
		TableLookup:         node.TableLookup.Clone(),
		SelectConfig:        node.SelectConfig.Clone(),
		Capabilities:        buildCapabilities(node.Capabilities),
		Metadata: types.FieldMetadata{
			OriginalNodeID:   node.ID,
			CopiedFromNodeID: node.Metadata.CopiedFromNodeID,
			Repeater:         node.Repeater.Clone(),
		},
	}
	if len(node.Conditions) > 0 {
		f.Conditions = make([]types.ConditionRule, len(node.Conditions))
		copy(f.Conditions, node.Conditions)
	}
	if nodes != nil {
		f.Options = buildOptions(node.ID, nodes)
	}
	return f
}

// Placeholder is the minimal field used when template or option data is
// missing or malformed.
func Placeholder(id string) types.FieldDescriptor {
	return types.FieldDescriptor{
		ID:        id,
		Type:      types.FieldTypeText,
		Visible:   true,
		Synthetic: true,
		Metadata:  types.FieldMetadata{OriginalNodeID: id},
	}
}

// resolveType picks subType, then fieldType, then type, then TEXT.
func resolveType(node types.TreeNode) string {
	switch {
	case node.SubType != "":
		return node.SubType
	case node.FieldType != "":
		return node.FieldType
	case node.Type != "":
		return string(node.Type)
	default:
		return types.FieldTypeText
	}
}

func buildOptions(parentID string, nodes nodestore.Lookup) []types.OptionDescriptor {
	var opts []types.OptionDescriptor
	for _, child := range nodes.Children(parentID) {
		if !child.Type.IsOption() {
			continue
		}
		opts = append(opts, OptionFromNode(child))
	}
	return opts
}

// OptionFromNode builds an option descriptor. The option value defaults to
// the node id when the node has no explicit value.
func OptionFromNode(node types.TreeNode) types.OptionDescriptor {
	value := node.Value
	if value == "" {
		value = node.ID
	}
	return types.OptionDescriptor{
		ID:                 node.ID,
		Value:              value,
		Label:              node.Label,
		SharedReferenceIDs: copyStrings(node.SharedReferenceIDs),
	}
}

// buildCapabilities wraps every capability kind. Enabled follows the presence
// of instances, not the stored flag.
func buildCapabilities(blocks map[types.CapabilityKind]types.CapabilityBlock) types.Capabilities {
	var caps types.Capabilities
	for _, kind := range types.CapabilityKinds {
		block := blocks[kind]
		cp := types.Capability{
			Kind:     kind,
			Enabled:  len(block.Instances) > 0,
			ActiveID: block.ActiveID,
		}
		if len(block.Instances) > 0 {
			cp.Instances = make(map[string]json.RawMessage, len(block.Instances))
			for id, raw := range block.Instances {
				cp.Instances[id] = append(json.RawMessage(nil), raw...)
			}
		}
		caps.Set(cp)
	}
	return caps
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Package types provides the Go structs shared by the TBL engine: raw tree
// nodes as they come out of the node store, and the field descriptors the
// render pipeline produces from them.
package types

import (
	"encoding/json"
	"strings"
)

// NodeType discriminates the generic tree nodes.
type NodeType string

const (
	NodeBranch        NodeType = "branch"
	NodeSection       NodeType = "section"
	NodeField         NodeType = "leaf_field"
	NodeOption        NodeType = "leaf_option"
	NodeOptionField   NodeType = "leaf_option_field"
	NodeRepeater      NodeType = "leaf_repeater"
	NodeRepeaterUpper NodeType = "LEAF_REPEATER"
)

// IsOption reports whether nodes of this type can be picked as a select option.
func (t NodeType) IsOption() bool {
	return t == NodeOption || t == NodeOptionField
}

// IsContainer reports whether nodes of this type render as a section.
func (t NodeType) IsContainer() bool {
	return t == NodeBranch || t == NodeSection
}

// IsRepeater reports whether nodes of this type expand into instances.
func (t NodeType) IsRepeater() bool {
	return t == NodeRepeater || t == NodeRepeaterUpper
}

// CapabilityKind names one capability block a node can carry.
type CapabilityKind string

const (
	CapData      CapabilityKind = "data"
	CapFormula   CapabilityKind = "formula"
	CapCondition CapabilityKind = "condition"
	CapTable     CapabilityKind = "table"
	CapAPI       CapabilityKind = "api"
	CapLink      CapabilityKind = "link"
	CapMarkers   CapabilityKind = "markers"
)

// CapabilityKinds lists every capability kind in materialization order.
var CapabilityKinds = []CapabilityKind{
	CapData, CapFormula, CapCondition, CapTable, CapAPI, CapLink, CapMarkers,
}

// CapabilityBlock is the raw capability payload stored on a node. Enabled is
// the flag persisted by the editor and may be stale; Instances is what counts.
type CapabilityBlock struct {
	ActiveID  string                     `json:"activeId,omitempty"`
	Instances map[string]json.RawMessage `json:"instances,omitempty"`
	Enabled   bool                       `json:"enabled,omitempty"`
}

// RepeaterMeta carries the repeater settings of a leaf_repeater node.
// TemplateNodeIDs is kept raw because editors have stored it both as a JSON
// array and as a JSON-encoded string.
type RepeaterMeta struct {
	TemplateNodeIDs json.RawMessage `json:"templateNodeIds,omitempty"`
	MinItems        *int            `json:"minItems,omitempty"`
	MaxItems        *int            `json:"maxItems,omitempty"`
	AddButtonLabel  string          `json:"addButtonLabel,omitempty"`
}

// TemplateIDs decodes TemplateNodeIDs leniently. Anything that is not a list
// of strings (directly or wrapped in a JSON string) yields an empty list.
func (m *RepeaterMeta) TemplateIDs() []string {
	if m == nil || len(m.TemplateNodeIDs) == 0 {
		return nil
	}
	raw := m.TemplateNodeIDs

	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		raw = json.RawMessage(strings.TrimSpace(wrapped))
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}

// Clone returns an independent copy of m.
func (m *RepeaterMeta) Clone() *RepeaterMeta {
	if m == nil {
		return nil
	}
	c := *m
	c.TemplateNodeIDs = cloneRaw(m.TemplateNodeIDs)
	c.MinItems = cloneIntPtr(m.MinItems)
	c.MaxItems = cloneIntPtr(m.MaxItems)
	return &c
}

// NodeMetadata holds provenance recorded by the store.
type NodeMetadata struct {
	CopiedFromNodeID string `json:"copiedFromNodeId,omitempty"`
	InstanceIndex    *int   `json:"instanceIndex,omitempty"`
}

// TreeNode is one generic node of a TBL tree. Parent edges form a forest;
// shared references are weak pointers resolved by lookup only.
type TreeNode struct {
	ID                  string                             `json:"id"`
	ParentID            string                             `json:"parentId,omitempty"`
	TreeID              string                             `json:"treeId,omitempty"`
	Type                NodeType                           `json:"type"`
	SubType             string                             `json:"subType,omitempty"`
	FieldType           string                             `json:"fieldType,omitempty"`
	Label               string                             `json:"label,omitempty"`
	Order               int                                `json:"order,omitempty"`
	Value               string                             `json:"value,omitempty"`
	Hidden              bool                               `json:"hidden,omitempty"`
	Required            bool                               `json:"required,omitempty"`
	SharedReferenceIDs  []string                           `json:"sharedReferenceIds,omitempty"`
	SharedReferenceID   string                             `json:"sharedReferenceId,omitempty"`
	SharedReferenceName string                             `json:"sharedReferenceName,omitempty"`
	Capabilities        map[CapabilityKind]CapabilityBlock `json:"capabilities,omitempty"`
	Config              FieldConfig                        `json:"config,omitzero"`
	Conditions          []ConditionRule                    `json:"conditions,omitempty"`
	TableLookup         *TableLookupConfig                 `json:"tableLookup,omitempty"`
	SelectConfig        *SelectConfig                      `json:"selectConfig,omitempty"`
	Repeater            *RepeaterMeta                      `json:"repeater,omitempty"`
	Metadata            NodeMetadata                       `json:"metadata,omitzero"`
	Children            []TreeNode                         `json:"children,omitempty"`
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

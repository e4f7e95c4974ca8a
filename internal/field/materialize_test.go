package field

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

func TestFromNode_TypeResolution(t *testing.T) {
	tests := []struct {
		name string
		node types.TreeNode
		want string
	}{
		{"subType wins", types.TreeNode{ID: "a", Type: types.NodeField, FieldType: "NUMBER", SubType: "SELECT"}, "SELECT"},
		{"fieldType", types.TreeNode{ID: "a", Type: types.NodeField, FieldType: "NUMBER"}, "NUMBER"},
		{"type", types.TreeNode{ID: "a", Type: types.NodeField}, "leaf_field"},
		{"fallback", types.TreeNode{ID: "a"}, types.FieldTypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromNode(tt.node, nil).Type)
		})
	}
}

func TestFromNode_OptionsKeepSharedReferences(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		{ID: "sel", Type: types.NodeField, FieldType: "SELECT", Label: "Type de toit"},
		{ID: "o1", ParentID: "sel", Type: types.NodeOption, Label: "Plat", Value: "flat", Order: 2, SharedReferenceIDs: []string{"S1"}},
		{ID: "o2", ParentID: "sel", Type: types.NodeOptionField, Label: "Incliné", Order: 1},
		{ID: "other", ParentID: "sel", Type: types.NodeField, Label: "not an option"},
	})
	node, _ := nodes.Node("sel")
	f := FromNode(node, nodes)

	require.Len(t, f.Options, 2)
	assert.Equal(t, "o2", f.Options[0].ID)
	assert.Equal(t, "o2", f.Options[0].Value, "value defaults to id")
	assert.Equal(t, "flat", f.Options[1].Value)
	assert.Equal(t, []string{"S1"}, f.Options[1].SharedReferenceIDs)

	// The store's node must not be aliased.
	f.Options[1].SharedReferenceIDs[0] = "changed"
	o1, _ := nodes.Node("o1")
	assert.Equal(t, "S1", o1.SharedReferenceIDs[0])
}

func TestFromNode_CapabilitiesFollowInstances(t *testing.T) {
	node := types.TreeNode{
		ID:   "n",
		Type: types.NodeField,
		Capabilities: map[types.CapabilityKind]types.CapabilityBlock{
			types.CapData:    {Enabled: true},
			types.CapFormula: {ActiveID: "f1", Instances: map[string]json.RawMessage{"f1": json.RawMessage(`{"expr":"a+b"}`)}},
			types.CapTable:   {Enabled: false, Instances: map[string]json.RawMessage{"t1": json.RawMessage(`{}`)}},
		},
	}
	f := FromNode(node, nil)

	assert.False(t, f.Capabilities.Data.Enabled, "stale enabled flag without instances")
	assert.True(t, f.Capabilities.Formula.Enabled)
	assert.Equal(t, "f1", f.Capabilities.Formula.ActiveID)
	assert.True(t, f.Capabilities.Table.Enabled, "instances win over a stale false flag")
	assert.False(t, f.Capabilities.Markers.Enabled)
	for _, kind := range types.CapabilityKinds {
		assert.Equal(t, kind, f.Capabilities.Get(kind).Kind)
	}
}

func TestFromNode_Hidden(t *testing.T) {
	f := FromNode(types.TreeNode{ID: "n", Hidden: true, Required: true}, nil)
	assert.False(t, f.Visible)
	assert.True(t, f.Required)
	assert.Equal(t, "n", f.Metadata.OriginalNodeID)
}

func TestPlaceholder(t *testing.T) {
	p := Placeholder("missing")
	assert.Equal(t, "missing", p.ID)
	assert.Equal(t, types.FieldTypeText, p.Type)
	assert.True(t, p.Visible)
	assert.True(t, p.Synthetic)
}

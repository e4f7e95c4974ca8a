package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/field"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

func ids(fields []types.FieldDescriptor) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.ID
	}
	return out
}

func intPtr(n int) *int { return &n }

func repeaterNode(id, label string, templates string) types.TreeNode {
	return types.TreeNode{
		ID:       id,
		Type:     types.NodeRepeater,
		Label:    label,
		Repeater: &types.RepeaterMeta{TemplateNodeIDs: json.RawMessage(templates)},
	}
}

// fieldsOf materializes the given node ids from nodes.
func fieldsOf(t *testing.T, nodes *nodestore.Index, idList ...string) []types.FieldDescriptor {
	t.Helper()
	var out []types.FieldDescriptor
	for _, id := range idList {
		n, ok := nodes.Node(id)
		require.True(t, ok, id)
		out = append(out, field.FromNode(n, nodes))
	}
	return out
}

func TestRun_RepeaterInstances(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		repeaterNode("R", "Versant", `["T1"]`),
		{ID: "T1", ParentID: "R", Type: types.NodeField, Label: "Surface"},
	})
	values := types.FormValues{"R_instanceCount": 2.0}

	out := New(nil).Run(fieldsOf(t, nodes, "R"), nodes, values)

	assert.Equal(t, []string{
		"R_0_T1",
		"R_removeInstance_0",
		"R_1_T1",
		"R_removeInstance_1",
		"R_addButton",
	}, ids(out))
	for i, f := range out {
		assert.Equal(t, i, f.Order)
	}

	assert.Equal(t, "Versant 1 - Surface", out[0].Label)
	assert.Equal(t, "Versant 2 - Surface", out[2].Label)
	assert.Equal(t, types.FieldTypeRepeaterRemoveInstance, out[1].Type)
	assert.Equal(t, 1, out[3].Button.InstanceIndex)
	assert.Equal(t, types.FieldTypeRepeaterAddButton, out[4].Type)
	assert.False(t, out[4].Button.Disabled)
	assert.Equal(t, 2, out[4].Button.InstanceIndex)
}

func TestRun_RepeaterWithoutInstances(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		repeaterNode("R", "Versant", `["T1"]`),
		{ID: "T1", ParentID: "R", Type: types.NodeField},
	})

	out := New(nil).Run(fieldsOf(t, nodes, "R"), nodes, nil)
	assert.Equal(t, []string{"R_addButton"}, ids(out))
}

func TestRun_MalformedTemplateIDs(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		repeaterNode("R", "Versant", `{"not":"a list"}`),
	})

	out := New(nil).Run(fieldsOf(t, nodes, "R"), nodes, types.FormValues{})
	assert.Equal(t, []string{"R_addButton"}, ids(out))
}

func TestRun_MissingTemplateBecomesPlaceholder(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		repeaterNode("R", "Versant", `["ghost"]`),
	})
	values := types.FormValues{"R_instanceCount": "1"}

	out := New(nil).Run(fieldsOf(t, nodes, "R"), nodes, values)

	require.Equal(t, []string{"R_0_ghost", "R_removeInstance_0", "R_addButton"}, ids(out))
	assert.True(t, out[0].Synthetic)
	assert.True(t, out[0].Visible)
	assert.Equal(t, types.FieldTypeText, out[0].Type)
}

func TestRun_MaxItemsDisablesAddButton(t *testing.T) {
	rep := repeaterNode("R", "Versant", `["T1"]`)
	rep.Repeater.MaxItems = intPtr(2)
	rep.Repeater.AddButtonLabel = "Ajouter un versant"
	nodes := nodestore.NewIndex([]types.TreeNode{
		rep,
		{ID: "T1", ParentID: "R", Type: types.NodeField},
	})
	p := New(nil)

	out := p.Run(fieldsOf(t, nodes, "R"), nodes, types.FormValues{"R_instanceCount": 1})
	add := out[len(out)-1]
	assert.False(t, add.Button.Disabled)
	assert.Equal(t, "Ajouter un versant", add.Label)

	out = p.Run(fieldsOf(t, nodes, "R"), nodes, types.FormValues{"R_instanceCount": 2})
	add = out[len(out)-1]
	assert.Equal(t, "R_addButton", add.ID)
	assert.True(t, add.Button.Disabled)
}

func TestRun_TemplatesFollowLiveOrder(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		repeaterNode("R", "Versant", `["T2","T1"]`),
		{ID: "T1", ParentID: "R", Type: types.NodeField, Order: 1},
		{ID: "T1c", ParentID: "T1", Type: types.NodeField, Config: types.FieldConfig{SourceRef: types.ParseRef("@value.T1")}},
		{ID: "T1d", ParentID: "T1", Type: types.NodeField},
		{ID: "T2", ParentID: "R", Type: types.NodeField, Order: 2},
	})

	out := New(nil).Run(fieldsOf(t, nodes, "R"), nodes, types.FormValues{"R_instanceCount": 1})

	assert.Equal(t, []string{"R_0_T1", "R_0_T1c", "R_0_T2", "R_removeInstance_0", "R_addButton"}, ids(out))
	assert.Equal(t, "@value.T1", out[1].Config.SourceRef.String())
}

func TestRun_ConditionalInjection(t *testing.T) {
	fields := []types.FieldDescriptor{{
		ID:    "C",
		Label: "Cascade",
		Type:  "cascade",
		Options: []types.OptionDescriptor{
			{Value: "A", Label: "Option A", ConditionalFields: []types.FieldDescriptor{{ID: "X", Label: "Extra"}}},
			{Value: "B", Label: "Option B"},
		},
	}}

	out := New(nil).Run(fields, nil, types.FormValues{"C": "A"})

	require.Equal(t, []string{"C", "X"}, ids(out))
	x := out[1]
	assert.True(t, x.IsConditional)
	assert.Equal(t, "C", x.ParentFieldID)
	assert.Equal(t, "A", x.ParentOptionValue)
	assert.Equal(t, "Option A", x.MirrorTargetLabel)
	assert.Equal(t, 1, x.Order)

	// The input option must not be touched.
	assert.False(t, fields[0].Options[0].ConditionalFields[0].IsConditional)
}

func TestRun_NoMatchingOption(t *testing.T) {
	fields := []types.FieldDescriptor{{
		ID:   "C",
		Type: "cascade",
		Options: []types.OptionDescriptor{
			{Value: "A", ConditionalFields: []types.FieldDescriptor{{ID: "X"}}},
			{Value: "B"},
		},
	}}

	out := New(nil).Run(fields, nil, types.FormValues{"C": "Z"})
	assert.Equal(t, []string{"C"}, ids(out))
}

func TestRun_LooseOptionMatch(t *testing.T) {
	fields := []types.FieldDescriptor{{
		ID:   "C",
		Type: "SELECT",
		Options: []types.OptionDescriptor{
			{Value: "2", ConditionalFields: []types.FieldDescriptor{{ID: "X"}}},
		},
	}}

	out := New(nil).Run(fields, nil, types.FormValues{"C": 2.0})
	assert.Equal(t, []string{"C", "X"}, ids(out))
}

func TestRun_CascadePathUsesLeaf(t *testing.T) {
	fields := []types.FieldDescriptor{{
		ID:   "C",
		Type: "cascade",
		Options: []types.OptionDescriptor{
			{Value: "leaf", ConditionalFields: []types.FieldDescriptor{{ID: "X"}}},
		},
	}}

	out := New(nil).Run(fields, nil, types.FormValues{"C": []any{"root", "leaf"}})
	assert.Equal(t, []string{"C", "X"}, ids(out))
}

func optionTree() *nodestore.Index {
	return nodestore.NewIndex([]types.TreeNode{
		{ID: "sel", Type: types.NodeField, FieldType: "SELECT", Label: "Toiture"},
		{ID: "o1", ParentID: "sel", Type: types.NodeOption, Label: "Oui", Value: "yes", SharedReferenceIDs: []string{"S1"}},
		{ID: "of1", ParentID: "o1", Type: types.NodeOptionField, Label: "Détail"},
		{ID: "S1", Type: types.NodeField, Label: "Partagé", SharedReferenceName: "Nom partagé"},
	})
}

func TestRun_ConditionalFieldsBuiltFromStore(t *testing.T) {
	nodes := optionTree()

	out := New(nil).Run(fieldsOf(t, nodes, "sel"), nodes, types.FormValues{"sel": "yes"})

	require.Equal(t, []string{"sel", "of1", "S1"}, ids(out))
	assert.Equal(t, "Détail", out[1].Label)
	assert.Equal(t, "Nom partagé", out[2].Label)
	assert.Equal(t, "Oui", out[2].MirrorTargetLabel)
	assert.Equal(t, "yes", out[2].ParentOptionValue)
}

func TestRun_OptionFoundByLabelInStore(t *testing.T) {
	nodes := optionTree()

	out := New(nil).Run(fieldsOf(t, nodes, "sel"), nodes, types.FormValues{"sel": "Oui"})

	assert.Equal(t, []string{"sel", "of1", "S1"}, ids(out))
}

// Picking "flat" brings in S1. The references on S1's own options wait
// until one of them is selected.
func TestRun_ReferencedSelectDoesNotInjectItsOptions(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		{ID: "C", Type: types.NodeField, FieldType: "SELECT", Label: "Couverture"},
		{ID: "O", ParentID: "C", Type: types.NodeOption, Label: "Plate", Value: "flat", SharedReferenceIDs: []string{"S1"}},
		{ID: "S1", Type: types.NodeField, FieldType: "SELECT", Label: "Matériau"},
		{ID: "S1o", ParentID: "S1", Type: types.NodeOption, Label: "Zinc", Value: "zinc", SharedReferenceIDs: []string{"S2"}},
		{ID: "S2", Type: types.NodeField, Label: "Gauge"},
	})

	out := New(nil).Run(fieldsOf(t, nodes, "C"), nodes, types.FormValues{"C": "flat"})
	assert.Equal(t, []string{"C", "S1"}, ids(out))

	out = New(nil).Run(fieldsOf(t, nodes, "C"), nodes, types.FormValues{"C": "flat", "S1": "zinc"})
	assert.Equal(t, []string{"C", "S1", "S2"}, ids(out))
}

func TestRun_ConditionalFieldInjectedOnce(t *testing.T) {
	shared := types.FieldDescriptor{ID: "X", Label: "Extra"}
	fields := []types.FieldDescriptor{
		{ID: "C1", Type: "SELECT", Options: []types.OptionDescriptor{{Value: "A", ConditionalFields: []types.FieldDescriptor{shared}}}},
		{ID: "C2", Type: "SELECT", Options: []types.OptionDescriptor{{Value: "A", ConditionalFields: []types.FieldDescriptor{shared}}}},
	}

	out := New(nil).Run(fields, nil, types.FormValues{"C1": "A", "C2": "A"})

	require.Equal(t, []string{"C1", "X", "C2"}, ids(out))
	assert.Equal(t, "C1", out[1].ParentFieldID)
}

func TestRun_NestedInjection(t *testing.T) {
	fields := []types.FieldDescriptor{{
		ID:   "C",
		Type: "SELECT",
		Options: []types.OptionDescriptor{{
			Value: "A",
			ConditionalFields: []types.FieldDescriptor{{
				ID:   "D",
				Type: "SELECT",
				Options: []types.OptionDescriptor{{
					Value:             "B",
					ConditionalFields: []types.FieldDescriptor{{ID: "E"}},
				}},
			}},
		}},
	}}

	out := New(nil).Run(fields, nil, types.FormValues{"C": "A", "D": "B"})
	assert.Equal(t, []string{"C", "D", "E"}, ids(out))
	assert.Equal(t, "D", out[2].ParentFieldID)
}

func TestRun_RepeaterInstanceReadsTemplateValue(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		repeaterNode("R", "Pan", `["T1"]`),
		{ID: "T1", ParentID: "R", Type: types.NodeField, FieldType: "SELECT", Label: "Orientation"},
		{ID: "o1", ParentID: "T1", Type: types.NodeOption, Label: "Sud", Value: "yes"},
		{ID: "of1", ParentID: "o1", Type: types.NodeOptionField, Label: "Détail"},
	})
	values := types.FormValues{"R_instanceCount": 1, "T1": "yes"}

	out := New(nil).Run(fieldsOf(t, nodes, "R"), nodes, values)

	require.Equal(t, []string{"R_0_T1", "R_0_of1", "R_removeInstance_0", "R_addButton"}, ids(out))
	assert.Equal(t, "Pan 1 - Détail", out[1].Label)
	assert.True(t, out[1].IsConditional)
	assert.Equal(t, "Sud", out[1].MirrorTargetLabel)
}

func TestRun_FieldConditions(t *testing.T) {
	fields := []types.FieldDescriptor{
		{ID: "A"},
		{ID: "B", Conditions: []types.ConditionRule{{DependsOn: "A", Operator: types.OpEquals, ShowWhen: "yes"}}},
		{ID: "C", Conditions: []types.ConditionRule{{DependsOn: "A", Operator: types.OpNotEquals, ShowWhen: "yes"}}},
		{ID: "D", Conditions: []types.ConditionRule{{DependsOn: "A", Operator: "greater_than", ShowWhen: 3}}},
	}
	p := New(nil)

	assert.Equal(t, []string{"A", "B", "D"}, ids(p.Run(fields, nil, types.FormValues{"A": "yes"})))
	assert.Equal(t, []string{"A", "C", "D"}, ids(p.Run(fields, nil, types.FormValues{"A": "no"})))
}

func TestRun_Deterministic(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		repeaterNode("R", "Pan", `["T1","T2"]`),
		{ID: "T1", ParentID: "R", Type: types.NodeField, FieldType: "SELECT", Label: "Orientation", Order: 1},
		{ID: "o1", ParentID: "T1", Type: types.NodeOption, Label: "Sud", Value: "S", SharedReferenceIDs: []string{"S1"}},
		{ID: "T2", ParentID: "R", Type: types.NodeField, Label: "Surface", Order: 2,
			Conditions: []types.ConditionRule{{DependsOn: "T1", ShowWhen: "S"}}},
		{ID: "S1", Type: types.NodeField, Label: "Partagé"},
		{ID: "sel", Type: types.NodeField, FieldType: "SELECT"},
	})
	values := types.FormValues{"R_instanceCount": 3, "R_0_T1": "S", "T1": "S"}
	fields := fieldsOf(t, nodes, "sel", "R")
	p := New(nil)

	first := p.Run(fields, nodes, values)
	second := p.Run(fields, nodes, values)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_OutputIsIndependent(t *testing.T) {
	fields := []types.FieldDescriptor{{ID: "A", SharedReferenceIDs: []string{"S1"}}}
	out := New(nil).Run(fields, nil, nil)
	out[0].SharedReferenceIDs[0] = "changed"
	assert.Equal(t, "S1", fields[0].SharedReferenceIDs[0])
}

func TestDedupe_KeepsLowestOrder(t *testing.T) {
	in := []types.FieldDescriptor{
		{ID: "C", Order: 0},
		{ID: "X", Order: 7, Label: "late"},
		{ID: "Y", Order: 6},
		{ID: "X", Order: 5, Label: "early"},
	}

	out := Dedupe(in)

	require.Equal(t, []string{"C", "X", "Y"}, ids(out))
	assert.Equal(t, 5, out[1].Order)
	assert.Equal(t, "early", out[1].Label)
}

func TestInstanceCount(t *testing.T) {
	tests := []struct {
		raw  any
		want int
	}{
		{2, 2},
		{int64(3), 3},
		{4.0, 4},
		{" 5 ", 5},
		{"x", 0},
		{-1, 0},
		{true, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InstanceCount(types.FormValues{"R_instanceCount": tt.raw}, "R"), "%v", tt.raw)
	}
	assert.Equal(t, 0, InstanceCount(nil, "R"))
}

func TestIsSelectLike(t *testing.T) {
	assert.True(t, IsSelectLike(types.FieldDescriptor{Type: "SELECT"}))
	assert.True(t, IsSelectLike(types.FieldDescriptor{Type: "cascade"}))
	assert.True(t, IsSelectLike(types.FieldDescriptor{Type: "RADIO"}))
	assert.True(t, IsSelectLike(types.FieldDescriptor{Type: "TEXT", Options: []types.OptionDescriptor{{Value: "a"}}}))
	assert.False(t, IsSelectLike(types.FieldDescriptor{Type: "TEXT"}))
	assert.False(t, IsSelectLike(types.FieldDescriptor{Type: types.FieldTypeRepeaterAddButton}))
}

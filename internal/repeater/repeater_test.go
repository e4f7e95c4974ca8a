package repeater

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

func TestAddInstance(t *testing.T) {
	values := types.FormValues{}

	c, idx, err := AddInstance(values, "R", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	c.Apply(values)
	assert.Equal(t, 1, values["R_instanceCount"])

	c, idx, err = AddInstance(values, "R", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	c.Apply(values)
	assert.Equal(t, 2, values["R_instanceCount"])
}

func TestAddInstance_MaxItems(t *testing.T) {
	maxItems := 2
	values := types.FormValues{"R_instanceCount": 2.0}

	_, _, err := AddInstance(values, "R", &maxItems)
	assert.ErrorIs(t, err, ErrMaxItems)
}

func TestRemoveInstance_ShiftsLaterInstances(t *testing.T) {
	values := types.FormValues{
		"R_instanceCount": 3,
		"R_0_T1":          "a0",
		"R_1_T1":          "a1",
		"R_1_T2":          "b1",
		"R_2_T1":          "a2",
		"R_2_T2":          "b2",
		"other":           "keep",
	}

	c, err := RemoveInstance(values, "R", 1)
	require.NoError(t, err)
	c.Apply(values)

	assert.Equal(t, types.FormValues{
		"R_instanceCount": 2,
		"R_0_T1":          "a0",
		"R_1_T1":          "a2",
		"R_1_T2":          "b2",
		"other":           "keep",
	}, values)
}

func TestRemoveInstance_Last(t *testing.T) {
	values := types.FormValues{"R_instanceCount": 1, "R_0_T1": "a0"}

	c, err := RemoveInstance(values, "R", 0)
	require.NoError(t, err)
	c.Apply(values)

	assert.Equal(t, types.FormValues{"R_instanceCount": 0}, values)
}

func TestRemoveInstance_OutOfRange(t *testing.T) {
	values := types.FormValues{"R_instanceCount": 1}

	_, err := RemoveInstance(values, "R", 1)
	assert.ErrorIs(t, err, ErrNoInstance)
	_, err = RemoveInstance(values, "R", -1)
	assert.ErrorIs(t, err, ErrNoInstance)
}

func TestDuplicate(t *testing.T) {
	nodes := nodestore.NewIndex([]types.TreeNode{
		{ID: "R", Type: types.NodeRepeater},
		{ID: "T1", ParentID: "R", Type: types.NodeField, FieldType: "SELECT", SharedReferenceIDs: []string{"S1"}},
		{ID: "o1", ParentID: "T1", Type: types.NodeOption, Value: "a"},
		{ID: "T2", ParentID: "R", Type: types.NodeField,
			Conditions: []types.ConditionRule{{DependsOn: "T1", ShowWhen: "a"}},
			Config:     types.FieldConfig{SourceRef: types.ParseRef("T1")}},
		{ID: "T3", ParentID: "R", Type: types.NodeField,
			Config: types.FieldConfig{SourceRef: types.ParseRef("formula:f1")}},
		{ID: "S1", Type: types.NodeField},
	})

	copies := Duplicate(nodes, "R", []string{"T1", "T2", "T3", "missing"}, 1)

	byID := make(map[string]types.TreeNode)
	for _, n := range copies {
		byID[n.ID] = n
	}
	require.Len(t, copies, 4)
	assert.Contains(t, byID, "T1-2")
	assert.Contains(t, byID, "o1-2")

	assert.Equal(t, "R", byID["T1-2"].ParentID)
	assert.Equal(t, "T1-2", byID["o1-2"].ParentID)
	assert.Equal(t, []string{"S1"}, byID["T1-2"].SharedReferenceIDs)
	assert.Equal(t, "T1-2", byID["T2-2"].Conditions[0].DependsOn)
	assert.Equal(t, "T1-2", byID["T2-2"].Config.SourceRef.String())
	assert.Equal(t, "formula:f1", byID["T3-2"].Config.SourceRef.String())

	meta := byID["o1-2"].Metadata
	assert.Equal(t, "o1", meta.CopiedFromNodeID)
	require.NotNil(t, meta.InstanceIndex)
	assert.Equal(t, 1, *meta.InstanceIndex)

	// Originals are untouched.
	t2, _ := nodes.Node("T2")
	assert.Equal(t, "T1", t2.Conditions[0].DependsOn)
}

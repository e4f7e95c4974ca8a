package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/field"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// InstanceCountSuffix is appended to a repeater id to form the form-value key
// holding its instance count.
const InstanceCountSuffix = "_instanceCount"

// IsRepeater reports whether f expands into instances.
func IsRepeater(f types.FieldDescriptor) bool {
	return types.NodeType(f.Type).IsRepeater() || f.Metadata.Repeater != nil
}

// InstanceCountKey returns the form-value key of a repeater's instance count.
func InstanceCountKey(repeaterID string) string {
	return repeaterID + InstanceCountSuffix
}

// InstanceCount reads the instance count of a repeater. Missing, negative or
// unparseable counts are zero: a repeater starts without instances.
func InstanceCount(values types.FormValues, repeaterID string) int {
	raw, ok := values.Get(InstanceCountKey(repeaterID))
	if !ok {
		return 0
	}
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}

func (r *run) expandRepeater(rep types.FieldDescriptor) {
	templateIDs := r.templateIDs(rep)
	count := InstanceCount(r.values, rep.ID)

	for i := 0; i < count; i++ {
		ns := field.NewNamespace(rep.ID, rep.Label, i)
		for _, tid := range templateIDs {
			clone := field.Namespace(r.template(tid), ns, field.NamespaceOptions{TemplateNodeID: tid})
			r.attachConditionalFields(&clone, ns)
			appended := r.push(clone)
			r.inject(appended)
		}
		r.push(removeButton(rep, i))
	}
	r.push(addButton(rep, count))
}

// templateIDs returns the ordered template ids of a repeater: the declared
// ids, each followed by its children that carry a sourceRef, reordered to
// the live store order when the store knows them.
func (r *run) templateIDs(rep types.FieldDescriptor) []string {
	meta := rep.Metadata.Repeater
	if meta == nil {
		if node, ok := r.nodes.Node(rep.ID); ok {
			meta = node.Repeater
		}
	}
	declared := meta.TemplateIDs()
	if len(declared) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(declared))
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, tid := range declared {
		add(tid)
		for _, child := range r.nodes.Children(tid) {
			if !child.Config.SourceRef.IsZero() {
				add(child.ID)
			}
		}
	}

	live := r.liveOrder(rep.ID)
	if len(live) == 0 {
		return ids
	}
	sort.SliceStable(ids, func(i, j int) bool {
		pi, iok := live[ids[i]]
		pj, jok := live[ids[j]]
		if iok && jok {
			return pi < pj
		}
		return iok && !jok
	})
	return ids
}

// liveOrder numbers the repeater's subtree in pre-order.
func (r *run) liveOrder(rootID string) map[string]int {
	pos := make(map[string]int)
	var walk func(id string)
	walk = func(id string) {
		for _, child := range r.nodes.Children(id) {
			if _, ok := pos[child.ID]; ok {
				continue
			}
			pos[child.ID] = len(pos)
			walk(child.ID)
		}
	}
	walk(rootID)
	return pos
}

// template locates a template field in the section, then in the store, and
// falls back to a placeholder.
func (r *run) template(id string) types.FieldDescriptor {
	for _, f := range r.section {
		if f.ID == id {
			return f.Clone()
		}
	}
	if node, ok := r.nodes.Node(id); ok {
		return field.FromNode(node, r.nodes)
	}
	r.log.Debug("repeater template not found, using placeholder", zap.String("template_id", id))
	return field.Placeholder(id)
}

// attachConditionalFields completes the conditional fields of every option of
// a cloned template with the references the store knows about.
func (r *run) attachConditionalFields(clone *types.FieldDescriptor, ns types.RepeaterNamespace) {
	for i := range clone.Options {
		opt := &clone.Options[i]
		present := make(map[string]struct{}, len(opt.ConditionalFields))
		for _, cf := range opt.ConditionalFields {
			present[field.OriginalFieldID(cf)] = struct{}{}
		}
		var missing []string
		for _, id := range r.referencedFieldIDs(opt.ID, opt.SharedReferenceIDs) {
			if _, ok := present[id]; !ok {
				missing = append(missing, id)
			}
		}
		opt.ConditionalFields = append(opt.ConditionalFields, r.materialize(missing, &ns)...)
	}
}

func removeButton(rep types.FieldDescriptor, index int) types.FieldDescriptor {
	return types.FieldDescriptor{
		ID:                    fmt.Sprintf("%s_removeInstance_%d", rep.ID, index),
		Label:                 fmt.Sprintf("%s %d", rep.Label, index+1),
		Type:                  types.FieldTypeRepeaterRemoveInstance,
		Visible:               true,
		RepeaterParentID:      rep.ID,
		RepeaterInstanceIndex: index,
		Button: &types.Button{
			Kind:          types.ButtonRemove,
			RepeaterID:    rep.ID,
			InstanceIndex: index,
		},
	}
}

// addButton is always emitted once; it is disabled when maxItems is reached.
func addButton(rep types.FieldDescriptor, count int) types.FieldDescriptor {
	label := rep.Label
	disabled := false
	if meta := rep.Metadata.Repeater; meta != nil {
		if meta.AddButtonLabel != "" {
			label = meta.AddButtonLabel
		}
		disabled = meta.MaxItems != nil && count >= *meta.MaxItems
	}
	return types.FieldDescriptor{
		ID:               rep.ID + "_addButton",
		Label:            label,
		Type:             types.FieldTypeRepeaterAddButton,
		Visible:          true,
		RepeaterParentID: rep.ID,
		Button: &types.Button{
			Kind:          types.ButtonAdd,
			RepeaterID:    rep.ID,
			InstanceIndex: count,
			Disabled:      disabled,
			Label:         label,
		},
	}
}

package pipeline

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/field"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/sharedref"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/visibility"
)

// namespacedID matches "<repeaterId>_<index>_<fieldId>".
var namespacedID = regexp.MustCompile(`^(.+)_(\d+)_(.+)$`)

// IsSelectLike reports whether f picks one of a set of options and can
// therefore trigger conditional fields.
func IsSelectLike(f types.FieldDescriptor) bool {
	if f.IsButton() {
		return false
	}
	if len(f.Options) > 0 || f.SelectConfig != nil {
		return true
	}
	t := strings.ToLower(f.Type)
	return strings.Contains(t, "select") || strings.Contains(t, "cascade") || strings.Contains(t, "radio")
}

// inject appends the conditional fields of the option currently selected
// in f, then recurses into the injected fields.
func (r *run) inject(f types.FieldDescriptor) {
	if !IsSelectLike(f) {
		return
	}
	selected, ok := r.selectedValue(f)
	if !ok {
		return
	}
	opt, ok := r.resolveOption(f, selected)
	if !ok {
		return
	}

	for _, cf := range opt.ConditionalFields {
		if _, dup := r.ids[cf.ID]; dup {
			continue
		}
		label := conditionalLabel(cf)
		key := triple{parentFieldID: f.ID, optionValue: visibility.Stringify(selected), label: label}
		if _, dup := r.triples[key]; dup {
			continue
		}
		r.triples[key] = struct{}{}

		c := cf.Clone()
		c.Label = label
		c.IsConditional = true
		c.ParentFieldID = f.ID
		c.ParentOptionValue = selected
		c.MirrorTargetLabel = opt.Label
		appended := r.push(c)
		r.inject(appended)
	}
}

// selectedValue reads the value of f. Repeater clones whose namespaced key
// is unset fall back to the template's key.
func (r *run) selectedValue(f types.FieldDescriptor) (any, bool) {
	v, ok := r.values.Get(f.ID)
	if !ok || !visibility.Exists(v) {
		fallback := ""
		switch {
		case f.IsRepeaterInstance:
			fallback = field.OriginalFieldID(f)
		default:
			if m := namespacedID.FindStringSubmatch(f.ID); m != nil {
				fallback = m[3]
			}
		}
		if fallback == "" || fallback == f.ID {
			return nil, false
		}
		v, ok = r.values.Get(fallback)
		if !ok {
			return nil, false
		}
	}
	// Cascades store the selected path; the leaf decides.
	if path, isPath := v.([]any); isPath {
		if len(path) == 0 {
			return nil, false
		}
		v = path[len(path)-1]
	}
	if !visibility.Exists(v) {
		return nil, false
	}
	return v, true
}

// resolveOption finds the option matching selected and makes sure its
// conditional fields are populated.
func (r *run) resolveOption(f types.FieldDescriptor, selected any) (types.OptionDescriptor, bool) {
	opt, ok := matchOption(f, selected)
	if !ok {
		opt, ok = r.optionFromStore(f, selected)
		if !ok {
			return types.OptionDescriptor{}, false
		}
	}
	if len(opt.ConditionalFields) == 0 {
		opt.ConditionalFields = r.materialize(r.referencedFieldIDs(opt.ID, opt.SharedReferenceIDs), f.RepeaterNamespace)
	}
	return opt, true
}

// matchOption looks for an exact value match, then for a loose one on the
// stringified value.
func matchOption(f types.FieldDescriptor, selected any) (types.OptionDescriptor, bool) {
	opts := f.Options
	if f.SelectConfig != nil {
		opts = append(append([]types.OptionDescriptor(nil), opts...), f.SelectConfig.Options...)
	}
	if s, ok := selected.(string); ok {
		for _, o := range opts {
			if o.Value == s {
				return o.Clone(), true
			}
		}
	}
	loose := visibility.Stringify(selected)
	for _, o := range opts {
		if o.Value == loose || (o.ID != "" && o.ID == loose) {
			return o.Clone(), true
		}
	}
	return types.OptionDescriptor{}, false
}

// optionFromStore rebuilds an option from the node store by label or value,
// preferring options owned by the field's own node.
func (r *run) optionFromStore(f types.FieldDescriptor, selected any) (types.OptionDescriptor, bool) {
	want := visibility.Stringify(selected)
	owner := f.Metadata.OriginalNodeID
	if owner == "" {
		owner = field.OriginalFieldID(f)
	}

	var found *types.TreeNode
	for _, n := range r.nodes.All() {
		if !n.Type.IsOption() || (n.Label != want && n.Value != want) {
			continue
		}
		if n.ParentID == owner {
			found = &n
			break
		}
		if found == nil {
			found = &n
		}
	}
	if found == nil {
		return types.OptionDescriptor{}, false
	}
	r.log.Debug("option rebuilt from node store",
		zap.String("field_id", f.ID), zap.String("option_id", found.ID))
	return field.OptionFromNode(*found), true
}

// referencedFieldIDs lists the fields an option injects: its
// leaf_option_field children, then its declared shared references, then
// everything the resolver reaches from it.
func (r *run) referencedFieldIDs(optionID string, declared []string) []string {
	var ids []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if optionID != "" {
		for _, child := range r.nodes.Children(optionID) {
			if child.Type == types.NodeOptionField {
				add(child.ID)
			}
		}
	}
	for _, id := range declared {
		add(id)
	}
	if optionID != "" {
		for _, id := range sharedref.FindAll(optionID, r.nodes, nil) {
			add(id)
		}
	}
	return ids
}

// materialize builds fields for ids, namespaced into ns when set. Ids the
// store does not know are skipped.
func (r *run) materialize(ids []string, ns *types.RepeaterNamespace) []types.FieldDescriptor {
	var out []types.FieldDescriptor
	for _, id := range ids {
		node, ok := r.nodes.Node(id)
		if !ok {
			r.log.Debug("shared reference not found", zap.String("node_id", id))
			continue
		}
		f := field.FromNode(node, r.nodes)
		if ns != nil {
			f = field.Namespace(f, *ns, field.NamespaceOptions{TemplateNodeID: id})
		}
		out = append(out, f)
	}
	return out
}

// conditionalLabel prefers the shared reference name over the field label.
func conditionalLabel(f types.FieldDescriptor) string {
	label := f.SharedReferenceName
	if label == "" {
		label = f.Label
	}
	if f.RepeaterNamespace != nil {
		label = field.PrefixLabel(f.RepeaterNamespace.LabelPrefix, label)
	}
	return label
}

package field

import (
	"fmt"
	"strings"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// LabelSeparator joins a repeater label prefix to a field label.
const LabelSeparator = " - "

// NewNamespace returns the namespace of instance index of the repeater.
func NewNamespace(repeaterID, repeaterLabel string, index int) types.RepeaterNamespace {
	return types.RepeaterNamespace{
		Prefix:        fmt.Sprintf("%s_%d_", repeaterID, index),
		LabelPrefix:   fmt.Sprintf("%s %d", repeaterLabel, index+1),
		ParentID:      repeaterID,
		InstanceIndex: index,
	}
}

// NamespaceOptions tunes Namespace. The zero value prefixes labels.
type NamespaceOptions struct {
	TemplateNodeID  string
	SkipLabelPrefix bool
}

// OriginalFieldID resolves the template id a field descends from: explicit
// originalFieldId, then metadata, then the repeater template, then the id.
func OriginalFieldID(f types.FieldDescriptor) string {
	switch {
	case f.OriginalFieldID != "":
		return f.OriginalFieldID
	case f.Metadata.OriginalFieldID != "":
		return f.Metadata.OriginalFieldID
	case f.RepeaterTemplateNodeID != "":
		return f.RepeaterTemplateNodeID
	default:
		return f.ID
	}
}

// PrefixLabel applies "<labelPrefix> - " to label once.
func PrefixLabel(labelPrefix, label string) string {
	if labelPrefix == "" {
		return label
	}
	head := labelPrefix + LabelSeparator
	if strings.HasPrefix(label, head) {
		return label
	}
	return head + label
}

// StripLabelPrefix removes "<labelPrefix> - " from label when present.
func StripLabelPrefix(labelPrefix, label string) string {
	if labelPrefix == "" {
		return label
	}
	return strings.TrimPrefix(label, labelPrefix+LabelSeparator)
}

// Namespace deep-clones src into ns. Shared references keep pointing at the
// original tree; intra-instance references (sourceRef, dependsOn, table
// filters) are prefixed. src is never modified.
func Namespace(src types.FieldDescriptor, ns types.RepeaterNamespace, opts NamespaceOptions) types.FieldDescriptor {
	clone := src.Clone()
	originalID := OriginalFieldID(src)

	clone.ID = ns.Prefix + originalID
	clone.OriginalFieldID = originalID
	clone.Metadata.OriginalFieldID = originalID
	if clone.Metadata.OriginalNodeID == "" {
		clone.Metadata.OriginalNodeID = originalID
	}

	if !opts.SkipLabelPrefix && ns.LabelPrefix != "" {
		clone.Label = PrefixLabel(ns.LabelPrefix, clone.Label)
		if clone.SharedReferenceName != "" {
			clone.SharedReferenceName = PrefixLabel(ns.LabelPrefix, clone.SharedReferenceName)
		}
	}

	clone.Config.SourceRef = clone.Config.SourceRef.Namespace(ns.Prefix)
	for i := range clone.Conditions {
		clone.Conditions[i].DependsOn = prefixOnce(ns.Prefix, clone.Conditions[i].DependsOn)
	}
	if clone.TableLookup != nil {
		for i := range clone.TableLookup.FilterConditions {
			fc := &clone.TableLookup.FilterConditions[i]
			fc.FieldID = prefixOnce(ns.Prefix, fc.FieldID)
		}
	}

	for i := range clone.Options {
		opt := &clone.Options[i]
		for j, cf := range opt.ConditionalFields {
			opt.ConditionalFields[j] = Namespace(cf, ns, NamespaceOptions{
				TemplateNodeID:  OriginalFieldID(cf),
				SkipLabelPrefix: opts.SkipLabelPrefix,
			})
		}
	}

	templateID := opts.TemplateNodeID
	if templateID == "" {
		templateID = originalID
	}
	nsCopy := ns
	clone.IsRepeaterInstance = true
	clone.RepeaterParentID = ns.ParentID
	clone.RepeaterInstanceIndex = ns.InstanceIndex
	clone.RepeaterInstanceLabel = ns.LabelPrefix
	clone.RepeaterTemplateNodeID = templateID
	clone.RepeaterNamespace = &nsCopy
	return clone
}

func prefixOnce(prefix, id string) string {
	if id == "" || prefix == "" || strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}

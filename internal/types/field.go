package types

import "encoding/json"

// Field types the pipeline emits itself.
const (
	FieldTypeText                   = "TEXT"
	FieldTypeRepeaterAddButton      = "REPEATER_ADD_BUTTON"
	FieldTypeRepeaterRemoveInstance = "REPEATER_REMOVE_INSTANCE_BUTTON"
)

// FieldConfig is the per-field configuration block. SourceRef is parsed once
// when the node is decoded.
type FieldConfig struct {
	SourceRef    Ref            `json:"sourceRef,omitzero"`
	Placeholder  string         `json:"placeholder,omitempty"`
	DefaultValue any            `json:"defaultValue,omitempty"`
	Unit         string         `json:"unit,omitempty"`
	Min          *float64       `json:"min,omitempty"`
	Max          *float64       `json:"max,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// IsZero lets encoding/json omit empty configs.
func (c FieldConfig) IsZero() bool {
	return c.SourceRef.IsZero() && c.Placeholder == "" && c.DefaultValue == nil &&
		c.Unit == "" && c.Min == nil && c.Max == nil && len(c.Extra) == 0
}

// Clone returns an independent copy of c.
func (c FieldConfig) Clone() FieldConfig {
	out := c
	out.DefaultValue = cloneValue(c.DefaultValue)
	out.Min = cloneFloatPtr(c.Min)
	out.Max = cloneFloatPtr(c.Max)
	if c.Extra != nil {
		out.Extra = cloneValue(c.Extra).(map[string]any)
	}
	return out
}

// FilterCondition filters table lookup rows by the value of another field.
type FilterCondition struct {
	FieldID  string `json:"fieldId"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// TableLookupConfig binds a field to a lookup table.
type TableLookupConfig struct {
	TableID          string            `json:"tableId,omitempty"`
	ColumnName       string            `json:"columnName,omitempty"`
	FilterConditions []FilterCondition `json:"filterConditions,omitempty"`
}

// Clone returns an independent copy of t.
func (t *TableLookupConfig) Clone() *TableLookupConfig {
	if t == nil {
		return nil
	}
	c := *t
	if t.FilterConditions != nil {
		c.FilterConditions = make([]FilterCondition, len(t.FilterConditions))
		for i, fc := range t.FilterConditions {
			fc.Value = cloneValue(fc.Value)
			c.FilterConditions[i] = fc
		}
	}
	return &c
}

// SelectConfig describes how a select field gets its options. Shared
// reference option lists live here and survive cloning unchanged.
type SelectConfig struct {
	Multiple     bool               `json:"multiple,omitempty"`
	AllowCustom  bool               `json:"allowCustom,omitempty"`
	SourceNodeID string             `json:"sourceNodeId,omitempty"`
	Options      []OptionDescriptor `json:"options,omitempty"`
}

// Clone returns an independent copy of s.
func (s *SelectConfig) Clone() *SelectConfig {
	if s == nil {
		return nil
	}
	c := *s
	c.Options = cloneOptions(s.Options)
	return &c
}

// Capability is the materialized view of one capability block. Enabled is
// derived from the presence of instances.
type Capability struct {
	Kind      CapabilityKind             `json:"kind"`
	Enabled   bool                       `json:"enabled"`
	ActiveID  string                     `json:"activeId,omitempty"`
	Instances map[string]json.RawMessage `json:"instances,omitempty"`
}

// Capabilities holds one Capability per kind.
type Capabilities struct {
	Data      Capability `json:"data"`
	Formula   Capability `json:"formula"`
	Condition Capability `json:"condition"`
	Table     Capability `json:"table"`
	API       Capability `json:"api"`
	Link      Capability `json:"link"`
	Markers   Capability `json:"markers"`
}

// IsZero lets encoding/json omit capability sets that were never built.
func (c Capabilities) IsZero() bool {
	for _, k := range CapabilityKinds {
		if cp := c.Get(k); cp.Kind != "" || cp.Enabled {
			return false
		}
	}
	return true
}

// Get returns the capability for kind.
func (c Capabilities) Get(kind CapabilityKind) Capability {
	if p := c.slot(kind); p != nil {
		return *p
	}
	return Capability{}
}

// Set stores cp under its kind.
func (c *Capabilities) Set(cp Capability) {
	if p := c.slot(cp.Kind); p != nil {
		*p = cp
	}
}

func (c *Capabilities) slot(kind CapabilityKind) *Capability {
	switch kind {
	case CapData:
		return &c.Data
	case CapFormula:
		return &c.Formula
	case CapCondition:
		return &c.Condition
	case CapTable:
		return &c.Table
	case CapAPI:
		return &c.API
	case CapLink:
		return &c.Link
	case CapMarkers:
		return &c.Markers
	}
	return nil
}

// Clone returns an independent copy of c.
func (c Capabilities) Clone() Capabilities {
	var out Capabilities
	for _, k := range CapabilityKinds {
		cp := c.Get(k)
		if cp.Instances != nil {
			inst := make(map[string]json.RawMessage, len(cp.Instances))
			for id, raw := range cp.Instances {
				inst[id] = cloneRaw(raw)
			}
			cp.Instances = inst
		}
		out.Set(cp)
	}
	return out
}

// FieldMetadata tracks provenance through materialization and cloning.
type FieldMetadata struct {
	OriginalFieldID  string        `json:"originalFieldId,omitempty"`
	OriginalNodeID   string        `json:"originalNodeId,omitempty"`
	CopiedFromNodeID string        `json:"copiedFromNodeId,omitempty"`
	Repeater         *RepeaterMeta `json:"repeater,omitempty"`
}

// RepeaterNamespace identifies one repeater instance.
type RepeaterNamespace struct {
	Prefix        string `json:"prefix"`
	LabelPrefix   string `json:"labelPrefix"`
	ParentID      string `json:"parentId"`
	InstanceIndex int    `json:"instanceIndex"`
}

// ButtonKind distinguishes the repeater control pseudo-fields.
type ButtonKind string

const (
	ButtonAdd    ButtonKind = "add"
	ButtonRemove ButtonKind = "remove"
)

// Button describes a repeater control pseudo-field.
type Button struct {
	Kind          ButtonKind `json:"kind"`
	RepeaterID    string     `json:"repeaterId"`
	InstanceIndex int        `json:"instanceIndex"`
	Disabled      bool       `json:"disabled,omitempty"`
	Label         string     `json:"label,omitempty"`
}

// OptionDescriptor is one choice of a select or cascade field.
type OptionDescriptor struct {
	ID                 string            `json:"id,omitempty"`
	Value              string            `json:"value"`
	Label              string            `json:"label"`
	SharedReferenceIDs []string          `json:"sharedReferenceIds,omitempty"`
	ConditionalFields  []FieldDescriptor `json:"conditionalFields,omitempty"`
}

// Clone returns an independent copy of o, conditional fields included.
func (o OptionDescriptor) Clone() OptionDescriptor {
	out := o
	out.SharedReferenceIDs = cloneStrings(o.SharedReferenceIDs)
	if o.ConditionalFields != nil {
		out.ConditionalFields = make([]FieldDescriptor, len(o.ConditionalFields))
		for i, f := range o.ConditionalFields {
			out.ConditionalFields[i] = f.Clone()
		}
	}
	return out
}

// FieldDescriptor is the renderable unit produced by each render pass.
// Descriptors are never shared between passes; use Clone before mutating one
// that came from somewhere else.
type FieldDescriptor struct {
	ID                  string             `json:"id"`
	Label               string             `json:"label"`
	Type                string             `json:"type"`
	Order               int                `json:"order"`
	Visible             bool               `json:"visible"`
	Required            bool               `json:"required,omitempty"`
	Synthetic           bool               `json:"synthetic,omitempty"`
	SharedReferenceIDs  []string           `json:"sharedReferenceIds,omitempty"`
	SharedReferenceID   string             `json:"sharedReferenceId,omitempty"`
	SharedReferenceName string             `json:"sharedReferenceName,omitempty"`
	Options             []OptionDescriptor `json:"options,omitempty"`
	Conditions          []ConditionRule    `json:"conditions,omitempty"`
	Config              FieldConfig        `json:"config,omitzero"`
	TableLookup         *TableLookupConfig `json:"tableLookupConfig,omitempty"`
	SelectConfig        *SelectConfig      `json:"selectConfig,omitempty"`
	Capabilities        Capabilities       `json:"capabilities,omitzero"`
	Metadata            FieldMetadata      `json:"metadata,omitzero"`
	OriginalFieldID     string             `json:"originalFieldId,omitempty"`

	IsRepeaterInstance     bool               `json:"isRepeaterInstance,omitempty"`
	RepeaterParentID       string             `json:"repeaterParentId,omitempty"`
	RepeaterInstanceIndex  int                `json:"repeaterInstanceIndex,omitempty"`
	RepeaterInstanceLabel  string             `json:"repeaterInstanceLabel,omitempty"`
	RepeaterTemplateNodeID string             `json:"repeaterTemplateNodeId,omitempty"`
	RepeaterNamespace      *RepeaterNamespace `json:"repeaterNamespace,omitempty"`

	IsConditional     bool   `json:"isConditional,omitempty"`
	ParentFieldID     string `json:"parentFieldId,omitempty"`
	ParentOptionValue any    `json:"parentOptionValue,omitempty"`
	MirrorTargetLabel string `json:"mirrorTargetLabel,omitempty"`

	Button *Button `json:"button,omitempty"`
}

// Clone returns a deep copy of f that shares no mutable state with it.
func (f FieldDescriptor) Clone() FieldDescriptor {
	out := f
	out.SharedReferenceIDs = cloneStrings(f.SharedReferenceIDs)
	out.Options = cloneOptions(f.Options)
	if f.Conditions != nil {
		out.Conditions = make([]ConditionRule, len(f.Conditions))
		for i, c := range f.Conditions {
			c.ShowWhen = cloneValue(c.ShowWhen)
			out.Conditions[i] = c
		}
	}
	out.Config = f.Config.Clone()
	out.TableLookup = f.TableLookup.Clone()
	out.SelectConfig = f.SelectConfig.Clone()
	out.Capabilities = f.Capabilities.Clone()
	out.Metadata.Repeater = f.Metadata.Repeater.Clone()
	if f.RepeaterNamespace != nil {
		ns := *f.RepeaterNamespace
		out.RepeaterNamespace = &ns
	}
	out.ParentOptionValue = cloneValue(f.ParentOptionValue)
	if f.Button != nil {
		b := *f.Button
		out.Button = &b
	}
	return out
}

// IsButton reports whether f is a repeater control pseudo-field.
func (f FieldDescriptor) IsButton() bool {
	return f.Type == FieldTypeRepeaterAddButton || f.Type == FieldTypeRepeaterRemoveInstance
}

func cloneOptions(opts []OptionDescriptor) []OptionDescriptor {
	if opts == nil {
		return nil
	}
	out := make([]OptionDescriptor, len(opts))
	for i, o := range opts {
		out[i] = o.Clone()
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneValue deep-copies the JSON-shaped values found in configs and form
// values. Other types are treated as immutable.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return cloneStrings(t)
	case json.RawMessage:
		return cloneRaw(t)
	default:
		return v
	}
}

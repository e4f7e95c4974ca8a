// Package render builds the section tree of a form and runs the field
// pipeline on every section.
package render

import (
	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/field"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/pipeline"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/visibility"
)

// Section is a container node with its declared fields in tree order.
type Section struct {
	ID        string
	Label     string
	Hidden    bool
	Condition *types.ConditionRule
	Fields    []types.FieldDescriptor
	Children  []Section
}

// BuildSections returns the container children of rootID, recursively.
// Option nodes and the children of fields (repeater templates, option
// fields) are not section fields; the pipeline reaches them on its own.
func BuildSections(nodes nodestore.Lookup, rootID string) []Section {
	var out []Section
	for _, n := range nodes.Children(rootID) {
		if !n.Type.IsContainer() {
			continue
		}
		out = append(out, buildSection(nodes, n))
	}
	return out
}

func buildSection(nodes nodestore.Lookup, n types.TreeNode) Section {
	s := Section{ID: n.ID, Label: n.Label, Hidden: n.Hidden}
	if len(n.Conditions) > 0 {
		c := n.Conditions[0]
		s.Condition = &c
	}
	for _, child := range nodes.Children(n.ID) {
		switch {
		case child.Type.IsContainer():
			s.Children = append(s.Children, buildSection(nodes, child))
		case child.Type.IsOption():
		default:
			s.Fields = append(s.Fields, field.FromNode(child, nodes))
		}
	}
	return s
}

// RenderedSection is one section after a render pass. Fields holds the full
// pipeline output, invisible fields included.
type RenderedSection struct {
	ID       string                  `json:"id"`
	Label    string                  `json:"label"`
	Visible  bool                    `json:"visible"`
	Fields   []types.FieldDescriptor `json:"fields"`
	Children []RenderedSection       `json:"children,omitempty"`
}

// Renderer renders section trees.
type Renderer struct {
	pipeline *pipeline.Pipeline
	log      *zap.Logger
}

// NewRenderer creates a Renderer. A nil logger disables logging.
func NewRenderer(log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{pipeline: pipeline.New(log), log: log}
}

// Render runs the pipeline on every section. A section is visible when it is
// not hidden and its condition holds; a child of an invisible section is
// invisible too.
func (r *Renderer) Render(sections []Section, nodes nodestore.Lookup, values types.FormValues) []RenderedSection {
	return r.render(sections, nodes, values, true)
}

func (r *Renderer) render(sections []Section, nodes nodestore.Lookup, values types.FormValues, parentVisible bool) []RenderedSection {
	out := make([]RenderedSection, 0, len(sections))
	for _, s := range sections {
		visible := parentVisible && !s.Hidden && visibility.Section(s.Condition, values)
		if s.Condition != nil && !visibility.KnownOperator(s.Condition.Operator) {
			r.log.Debug("unknown section condition operator, treating as visible",
				zap.String("section_id", s.ID), zap.String("operator", string(s.Condition.Operator)))
		}
		out = append(out, RenderedSection{
			ID:       s.ID,
			Label:    s.Label,
			Visible:  visible,
			Fields:   r.pipeline.Run(s.Fields, nodes, values),
			Children: r.render(s.Children, nodes, values, visible),
		})
	}
	return out
}

// Filter keeps the visible sections and, inside them, the visible fields.
func Filter(sections []RenderedSection) []RenderedSection {
	out := make([]RenderedSection, 0, len(sections))
	for _, s := range sections {
		if !s.Visible {
			continue
		}
		s.Fields = visibility.VisibleFields(s.Fields)
		s.Children = Filter(s.Children)
		out = append(out, s)
	}
	return out
}

// Fields returns every field of sections, depth first.
func Fields(sections []RenderedSection) []types.FieldDescriptor {
	var out []types.FieldDescriptor
	for _, s := range sections {
		out = append(out, s.Fields...)
		out = append(out, Fields(s.Children)...)
	}
	return out
}

// FindField looks a rendered field up by id.
func FindField(sections []RenderedSection, id string) (types.FieldDescriptor, bool) {
	for _, f := range Fields(sections) {
		if f.ID == id {
			return f, true
		}
	}
	return types.FieldDescriptor{}, false
}

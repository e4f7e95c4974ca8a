// Package pipeline orders a section's fields for one render pass: it applies
// field conditions, expands repeaters into namespaced instances, injects the
// conditional fields of selected options and collapses duplicates.
//
// A run is a pure function of (fields, nodes, values). Every descriptor in
// the output is a fresh copy; nothing is shared with the inputs or with
// other runs.
package pipeline

import (
	"sort"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/visibility"
)

// Pipeline runs the ordering and injection algorithm.
type Pipeline struct {
	log *zap.Logger
}

// New creates a Pipeline. A nil logger disables logging.
func New(log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{log: log}
}

// Run produces the ordered field list of one section. It never fails:
// missing templates and options degrade to placeholders or are skipped.
func (p *Pipeline) Run(fields []types.FieldDescriptor, nodes nodestore.Lookup, values types.FormValues) []types.FieldDescriptor {
	if nodes == nil {
		nodes = nodestore.NewIndex(nil)
	}
	r := &run{
		log:     p.log,
		section: fields,
		nodes:   nodes,
		values:  values,
		ids:     make(map[string]struct{}),
		triples: make(map[triple]struct{}),
	}

	for _, f := range fields {
		if !r.conditionsHold(f) {
			continue
		}
		if IsRepeater(f) {
			r.expandRepeater(f)
			continue
		}
		appended := r.push(f.Clone())
		r.inject(appended)
	}
	return Dedupe(r.out)
}

// triple identifies a conditional injection semantically.
type triple struct {
	parentFieldID string
	optionValue   string
	label         string
}

// run holds the state of a single Run call.
type run struct {
	log     *zap.Logger
	section []types.FieldDescriptor
	nodes   nodestore.Lookup
	values  types.FormValues

	out     []types.FieldDescriptor
	ids     map[string]struct{}
	triples map[triple]struct{}
}

// push assigns the next order to f and appends it.
func (r *run) push(f types.FieldDescriptor) types.FieldDescriptor {
	f.Order = len(r.out)
	r.out = append(r.out, f)
	r.ids[f.ID] = struct{}{}
	return f
}

func (r *run) conditionsHold(f types.FieldDescriptor) bool {
	for _, c := range f.Conditions {
		if !visibility.KnownOperator(c.Operator) {
			r.log.Debug("unknown field condition operator, treating as satisfied",
				zap.String("field_id", f.ID), zap.String("operator", string(c.Operator)))
		}
	}
	return visibility.Fields(f.Conditions, r.values)
}

// Dedupe collapses fields sharing an id, keeping the one with the lowest
// order, and returns them in order.
func Dedupe(fields []types.FieldDescriptor) []types.FieldDescriptor {
	pos := make(map[string]int, len(fields))
	out := make([]types.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		if i, ok := pos[f.ID]; ok {
			if f.Order < out[i].Order {
				out[i] = f
			}
			continue
		}
		pos[f.ID] = len(out)
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

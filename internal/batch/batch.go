// Package batch prefetches the display values of backend-resolved fields.
//
// Every Prefetch call takes a new generation number. Results are stored only
// when their generation is still the latest one started, so a slow fetch
// that finishes after a newer render began never overwrites fresher values.
package batch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/field"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// ErrStale is returned by Prefetch when a newer generation started before
// this one finished. Its results were discarded.
var ErrStale = errors.New("batch: stale generation")

// ValueResolver computes the display value of a node.
type ValueResolver interface {
	Resolve(ctx context.Context, nodeID, treeID string, values types.FormValues) (any, error)
}

// FuncResolver adapts a plain function to ValueResolver.
type FuncResolver func(ctx context.Context, nodeID, treeID string, values types.FormValues) (any, error)

func (f FuncResolver) Resolve(ctx context.Context, nodeID, treeID string, values types.FormValues) (any, error) {
	return f(ctx, nodeID, treeID, values)
}

// Target is one field whose value is computed outside the form.
type Target struct {
	FieldID string    `json:"fieldId"`
	NodeID  string    `json:"nodeId"`
	Ref     types.Ref `json:"ref,omitzero"`
}

// Targets picks the fields that need a computed value: a backend-resolved
// sourceRef, or an enabled data or formula capability. Buttons are skipped.
func Targets(fields []types.FieldDescriptor) []Target {
	var out []Target
	seen := make(map[string]struct{})
	for _, f := range fields {
		if f.IsButton() {
			continue
		}
		ref := f.Config.SourceRef
		computed := f.Capabilities.Data.Enabled || f.Capabilities.Formula.Enabled
		if !ref.BackendResolved() && !computed {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}

		nodeID := f.Metadata.OriginalNodeID
		if nodeID == "" {
			nodeID = field.OriginalFieldID(f)
		}
		out = append(out, Target{FieldID: f.ID, NodeID: nodeID, Ref: ref})
	}
	return out
}

// Evaluator resolves targets concurrently and caches the latest generation.
type Evaluator struct {
	limit int
	log   *zap.Logger

	mu      sync.RWMutex
	latest  uint64
	applied uint64
	values  map[string]any
}

// NewEvaluator creates an Evaluator running at most limit resolutions at a
// time. A limit below 1 means 8.
func NewEvaluator(limit int, log *zap.Logger) *Evaluator {
	if limit < 1 {
		limit = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{
		limit:  limit,
		log:    log,
		values: make(map[string]any),
	}
}

// Prefetch resolves targets with resolver and, unless a newer Prefetch started meanwhile,
// replaces the cached values with the results. It returns the generation
// of this call. A target whose resolution fails is logged and left unset.
func (e *Evaluator) Prefetch(ctx context.Context, resolver ValueResolver, treeID string, targets []Target, values types.FormValues) (uint64, error) {
	e.mu.Lock()
	e.latest++
	gen := e.latest
	e.mu.Unlock()

	results := make([]any, len(targets))
	resolved := make([]bool, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, t := range targets {
		g.Go(func() error {
			v, err := resolver.Resolve(gctx, t.NodeID, treeID, values)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.log.Warn("batch: resolve failed",
					zap.String("field_id", t.FieldID), zap.String("node_id", t.NodeID), zap.Error(err))
				return nil
			}
			results[i] = v
			resolved[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return gen, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.latest {
		e.log.Debug("batch: discarding stale generation",
			zap.Uint64("generation", gen), zap.Uint64("latest", e.latest))
		return gen, ErrStale
	}
	next := make(map[string]any, len(targets))
	for i, t := range targets {
		if resolved[i] {
			next[t.FieldID] = results[i]
		}
	}
	e.values = next
	e.applied = gen
	return gen, nil
}

// Value returns the cached value of a field.
func (e *Evaluator) Value(fieldID string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.values[fieldID]
	return v, ok
}

// Values returns a copy of the cached values and their generation.
func (e *Evaluator) Values() (map[string]any, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out, e.applied
}
